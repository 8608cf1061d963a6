package pdf

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/pdf-tables/internal/domain"
)

// MIMEType is the content type every accepted upload must sniff as.
const MIMEType = "application/pdf"

var disableConfigDir sync.Once

// Validator provides input validation for PDF files
type Validator struct {
	strict bool
}

// NewValidator creates a new validator instance. A strict validator additionally
// runs pdfcpu's structural validation before a document is opened.
func NewValidator(strict bool) *Validator {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Validator{strict: strict}
}

// ValidatePDFPath validates that a file path points to a readable regular file
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NotFoundError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.IOError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.IOError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateStructure checks the PDF object structure with pdfcpu.
// It is a no-op for a non-strict validator.
func (v *Validator) ValidateStructure(path string) error {
	if !v.strict {
		return nil
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return domain.ConversionError("invalid PDF structure", err)
	}
	return nil
}

// IsPDF sniffs the leading bytes of r and reports whether they are a PDF.
func IsPDF(r io.Reader, limit int) (bool, error) {
	head, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return false, domain.IOError("read upload header", err)
	}
	return SniffMIME(head) == MIMEType, nil
}

// SniffMIME returns the detected content type of a byte buffer, without parameters.
func SniffMIME(head []byte) string {
	mt := mimetype.Detect(head)
	if mt.Is(MIMEType) {
		return MIMEType
	}
	return mt.String()
}
