package pdf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-tables/internal/domain"
)

const pdfHeader = "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

func TestValidator_ValidatePDFPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(file, []byte(pdfHeader), 0o644))

	v := NewValidator(false)

	assert.NoError(t, v.ValidatePDFPath(file))

	var de *domain.DomainError
	err := v.ValidatePDFPath("")
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrorTypeValidation, de.Type)

	err = v.ValidatePDFPath(filepath.Join(dir, "missing.pdf"))
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrorTypeNotFound, de.Type)

	err = v.ValidatePDFPath(dir)
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrorTypeValidation, de.Type)
}

func TestValidator_ValidateStructure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-1.4\nthis is not a pdf body"), 0o644))

	assert.NoError(t, NewValidator(false).ValidateStructure(file))

	err := NewValidator(true).ValidateStructure(file)
	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrorTypeConversion, de.Type)
}

func TestSniffMIME(t *testing.T) {
	assert.Equal(t, MIMEType, SniffMIME([]byte(pdfHeader)))
	assert.NotEqual(t, MIMEType, SniffMIME([]byte("hello, world")))
	assert.NotEqual(t, MIMEType, SniffMIME([]byte("\x89PNG\r\n\x1a\n")))
}

func TestIsPDF(t *testing.T) {
	ok, err := IsPDF(strings.NewReader(pdfHeader), 1024)
	require.NoError(t, err)
	assert.True(t, ok)

	// a text file renamed to .pdf is rejected by content
	ok, err = IsPDF(bytes.NewReader([]byte("name,qty\nbolt,4\n")), 1024)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpener_RejectsMissingFile(t *testing.T) {
	opener := NewOpener(NewValidator(true))

	_, err := opener.Open(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Equal(t, 404, domain.HTTPStatus(err))
}
