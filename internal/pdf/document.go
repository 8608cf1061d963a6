package pdf

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-tables/internal/domain"
)

// Opener opens PDF documents using go-fitz
type Opener struct {
	validator *Validator
}

// NewOpener creates a new document opener
func NewOpener(validator *Validator) *Opener {
	return &Opener{validator: validator}
}

// Open validates the file and parses it into a Document
func (o *Opener) Open(path string) (domain.Document, error) {
	if err := o.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}
	if err := o.validator.ValidateStructure(path); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.ConversionError("failed to open PDF", err)
	}

	return &document{doc: doc}, nil
}

// document adapts a fitz.Document to domain.Document
type document struct {
	doc *fitz.Document
}

func (d *document) PageCount() int {
	return d.doc.NumPage()
}

func (d *document) Page(index int) (domain.Page, error) {
	text, err := d.doc.Text(index)
	if err != nil {
		return domain.Page{}, domain.ConversionError(fmt.Sprintf("failed to read text of page %d", index+1), err)
	}
	return domain.Page{Number: index + 1, Text: text}, nil
}

func (d *document) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
