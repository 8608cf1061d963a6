package domain

import "context"

// DocumentOpener opens a PDF document for page-by-page processing
type DocumentOpener interface {
	// Open parses the file at path; a corrupt or non-PDF file is an error
	Open(path string) (Document, error)
}

// Document is an opened PDF
type Document interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// Page loads the page at the zero-based index
	Page(index int) (Page, error)

	// Close releases the underlying document handle
	Close() error
}

// TableFinder detects tables on a single page.
// Each table is a rectangular grid of optional cells; a page may yield none.
type TableFinder interface {
	FindTables(ctx context.Context, page Page) ([]Table, error)
}

// Runner executes one extraction job to a terminal state
type Runner interface {
	Run(ctx context.Context, job Job)
}
