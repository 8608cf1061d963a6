// Package extractor is the library entry point for extracting tables from a PDF
// without running the HTTP service.
package extractor

import (
	"context"
	"errors"
	"os"

	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/extract"
	"github.com/spherical/pdf-tables/internal/jobid"
	"github.com/spherical/pdf-tables/internal/jobstore"
	"github.com/spherical/pdf-tables/internal/observability"
	"github.com/spherical/pdf-tables/internal/pdf"
)

// Re-export event types for public API
type (
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventTableWritten   = domain.EventTableWritten
	EventPageComplete   = domain.EventPageComplete
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Empty-page policies
const (
	SkipEmptyPages   = string(extract.SkipEmptyPages)
	AbortOnEmptyPage = string(extract.AbortOnEmptyPage)
)

// ErrJobNotFound is returned by Status for an unknown job.
var ErrJobNotFound = errors.New("job not found")

// Config holds configuration options for the client
type Config struct {
	OutputDir        string // job directories are created here
	EmptyPagePolicy  string // skip (default) or abort
	StrictValidation bool   // run structural PDF validation before opening
	IDStrategy       string // timestamp (default) or uuid
	Logger           *observability.Logger

	// Opener and Finder replace the go-fitz opener and layout finder when set
	Opener domain.DocumentOpener
	Finder domain.TableFinder
}

// Result is the recorded outcome of one job.
type Result struct {
	JobID     string   `json:"uid"`
	Status    string   `json:"status"`
	Code      int      `json:"code"`
	Message   string   `json:"message,omitempty"`
	Artifacts []string `json:"artifacts"`
}

// Client is the main entry point for the table extractor library
type Client struct {
	service *extract.Service
	store   *jobstore.Store
	ids     jobid.Generator
}

// NewClient creates a new extractor client
func NewClient(cfg Config) (*Client, error) {
	if cfg.OutputDir == "" {
		return nil, domain.ConfigError("output directory is required", nil)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, domain.IOError("create output directory", err)
	}

	ids, err := jobid.NewGenerator(cfg.IDStrategy)
	if err != nil {
		return nil, domain.ConfigError("invalid id strategy", err)
	}

	opener := cfg.Opener
	if opener == nil {
		opener = pdf.NewOpener(pdf.NewValidator(cfg.StrictValidation))
	}
	finder := cfg.Finder
	if finder == nil {
		finder = pdf.NewLayoutFinder()
	}

	policy := extract.EmptyPagePolicy(cfg.EmptyPagePolicy)
	if cfg.EmptyPagePolicy == "" {
		policy = extract.SkipEmptyPages
	}
	if policy != extract.SkipEmptyPages && policy != extract.AbortOnEmptyPage {
		return nil, domain.ConfigError("invalid empty page policy: "+cfg.EmptyPagePolicy, nil)
	}

	store := jobstore.NewStore(cfg.OutputDir)
	return &Client{
		service: extract.NewService(opener, finder, store,
			extract.WithEmptyPagePolicy(policy),
			extract.WithLogger(cfg.Logger),
		),
		store: store,
		ids:   ids,
	}, nil
}

// Extract runs one extraction synchronously. Events are sent to eventCh when it
// is non-nil; slow consumers miss events rather than stall the extraction.
// The returned error covers invalid input only: extraction failures are
// reported in the Result, exactly as they are recorded.
func (c *Client) Extract(ctx context.Context, pdfPath string, eventCh chan<- StreamEvent) (*Result, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, domain.ValidationError("PDF file not found", err)
	}

	job := domain.Job{ID: c.ids.New(), SourcePath: pdfPath}
	status := c.service.Process(ctx, job, eventCh)
	return c.result(job.ID, status)
}

// Process extracts tables from a PDF file.
// Returns a channel that streams events as extraction progresses; it is
// closed once the job reaches a terminal state.
func (c *Client) Process(ctx context.Context, pdfPath string) (<-chan StreamEvent, error) {
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		return nil, domain.ValidationError("PDF file not found", err)
	}

	eventCh := make(chan StreamEvent, 100)
	go func() {
		defer close(eventCh)
		job := domain.Job{ID: c.ids.New(), SourcePath: pdfPath}
		c.service.Process(ctx, job, eventCh)
	}()

	return eventCh, nil
}

// Status reads the recorded outcome of a job.
func (c *Client) Status(uid string) (*Result, error) {
	if !jobid.Valid(uid) {
		return nil, domain.ValidationError("invalid job identifier", nil)
	}
	status, err := c.store.Read(uid)
	if errors.Is(err, jobstore.ErrStatusNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return c.result(uid, status)
}

func (c *Client) result(uid string, status jobstore.Status) (*Result, error) {
	artifacts, err := c.store.Artifacts(uid)
	if err != nil {
		return nil, err
	}

	res := &Result{
		JobID:     uid,
		Status:    status.Kind.String(),
		Code:      status.Code,
		Message:   status.Message,
		Artifacts: make([]string, 0, len(artifacts)),
	}
	for _, a := range artifacts {
		res.Artifacts = append(res.Artifacts, a.Path)
	}
	return res, nil
}
