package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/jobstore"
	"github.com/spherical/pdf-tables/internal/observability"
)

// EmptyPagePolicy decides what a page without tables does to the document
type EmptyPagePolicy string

const (
	// SkipEmptyPages moves on to the next page; a document without any table ends as no-tables
	SkipEmptyPages EmptyPagePolicy = "skip"
	// AbortOnEmptyPage ends the document as no-tables at the first page without a table,
	// keeping artifacts already written for earlier pages
	AbortOnEmptyPage EmptyPagePolicy = "abort"
)

// Option configures a Service
type Option func(*Service)

// WithEmptyPagePolicy sets the empty-page policy
func WithEmptyPagePolicy(p EmptyPagePolicy) Option {
	return func(s *Service) {
		if p == SkipEmptyPages || p == AbortOnEmptyPage {
			s.policy = p
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent("extract")
		}
	}
}

// Service turns one PDF into CSV artifacts and a terminal status record
type Service struct {
	opener domain.DocumentOpener
	finder domain.TableFinder
	store  *jobstore.Store
	logger *observability.Logger
	policy EmptyPagePolicy
}

// NewService creates a new extraction service
func NewService(opener domain.DocumentOpener, finder domain.TableFinder, store *jobstore.Store, opts ...Option) *Service {
	s := &Service{
		opener: opener,
		finder: finder,
		store:  store,
		logger: observability.NopLogger(),
		policy: SkipEmptyPages,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run implements domain.Runner. The outcome is only observable through the status record.
func (s *Service) Run(ctx context.Context, job domain.Job) {
	s.Process(ctx, job, nil)
}

// Process runs a job to a terminal state, records that state, and returns it.
// Progress events are sent to eventCh when it is non-nil.
func (s *Service) Process(ctx context.Context, job domain.Job, eventCh chan<- domain.StreamEvent) jobstore.Status {
	startTime := time.Now()
	logger := s.logger.WithJob(job.ID)

	if err := s.store.Write(job.ID, jobstore.Pending()); err != nil {
		logger.Error().Err(err).Msg("Failed to record pending status")
		status := jobstore.Failure(500, domain.Describe(domain.IOError("failed to record status", err)))
		s.emitError(eventCh, job.ID, status.Message)
		return status
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		JobID:     job.ID,
		Payload:   fmt.Sprintf("Starting extraction of %s", filepath.Base(job.SourcePath)),
		Timestamp: time.Now(),
	})
	logger.Info().Str("source", job.SourcePath).Msg("Extraction started")

	status, written := s.extract(ctx, job, eventCh, logger)

	if status.Kind == jobstore.KindFailure && written > 0 {
		if err := s.store.RemoveArtifacts(job.ID); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove artifacts of failed job")
		}
	}

	if err := s.store.Write(job.ID, status); err != nil {
		logger.Error().Err(err).Str("status", status.Encode()).Msg("Failed to record terminal status")
	}

	if status.Kind == jobstore.KindFailure {
		s.emitError(eventCh, job.ID, status.Message)
		logger.Warn().Int("code", status.Code).Str("reason", status.Message).Msg("Extraction failed")
	} else {
		logger.Info().
			Str("status", status.Kind.String()).
			Int("tables", written).
			Dur("duration", time.Since(startTime)).
			Msg("Extraction complete")
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		JobID:     job.ID,
		Payload:   status.String(),
		Timestamp: time.Now(),
	})

	return status
}

// extract walks the document and writes artifacts. It never panics; a panic in a
// collaborator becomes a failure status.
func (s *Service) extract(ctx context.Context, job domain.Job, eventCh chan<- domain.StreamEvent, logger *observability.Logger) (status jobstore.Status, written int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Msg("Extraction panicked")
			status = jobstore.Failure(500, fmt.Sprintf("internal extraction error: %v", r))
		}
	}()

	doc, err := s.opener.Open(job.SourcePath)
	if err != nil {
		return failure(openError(err)), 0
	}
	defer doc.Close()

	dir := s.store.JobDir(job.ID)
	pageCount := doc.PageCount()
	logger.Debug().Int("pages", pageCount).Msg("Document opened")

	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return failure(domain.CanceledError("extraction interrupted", err)), written
		}

		page, err := doc.Page(i)
		if err != nil {
			return failure(wrapProcessing(err, fmt.Sprintf("failed to read page %d", i+1))), written
		}

		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			JobID:      job.ID,
			PageNumber: page.Number,
			Payload:    fmt.Sprintf("Processing page %d", page.Number),
			Timestamp:  time.Now(),
		})

		tables, err := s.finder.FindTables(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return failure(domain.CanceledError("extraction interrupted", err)), written
			}
			return failure(domain.ExtractionError(fmt.Sprintf("table detection failed on page %d", page.Number), err)), written
		}

		if len(tables) == 0 {
			logger.Debug().Int("page", page.Number).Msg("No tables on page")
			if s.policy == AbortOnEmptyPage {
				return jobstore.NoTables(), written
			}
			continue
		}

		for j, table := range tables {
			index := j + 1
			if err := validateTable(table); err != nil {
				return failure(domain.StructureError(fmt.Sprintf("page %d table %d", page.Number, index), err)), written
			}

			name := jobstore.ArtifactName(page.Number, index)
			if err := writeCSV(filepath.Join(dir, name), table); err != nil {
				return failure(domain.IOError(fmt.Sprintf("failed to write %s", name), err)), written
			}
			written++

			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventTableWritten,
				JobID:      job.ID,
				PageNumber: page.Number,
				Payload:    name,
				Timestamp:  time.Now(),
			})
		}

		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventPageComplete,
			JobID:      job.ID,
			PageNumber: page.Number,
			Payload:    fmt.Sprintf("Completed page %d", page.Number),
			Timestamp:  time.Now(),
		})
	}

	if written == 0 {
		return jobstore.NoTables(), 0
	}
	return jobstore.Success(), written
}

func failure(err error) jobstore.Status {
	return jobstore.Failure(domain.HTTPStatus(err), domain.Describe(err))
}

const openFailure = "failed to open PDF"

// openError reports every failure to open the source as a server-side conversion error.
func openError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Type == domain.ErrorTypeConversion && de.Message == openFailure {
		return err
	}
	return domain.ConversionError(openFailure, err)
}

func wrapProcessing(err error, message string) error {
	var de *domain.DomainError
	if errors.As(err, &de) && domain.HTTPStatus(err) >= 500 {
		return err
	}
	return domain.ExtractionError(message, err)
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, jobID, message string) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		JobID:     jobID,
		Payload:   message,
		Timestamp: time.Now(),
	})
}
