package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/spherical/pdf-tables/internal/dispatch"
	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/jobid"
	"github.com/spherical/pdf-tables/internal/jobstore"
	"github.com/spherical/pdf-tables/internal/observability"
	"github.com/spherical/pdf-tables/internal/upload"
)

const (
	filesField      = "files"
	multipartMemory = 32 << 20
)

// Client-facing upload errors.
const (
	MsgNoFilesPart   = "No files part in the request"
	MsgNoFilesChosen = "No files selected for upload"
	MsgNotPDF        = "All files should be PDFs"
	MsgQueueFull     = "Extraction queue is full, retry later"
	MsgReadFailed    = "Failed to read upload"
	MsgStoreFailed   = "Failed to store upload"
)

// Reserver hands out worker pool capacity for a batch of jobs.
type Reserver interface {
	Reserve(n int) (*dispatch.Reservation, error)
}

// UploadConfig bounds what the upload handler accepts.
type UploadConfig struct {
	MaxUploadBytes int64
	SniffBytes     int
}

// UploadHandler accepts PDF uploads and dispatches one extraction job per file.
type UploadHandler struct {
	logger  *observability.Logger
	ids     jobid.Generator
	uploads *upload.Store
	jobs    *jobstore.Store
	pool    Reserver
	cfg     UploadConfig
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(logger *observability.Logger, ids jobid.Generator, uploads *upload.Store, jobs *jobstore.Store, pool Reserver, cfg UploadConfig) *UploadHandler {
	if cfg.SniffBytes <= 0 {
		cfg.SniffBytes = 1024
	}
	return &UploadHandler{
		logger:  logger.WithComponent("upload"),
		ids:     ids,
		uploads: uploads,
		jobs:    jobs,
		pool:    pool,
		cfg:     cfg,
	}
}

// UploadedFileDTO is one accepted file in the upload response.
type UploadedFileDTO struct {
	UID      string `json:"uid"`
	FileName string `json:"file_name"`
}

// UploadResponseDTO is the body of a successful upload.
type UploadResponseDTO struct {
	Data []UploadedFileDTO `json:"data"`
}

// Upload handles POST /.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.logger.Debug().Err(err).Msg("Request is not a multipart upload")
		writeError(w, http.StatusBadRequest, MsgNoFilesPart)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, ok := formFiles(r.MultipartForm)
	if !ok {
		writeError(w, http.StatusBadRequest, MsgNoFilesPart)
		return
	}
	if len(files) == 0 || files[0].Filename == "" {
		writeError(w, http.StatusBadRequest, MsgNoFilesChosen)
		return
	}

	// the whole batch is checked before anything is saved or dispatched
	for _, fh := range files {
		isPDF, err := upload.IsPDF(fh, h.cfg.SniffBytes)
		if err != nil {
			h.logger.Error().Err(err).Str("file", fh.Filename).Msg("Failed to read upload")
			writeError(w, http.StatusInternalServerError, MsgReadFailed)
			return
		}
		if !isPDF {
			h.logger.Info().Str("file", fh.Filename).Msg("Rejected non-PDF upload")
			writeError(w, http.StatusBadRequest, MsgNotPDF)
			return
		}
	}

	reservation, err := h.pool.Reserve(len(files))
	if err != nil {
		status := domain.HTTPStatus(err)
		if status == http.StatusServiceUnavailable {
			writeError(w, status, MsgQueueFull)
			return
		}
		writeError(w, status, domain.Describe(err))
		return
	}
	defer reservation.Release()

	jobs, err := h.persist(files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, MsgStoreFailed)
		return
	}

	resp := UploadResponseDTO{Data: make([]UploadedFileDTO, 0, len(jobs))}
	var dispatchErr error
	for _, job := range jobs {
		if dispatchErr == nil {
			dispatchErr = reservation.Submit(job.Job)
			if dispatchErr != nil {
				h.logger.Error().Err(dispatchErr).Str("job_id", job.ID).Msg("Failed to dispatch job")
			}
		}
		if dispatchErr != nil {
			// every returned identifier resolves to a recorded status
			failed := jobstore.Failure(domain.HTTPStatus(dispatchErr), domain.Describe(dispatchErr))
			if err := h.jobs.Write(job.ID, failed); err != nil {
				h.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record dispatch failure")
			}
		} else {
			h.logger.Info().Str("job_id", job.ID).Str("file", job.name).Msg("Queued extraction")
		}
		resp.Data = append(resp.Data, UploadedFileDTO{UID: job.ID, FileName: job.name})
	}

	writeJSON(w, http.StatusOK, resp)
}

type pendingJob struct {
	domain.Job
	name string
}

// persist saves every file and records it as pending. On any failure the
// uploads and job directories created so far are removed and nothing is returned.
func (h *UploadHandler) persist(files []*multipart.FileHeader) ([]pendingJob, error) {
	jobs := make([]pendingJob, 0, len(files))
	created := make(map[string]struct{}, len(files))

	rollback := func() {
		for uid := range created {
			if err := h.uploads.Remove(uid); err != nil {
				h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to remove upload")
			}
			if err := h.jobs.Remove(uid); err != nil {
				h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to remove job directory")
			}
		}
	}

	for _, fh := range files {
		name := upload.SanitizeFilename(fh.Filename)
		uid := h.ids.New()
		created[uid] = struct{}{}

		path, err := h.uploads.SaveFile(uid, name, fh)
		if err != nil {
			h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to save upload")
			rollback()
			return nil, err
		}
		if err := h.jobs.Write(uid, jobstore.Pending()); err != nil {
			h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to record pending status")
			rollback()
			return nil, err
		}
		jobs = append(jobs, pendingJob{Job: domain.Job{ID: uid, SourcePath: path}, name: name})
	}
	return jobs, nil
}

// formFiles returns the parts of the files field. A file input submitted
// without a selection arrives as a value part with no file name.
func formFiles(form *multipart.Form) ([]*multipart.FileHeader, bool) {
	if form == nil {
		return nil, false
	}
	if files, ok := form.File[filesField]; ok {
		return files, true
	}
	if _, ok := form.Value[filesField]; ok {
		return nil, true
	}
	return nil, false
}
