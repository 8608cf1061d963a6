package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/pdf-tables/internal/bundle"
	"github.com/spherical/pdf-tables/internal/jobid"
	"github.com/spherical/pdf-tables/internal/jobstore"
	"github.com/spherical/pdf-tables/internal/observability"
)

// Client-facing retrieval errors.
const (
	MsgInvalidUID     = "Invalid job identifier"
	MsgStatusNotFound = "Status file not found"
	MsgNoArtifacts    = "No tables available for job"
)

// Download formats accepted in ?format=.
const (
	FormatZip  = "zip"
	FormatXLSX = "xlsx"
)

const (
	contentTypeCSV  = "application/csv"
	contentTypeZip  = "application/zip"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	zipName         = "tables.zip"
	xlsxName        = "tables.xlsx"
)

// ResultsHandler serves job status and extracted tables.
type ResultsHandler struct {
	logger *observability.Logger
	jobs   *jobstore.Store
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(logger *observability.Logger, jobs *jobstore.Store) *ResultsHandler {
	return &ResultsHandler{
		logger: logger.WithComponent("results"),
		jobs:   jobs,
	}
}

// StatusDTO is the JSON view of a job's status record.
type StatusDTO struct {
	UID     string `json:"uid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Tables  int    `json:"tables"`
}

// Get handles GET /{uid}. It replays the recorded status, or downloads the
// tables once extraction has succeeded.
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, status, ok := h.readStatus(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != FormatZip && format != FormatXLSX {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q", format))
		return
	}

	switch status.Kind {
	case jobstore.KindFailure:
		writeJSON(w, status.Code, map[string]string{"error": status.Message})
		return
	case jobstore.KindPending:
		writeJSON(w, status.Code, map[string]string{"status": status.Kind.String(), "message": status.Message})
		return
	case jobstore.KindNoTables:
		writeJSON(w, http.StatusOK, map[string]string{"status": status.Kind.String(), "message": status.Message})
		return
	}

	artifacts, err := h.jobs.Artifacts(uid)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to list artifacts")
		writeError(w, http.StatusInternalServerError, "failed to list tables")
		return
	}
	if len(artifacts) == 0 {
		writeError(w, http.StatusNotFound, MsgNoArtifacts)
		return
	}

	switch {
	case format == FormatXLSX:
		h.sendBundle(w, uid, xlsxName, contentTypeXLSX, artifacts, bundle.Workbook)
	case format == FormatZip || len(artifacts) > 1:
		h.sendBundle(w, uid, zipName, contentTypeZip, artifacts, bundle.Zip)
	default:
		h.sendCSV(w, r, artifacts[0])
	}
}

// Status handles GET /{uid}/status.
func (h *ResultsHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid, status, ok := h.readStatus(w, r)
	if !ok {
		return
	}

	artifacts, err := h.jobs.Artifacts(uid)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to list artifacts")
		writeError(w, http.StatusInternalServerError, "failed to list tables")
		return
	}

	writeJSON(w, http.StatusOK, StatusDTO{
		UID:     uid,
		Status:  status.Kind.String(),
		Code:    status.Code,
		Message: status.Message,
		Tables:  len(artifacts),
	})
}

func (h *ResultsHandler) readStatus(w http.ResponseWriter, r *http.Request) (string, jobstore.Status, bool) {
	uid := chi.URLParam(r, "uid")
	if !jobid.Valid(uid) {
		writeError(w, http.StatusBadRequest, MsgInvalidUID)
		return "", jobstore.Status{}, false
	}

	status, err := h.jobs.Read(uid)
	switch {
	case errors.Is(err, jobstore.ErrStatusNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": MsgStatusNotFound})
		return "", jobstore.Status{}, false
	case errors.Is(err, jobstore.ErrMalformedStatus):
		h.logger.Warn().Err(err).Str("job_id", uid).Msg("Malformed status record")
		writeError(w, http.StatusBadRequest, err.Error())
		return "", jobstore.Status{}, false
	case err != nil:
		h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to read status record")
		writeError(w, http.StatusInternalServerError, "failed to read job status")
		return "", jobstore.Status{}, false
	}
	return uid, status, true
}

func (h *ResultsHandler) sendCSV(w http.ResponseWriter, r *http.Request, a jobstore.Artifact) {
	f, err := os.Open(a.Path)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("File %s not found", a.Name))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("file", a.Path).Msg("Failed to open artifact")
		writeError(w, http.StatusInternalServerError, "failed to read table")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read table")
		return
	}

	w.Header().Set("Content-Type", contentTypeCSV)
	w.Header().Set("Content-Disposition", attachment(a.Name))
	http.ServeContent(w, r, a.Name, info.ModTime(), f)
}

func (h *ResultsHandler) sendBundle(w http.ResponseWriter, uid, name, contentType string, artifacts []jobstore.Artifact, build func([]jobstore.Artifact) ([]byte, error)) {
	data, err := build(artifacts)
	if err != nil {
		var missing *bundle.MissingError
		if errors.As(err, &missing) {
			writeError(w, http.StatusNotFound, missing.Error())
			return
		}
		h.logger.Error().Err(err).Str("job_id", uid).Msg("Failed to bundle tables")
		writeError(w, http.StatusInternalServerError, "failed to bundle tables")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachment(name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
