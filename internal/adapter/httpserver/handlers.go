package httpserver

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gabriel-vasile/mimetype"

	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg      config.Config
	Ingest   *usecase.IngestService
	Enrich   *usecase.EnrichmentService
	Matching *usecase.MatchingService
	Search   *usecase.SearchService
	DBCheck  func(ctx context.Context) error
}

// NewServer constructs the HTTP facade.
func NewServer(cfg config.Config, ingest *usecase.IngestService, enrich *usecase.EnrichmentService, matching *usecase.MatchingService, search *usecase.SearchService, dbCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Ingest: ingest, Enrich: enrich, Matching: matching, Search: search, DBCheck: dbCheck}
}

func allowedMIMEFor(m, filename string) bool {
	m = strings.ToLower(m)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return m == "application/pdf"
	case ".docx":
		return m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
			m == "application/zip"
	case ".doc":
		return m == "application/msword" || strings.HasPrefix(m, "application/x-ole")
	case ".zip":
		return m == "application/zip"
	}
	return false
}

func (s *Server) readUpload(h *multipart.FileHeader) (usecase.Upload, error) {
	f, err := h.Open()
	if err != nil {
		return usecase.Upload{}, fmt.Errorf("%w: open upload", domain.ErrInvalidArgument)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, s.Cfg.MaxUploadBytes+1))
	if err != nil {
		return usecase.Upload{}, fmt.Errorf("%w: read upload", domain.ErrInvalidArgument)
	}
	if int64(len(data)) > s.Cfg.MaxUploadBytes {
		return usecase.Upload{}, fmt.Errorf("%w: file %q exceeds %d bytes", domain.ErrInvalidArgument, h.Filename, s.Cfg.MaxUploadBytes)
	}
	if m := mimetype.Detect(data); !allowedMIMEFor(m.String(), h.Filename) {
		return usecase.Upload{}, fmt.Errorf("%w: content type %q does not match %q", domain.ErrInvalidArgument, m.String(), h.Filename)
	}
	return usecase.Upload{FileName: filepath.Base(h.Filename), Data: data}, nil
}

// UploadHandler accepts one resume file under the "file" form field.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.Cfg.MaxUploadBytes*2)
		if err := r.ParseMultipartForm(s.Cfg.MaxUploadBytes); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		_, h, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: missing file field", domain.ErrInvalidArgument), nil)
			return
		}
		up, err := s.readUpload(h)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		tracker, err := s.Ingest.UploadSingle(r.Context(), up)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, trackerBody(tracker))
	}
}

// UploadBatchHandler accepts several files under the "files" form field.
func (s *Server) UploadBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.Cfg.MaxUploadBytes*4)
		if err := r.ParseMultipartForm(s.Cfg.MaxUploadBytes); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		headers := r.MultipartForm.File["files"]
		if len(headers) == 0 {
			writeError(w, r, fmt.Errorf("%w: missing files field", domain.ErrInvalidArgument), nil)
			return
		}
		ups := make([]usecase.Upload, 0, len(headers))
		for _, h := range headers {
			up, err := s.readUpload(h)
			if err != nil {
				writeError(w, r, err, map[string]any{"filename": h.Filename})
				return
			}
			ups = append(ups, up)
		}
		trackers, err := s.Ingest.UploadBatch(r.Context(), ups)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(trackers))
		for _, t := range trackers {
			out = append(out, trackerBody(t))
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"trackers": out})
	}
}

// StatusHandler returns one tracker by id.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracker, err := s.Ingest.GetTracker(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, trackerBody(tracker))
	}
}

// RecentTrackersHandler lists trackers created in the last N hours
// (query param "hours", default 24).
func (s *Server) RecentTrackersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
		trackers, err := s.Ingest.RecentTrackers(r.Context(), hours)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(trackers))
		for _, t := range trackers {
			out = append(out, trackerBody(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"trackers": out})
	}
}

// HealthzHandler reports liveness plus database reachability.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DBCheck != nil {
			if err := s.DBCheck(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "db": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func trackerBody(t domain.ProcessTracker) map[string]any {
	body := map[string]any{
		"id":             t.ID,
		"status":         t.Status,
		"totalFiles":     t.TotalFiles,
		"processedFiles": t.ProcessedFiles,
		"failedFiles":    t.FailedFiles,
		"filename":       t.Filename,
		"correlationId":  t.CorrelationID,
		"createdAt":      t.CreatedAt,
		"updatedAt":      t.UpdatedAt,
	}
	if t.Message != "" {
		body["message"] = t.Message
	}
	if t.JobID != nil {
		body["jobId"] = *t.JobID
	}
	return body
}
