package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/service"
)

const maxUploadBytes = 64 << 20

// Server is the thin HTTP surface over the service layer.
type Server struct {
	svc       *service.Service
	uploadDir string
	logger    *slog.Logger
}

func New(svc *service.Service, uploadDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, uploadDir: uploadDir, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /job-status/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /file/{id}", s.handleFile)
	mux.HandleFunc("GET /summaries/{department}", s.handleSummaries)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

var reUnsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeFilename strips path components and shell-hostile characters; the
// stored name keeps only its base and a safe character set.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = reUnsafeFilename.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload.pdf"
	}
	return base
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, common.E(common.KindValidation, "server.upload", "invalid multipart body", err))
		return
	}

	userID, err := uuid.Parse(r.FormValue("user_id"))
	if err != nil {
		s.writeError(w, common.E(common.KindValidation, "server.upload", "user_id must be a UUID", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, common.E(common.KindValidation, "server.upload", "file field is required", err))
		return
	}
	defer func() { _ = file.Close() }()

	name := sanitizeFilename(header.Filename)
	if !constants.IsAllowedExt(constants.NormalizeExt(name)) {
		s.writeError(w, common.E(common.KindValidation, "server.upload", "only PDF uploads are accepted", nil))
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.writeError(w, common.E(common.KindInternal, "server.upload", "prepare upload dir", err))
		return
	}
	// Prefix with a fresh UUID so two uploads of "minutes.pdf" never collide.
	dst := filepath.Join(s.uploadDir, uuid.New().String()+"_"+name)
	out, err := os.Create(dst)
	if err != nil {
		s.writeError(w, common.E(common.KindInternal, "server.upload", "store file", err))
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		s.writeError(w, common.E(common.KindInternal, "server.upload", "write file", err))
		return
	}
	if err := out.Close(); err != nil {
		s.writeError(w, common.E(common.KindInternal, "server.upload", "flush file", err))
		return
	}

	jobID, uploadID, err := s.svc.AcceptDocument(r.Context(), dst, userID)
	if err != nil {
		_ = os.Remove(dst)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    jobID,
		"upload_id": uploadID,
		"filename":  name,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, common.E(common.KindValidation, "server.job_status", "id must be a UUID", err))
		return
	}
	st, err := s.svc.JobStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, common.E(common.KindValidation, "server.file", "id must be a UUID", err))
		return
	}
	path, mediaType, err := s.svc.FileByUpload(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	dept := r.PathValue("department")
	sums, err := s.svc.SummariesByDepartment(r.Context(), dept)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"department": dept,
		"count":      len(sums),
		"summaries":  sums,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("server.response.encode_error", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch common.KindOf(err) {
	case common.KindValidation:
		status = http.StatusBadRequest
	case common.KindNotFound:
		status = http.StatusNotFound
	case common.KindTransientBackend:
		status = http.StatusServiceUnavailable
	case common.KindPermanentBackend:
		status = http.StatusBadGateway
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	if status >= 500 {
		s.logger.Error("server.request.failed", "status", status, "error", err)
	} else {
		s.logger.Warn("server.request.rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
