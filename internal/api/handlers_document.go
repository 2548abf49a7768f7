package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docqa/internal/answer"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleUploadDocument stores the uploaded file and indexes it for the session,
// replacing any previous document.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !index.ValidKey(sessionID) {
		jsonError(w, "invalid session id", http.StatusBadRequest)
		return
	}

	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %q", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	path, err := s.saveUpload(file, filename)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		s.log.Error("save upload failed", "error", err)
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	res, err := s.orchestrator.IngestUpload(r.Context(), sessionID, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   res.Session,
		"filename":     filename,
		"stored_as":    res.Filename,
		"chunks":       res.Chunks,
		"content_hash": res.ContentHash,
		"model":        res.Model,
		"duration_ms":  res.DurationMs,
	})
}

var errTooLarge = errors.New("upload too large")

// saveUpload writes the file to the upload directory as <uuid>_<filename>.
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"_"+filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	n, err := io.Copy(dst, io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.cfg.MaxUploadBytes {
		err = errTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// writeError maps pipeline errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var retryable *answer.RetryableError
	switch {
	case errors.Is(err, pipeline.ErrInvalidSession):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, parser.ErrUnsupportedFileType):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrNoDocumentIndexed):
		jsonError(w, "please index a document first", http.StatusConflict)
	case errors.Is(err, index.ErrEmbedderMismatch):
		jsonError(w, "document was indexed with a different embedding model, re-upload it", http.StatusConflict)
	case errors.Is(err, index.ErrIndexCorrupt):
		jsonError(w, "stored index is corrupt, re-upload the document", http.StatusInternalServerError)
	case errors.As(err, &retryable):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
