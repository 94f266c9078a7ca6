package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanqa/internal/artifact"
	"github.com/MeKo-Tech/scanqa/internal/classify"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

var (
	// errUpload marks request-shape problems that map to 400.
	errUpload   = errors.New("invalid upload")
	errTooLarge = errors.New("file too large")
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// assessHandler assesses the highest-confidence document of one uploaded image. The
// upload may use the "file" or "image" field.
func (s *Server) assessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, err := s.readUpload(w, r, "file", "image")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	rec, err := s.pipeline.AssessImage(ctx, file.Name, file.Data)
	observeAssessment("single", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pipeline.NewResponse(rec))
}

// multiHandler assesses every document found in one uploaded image.
func (s *Server) multiHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	records, err := s.pipeline.AssessDocuments(ctx, file.Name, file.Data)
	observeAssessment("multi", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MultiResponse{Documents: pipeline.NewResponses(records)})
}

// previewHandler returns the crop handle and category of every document.
func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	previews, err := s.pipeline.Preview(ctx, file.Name, file.Data)
	observeAssessment("preview", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, previews)
}

// classifyHandler labels a whole photo good or bad without localization or OCR.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.classifier == nil {
		s.writeErrorResponse(w, "classification is disabled", http.StatusNotFound)
		return
	}
	file, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	res, err := s.classifier.ClassifyBytes(ctx, file.Data)
	observeAssessment("classify", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ClassifyResponse{
		Result:    res,
		UserID:    r.FormValue("user_id"),
		Timestamp: r.FormValue("timestamp"),
	})
}

// artifactHandler serves persisted crops and bitmaps from the local store.
func (s *Server) artifactHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.artifacts == nil {
		s.writeErrorResponse(w, "artifact serving is not available for this storage backend", http.StatusNotFound)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	f, err := s.artifacts.Open(name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			s.writeErrorResponse(w, "artifact not found", http.StatusNotFound)
			return
		}
		s.writeErrorResponse(w, "failed to open artifact", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		s.writeErrorResponse(w, "failed to open artifact", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// historyHandler lists recent assessments, newest first.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		s.writeErrorResponse(w, "history is disabled", http.StatusNotFound)
		return
	}

	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("failed to read history", "error", err)
		s.writeErrorResponse(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// readUpload reads the multipart file stored under the first of fields that is present.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, fields ...string) (pipeline.File, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return pipeline.File{}, err
	}
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if err != nil {
			continue
		}
		defer func() { _ = file.Close() }()
		return readPart(file, header)
	}
	return pipeline.File{}, fmt.Errorf("%w: no %q file provided", errUpload, fields[0])
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errTooLarge
		}
		return fmt.Errorf("%w: failed to parse form data", errUpload)
	}
	return nil
}

func readPart(file multipart.File, header *multipart.FileHeader) (pipeline.File, error) {
	uploadSizeBytes.Observe(float64(header.Size))
	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.File{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return pipeline.File{Name: header.Filename, Data: data}, nil
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUpload),
		errors.Is(err, pipeline.ErrInvalidImage),
		errors.Is(err, classify.ErrInvalidImage),
		errors.Is(err, pipeline.ErrTooManyFiles):
		return http.StatusBadRequest
	case errors.Is(err, locator.ErrNoDocumentDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, locator.ErrDetectionFailed):
		return http.StatusBadGateway
	case errors.Is(err, ocrquality.ErrOCRFailed), errors.Is(err, ocrquality.ErrOCRTimeout):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Server-side failures are logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	s.writeErrorResponse(w, err.Error(), status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
