package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// batchHandler assesses every file uploaded under the repeated "files" field. Items fail
// independently; the response is always an array in upload order.
func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, err)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeError(w, fmt.Errorf("%w: no files provided", errUpload))
		return
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: %s: %w", errUpload, h.Filename, err))
			return
		}
		file, err := readPart(f, h)
		_ = f.Close()
		if err != nil {
			s.writeError(w, err)
			return
		}
		files = append(files, file)
	}

	// The server write timeout is sized for single requests.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	ctx, cancel := s.batchContext(r)
	defer cancel()
	start := time.Now()
	results, err := s.pipeline.AssessBatchWithProgress(ctx, files, pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug, "http batch: "))
	observeAssessment("batch", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}
