package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/scanqa/internal/classify"
	"github.com/MeKo-Tech/scanqa/internal/history"
	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// assessor is the subset of *pipeline.Pipeline used by the handlers.
type assessor interface {
	AssessImage(ctx context.Context, name string, data []byte) (pipeline.Record, error)
	AssessDocuments(ctx context.Context, name string, data []byte) ([]pipeline.Record, error)
	Preview(ctx context.Context, name string, data []byte) ([]pipeline.Preview, error)
	AssessBatchWithProgress(ctx context.Context, files []pipeline.File, progress pipeline.ProgressCallback) ([]pipeline.BatchItemResult, error)
}

// historyReader lists recent assessments.
type historyReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// imageClassifier labels whole photos good or bad.
type imageClassifier interface {
	ClassifyBytes(ctx context.Context, data []byte) (classify.Result, error)
}

// artifactOpener serves locally stored artifacts.
type artifactOpener interface {
	Open(name string) (*os.File, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline     assessor
	history      historyReader
	artifacts    artifactOpener
	classifier   imageClassifier
	rateLimiter  *RateLimiter
	corsOrigin   string
	maxUploadMB  int64
	timeout      time.Duration
	historyLimit int
	version      string
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	CORSOrigin   string
	MaxUploadMB  int64
	TimeoutSec   int
	HistoryLimit int
	Version      string

	// RateLimit enables per-client request limiting when non-nil.
	RateLimit *RateLimitConfig
}

// Deps are the collaborators the server exposes over HTTP. Only Pipeline is required.
type Deps struct {
	Pipeline   assessor
	History    historyReader
	Artifacts  artifactOpener
	Classifier imageClassifier
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MultiResponse is returned by /quality-assessment/multi.
type MultiResponse struct {
	Documents []pipeline.Response `json:"documents"`
}

// ClassifyResponse is returned by /classify. The optional user_id and timestamp form
// fields are echoed back.
type ClassifyResponse struct {
	classify.Result
	UserID    string `json:"user_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HistoryResponse is returned by /history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// NewServer creates a new assessment server.
func NewServer(config Config, deps Deps) *Server {
	s := &Server{
		pipeline:     deps.Pipeline,
		history:      deps.History,
		classifier:   deps.Classifier,
		artifacts:    deps.Artifacts,
		corsOrigin:   config.CORSOrigin,
		maxUploadMB:  config.MaxUploadMB,
		timeout:      time.Duration(config.TimeoutSec) * time.Second,
		historyLimit: config.HistoryLimit,
		version:      config.Version,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.historyLimit <= 0 {
		s.historyLimit = 50
	}
	if config.RateLimit != nil {
		s.rateLimiter = NewRateLimiter(*config.RateLimit)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/quality-assessment", s.corsMiddleware(s.rateLimitMiddleware(s.assessHandler)))
	mux.HandleFunc("/quality-assessment/multi", s.corsMiddleware(s.rateLimitMiddleware(s.multiHandler)))
	mux.HandleFunc("/quality-assessment/batch", s.corsMiddleware(s.rateLimitMiddleware(s.batchHandler)))
	mux.HandleFunc("/crop-preview", s.corsMiddleware(s.rateLimitMiddleware(s.previewHandler)))
	mux.HandleFunc("/classify", s.corsMiddleware(s.rateLimitMiddleware(s.classifyHandler)))

	// Paths used by existing clients of the previous service.
	mux.HandleFunc("/quality-assessment/{$}", s.corsMiddleware(s.rateLimitMiddleware(s.assessHandler)))
	mux.HandleFunc("/batch-quality-assessment/{$}", s.corsMiddleware(s.rateLimitMiddleware(s.batchHandler)))

	mux.HandleFunc("/artifacts/", s.corsMiddleware(s.artifactHandler))
	mux.HandleFunc("/history", s.corsMiddleware(s.historyHandler))
	mux.HandleFunc("/ws/batch", s.rateLimitMiddleware(s.batchWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// requestContext bounds a single-image request by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

// batchContext follows the client connection only. Each item is bounded by the
// OCR timeout, so a batch may legitimately outlive the request timeout.
func (s *Server) batchContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithCancel(r.Context())
}
