package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanqa/internal/artifact"
	"github.com/MeKo-Tech/scanqa/internal/batch"
	"github.com/MeKo-Tech/scanqa/internal/config"
	"github.com/MeKo-Tech/scanqa/internal/server"
	"github.com/MeKo-Tech/scanqa/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the quality assessment API",
	Long: `Start an HTTP server that exposes document quality assessment.

The server provides the following endpoints:
  POST /quality-assessment        - Assess the best document in an image
  POST /quality-assessment/multi  - Assess every document in an image
  POST /quality-assessment/batch  - Assess up to batch.max_files images or PDFs
  POST /crop-preview              - Document crops and categories only
  GET  /ws/batch                  - Streaming batch over WebSocket
  GET  /artifacts/{name}          - Stored crops and bitmaps (local storage)
  GET  /history                   - Recent assessments
  GET  /health                    - Health check endpoint
  GET  /metrics                   - Prometheus metrics

Examples:
  scanqa serve
  scanqa serve --port 8080
  scanqa serve --host 0.0.0.0 --port 3000 --rate-limit-per-minute 120`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 400, "single-request timeout in seconds (must cover the OCR retry budget)")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("rate-limit-per-minute", 0, "maximum requests per minute per client (0 disables)")
	serveCmd.Flags().Int("rate-limit-burst", 0, "request burst per client (default rate/6)")
	serveCmd.Flags().Int("max-data-per-day", 0, "maximum upload volume per client per day in MB (0 disables)")

	for key, name := range map[string]string{
		"server.host":                  "host",
		"server.port":                  "port",
		"server.cors_origin":           "cors-origin",
		"server.max_upload_mb":         "max-upload-size",
		"server.timeout_sec":           "timeout",
		"server.shutdown_timeout_sec":  "shutdown-timeout",
		"server.rate_limit_per_minute": "rate-limit-per-minute",
		"server.rate_limit_burst":      "rate-limit-burst",
		"server.max_data_per_day_mb":   "max-data-per-day",
	} {
		configFlags[key] = name
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	assembly, err := batch.BuildPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer func() {
		if err := assembly.Close(); err != nil {
			slog.Error("Pipeline cleanup error", "error", err)
		}
	}()

	mux := http.NewServeMux()
	server.NewServer(serverConfig(cfg), serverDeps(assembly)).SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting scanqa server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"version", version.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

// serverConfig maps configuration onto server settings.
func serverConfig(cfg *config.Config) server.Config {
	sc := server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		CORSOrigin:   cfg.Server.CORSOrigin,
		MaxUploadMB:  int64(cfg.Server.MaxUploadMB),
		TimeoutSec:   cfg.Server.TimeoutSec,
		HistoryLimit: cfg.History.DefaultLimit,
		Version:      version.Version,
	}
	if cfg.Server.RateLimitPerMinute > 0 || cfg.Server.MaxDataPerDayMB > 0 {
		sc.RateLimit = &server.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RateLimitPerMinute,
			Burst:             cfg.Server.RateLimitBurst,
			MaxDataPerDay:     int64(cfg.Server.MaxDataPerDayMB) * 1024 * 1024,
		}
	}
	return sc
}

// serverDeps exposes the optional history and local artifact store only when present,
// so the server never sees a typed nil.
func serverDeps(a *batch.Assembly) server.Deps {
	deps := server.Deps{Pipeline: a.Pipeline}
	if a.History != nil {
		deps.History = a.History
	}
	if a.Classifier != nil {
		deps.Classifier = a.Classifier
	}
	if local, ok := a.Artifacts.(*artifact.LocalStore); ok {
		deps.Artifacts = local
	}
	return deps
}
