// Package support holds the step definitions and fixtures of the scan quality feature suite.
package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/scanqa/internal/artifact"
	"github.com/MeKo-Tech/scanqa/internal/batch"
	"github.com/MeKo-Tech/scanqa/internal/config"
	"github.com/MeKo-Tech/scanqa/internal/server"
	"github.com/MeKo-Tech/scanqa/internal/version"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir  string
	Config   *config.Config
	Detector *ScriptedDetector
	Engine   *ScriptedEngine

	Assembly *batch.Assembly
	Server   *httptest.Server

	// Files maps fixture names to their encoded bytes.
	Files map[string][]byte

	LastStatus int
	LastBody   []byte
	LastJSON   any
}

// NewTestContext creates a scenario context with a readable single-document scene.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "scanqa-features-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Storage.Dir = filepath.Join(tempDir, "artifacts")
	cfg.History.Path = ":memory:"
	cfg.Storage.BaseURL = "/artifacts"
	cfg.OCR.RetryDelayMS = 1

	tc := &TestContext{
		TempDir:  tempDir,
		Config:   &cfg,
		Detector: &ScriptedDetector{},
		Engine:   &ScriptedEngine{},
		Files:    map[string][]byte{},
	}
	tc.Detector.set(nil, passport(fullPaper))
	tc.Engine.set(0.85, false)
	return tc, nil
}

// ensureServer assembles the pipeline and starts the HTTP server on first use.
func (tc *TestContext) ensureServer() error {
	if tc.Server != nil {
		return nil
	}
	a, err := batch.Assemble(context.Background(), tc.Config, tc.Detector, tc.Engine.Engine())
	if err != nil {
		return err
	}
	tc.Assembly = a

	deps := server.Deps{Pipeline: a.Pipeline}
	if a.History != nil {
		deps.History = a.History
	}
	if local, ok := a.Artifacts.(*artifact.LocalStore); ok {
		deps.Artifacts = local
	}
	srv := server.NewServer(server.Config{
		CORSOrigin:   tc.Config.Server.CORSOrigin,
		MaxUploadMB:  int64(tc.Config.Server.MaxUploadMB),
		TimeoutSec:   tc.Config.Server.TimeoutSec,
		HistoryLimit: tc.Config.History.DefaultLimit,
		Version:      version.Version,
	}, deps)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	tc.Server = httptest.NewServer(mux)
	return nil
}

// decodeBody parses the last response body as JSON.
func (tc *TestContext) decodeBody() error {
	tc.LastJSON = nil
	if err := json.Unmarshal(tc.LastBody, &tc.LastJSON); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\n%s", err, tc.LastBody)
	}
	return nil
}

// Cleanup stops the server and removes every scenario artifact.
func (tc *TestContext) Cleanup() error {
	var errs []error
	if tc.Server != nil {
		tc.Server.Close()
	}
	if tc.Assembly != nil {
		errs = append(errs, tc.Assembly.Close())
	}
	errs = append(errs, os.RemoveAll(tc.TempDir))
	return errors.Join(errs...)
}
