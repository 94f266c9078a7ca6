package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanqa/internal/models"
	"github.com/MeKo-Tech/scanqa/internal/onnx"
)

// WriteFile writes data to path, creating missing parent directories, and returns path.
func WriteFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RequireDetectorModel returns the installed document detector model. The test is
// skipped when the model or the ONNX Runtime library is missing.
func RequireDetectorModel(t *testing.T) string {
	t.Helper()
	path := models.GetDocumentDetectorPath("")
	if err := models.ValidateModelExists(path); err != nil {
		t.Skipf("document detector not installed: %v", err)
	}
	if err := onnx.InitRuntime(false, models.GetModelsDir("")); err != nil {
		t.Skipf("ONNX Runtime not available: %v", err)
	}
	return path
}
