package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	tests := []struct {
		name        string
		explicitDir string
		envVar      string
		expected    string
	}{
		{"explicit directory takes precedence", "/explicit/path", "/env/path", "/explicit/path"},
		{"environment variable used when no explicit dir", "", "/env/path", "/env/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvModelsDir, tt.envVar)
			assert.Equal(t, tt.expected, GetModelsDir(tt.explicitDir))
		})
	}
}

func TestGetModelsDir_DefaultsToProjectRoot(t *testing.T) {
	t.Setenv(EnvModelsDir, "")
	dir := GetModelsDir("")
	assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
}

func TestResolveModelPath(t *testing.T) {
	base := t.TempDir()

	flat := ResolveModelPath(base, TypeDetection, DocumentDetector)
	assert.Equal(t, filepath.Join(base, DocumentDetector), flat)

	organizedDir := filepath.Join(base, TypeDetection)
	require.NoError(t, os.MkdirAll(organizedDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(organizedDir, DocumentDetector), []byte("x"), 0o600))

	assert.Equal(t, filepath.Join(organizedDir, DocumentDetector), GetDocumentDetectorPath(base))
}

func TestGetTessdataDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, TypeOCR, TessdataDir), 0o755))
	assert.Equal(t, filepath.Join(base, TypeOCR, TessdataDir), GetTessdataDir(base))
}

func TestValidateModelExists(t *testing.T) {
	base := t.TempDir()
	p := filepath.Join(base, "m.onnx")
	require.Error(t, ValidateModelExists(p))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	require.NoError(t, ValidateModelExists(p))
}
