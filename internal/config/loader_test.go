package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolatedLoader(t *testing.T) *Loader {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := isolatedLoader(t).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Batch.MaxFiles)
}

func TestLoadWithFile(t *testing.T) {
	l := isolatedLoader(t)
	path := filepath.Join(t.TempDir(), "scanqa.yaml")
	content := `
log_level: debug
models_dir: /custom/models
locator:
  conf_threshold: 0.4
  labels: [passport, id_card, receipt]
binarize:
  denoise: nlmeans
ocr:
  language: en
  max_retries: 5
scoring:
  beta: 0.25
server:
  host: 0.0.0.0
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/custom/models", cfg.ModelsDir)
	assert.InDelta(t, 0.4, cfg.Locator.ConfThreshold, 1e-9)
	assert.Equal(t, []string{"passport", "id_card", "receipt"}, cfg.Locator.Labels)
	assert.Equal(t, "nlmeans", cfg.Binarize.Denoise)
	assert.Equal(t, "en", cfg.OCR.Language)
	assert.Equal(t, 5, cfg.OCR.MaxRetries)
	assert.InDelta(t, 0.25, cfg.Scoring.Beta, 1e-9)
	assert.InDelta(t, 1.0, cfg.Scoring.Alpha, 1e-9)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, path, l.GetConfigFileUsed())
}

func TestLoad_SearchPathFile(t *testing.T) {
	l := isolatedLoader(t)
	require.NoError(t, os.WriteFile("scanqa.yaml", []byte("batch:\n  workers: 7\n"), 0o644))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.Workers)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	l := isolatedLoader(t)
	t.Setenv("SCANQA_SERVER_PORT", "9191")
	t.Setenv("SCANQA_OCR_LANGUAGE", "de")
	t.Setenv("SCANQA_STORAGE_BACKEND", "gcs")
	t.Setenv("SCANQA_STORAGE_BUCKET", "scans")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "de", cfg.OCR.Language)
	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, "scans", cfg.Storage.Bucket)
}

func TestLoad_InvalidConfig(t *testing.T) {
	l := isolatedLoader(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o644))

	_, err := l.LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.Port)
}

func TestLoadWithFile_Errors(t *testing.T) {
	l := isolatedLoader(t)
	_, err := l.LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.Error(t, err)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanqa.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	want := DefaultConfig()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Scoring, cfg.Scoring)
	assert.Equal(t, want.OCR, cfg.OCR)

	require.Error(t, GenerateDefaultConfigFile(path), "existing files are not overwritten")
}

func TestWriteYAML(t *testing.T) {
	cfg := DefaultConfig()
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, &cfg))
	out := buf.String()
	assert.Contains(t, out, "log_level: info")
	assert.Contains(t, out, "max_files: 10")
	assert.Contains(t, out, "  port: 8080")
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "scanqa"))
	assert.Equal(t, "/etc/scanqa", paths[len(paths)-1])
}
