package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/config"
)

// execute runs the root command in an isolated directory with every flag reset, and returns
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	resetFlags(rootCmd)
	cfgFile = ""
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "scanqa", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"assess", "serve", "config", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Binarization quality metrics")
	assert.Contains(t, out, "Available Commands:")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "scanqa dev (commit: "), out)
}

func TestConfigShow(t *testing.T) {
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "server:")
	assert.Contains(t, out, "port: 8080")
	assert.Contains(t, out, "engine: tesseract")
}

func TestConfigShow_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\nbatch:\n  max_files: 4\n"), 0o600))
	t.Setenv("SCANQA_OCR_LANGUAGE", "en")

	out, _, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+path)
	assert.Contains(t, out, "port: 9191")
	assert.Contains(t, out, "max_files: 4")
	assert.Contains(t, out, "language: en")
}

func TestConfigShow_FlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nmodels_dir: /srv/models\n"), 0o600))

	out, _, err := execute(t, "--config", path, "--models-dir", "/opt/models", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "models_dir: /opt/models")
	assert.Contains(t, out, "log_level: warn")
}

func TestConfigInit(t *testing.T) {
	out, _, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to scanqa.yaml")

	loaded, err := config.NewLoaderWithViper(viper.New()).LoadWithFile("scanqa.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Server.Port, loaded.Server.Port)

	// Second run must refuse to overwrite; stay in the same directory.
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"config", "init"})
	require.Error(t, rootCmd.Execute())
}

func TestConfigPaths(t *testing.T) {
	out, _, err := execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/scanqa")
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0o600))

	_, _, err := execute(t, "--config", path, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    string
	}{
		{"debug", false, "DEBUG"},
		{"info", false, "INFO"},
		{"warn", false, "WARN"},
		{"error", false, "ERROR"},
		{"bogus", false, "INFO"},
		{"error", true, "DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.level
			cfg.Verbose = tt.verbose
			assert.Equal(t, tt.want, logLevel(&cfg).String())
		})
	}
}

func TestNewLogger_Format(t *testing.T) {
	cfg := config.DefaultConfig()

	var buf bytes.Buffer
	newLogger(&buf, &cfg, "json").Info("hello", "k", 1)
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())

	buf.Reset()
	newLogger(&buf, &cfg, "text").Info("hello", "k", 1)
	assert.Contains(t, buf.String(), "msg=hello k=1")
}
