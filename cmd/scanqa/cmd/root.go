package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/scanqa/internal/config"
	"github.com/MeKo-Tech/scanqa/internal/models"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration, loaded before every command runs.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanqa",
	Short: "Quality assessment for scanned documents",
	Long: `scanqa locates documents in scans and photos, binarizes them and scores how
readable they are, combining binarization statistics with OCR confidence.

This tool provides:
- Document localization with an ONNX detection model
- Binarization quality metrics (global and large-region black ratios)
- OCR readability assessment with retries
- A fused quality score and category per document
- Both CLI and server modes, with PDF support

Examples:
  scanqa assess scan.jpg
  scanqa assess scans/ --recursive --format csv --output report.csv
  scanqa serve --port 8080`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $XDG_CONFIG_HOME/scanqa, $HOME/.config/scanqa, /etc/scanqa)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
}

// configFlags maps config keys to the flags that override them. Commands register their
// own entries in init.
var configFlags = map[string]string{
	"verbose":    "verbose",
	"log_level":  "log-level",
	"models_dir": "models-dir",
}

// loadConfig reads the config file, environment and flags, then configures logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	for key, name := range configFlags {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	configLoader = config.NewLoaderWithViper(v)
	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg

	format, _ := cmd.Flags().GetString("log-format")
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg, format))
	if used := configLoader.GetConfigFileUsed(); used != "" {
		slog.Debug("loaded configuration", "file", used)
	}
	return nil
}

// newLogger builds the process logger. Logs go to stderr so command output stays parseable.
func newLogger(w io.Writer, cfg *config.Config, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
