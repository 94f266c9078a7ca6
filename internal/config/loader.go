package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "scanqa"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SCANQA"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that cobra flag bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from a specific file path. An empty path searches the
// standard locations, and a missing file there is not an error.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps keys like server.port to SCANQA_SERVER_PORT.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers a default for every key. AutomaticEnv only resolves keys viper
// already knows about, so every field must appear here.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("locator.model_path", d.Locator.ModelPath)
	l.v.SetDefault("locator.input_size", d.Locator.InputSize)
	l.v.SetDefault("locator.conf_threshold", d.Locator.ConfThreshold)
	l.v.SetDefault("locator.iou_threshold", d.Locator.IoUThreshold)
	l.v.SetDefault("locator.labels", d.Locator.Labels)
	l.v.SetDefault("locator.num_threads", d.Locator.NumThreads)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)

	l.v.SetDefault("binarize.denoise", d.Binarize.Denoise)
	l.v.SetDefault("binarize.upscale_factor", d.Binarize.UpscaleFactor)
	l.v.SetDefault("binarize.large_region_fraction", d.Binarize.LargeRegionFraction)
	l.v.SetDefault("binarize.nlmeans_h", d.Binarize.NLMeansH)

	l.v.SetDefault("ocr.engine", d.OCR.Engine)
	l.v.SetDefault("ocr.language", d.OCR.Language)
	l.v.SetDefault("ocr.max_retries", d.OCR.MaxRetries)
	l.v.SetDefault("ocr.retry_delay_ms", d.OCR.RetryDelayMS)
	l.v.SetDefault("ocr.timeout_sec", d.OCR.TimeoutSec)
	l.v.SetDefault("ocr.tessdata_prefix", d.OCR.TessdataPrefix)

	l.v.SetDefault("scoring.alpha", d.Scoring.Alpha)
	l.v.SetDefault("scoring.beta", d.Scoring.Beta)
	l.v.SetDefault("scoring.gamma", d.Scoring.Gamma)

	l.v.SetDefault("batch.max_files", d.Batch.MaxFiles)
	l.v.SetDefault("batch.pdf_dpi", d.Batch.PDFDPI)
	l.v.SetDefault("batch.workers", d.Batch.Workers)

	l.v.SetDefault("pipeline.inference_workers", d.Pipeline.InferenceWorkers)

	l.v.SetDefault("storage.backend", d.Storage.Backend)
	l.v.SetDefault("storage.dir", d.Storage.Dir)
	l.v.SetDefault("storage.bucket", d.Storage.Bucket)
	l.v.SetDefault("storage.prefix", d.Storage.Prefix)
	l.v.SetDefault("storage.base_url", d.Storage.BaseURL)

	l.v.SetDefault("history.enabled", d.History.Enabled)
	l.v.SetDefault("history.path", d.History.Path)
	l.v.SetDefault("history.default_limit", d.History.DefaultLimit)

	l.v.SetDefault("classifier.enabled", d.Classifier.Enabled)
	l.v.SetDefault("classifier.model_path", d.Classifier.ModelPath)
	l.v.SetDefault("classifier.input_size", d.Classifier.InputSize)
	l.v.SetDefault("classifier.threshold", d.Classifier.Threshold)
	l.v.SetDefault("classifier.num_threads", d.Classifier.NumThreads)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout_sec", d.Server.ShutdownTimeoutSec)
	l.v.SetDefault("server.rate_limit_per_minute", d.Server.RateLimitPerMinute)
	l.v.SetDefault("server.rate_limit_burst", d.Server.RateLimitBurst)
	l.v.SetDefault("server.max_data_per_day_mb", d.Server.MaxDataPerDayMB)
}

// WriteYAML encodes cfg as YAML.
func WriteYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the default configuration to filename, refusing to
// overwrite an existing file.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := WriteYAML(f, &cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "scanqa"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scanqa"))
	}

	return append(paths, "/etc/scanqa")
}
