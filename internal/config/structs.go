//nolint:lll
package config

// Config represents the complete configuration for the scanqa application.
// It covers every command (serve, assess) and is loaded from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Locator  LocatorConfig  `mapstructure:"locator" yaml:"locator" json:"locator"`
	GPU      GPUConfig      `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Binarize BinarizeConfig `mapstructure:"binarize" yaml:"binarize" json:"binarize"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring" json:"scoring"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage" json:"storage"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history" json:"history"`

	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// LocatorConfig contains document detector settings.
type LocatorConfig struct {
	ModelPath     string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	InputSize     int      `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfThreshold float64  `mapstructure:"conf_threshold" yaml:"conf_threshold" json:"conf_threshold"`
	IoUThreshold  float64  `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	Labels        []string `mapstructure:"labels" yaml:"labels" json:"labels"`
	NumThreads    int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// ClassifierConfig contains the optional whole-image quality classifier settings.
type ClassifierConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ModelPath  string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	InputSize  int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	Threshold  float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	NumThreads int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// BinarizeConfig contains normalization and quality assessment settings.
type BinarizeConfig struct {
	Denoise             string  `mapstructure:"denoise" yaml:"denoise" json:"denoise"`
	UpscaleFactor       float64 `mapstructure:"upscale_factor" yaml:"upscale_factor" json:"upscale_factor"`
	LargeRegionFraction float64 `mapstructure:"large_region_fraction" yaml:"large_region_fraction" json:"large_region_fraction"`
	NLMeansH            float64 `mapstructure:"nlmeans_h" yaml:"nlmeans_h" json:"nlmeans_h"`
}

// OCRConfig contains text recognition settings.
type OCRConfig struct {
	Engine         string `mapstructure:"engine" yaml:"engine" json:"engine"`
	Language       string `mapstructure:"language" yaml:"language" json:"language"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	RetryDelayMS   int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms" json:"retry_delay_ms"`
	TimeoutSec     int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	TessdataPrefix string `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
}

// ScoringConfig contains the global score weights.
type ScoringConfig struct {
	Alpha float64 `mapstructure:"alpha" yaml:"alpha" json:"alpha"`
	Beta  float64 `mapstructure:"beta" yaml:"beta" json:"beta"`
	Gamma float64 `mapstructure:"gamma" yaml:"gamma" json:"gamma"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	MaxFiles int `mapstructure:"max_files" yaml:"max_files" json:"max_files"`
	PDFDPI   int `mapstructure:"pdf_dpi" yaml:"pdf_dpi" json:"pdf_dpi"`
	Workers  int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// PipelineConfig contains settings shared by all requests.
type PipelineConfig struct {
	InferenceWorkers int `mapstructure:"inference_workers" yaml:"inference_workers" json:"inference_workers"`
}

// StorageConfig selects where crop and bitmap artifacts are written.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Bucket  string `mapstructure:"bucket" yaml:"bucket" json:"bucket"`
	Prefix  string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
}

// HistoryConfig contains assessment history settings.
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path         string `mapstructure:"path" yaml:"path" json:"path"`
	DefaultLimit int    `mapstructure:"default_limit" yaml:"default_limit" json:"default_limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host               string `mapstructure:"host" yaml:"host" json:"host"`
	Port               int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin         string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB        int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec         int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`

	// Per-client limits; zero disables each one.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst" json:"rate_limit_burst"`
	MaxDataPerDayMB    int `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
