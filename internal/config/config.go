package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MeKo-Tech/scanqa/internal/artifact"
	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/classify"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/models"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/onnx"
	"github.com/MeKo-Tech/scanqa/internal/pipeline"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
)

// EngineTesseract is the only OCR engine currently supported.
const EngineTesseract = "tesseract"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := locator.DefaultConfig()
	bin := binarize.DefaultConfig()
	ocr := ocrquality.DefaultConfig()
	w := scoring.DefaultWeights()
	pl := pipeline.DefaultConfig()

	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Locator: LocatorConfig{
			InputSize:     det.InputSize,
			ConfThreshold: det.ConfThreshold,
			IoUThreshold:  det.IoUThreshold,
			Labels:        []string{},
		},
		GPU: GPUConfig{MemoryLimit: "auto"},
		Binarize: BinarizeConfig{
			Denoise:             string(bin.Denoise),
			UpscaleFactor:       bin.UpscaleFactor,
			LargeRegionFraction: binarize.DefaultLargeRegionFraction,
			NLMeansH:            bin.NLMeansH,
		},
		OCR: OCRConfig{
			Engine:       EngineTesseract,
			Language:     ocr.Language,
			MaxRetries:   ocr.MaxRetries,
			RetryDelayMS: int(ocr.RetryDelay / time.Millisecond),
			TimeoutSec:   int(ocr.Timeout / time.Second),
		},
		Scoring: ScoringConfig{Alpha: w.Alpha, Beta: w.Beta, Gamma: w.Gamma},
		Batch: BatchConfig{
			MaxFiles: pl.MaxFiles,
			PDFDPI:   pl.PDFDPI,
			Workers:  pl.Workers,
		},
		Pipeline: PipelineConfig{InferenceWorkers: pl.InferenceWorkers},
		Storage: StorageConfig{
			Backend: artifact.BackendLocal,
			Dir:     "artifacts",
		},
		History: HistoryConfig{
			Enabled:      true,
			Path:         "scanqa.db",
			DefaultLimit: 50,
		},
		Classifier: ClassifierConfig{
			InputSize: classify.DefaultInputSize,
			Threshold: classify.DefaultThreshold,
		},
		Server: ServerConfig{
			Host:               "localhost",
			Port:               8080,
			CORSOrigin:         "*",
			MaxUploadMB:        50,
			TimeoutSec:         400,
			ShutdownTimeoutSec: 10,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Locator.InputSize <= 0 || c.Locator.InputSize%32 != 0 {
		return fmt.Errorf("invalid locator input size: %d (must be a positive multiple of 32)", c.Locator.InputSize)
	}
	if err := validateThreshold(c.Locator.ConfThreshold, "locator.conf_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Locator.IoUThreshold, "locator.iou_threshold"); err != nil {
		return err
	}
	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be non-negative)", c.GPU.Device)
	}
	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	if err := c.ToNormalizerConfig().Validate(); err != nil {
		return fmt.Errorf("invalid binarize config: %w", err)
	}
	if c.Binarize.LargeRegionFraction <= 0 || c.Binarize.LargeRegionFraction >= 1 {
		return fmt.Errorf("invalid binarize.large_region_fraction: %v (must be in (0,1))", c.Binarize.LargeRegionFraction)
	}

	if c.OCR.Engine != EngineTesseract {
		return fmt.Errorf("invalid OCR engine: %s (must be %s)", c.OCR.Engine, EngineTesseract)
	}
	if c.OCR.Language == "" {
		return errors.New("ocr.language cannot be empty")
	}
	if err := c.ToExtractorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid ocr config: %w", err)
	}

	if err := c.ToPipelineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}

	switch c.Storage.Backend {
	case artifact.BackendLocal:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the local backend")
		}
	case artifact.BackendGCS:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be one of: %s, %s)",
			c.Storage.Backend, artifact.BackendLocal, artifact.BackendGCS)
	}

	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path is required when history is enabled")
	}
	if c.History.DefaultLimit <= 0 {
		return fmt.Errorf("invalid history default limit: %d (must be positive)", c.History.DefaultLimit)
	}

	if c.Classifier.Enabled {
		if c.Classifier.InputSize <= 0 {
			return fmt.Errorf("invalid classifier input size: %d (must be positive)", c.Classifier.InputSize)
		}
		if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
			return fmt.Errorf("invalid classifier.threshold: %v (must be in [0,1])", c.Classifier.Threshold)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if budget := c.OCRBudget(); time.Duration(c.Server.TimeoutSec)*time.Second < budget {
		return fmt.Errorf("invalid timeout: %ds is shorter than the OCR retry budget of %s", c.Server.TimeoutSec, budget)
	}
	if c.Server.ShutdownTimeoutSec < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeoutSec)
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 || c.Server.MaxDataPerDayMB < 0 {
		return errors.New("invalid rate limit: limits must not be negative")
	}
	return nil
}

// OCRBudget is the longest a single extraction may take: every attempt timing out
// plus the delays between them.
func (c *Config) OCRBudget() time.Duration {
	if c.OCR.MaxRetries <= 0 {
		return 0
	}
	attempts := time.Duration(c.OCR.MaxRetries)
	return attempts*time.Duration(c.OCR.TimeoutSec)*time.Second +
		(attempts-1)*time.Duration(c.OCR.RetryDelayMS)*time.Millisecond
}

// ToDetectorConfig converts to locator.Config.
func (c *Config) ToDetectorConfig() locator.Config {
	cfg := locator.DefaultConfig()
	cfg.ModelsDir = c.ModelsDir
	cfg.ModelPath = models.GetDocumentDetectorPath(c.ModelsDir)
	if c.Locator.ModelPath != "" {
		cfg.ModelPath = c.Locator.ModelPath
	}
	cfg.InputSize = c.Locator.InputSize
	cfg.ConfThreshold = c.Locator.ConfThreshold
	cfg.IoUThreshold = c.Locator.IoUThreshold
	cfg.Labels = c.Locator.Labels
	cfg.NumThreads = c.Locator.NumThreads
	cfg.GPU = c.ToGPUConfig()
	return cfg
}

// ToClassifierConfig converts to classify.Config.
func (c *Config) ToClassifierConfig() classify.Config {
	path := models.GetQualityClassifierPath(c.ModelsDir)
	if c.Classifier.ModelPath != "" {
		path = c.Classifier.ModelPath
	}
	return classify.Config{
		ModelPath:  path,
		ModelsDir:  c.ModelsDir,
		InputSize:  c.Classifier.InputSize,
		NumThreads: c.Classifier.NumThreads,
		GPU:        c.ToGPUConfig(),
	}
}

// ToGPUConfig converts to onnx.GPUConfig. An invalid memory limit counts as unlimited;
// Validate reports it.
func (c *Config) ToGPUConfig() onnx.GPUConfig {
	limit, _ := parseMemoryLimit(c.GPU.MemoryLimit)
	return onnx.GPUConfig{
		UseGPU:      c.GPU.Enabled,
		DeviceID:    c.GPU.Device,
		GPUMemLimit: limit,
	}
}

// ToNormalizerConfig converts to binarize.Config.
func (c *Config) ToNormalizerConfig() binarize.Config {
	return binarize.Config{
		Denoise:       binarize.Denoise(c.Binarize.Denoise),
		UpscaleFactor: c.Binarize.UpscaleFactor,
		NLMeansH:      c.Binarize.NLMeansH,
	}
}

// ToExtractorConfig converts to ocrquality.Config.
func (c *Config) ToExtractorConfig() ocrquality.Config {
	cfg := ocrquality.DefaultConfig()
	cfg.Language = c.OCR.Language
	cfg.MaxRetries = c.OCR.MaxRetries
	cfg.RetryDelay = time.Duration(c.OCR.RetryDelayMS) * time.Millisecond
	cfg.Timeout = time.Duration(c.OCR.TimeoutSec) * time.Second
	return cfg
}

// ToTesseractConfig converts to ocrquality.TesseractConfig.
func (c *Config) ToTesseractConfig() ocrquality.TesseractConfig {
	return ocrquality.TesseractConfig{TessdataPrefix: c.OCR.TessdataPrefix}
}

// ToWeights converts to scoring.Weights.
func (c *Config) ToWeights() scoring.Weights {
	return scoring.Weights{Alpha: c.Scoring.Alpha, Beta: c.Scoring.Beta, Gamma: c.Scoring.Gamma}
}

// ToPipelineConfig converts to pipeline.Config.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.MaxFiles = c.Batch.MaxFiles
	cfg.PDFDPI = c.Batch.PDFDPI
	cfg.Workers = c.Batch.Workers
	cfg.InferenceWorkers = c.Pipeline.InferenceWorkers
	cfg.Weights = c.ToWeights()
	return cfg
}

// ToArtifactConfig converts to artifact.Config.
func (c *Config) ToArtifactConfig() artifact.Config {
	return artifact.Config{
		Backend: c.Storage.Backend,
		Dir:     c.Storage.Dir,
		Bucket:  c.Storage.Bucket,
		Prefix:  c.Storage.Prefix,
		BaseURL: c.Storage.BaseURL,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses a GPU memory limit such as "512MB" or "2GiB" into bytes.
// "auto" and "" mean unlimited.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || strings.EqualFold(limit, "auto") {
		return 0, nil
	}
	n, err := humanize.ParseBytes(limit)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", limit, err)
	}
	return n, nil
}
