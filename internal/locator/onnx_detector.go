package locator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanqa/internal/models"
	"github.com/MeKo-Tech/scanqa/internal/onnx"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// Config configures the ONNX document detector.
type Config struct {
	ModelPath     string
	ModelsDir     string
	InputSize     int
	ConfThreshold float64
	IoUThreshold  float64
	Labels        []string
	NumThreads    int
	GPU           onnx.GPUConfig
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		ModelPath:     models.GetDocumentDetectorPath(""),
		InputSize:     DefaultInputSize,
		ConfThreshold: 0.25,
		IoUThreshold:  0.45,
	}
}

func validateConfig(c Config) error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got %d", c.InputSize)
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", c.ConfThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in [0,1], got %v", c.IoUThreshold)
	}
	return nil
}

// ONNXDetector runs a YOLO document detector through ONNX Runtime. The session is
// created once and shared read-only between goroutines.
type ONNXDetector struct {
	config  Config
	session *onnx.Session
	mu      sync.RWMutex
}

// NewONNXDetector loads the model and prepares an inference session.
func NewONNXDetector(config Config) (*ONNXDetector, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if err := models.ValidateModelExists(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing document detector",
		"model_path", config.ModelPath,
		"input_size", config.InputSize,
		"gpu_enabled", config.GPU.UseGPU)

	if err := onnx.InitRuntime(config.GPU.UseGPU, config.ModelsDir); err != nil {
		return nil, err
	}

	session, err := onnx.OpenSession(onnx.SessionConfig{
		ModelPath:  config.ModelPath,
		NumThreads: config.NumThreads,
		GPU:        config.GPU,
	})
	if err != nil {
		return nil, err
	}

	return &ONNXDetector{config: config, session: session}, nil
}

// Detect implements Detector.
func (d *ONNXDetector) Detect(ctx context.Context, frame image.Image) ([]RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, w, h, err := utils.NormalizeImage(frame)
	if err != nil {
		return nil, err
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, errors.New("detector is closed")
	}

	start := time.Now()
	out, shape, err := d.session.RunFloat32(tensor)
	if err != nil {
		return nil, err
	}
	dets, err := decodeOutput(out, shape, d.config.ConfThreshold, d.config.IoUThreshold, d.config.Labels)
	if err != nil {
		return nil, err
	}
	slog.Debug("detector inference", "duration", time.Since(start), "boxes", len(dets))
	return dets, nil
}

// Close releases the inference session.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			slog.Warn("failed to destroy detector session", "error", err)
		}
		d.session = nil
	}
	return nil
}
