package classify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/scanqa/internal/models"
	"github.com/MeKo-Tech/scanqa/internal/onnx"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// DefaultInputSize is the square input of YOLOv8 classification exports.
const DefaultInputSize = 224

// Config configures the ONNX classification model.
type Config struct {
	ModelPath  string
	ModelsDir  string
	InputSize  int
	NumThreads int
	GPU        onnx.GPUConfig
}

// ONNXModel runs a YOLOv8-cls style model through ONNX Runtime.
type ONNXModel struct {
	config  Config
	session *onnx.Session
	mu      sync.RWMutex
}

// NewONNXModel loads the model and prepares an inference session.
func NewONNXModel(config Config) (*ONNXModel, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if config.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", config.InputSize)
	}
	if err := models.ValidateModelExists(config.ModelPath); err != nil {
		return nil, err
	}
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
	slog.Debug("Initialized quality classifier", "model_path", config.ModelPath, "input_size", config.InputSize)
	return &ONNXModel{config: config, session: session}, nil
}

// Scores implements Model.
func (m *ONNXModel) Scores(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, w, h, err := utils.NormalizeImage(prepare(img, m.config.InputSize))
	if err != nil {
		return nil, err
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, errors.New("classifier is closed")
	}
	out, shape, err := m.session.RunFloat32(tensor)
	if err != nil {
		return nil, err
	}
	return decodeScores(out, shape)
}

// Close releases the inference session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			slog.Warn("failed to destroy classifier session", "error", err)
		}
		m.session = nil
	}
	return nil
}

// prepare resizes the short side to size and center-crops the square.
func prepare(img image.Image, size int) image.Image {
	return imaging.Fill(img, size, size, imaging.Center, imaging.Linear)
}

// decodeScores validates a [1, C] output and returns probabilities. Raw logits are
// passed through softmax.
func decodeScores(data []float32, shape []int64) ([]float32, error) {
	if len(shape) != 2 || shape[0] != 1 || shape[1] <= 0 || int64(len(data)) < shape[1] {
		return nil, fmt.Errorf("unsupported classifier output shape %v", shape)
	}
	scores := append([]float32(nil), data[:shape[1]]...)
	if isDistribution(scores) {
		return scores, nil
	}
	return softmax(scores), nil
}

func isDistribution(scores []float32) bool {
	var sum float64
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += float64(s)
	}
	return math.Abs(sum-1) < 1e-3
}

func softmax(logits []float32) []float32 {
	maxV := logits[0]
	for _, v := range logits[1:] {
		maxV = max(maxV, v)
	}
	var sum float64
	out := make([]float32, len(logits))
	for i, v := range logits {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
