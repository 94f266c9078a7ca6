package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	// DocumentDetector is the YOLO document-type detector exported to ONNX.
	DocumentDetector = "doc_detector.onnx"
	// QualityClassifier is the whole-image good/bad classifier exported to ONNX.
	QualityClassifier = "quality_cls.onnx"
	// TessdataDir holds tesseract traineddata files.
	TessdataDir = "tessdata"
)

// Model type directories.
const (
	TypeDetection      = "detection"
	TypeClassification = "classification"
	TypeOCR            = "ocr"
)

// DefaultModelsDir is used when nothing else is configured.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "SCANQA_MODELS_DIR"

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory.
// Priority: explicit modelsDir, then the environment variable, then project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath resolves a file under its type directory, falling back to a flat layout.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// GetDocumentDetectorPath returns the path of the document detector model.
func GetDocumentDetectorPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, DocumentDetector)
}

// GetQualityClassifierPath returns the path of the quality classifier model.
func GetQualityClassifierPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeClassification, QualityClassifier)
}

// GetTessdataDir returns the tesseract data directory.
func GetTessdataDir(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeOCR, TessdataDir)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
