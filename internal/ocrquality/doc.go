// Package ocrquality measures how legible a processed document is by running text
// recognition over it and summarizing the per-line confidences.
//
// The recognition capability is pluggable through Engine. A tesseract-backed engine is
// available when building with the `tesseract` tag (requires libtesseract):
//
//	go build -tags=tesseract ./...
package ocrquality
