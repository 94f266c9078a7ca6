package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDocument(t *testing.T) {
	cfg := DefaultDocumentConfig()
	img := GenerateDocument(cfg)
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())

	paper := cfg.PaperRect()
	assert.Equal(t, image.Rect(96, 72, 544, 408), paper)

	// Desk corner keeps the desk colour, paper corner is white.
	assert.Equal(t, color.RGBA{R: 90, G: 90, B: 90, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(paper.Max.X-1, paper.Max.Y-1))

	dark := 0
	for y := paper.Min.Y; y < paper.Max.Y; y++ {
		for x := paper.Min.X; x < paper.Max.X; x++ {
			if img.RGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	assert.Positive(t, dark, "text should be drawn on the paper")
}

func TestGenerateDocument_Stains(t *testing.T) {
	cfg := DefaultDocumentConfig()
	cfg.Lines = nil
	stain := image.Rect(200, 200, 300, 300)
	cfg.Stains = []image.Rectangle{stain, image.Rect(0, 0, 10, 10)}
	img := GenerateDocument(cfg)

	assert.Equal(t, uint8(0), img.RGBAAt(250, 250).R)
	// Stains are clipped to the paper.
	assert.Equal(t, uint8(90), img.RGBAAt(5, 5).R)
}

func TestEncodeAndSaveImage(t *testing.T) {
	img := CreateTestImage(8, 4, color.White)
	data := EncodePNG(t, img)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	path := filepath.Join(t.TempDir(), "nested", "doc.png")
	SaveImage(t, img, path)
	assert.True(t, FileExists(path))
}
