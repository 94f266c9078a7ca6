package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1024, 768}
)

// DocumentConfig describes a synthetic photo of a paper document lying on a desk.
type DocumentConfig struct {
	Size       ImageSize
	Paper      image.Rectangle // document area; zero means a centred 70% sheet
	Lines      []string
	Desk       color.Color
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	Stains     []image.Rectangle // solid black blobs drawn onto the paper
}

// DefaultDocumentConfig returns a medium-sized photo with a few lines of text.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		Size:       MediumSize,
		Lines:      []string{"PASSPORT", "Surname: IVANOV", "Given names: IVAN", "Date of birth: 01.01.1990"},
		Desk:       color.Gray{Y: 90},
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// PaperRect returns the document rectangle the config will draw.
func (c DocumentConfig) PaperRect() image.Rectangle {
	if !c.Paper.Empty() {
		return c.Paper
	}
	w, h := c.Size.Width, c.Size.Height
	return image.Rect(w*15/100, h*15/100, w*85/100, h*85/100)
}

// GenerateDocument renders the configured scene.
func GenerateDocument(c DocumentConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Size.Width, c.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c.Desk}, image.Point{}, draw.Src)

	paper := c.PaperRect()
	draw.Draw(img, paper, &image.Uniform{c.Background}, image.Point{}, draw.Src)

	face := c.FontFace
	if face == nil {
		face = basicfont.Face7x13
	}
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{c.Foreground}, Face: face}
	lineHeight := face.Metrics().Height.Ceil() * 2
	for i, line := range c.Lines {
		y := paper.Min.Y + (i+1)*lineHeight
		if y >= paper.Max.Y {
			break
		}
		drawer.Dot = fixed.P(paper.Min.X+10, y)
		drawer.DrawString(line)
	}

	for _, s := range c.Stains {
		draw.Draw(img, s.Intersect(paper), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	}
	return img
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// EncodePNG encodes img or fails the test.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600), "Failed to write %s", path)
}
