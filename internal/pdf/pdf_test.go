package pdf

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name        string
		pageRange   string
		want        []int
		expectError bool
	}{
		{name: "empty range returns nil", pageRange: "", want: nil},
		{name: "blank range returns nil", pageRange: "   ", want: nil},
		{name: "single page", pageRange: "1", want: []int{1}},
		{name: "multiple single pages", pageRange: "1,3,5", want: []int{1, 3, 5}},
		{name: "simple range", pageRange: "1-5", want: []int{1, 2, 3, 4, 5}},
		{name: "mixed pages and ranges", pageRange: "1,3-5,7", want: []int{1, 3, 4, 5, 7}},
		{name: "range with spaces", pageRange: " 1 - 3 , 5 ", want: []int{1, 2, 3, 5}},
		{name: "invalid page number", pageRange: "abc", expectError: true},
		{name: "invalid range format", pageRange: "1-2-3", expectError: true},
		{name: "start greater than end", pageRange: "5-1", expectError: true},
		{name: "invalid start page", pageRange: "abc-5", expectError: true},
		{name: "invalid end page", pageRange: "1-xyz", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageRange(tt.pageRange)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePageFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     int
		wantErr  bool
	}{
		{"document_1_Im0.png", 1, false},
		{"document_12_Im3.jpg", 12, false},
		{"document_3.png", 3, false},
		{"page_2_image_1.png", 2, false},
		{"page_x_image_1.png", 0, true},
		{"document_0_Im0.png", 0, true},
		{"other_1_Im0.png", 0, true},
		{"readme.txt", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := parsePageFromFilename(tt.filename, "document")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	if filepath.Ext(path) == ".jpg" {
		require.NoError(t, jpeg.Encode(f, img, nil))
		return
	}
	require.NoError(t, png.Encode(f, img))
}

func TestCollectExtractedImages(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "document_1_Im0.png"), 10, 10)
	writeImage(t, filepath.Join(dir, "document_1_Im1.jpg"), 40, 20)
	writeImage(t, filepath.Join(dir, "document_2_Im0.png"), 5, 5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "document_3_Im0.png"), []byte("broken"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	got, err := collectExtractedImages(dir, "document")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, got[1], 2)
	assert.Len(t, got[2], 1)
	assert.Empty(t, got[3])

	best := largest(got[1])
	require.NotNil(t, best)
	assert.Equal(t, 40, best.Bounds().Dx())
	assert.Nil(t, largest(nil))
}

func TestPagePixels(t *testing.T) {
	// A4 at 200 DPI.
	w, h := pagePixels(595.28, 841.89, 200)
	assert.Equal(t, 1654, w)
	assert.Equal(t, 2339, h)

	w, h = pagePixels(72, 36, 72)
	assert.Equal(t, 72, w)
	assert.Equal(t, 36, h)

	w, h = pagePixels(0, 0, 200)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestFitToPage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 100, 141))
	same := fitToPage(src, 101, 141)
	assert.Same(t, src, same)

	scaled := fitToPage(src, 200, 282)
	assert.Equal(t, image.Rect(0, 0, 200, 282), scaled.Bounds())
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer("1-2")
	require.NoError(t, err)
	assert.Equal(t, "1-2", r.Pages)

	_, err = NewRenderer("2-1")
	require.Error(t, err)
}

func TestRenderPages_Errors(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	_, err = r.RenderPages(context.Background(), nil, 200)
	require.Error(t, err)

	_, err = r.RenderPages(context.Background(), []byte("%PDF-1.4\nnot really a pdf"), 200)
	require.Error(t, err)
}
