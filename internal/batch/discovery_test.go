package batch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/testutil"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		testutil.WriteFile(t, p, []byte("data"))
	}
}

func TestDiscoverInputFiles_EmptyArgs(t *testing.T) {
	files, err := discoverInputFiles(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverInputFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "a.png")
	pdf := filepath.Join(dir, "b.pdf")
	jpg := filepath.Join(dir, "c.JPG")
	touch(t, png, pdf, jpg, filepath.Join(dir, "notes.txt"), filepath.Join(dir, "sub", "d.png"))

	files, err := discoverInputFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{png, pdf, jpg}, files)
}

func TestDiscoverInputFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	top := filepath.Join(dir, "a.png")
	nested := filepath.Join(dir, "sub", "deeper", "b.tiff")
	touch(t, top, nested)

	files, err := discoverInputFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{top, nested}, files)
}

func TestDiscoverInputFiles_Patterns(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "scan_001.png"),
		filepath.Join(dir, "scan_002.png"),
		filepath.Join(dir, "scan_002_draft.png"),
		filepath.Join(dir, "photo.jpg"),
	)

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{"include", []string{"scan_*"}, nil, []string{"scan_001.png", "scan_002.png", "scan_002_draft.png"}},
		{"exclude", nil, []string{"*_draft.png"}, []string{"photo.jpg", "scan_001.png", "scan_002.png"}},
		{"both", []string{"*.png"}, []string{"*_draft.png", "scan_001*"}, []string{"scan_002.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := discoverInputFiles([]string{dir}, false, tt.include, tt.exclude)
			require.NoError(t, err)
			var names []string
			for _, f := range files {
				names = append(names, filepath.Base(f))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDiscoverInputFiles_ExplicitFileKeepsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	odd := filepath.Join(dir, "upload.bin")
	touch(t, odd)

	files, err := discoverInputFiles([]string{odd}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{odd}, files)
}

func TestDiscoverInputFiles_Missing(t *testing.T) {
	_, err := discoverInputFiles([]string{filepath.Join(t.TempDir(), "nope.png")}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}
