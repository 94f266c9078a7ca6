package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// readInputs loads every path into memory and returns the total size read.
func readInputs(paths []string) ([]pipeline.File, uint64, error) {
	files := make([]pipeline.File, 0, len(paths))
	var total uint64
	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // G304: paths come from the command line
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
		}
		total += uint64(len(data))
		files = append(files, pipeline.File{Name: path, Data: data})
	}
	return files, total, nil
}

// chunk splits files into consecutive groups of at most size.
func chunk(files []pipeline.File, size int) [][]pipeline.File {
	if size <= 0 {
		size = len(files)
	}
	var out [][]pipeline.File
	for start := 0; start < len(files); start += size {
		out = append(out, files[start:min(start+size, len(files))])
	}
	return out
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
