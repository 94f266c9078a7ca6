// Package artifact persists intermediate images (crops, binarized bitmaps, rendered pages).
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store saves artifact bytes under a unique name derived from nameHint and returns a handle
// that clients can use to fetch it.
type Store interface {
	Save(ctx context.Context, nameHint string, data []byte) (string, error)
}

// Backend names.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Dir     string // local
	Bucket  string // gcs
	Prefix  string // gcs object prefix
	BaseURL string // optional public prefix for handles
}

// New builds the configured store.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		s, err := NewLocalStore(cfg.Dir, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendGCS:
		s, err := NewGCSStore(ctx, cfg.Bucket, cfg.Prefix, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// UniqueName prefixes the base name of hint with a random hex id.
func UniqueName(hint string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id + "_" + sanitize(hint)
}

func sanitize(hint string) string {
	base := filepath.Base(strings.ReplaceAll(hint, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "artifact"
	}
	return base
}

// validName reports whether name is a single path element produced by UniqueName.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func handle(baseURL, name string) string {
	if baseURL == "" {
		return name
	}
	return strings.TrimRight(baseURL, "/") + "/" + name
}
