package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore writes artifacts to a Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  *storage.BucketHandle
	name    string
	prefix  string
	baseURL string
}

// NewGCSStore connects using application default credentials unless opts say otherwise.
func NewGCSStore(ctx context.Context, bucket, prefix, baseURL string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		client:  client,
		bucket:  client.Bucket(bucket),
		name:    bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: baseURL,
	}, nil
}

func (s *GCSStore) object(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Save uploads data. Objects are created only if absent.
func (s *GCSStore) Save(ctx context.Context, nameHint string, data []byte) (string, error) {
	name := UniqueName(nameHint)
	objectName := s.object(name)

	w := s.bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType(name, data)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return "", fmt.Errorf("artifact %s already exists: %w", objectName, err)
		}
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	if s.baseURL != "" {
		return handle(s.baseURL, objectName), nil
	}
	return "gs://" + s.name + "/" + objectName, nil
}

// Close releases the client.
func (s *GCSStore) Close() error { return s.client.Close() }

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
