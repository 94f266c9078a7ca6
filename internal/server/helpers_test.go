package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanqa/internal/binarize"
	"github.com/MeKo-Tech/scanqa/internal/classify"
	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/ocrquality"
	"github.com/MeKo-Tech/scanqa/internal/pipeline"
	"github.com/MeKo-Tech/scanqa/internal/scoring"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

// fakePipeline returns canned records keyed by nothing; err, when set, fails every call.
type fakePipeline struct {
	mu      sync.Mutex
	records []pipeline.Record
	err     error
	names   []string
	// deadlines records whether each call's context carried a deadline.
	deadlines []bool
}

func sampleRecord(name string) pipeline.Record {
	return pipeline.Record{
		Filename:     name,
		Detection:    locator.Detection{Box: utils.NewBox(10, 10, 200, 120), DocType: "passport", Confidence: 0.93},
		CropArtifact: "abc_scan_crop1.png",
		Metrics:      binarize.Metrics{GlobalBlackRatio: 12.3456, LargeBlackRatio: 3.2},
		OCR:          ocrquality.Result{Text: "ИВАНОВ ИВАН", AverageConfidence: 88, Tier: ocrquality.TierExcellent, Attempts: 1},
		Score:        78.63,
		Category:     scoring.Excellent,
	}
}

func (f *fakePipeline) seen(ctx context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
}

func (f *fakePipeline) AssessImage(ctx context.Context, name string, _ []byte) (pipeline.Record, error) {
	f.seen(ctx, name)
	if f.err != nil {
		return pipeline.Record{}, f.err
	}
	return f.records[0], nil
}

func (f *fakePipeline) AssessDocuments(ctx context.Context, name string, _ []byte) ([]pipeline.Record, error) {
	f.seen(ctx, name)
	return f.records, f.err
}

func (f *fakePipeline) Preview(ctx context.Context, name string, _ []byte) ([]pipeline.Preview, error) {
	f.seen(ctx, name)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]pipeline.Preview, len(f.records))
	for i, r := range f.records {
		out[i] = pipeline.NewPreview(r)
	}
	return out, nil
}

// AssessBatchWithProgress fails files whose content is "bad" and succeeds the rest.
func (f *fakePipeline) AssessBatchWithProgress(
	ctx context.Context, files []pipeline.File, progress pipeline.ProgressCallback,
) ([]pipeline.BatchItemResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	progress.OnStart(len(files))
	results := make([]pipeline.BatchItemResult, len(files))
	for i, file := range files {
		f.seen(ctx, file.Name)
		res := pipeline.BatchItemResult{Filename: file.Name}
		if string(file.Data) == "bad" {
			res.Err = pipeline.ErrInvalidImage
		} else {
			res.Records = []pipeline.Record{sampleRecord(file.Name)}
		}
		results[i] = res
		progress.OnItem(i, i+1, len(files), res)
	}
	progress.OnComplete()
	return results, nil
}

// fakeClassifier rejects the payload "bad" and labels everything else with result.
type fakeClassifier struct {
	result classify.Result
}

func (f fakeClassifier) ClassifyBytes(_ context.Context, data []byte) (classify.Result, error) {
	if string(data) == "bad" {
		return classify.Result{}, classify.ErrInvalidImage
	}
	return f.result, nil
}

func newTestServer(p *fakePipeline, deps ...func(*Deps)) *Server {
	d := Deps{Pipeline: p}
	for _, fn := range deps {
		fn(&d)
	}
	return NewServer(Config{CORSOrigin: "*", MaxUploadMB: 1, TimeoutSec: 5}, d)
}

func newMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// part is a multipart file; an empty name makes it a plain form field.
type part struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.name == "" {
			require.NoError(t, mw.WriteField(p.field, string(p.data)))
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
