package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Init(t *testing.T) {
	s := openMemory(t)

	var count int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='assessments'").Scan(&count))
	assert.Equal(t, 1, count)

	// Idempotent.
	require.NoError(t, s.Init())
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, cat := range []string{"Poor", "Moderate", "Excellent"} {
		id, err := s.Record(ctx, Entry{
			Filename:         "scan.png",
			DocType:          "passport",
			OCRConfidence:    float64(50 + i*10),
			OCRTier:          "Poor",
			GlobalBlackRatio: 12.5,
			Score:            float64(40 + i*10),
			Category:         cat,
			CropArtifact:     "abc_scan_crop1.png",
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Excellent", got[0].Category)
	assert.Equal(t, "Moderate", got[1].Category)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "abc_scan_crop1.png", got[0].CropArtifact)
	assert.Empty(t, got[0].BitmapArtifact)

	all, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_RecordDefaultsTimestamp(t *testing.T) {
	s := openMemory(t)
	before := time.Now().Add(-time.Second)
	_, err := s.Record(context.Background(), Entry{Filename: "a.png", DocType: "id", OCRTier: "Poor", Category: "Poor"})
	require.NoError(t, err)

	got, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.After(before))
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), Entry{Filename: "a.png", DocType: "id", OCRTier: "Poor", Category: "Poor"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	reopened := NewStore(db)
	got, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
