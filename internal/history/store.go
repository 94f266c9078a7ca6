// Package history keeps a log of completed assessments in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the assessments table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	detection_confidence REAL NOT NULL,
	ocr_confidence REAL NOT NULL,
	ocr_tier TEXT NOT NULL,
	global_black_ratio REAL NOT NULL,
	large_black_ratio REAL NOT NULL,
	score REAL NOT NULL,
	category TEXT NOT NULL,
	crop_artifact TEXT,
	bitmap_artifact TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at);
CREATE INDEX IF NOT EXISTS idx_assessments_category ON assessments(category);
`

// Entry is one persisted assessment.
type Entry struct {
	ID                  int64     `json:"id"`
	Filename            string    `json:"filename"`
	DocType             string    `json:"doc_type"`
	DetectionConfidence float64   `json:"detection_confidence"`
	OCRConfidence       float64   `json:"ocr_confidence"`
	OCRTier             string    `json:"ocr_tier"`
	GlobalBlackRatio    float64   `json:"global_black_ratio"`
	LargeBlackRatio     float64   `json:"large_black_ratio"`
	Score               float64   `json:"score"`
	Category            string    `json:"category"`
	CropArtifact        string    `json:"crop_artifact,omitempty"`
	BitmapArtifact      string    `json:"bitmap_artifact,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Store persists assessment entries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := NewStore(db)
	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure history database: %w", err)
		}
	}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the assessments table if it doesn't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply history schema: %w", err)
	}
	return nil
}

// Record inserts e and returns its id. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO assessments (
		filename, doc_type, detection_confidence, ocr_confidence, ocr_tier,
		global_black_ratio, large_black_ratio, score, category,
		crop_artifact, bitmap_artifact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Filename, e.DocType, e.DetectionConfidence, e.OCRConfidence, e.OCRTier,
		e.GlobalBlackRatio, e.LargeBlackRatio, e.Score, e.Category,
		e.CropArtifact, e.BitmapArtifact, e.CreatedAt.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to record assessment: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, filename, doc_type, detection_confidence,
		ocr_confidence, ocr_tier, global_black_ratio, large_black_ratio, score, category,
		COALESCE(crop_artifact, ''), COALESCE(bitmap_artifact, ''), created_at
		FROM assessments ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Filename, &e.DocType, &e.DetectionConfidence,
			&e.OCRConfidence, &e.OCRTier, &e.GlobalBlackRatio, &e.LargeBlackRatio, &e.Score,
			&e.Category, &e.CropArtifact, &e.BitmapArtifact, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.CreatedAt = time.UnixMicro(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
