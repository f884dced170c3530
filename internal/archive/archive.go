package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    locale TEXT NOT NULL,
    source TEXT NOT NULL,
    provider TEXT,
    fallback_reason TEXT,
    lie_probability INTEGER NOT NULL,
    confidence_score INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    result_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

var ErrNotFound = errors.New("report not found")

// Record is one archived report. Payload carries the full serialized report
// envelope; the remaining columns exist so the archive can be listed and
// filtered without decoding every row.
type Record struct {
	ID              string
	CreatedAt       time.Time
	Locale          string
	Source          string
	Provider        string
	FallbackReason  string
	LieProbability  int
	ConfidenceScore int
	DurationMs      int64
	Payload         []byte
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a record. Rows are immutable once written; a duplicate ID is
// an error, not an update.
func (s *Store) Save(rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO reports(id, created_at, locale, source, provider, fallback_reason, lie_probability, confidence_score, duration_ms, result_json)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Locale,
		rec.Source,
		rec.Provider,
		rec.FallbackReason,
		rec.LieProbability,
		rec.ConfidenceScore,
		rec.DurationMs,
		string(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, locale, source, provider, fallback_reason, lie_probability, confidence_score, duration_ms, result_json
		 FROM reports WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get report: %w", err)
	}
	return rec, nil
}

// Recent returns the newest records first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, locale, source, provider, fallback_reason, lie_probability, confidence_score, duration_ms, result_json
		 FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var createdAt string
	var payload string
	if err := row.Scan(
		&rec.ID,
		&createdAt,
		&rec.Locale,
		&rec.Source,
		&rec.Provider,
		&rec.FallbackReason,
		&rec.LieProbability,
		&rec.ConfidenceScore,
		&rec.DurationMs,
		&payload,
	); err != nil {
		return Record{}, err
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = ts
	rec.Payload = []byte(payload)
	return rec, nil
}
