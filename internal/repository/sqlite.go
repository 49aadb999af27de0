package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
    id            TEXT PRIMARY KEY,
    content_hash  TEXT NOT NULL,
    content_type  TEXT NOT NULL,
    verdict       TEXT NOT NULL,
    ai_score      INTEGER NOT NULL,
    confidence    INTEGER NOT NULL,
    result        BLOB NOT NULL,
    created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_hash ON results(content_hash);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
`

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and applies the schema.
func NewSQLite(path string) (Repository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) Save(ctx context.Context, rec Record) (*Record, error) {
	stamp(&rec)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO results (id, content_hash, content_type, verdict, ai_score, confidence, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ContentHash, rec.ContentType, rec.Verdict, rec.AIScore, rec.Confidence,
		[]byte(rec.Result), rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}
	return &rec, nil
}

func (r *sqliteRepository) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec       Record
		result    []byte
		createdNs int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, content_hash, content_type, verdict, ai_score, confidence, result, created_at
		FROM results WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.ContentHash, &rec.ContentType, &rec.Verdict, &rec.AIScore, &rec.Confidence, &result, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}

	rec.Result = result
	rec.CreatedAt = time.Unix(0, createdNs).UTC()
	return &rec, nil
}

func (r *sqliteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
