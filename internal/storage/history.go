// Package storage persists the search history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/fukabori/pkg/utils"
)

// Queries longer than this are truncated before being stored.
const maxStoredQueryLen = 500

// SearchLog is one recorded query.
type SearchLog struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Mode      string    `json:"mode"`
	Results   int       `json:"results"`
	TookMS    int64     `json:"took_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// History records queries in SQLite with capped retention: once more than
// maxEntries logs exist, the oldest are pruned on the next Record.
type History struct {
	db         *sql.DB
	maxEntries int
}

// NewHistory opens or creates the history database at dbPath. Parent
// directories are created if they do not exist. maxEntries caps retention;
// non-positive values default to 1000.
func NewHistory(dbPath string, maxEntries int) (*History, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &History{db: db, maxEntries: maxEntries}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_logs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		mode TEXT NOT NULL,
		results INTEGER NOT NULL,
		took_ms INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record stores one query and prunes logs beyond the retention cap.
func (h *History) Record(ctx context.Context, query, mode string, results int, took time.Duration) error {
	log := &SearchLog{
		ID:        uuid.NewString(),
		Query:     utils.Truncate(query, maxStoredQueryLen),
		Mode:      mode,
		Results:   results,
		TookMS:    took.Milliseconds(),
		CreatedAt: time.Now(),
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO search_logs (id, query, mode, results, took_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.Query, log.Mode, log.Results, log.TookMS, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		`DELETE FROM search_logs WHERE id NOT IN (
			SELECT id FROM search_logs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, h.maxEntries,
	)
	if err != nil {
		return fmt.Errorf("failed to prune search history: %w", err)
	}
	return nil
}

// Recent returns up to n logs, newest first.
func (h *History) Recent(ctx context.Context, n int) ([]*SearchLog, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, query, mode, results, took_ms, created_at
		 FROM search_logs ORDER BY created_at DESC, rowid DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*SearchLog
	for rows.Next() {
		var log SearchLog
		if err := rows.Scan(&log.ID, &log.Query, &log.Mode, &log.Results, &log.TookMS, &log.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// Count returns the number of retained logs.
func (h *History) Count(ctx context.Context) (int64, error) {
	var count int64
	err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_logs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}
