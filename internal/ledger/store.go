// Package ledger records every captioned or failed photo in SQLite so the
// bot can skip duplicate replies and operators can review recent activity.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Status of a ledger entry.
type Status string

const (
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Entry is one photo handled by one pipeline invocation.
type Entry struct {
	ID           int64     `json:"id"`
	InvocationID string    `json:"invocation_id"`
	SourcePostID string    `json:"source_post_id"`
	PhotoID      string    `json:"photo_id,omitempty"`
	MediaURL     string    `json:"media_url"`
	ReplyToID    string    `json:"reply_to_id"`
	ReplyID      string    `json:"reply_id,omitempty"`
	Handle       string    `json:"handle,omitempty"`
	Status       Status    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	RenderMS     int64     `json:"render_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats summarizes the ledger.
type Stats struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Store is the SQLite-backed ledger.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the ledger database at dbPath and migrates it.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e to the ledger.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captions (invocation_id, source_post_id, photo_id, media_url, reply_to_id, reply_id,
		                       handle, status, stage, error, render_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.InvocationID, e.SourcePostID, e.PhotoID, e.MediaURL, e.ReplyToID, e.ReplyID,
		e.Handle, string(e.Status), e.Stage, e.Error, e.RenderMS, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record caption: %w", err)
	}
	return nil
}

// Published reports whether a reply carrying mediaURL was already published to replyToID.
func (s *Store) Published(ctx context.Context, mediaURL, replyToID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captions WHERE media_url = ? AND reply_to_id = ? AND status = ?`,
		mediaURL, replyToID, string(StatusPublished),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup caption: %w", err)
	}
	return n > 0, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, invocation_id, source_post_id, photo_id, media_url, reply_to_id, reply_id,
		        handle, status, stage, error, render_ms, created_at
		 FROM captions ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.InvocationID, &e.SourcePostID, &e.PhotoID, &e.MediaURL,
			&e.ReplyToID, &e.ReplyID, &e.Handle, &status, &e.Stage, &e.Error, &e.RenderMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts entries by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM captions GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusPublished:
			st.Published = n
		case StatusFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}
