package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"twittermoo/internal/model"
	"twittermoo/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer, one reader, one goroutine. Also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the ledger status of a fingerprint, or model.StatusUnknown if it
// has never been recorded.
func (s *SQLite) Get(ctx context.Context, fingerprint string) (model.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM fingerprints WHERE key = ?`, fingerprint,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StatusUnknown, nil
	}
	if err != nil {
		return model.StatusUnknown, fmt.Errorf("get fingerprint: %w", err)
	}
	return model.Status(status), nil
}

// Set records a status for a fingerprint. A delivered fingerprint keeps its
// status whatever is written afterwards.
func (s *SQLite) Set(ctx context.Context, fingerprint string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("set fingerprint: invalid status %q", string(status))
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (key, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
		 WHERE fingerprints.status <> ?`,
		fingerprint, string(status), now, string(model.StatusDelivered),
	)
	if err != nil {
		return fmt.Errorf("set fingerprint: %w", err)
	}
	return nil
}

// Counts returns how many fingerprints are recorded per status.
func (s *SQLite) Counts(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM fingerprints GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}
