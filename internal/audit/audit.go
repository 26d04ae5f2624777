// Package audit records an append-only log of conversions served by the
// gateway — spec, byte counts, duration, and outcome — for operational
// traceability. It is backed by modernc.org/sqlite (pure Go, no CGO),
// opened with the same WAL/busy-timeout/single-connection and
// idempotent-migration conventions as the module it is grounded on.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeoutMillis = 5000

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS conversions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		correlation_id TEXT    NOT NULL,
		from_fmt       TEXT    NOT NULL,
		from_rev       TEXT    NOT NULL,
		to_fmt         TEXT    NOT NULL,
		to_rev         TEXT    NOT NULL,
		bytes_in       INTEGER NOT NULL DEFAULT 0,
		bytes_out      INTEGER NOT NULL DEFAULT 0,
		duration_ms    INTEGER NOT NULL DEFAULT 0,
		result         TEXT    NOT NULL,
		error          TEXT    NOT NULL DEFAULT '',
		created_at     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at)`,
}

// migrate creates the schema idempotently, tracking schemaVersion the
// same way the sqlite memory module does.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("audit: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("audit: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: migrate: %w\nstatement: %s", err, stmt)
		}
	}
	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("audit: record schema version: %w", err)
	}
	return nil
}

// Log is an append-only conversion audit log.
type Log struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path, in
// WAL mode with a single connection, and migrates its schema.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Entry is one row appended by Record.
type Entry struct {
	CorrelationID                  string
	FromFmt, FromRev, ToFmt, ToRev string
	BytesIn, BytesOut              int64
	Duration                       time.Duration
	Result                         string // "completed", "failed", or "cancelled"
	Err                            error
}

// Record appends one conversion entry. Errors writing the audit log are
// returned to the caller but should never abort an in-flight
// conversion — audit is observational, not transactional.
func (l *Log) Record(ctx context.Context, e Entry) error {
	errText := ""
	if e.Err != nil {
		errText = e.Err.Error()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO conversions
			(correlation_id, from_fmt, from_rev, to_fmt, to_rev, bytes_in, bytes_out, duration_ms, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CorrelationID, e.FromFmt, e.FromRev, e.ToFmt, e.ToRev,
		e.BytesIn, e.BytesOut, e.Duration.Milliseconds(), e.Result, errText,
	)
	if err != nil {
		return fmt.Errorf("audit: record conversion: %w", err)
	}
	return nil
}

// Recent returns the n most recently recorded entries, most recent
// first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT correlation_id, from_fmt, from_rev, to_fmt, to_rev, bytes_in, bytes_out, duration_ms, result, error
		FROM conversions
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		var errText string
		if err := rows.Scan(&e.CorrelationID, &e.FromFmt, &e.FromRev, &e.ToFmt, &e.ToRev,
			&e.BytesIn, &e.BytesOut, &durationMS, &e.Result, &errText); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if errText != "" {
			e.Err = fmt.Errorf("%s", errText)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: recent rows: %w", err)
	}
	return out, nil
}
