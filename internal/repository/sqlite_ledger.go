package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_attempts (
	job_id          TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	document_name   TEXT NOT NULL,
	status          TEXT NOT NULL,
	pages_requested INTEGER NOT NULL DEFAULT 0,
	pages_charged   INTEGER NOT NULL DEFAULT 0,
	failed_sections INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT,
	started_at      INTEGER NOT NULL,
	finished_at     INTEGER
);
CREATE TABLE IF NOT EXISTS usage_charges (
	job_id     TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	pages      INTEGER NOT NULL,
	charged_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS usage_charges_owner_idx ON usage_charges (owner_id);
`

// SQLiteLedger keeps the ledger in a local SQLite file, for single-machine
// runs and tests. Timestamps are stored as unix milliseconds.
type SQLiteLedger struct {
	db  *sql.DB
	log *slog.Logger
}

type sqliteConfig struct {
	busyTimeout int
	mkdirAll    bool
}

type SQLiteOption func(*sqliteConfig)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds.
func WithBusyTimeout(ms int) SQLiteOption { return func(c *sqliteConfig) { c.busyTimeout = ms } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() SQLiteOption { return func(c *sqliteConfig) { c.mkdirAll = true } }

// OpenSQLiteLedger opens (or creates) the ledger at path. ":memory:" gives a
// private in-memory ledger.
func OpenSQLiteLedger(path string, log *slog.Logger, opts ...SQLiteOption) (*SQLiteLedger, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := sqliteConfig{busyTimeout: 10_000}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite ledger mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range append(pragmas, sqliteSchema) {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite ledger init: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ledger ping: %w", err)
	}
	log.Info("sqlite ledger opened", "path", path)
	return &SQLiteLedger{db: db, log: log}, nil
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }

func (l *SQLiteLedger) RecordAttempt(ctx context.Context, a Attempt) error {
	var finished *int64
	if a.FinishedAt != nil {
		ms := a.FinishedAt.UnixMilli()
		finished = &ms
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO extraction_attempts
	(job_id, owner_id, document_name, status, pages_requested, pages_charged, failed_sections, error_message, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
	status = excluded.status,
	pages_charged = excluded.pages_charged,
	failed_sections = excluded.failed_sections,
	error_message = excluded.error_message,
	finished_at = excluded.finished_at`,
		a.JobID.String(), a.OwnerID, a.DocumentName, a.Status, a.PagesRequested, a.PagesCharged, a.FailedSections,
		nullableString(a.Error), a.StartedAt.UnixMilli(), finished,
	)
	if err != nil {
		l.log.Error("ledger.attempt.failed", "job_id", a.JobID, "err", err)
		return fmt.Errorf("record attempt %s: %w: %v", a.JobID, common.ErrDatabase, err)
	}
	return nil
}

func (l *SQLiteLedger) GetAttempt(ctx context.Context, jobID uuid.UUID) (*Attempt, error) {
	var (
		a        Attempt
		id       string
		errMsg   sql.NullString
		started  int64
		finished sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx, `
SELECT job_id, owner_id, document_name, status, pages_requested, pages_charged, failed_sections, error_message, started_at, finished_at
FROM extraction_attempts WHERE job_id = ?`, jobID.String()).
		Scan(&id, &a.OwnerID, &a.DocumentName, &a.Status, &a.PagesRequested, &a.PagesCharged, &a.FailedSections, &errMsg, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "attempt "+jobID.String(), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt %s: %w: %v", jobID, common.ErrDatabase, err)
	}
	a.JobID = jobID
	a.Error = errMsg.String
	a.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		a.FinishedAt = &t
	}
	return &a, nil
}

func (l *SQLiteLedger) Charge(ctx context.Context, ownerID string, jobID uuid.UUID, pages int) error {
	if pages <= 0 {
		return nil
	}
	res, err := l.db.ExecContext(ctx, `
INSERT INTO usage_charges (job_id, owner_id, pages, charged_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (job_id) DO NOTHING`, jobID.String(), ownerID, pages, time.Now().UnixMilli())
	if err != nil {
		l.log.Error("ledger.charge.failed", "job_id", jobID, "owner_id", ownerID, "err", err)
		return fmt.Errorf("charge %s: %w: %v", jobID, common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		l.log.Warn("ledger.charge.duplicate", "job_id", jobID, "owner_id", ownerID)
		return nil
	}
	l.log.Info("ledger.charge.ok", "job_id", jobID, "owner_id", ownerID, "pages", pages)
	return nil
}

func (l *SQLiteLedger) PagesCharged(ctx context.Context, ownerID string) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(pages), 0) FROM usage_charges WHERE owner_id = ?`, ownerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("pages charged for %s: %w: %v", ownerID, common.ErrDatabase, err)
	}
	return total, nil
}
