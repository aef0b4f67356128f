package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extraction_attempts (
	job_id          UUID PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	document_name   TEXT NOT NULL,
	status          TEXT NOT NULL,
	pages_requested INTEGER NOT NULL DEFAULT 0,
	pages_charged   INTEGER NOT NULL DEFAULT 0,
	failed_sections INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS usage_charges (
	job_id     UUID PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	pages      INTEGER NOT NULL,
	charged_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS usage_charges_owner_idx ON usage_charges (owner_id);
`

type PostgresLedger struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresLedger(pool *pgxpool.Pool, log *slog.Logger) *PostgresLedger {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresLedger{pool: pool, log: log}
}

// Migrate creates the ledger tables when missing.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, postgresSchema); err != nil {
		return common.NewAppError("DB_MIGRATE", "create ledger tables", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	return nil
}

func (l *PostgresLedger) RecordAttempt(ctx context.Context, a Attempt) error {
	_, err := l.pool.Exec(ctx, `
INSERT INTO extraction_attempts
	(job_id, owner_id, document_name, status, pages_requested, pages_charged, failed_sections, error_message, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (job_id) DO UPDATE SET
	status = EXCLUDED.status,
	pages_charged = EXCLUDED.pages_charged,
	failed_sections = EXCLUDED.failed_sections,
	error_message = EXCLUDED.error_message,
	finished_at = EXCLUDED.finished_at`,
		a.JobID, a.OwnerID, a.DocumentName, a.Status, a.PagesRequested, a.PagesCharged, a.FailedSections,
		nullableString(a.Error), a.StartedAt, a.FinishedAt,
	)
	if err != nil {
		l.log.Error("ledger.attempt.failed", "job_id", a.JobID, "err", err)
		return fmt.Errorf("record attempt %s: %w: %v", a.JobID, common.ErrDatabase, err)
	}
	l.log.Debug("ledger.attempt.ok", "job_id", a.JobID, "status", a.Status)
	return nil
}

func (l *PostgresLedger) GetAttempt(ctx context.Context, jobID uuid.UUID) (*Attempt, error) {
	var (
		a      Attempt
		errMsg *string
	)
	err := l.pool.QueryRow(ctx, `
SELECT job_id, owner_id, document_name, status, pages_requested, pages_charged, failed_sections, error_message, started_at, finished_at
FROM extraction_attempts WHERE job_id = $1`, jobID).
		Scan(&a.JobID, &a.OwnerID, &a.DocumentName, &a.Status, &a.PagesRequested, &a.PagesCharged, &a.FailedSections, &errMsg, &a.StartedAt, &a.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "attempt "+jobID.String(), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt %s: %w: %v", jobID, common.ErrDatabase, err)
	}
	if errMsg != nil {
		a.Error = *errMsg
	}
	return &a, nil
}

func (l *PostgresLedger) Charge(ctx context.Context, ownerID string, jobID uuid.UUID, pages int) error {
	if pages <= 0 {
		return nil
	}
	tag, err := l.pool.Exec(ctx, `
INSERT INTO usage_charges (job_id, owner_id, pages, charged_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (job_id) DO NOTHING`, jobID, ownerID, pages, time.Now().UTC())
	if err != nil {
		l.log.Error("ledger.charge.failed", "job_id", jobID, "owner_id", ownerID, "err", err)
		return fmt.Errorf("charge %s: %w: %v", jobID, common.ErrDatabase, err)
	}
	if tag.RowsAffected() == 0 {
		l.log.Warn("ledger.charge.duplicate", "job_id", jobID, "owner_id", ownerID)
		return nil
	}
	l.log.Info("ledger.charge.ok", "job_id", jobID, "owner_id", ownerID, "pages", pages)
	return nil
}

func (l *PostgresLedger) PagesCharged(ctx context.Context, ownerID string) (int, error) {
	var total int
	err := l.pool.QueryRow(ctx, `SELECT COALESCE(SUM(pages), 0) FROM usage_charges WHERE owner_id = $1`, ownerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("pages charged for %s: %w: %v", ownerID, common.ErrDatabase, err)
	}
	return total, nil
}
