package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attempt is one extraction job as seen by billing: what was asked for and
// how it ended.
type Attempt struct {
	JobID          uuid.UUID
	OwnerID        string
	DocumentName   string
	Status         string
	PagesRequested int
	PagesCharged   int
	FailedSections int
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// UsageLedger records attempts and charges pages to owners. Charging is
// idempotent per job.
type UsageLedger interface {
	RecordAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, jobID uuid.UUID) (*Attempt, error)
	Charge(ctx context.Context, ownerID string, jobID uuid.UUID, pages int) error
	PagesCharged(ctx context.Context, ownerID string) (int, error)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var (
	_ UsageLedger = (*PostgresLedger)(nil)
	_ UsageLedger = (*SQLiteLedger)(nil)
)
