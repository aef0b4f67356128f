package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

// LedgerHandle is an opened ledger plus the func that releases it.
type LedgerHandle struct {
	Ledger  UsageLedger
	Backend string
	Cleanup func()
}

// OpenLedger uses Postgres when a DSN is configured and a SQLite file
// otherwise. inMemory forces a private in-memory SQLite ledger.
func OpenLedger(ctx context.Context, cfg common.DatabaseConfig, inMemory bool, logger *slog.Logger) (*LedgerHandle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if inMemory || cfg.DSN == "" {
		path := cfg.SQLitePath
		if inMemory || path == "" {
			path = ":memory:"
		}
		l, err := OpenSQLiteLedger(path, logger, WithMkdirAll())
		if err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "open sqlite ledger", fmt.Errorf("%w: %v", common.ErrDatabase, err))
		}
		logger.Info("usage ledger ready", "backend", "sqlite", "path", path)
		return &LedgerHandle{
			Ledger:  l,
			Backend: "sqlite",
			Cleanup: func() {
				if err := l.Close(); err != nil {
					logger.Warn("close sqlite ledger", "error", err)
				}
			},
		}, nil
	}

	pool, err := Open(ctx, Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "open postgres pool", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	if err := HealthCheck(ctx, pool, cfg.DialTimeout, logger); err != nil {
		Close(pool, logger)
		return nil, common.NewAppError("DATABASE_ERROR", "postgres health check", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	l := NewPostgresLedger(pool, logger)
	if err := l.Migrate(ctx); err != nil {
		Close(pool, logger)
		return nil, common.NewAppError("DATABASE_ERROR", "migrate ledger", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	logger.Info("usage ledger ready", "backend", "postgres")
	return &LedgerHandle{Ledger: l, Backend: "postgres", Cleanup: func() { Close(pool, logger) }}, nil
}
