package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"card-price-alerts/internal/config"
)

// ErrStorageIO marks failures of the backing medium (disk full, permission
// denied, database unavailable). Track/untrack callers surface it; sweeps
// log it and move on.
var ErrStorageIO = errors.New("storage: io failure")

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
}

// Store persists tracked items keyed by group and item id.
//
// Reads never fail: an absent or unreadable medium is reported as empty.
// Mutations return an error wrapping ErrStorageIO when the write could not
// complete.
type Store interface {
	GetGroup(ctx context.Context, groupID string) Group
	AddItem(ctx context.Context, groupID, itemID string, item TrackedItem) error
	RemoveItem(ctx context.Context, groupID, itemID string) (bool, error)
	GetAll(ctx context.Context) Snapshot
	UpdateLastPrices(ctx context.Context, groupID, itemID string, prices Prices) error
	Close() error
}

// Open builds the tracked-item store selected by cfg.Backend.
func Open(cfg config.StoreConfig, logger zerolog.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store.path is required")
	}

	switch strings.ToLower(cfg.Backend) {
	case "", config.StoreBackendFile:
		return NewFileStore(cfg.Path, logger), nil
	case config.StoreBackendSQLite:
		return NewSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
