package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed schema/sqlite.sql
var sqliteSchemaSQL string

const (
	selectGroupSQL = `SELECT item_id, destination, last_prices, created_at, created_by
    FROM tracked_items
    WHERE group_id = ?;`

	selectAllSQL = `SELECT group_id, item_id, destination, last_prices, created_at, created_by
    FROM tracked_items;`

	upsertItemSQL = `INSERT INTO tracked_items (
        group_id, item_id, destination, last_prices, created_at, created_by
    ) VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT (group_id, item_id) DO UPDATE
    SET destination = excluded.destination,
        last_prices = excluded.last_prices,
        created_at  = excluded.created_at,
        created_by  = excluded.created_by;`

	deleteItemSQL = `DELETE FROM tracked_items WHERE group_id = ? AND item_id = ?;`

	updatePricesSQL = `UPDATE tracked_items SET last_prices = ? WHERE group_id = ? AND item_id = ?;`
)

// SQLiteStore is the transactional alternative to FileStore. Groups exist
// only as long as they have rows, so empty groups are never persisted.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (and initialises) the database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError("create database directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, ioError("open database", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, ioError("initialise schema", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}, nil
}

// GetGroup returns the items tracked by groupID, or an empty group.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) Group {
	rows, err := s.db.QueryContext(ctx, selectGroupSQL, groupID)
	if err != nil {
		s.logger.Warn().Err(err).Str("group_id", groupID).Msg("query group failed, treating as empty")
		return Group{}
	}
	defer rows.Close()

	group := Group{}
	for rows.Next() {
		var itemID string
		item, err := scanItem(rows, &itemID)
		if err != nil {
			s.logger.Warn().Err(err).Str("group_id", groupID).Msg("skip unreadable row")
			continue
		}
		group[itemID] = item
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn().Err(err).Str("group_id", groupID).Msg("iterate group failed")
	}
	return group
}

// GetAll returns every tracked item.
func (s *SQLiteStore) GetAll(ctx context.Context) Snapshot {
	rows, err := s.db.QueryContext(ctx, selectAllSQL)
	if err != nil {
		s.logger.Warn().Err(err).Msg("query snapshot failed, treating as empty")
		return Snapshot{}
	}
	defer rows.Close()

	snap := Snapshot{}
	for rows.Next() {
		var groupID, itemID string
		item, err := scanItem(rows, &groupID, &itemID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("skip unreadable row")
			continue
		}
		group, ok := snap[groupID]
		if !ok {
			group = Group{}
			snap[groupID] = group
		}
		group[itemID] = item
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("iterate snapshot failed")
	}
	return snap
}

// AddItem inserts or overwrites an item.
func (s *SQLiteStore) AddItem(ctx context.Context, groupID, itemID string, item TrackedItem) error {
	prices, err := encodePrices(item.LastPrices)
	if err != nil {
		return ioError("encode prices", err)
	}

	_, err = s.db.ExecContext(ctx, upsertItemSQL,
		groupID,
		itemID,
		item.Destination,
		prices,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.CreatedBy,
	)
	if err != nil {
		return ioError("upsert tracked item", err)
	}
	return nil
}

// RemoveItem deletes an item and reports whether it existed.
func (s *SQLiteStore) RemoveItem(ctx context.Context, groupID, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, deleteItemSQL, groupID, itemID)
	if err != nil {
		return false, ioError("delete tracked item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, ioError("delete tracked item", err)
	}
	return affected > 0, nil
}

// UpdateLastPrices replaces the baseline of an existing item; missing items
// are left alone.
func (s *SQLiteStore) UpdateLastPrices(ctx context.Context, groupID, itemID string, prices Prices) error {
	encoded, err := encodePrices(prices)
	if err != nil {
		return ioError("encode prices", err)
	}
	if _, err := s.db.ExecContext(ctx, updatePricesSQL, encoded, groupID, itemID); err != nil {
		return ioError("update last prices", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodePrices(prices Prices) (string, error) {
	if prices == nil {
		prices = Prices{}
	}
	data, err := json.Marshal(prices)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// scanItem reads the trailing item columns after the given key columns.
func scanItem(rows *sql.Rows, keys ...*string) (TrackedItem, error) {
	var (
		destination string
		pricesRaw   string
		createdRaw  string
		createdBy   string
	)

	dest := make([]any, 0, len(keys)+4)
	for _, key := range keys {
		dest = append(dest, key)
	}
	dest = append(dest, &destination, &pricesRaw, &createdRaw, &createdBy)

	if err := rows.Scan(dest...); err != nil {
		return TrackedItem{}, err
	}

	prices := Prices{}
	if err := json.Unmarshal([]byte(pricesRaw), &prices); err != nil {
		return TrackedItem{}, fmt.Errorf("decode last_prices: %w", err)
	}
	if prices == nil {
		prices = Prices{}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return TrackedItem{}, fmt.Errorf("parse created_at: %w", err)
	}

	return TrackedItem{
		Destination: destination,
		LastPrices:  prices,
		CreatedAt:   createdAt,
		CreatedBy:   createdBy,
	}, nil
}

var _ Store = (*SQLiteStore)(nil)
