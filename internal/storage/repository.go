package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

//go:embed schema/postgres.sql
var postgresSchemaSQL string

const (
	insertAlertSQL = `INSERT INTO alerts (
        sweep_id,
        group_id,
        item_id,
        source_key,
        old_price,
        new_price,
        change_pct,
        threshold_pct,
        destination,
        delivered,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        sweep_id,
        group_id,
        item_id,
        source_key,
        old_price::text,
        new_price::text,
        change_pct::text,
        threshold_pct::text,
        destination,
        delivered,
        error,
        created_at
    FROM alerts
    WHERE ($1::text = '' OR group_id = $1::text)
    ORDER BY created_at DESC
    LIMIT $2;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, groupID string, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// AuditStore keeps the alert log in PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore wires a pgx pool into an AuditStore.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *AuditStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the alerts table when missing.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("ensure alerts schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *AuditStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort: the session lock dies with the connection anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *AuditStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAlert persists an alert emission.
func (s *AuditStore) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var errMsg interface{}
	if alert.Error != nil {
		errMsg = *alert.Error
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SweepID,
		alert.GroupID,
		alert.ItemID,
		alert.SourceKey,
		alert.OldPrice.String(),
		alert.NewPrice.String(),
		alert.ChangePct.String(),
		alert.ThresholdPct.String(),
		alert.Destination,
		alert.Delivered,
		errMsg,
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts, optionally restricted to a group.
func (s *AuditStore) ListRecentAlerts(ctx context.Context, groupID string, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, groupID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts and reports how many went.
func (s *AuditStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete alerts before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanAlert(rows pgx.Rows) (AlertRecord, error) {
	var (
		rec          AlertRecord
		oldStr       string
		newStr       string
		changeStr    string
		thresholdStr string
		errMsg       sql.NullString
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.SweepID,
		&rec.GroupID,
		&rec.ItemID,
		&rec.SourceKey,
		&oldStr,
		&newStr,
		&changeStr,
		&thresholdStr,
		&rec.Destination,
		&rec.Delivered,
		&errMsg,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var convErr error
	if rec.OldPrice, convErr = decimal.NewFromString(oldStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse old price: %w", convErr)
	}
	if rec.NewPrice, convErr = decimal.NewFromString(newStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse new price: %w", convErr)
	}
	if rec.ChangePct, convErr = decimal.NewFromString(changeStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse change pct: %w", convErr)
	}
	if rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", convErr)
	}
	if errMsg.Valid {
		msg := errMsg.String
		rec.Error = &msg
	}
	return rec, nil
}

var (
	_ AlertStore     = (*AuditStore)(nil)
	_ AdvisoryLocker = (*AuditStore)(nil)
)
