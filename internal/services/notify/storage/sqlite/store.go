// Package sqlite provides SQLite-backed persistence for outbound deliveries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sheqdesk/signing/internal/platform/storage/sqlitemigrate"
	"github.com/sheqdesk/signing/internal/services/notify/storage"
	"github.com/sheqdesk/signing/internal/services/notify/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for delivery state.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a notify SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// PutDelivery inserts one delivery row.
func (s *Store) PutDelivery(ctx context.Context, rec storage.DeliveryRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	var deliveredAt sql.NullInt64
	if rec.DeliveredAt != nil {
		deliveredAt = sql.NullInt64{Int64: toMillis(*rec.DeliveredAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO notify_deliveries (id, recipient, topic, payload_json, link, locale, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Recipient, rec.Topic, rec.PayloadJSON, rec.Link, rec.Locale,
		string(rec.Status), rec.AttemptCount, toMillis(rec.NextAttemptAt), rec.LastError,
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt), deliveredAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetDelivery loads one delivery row.
func (s *Store) GetDelivery(ctx context.Context, deliveryID string) (storage.DeliveryRecord, error) {
	if err := s.ready(); err != nil {
		return storage.DeliveryRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, recipient, topic, payload_json, link, locale, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
		FROM notify_deliveries WHERE id = ?`, deliveryID)
	rec, err := scanDelivery(row.Scan)
	if err == sql.ErrNoRows {
		return storage.DeliveryRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.DeliveryRecord{}, fmt.Errorf("read delivery: %w", err)
	}
	return rec, nil
}

// ListDueDeliveries returns pending deliveries whose retry time has passed.
func (s *Store) ListDueDeliveries(ctx context.Context, limit int, now time.Time) ([]storage.DeliveryRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, recipient, topic, payload_json, link, locale, status, attempt_count, next_attempt_at, last_error, created_at, updated_at, delivered_at
		FROM notify_deliveries
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at LIMIT ?`,
		string(storage.DeliveryStatusPending), toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list due deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []storage.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

// MarkDeliveryRetry records a failed attempt and schedules the next one.
func (s *Store) MarkDeliveryRetry(ctx context.Context, deliveryID string, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	return s.markDelivery(ctx, deliveryID, `
		UPDATE notify_deliveries
		SET attempt_count = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		attemptCount, toMillis(nextAttemptAt), lastError, toMillis(nextAttemptAt),
		deliveryID, string(storage.DeliveryStatusPending))
}

// MarkDeliverySucceeded finalizes a delivery.
func (s *Store) MarkDeliverySucceeded(ctx context.Context, deliveryID string, deliveredAt time.Time) error {
	return s.markDelivery(ctx, deliveryID, `
		UPDATE notify_deliveries
		SET status = ?, delivered_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(storage.DeliveryStatusDelivered), toMillis(deliveredAt), toMillis(deliveredAt),
		deliveryID, string(storage.DeliveryStatusPending))
}

// MarkDeliveryFailed abandons a delivery after its final attempt.
func (s *Store) MarkDeliveryFailed(ctx context.Context, deliveryID string, at time.Time, lastError string) error {
	return s.markDelivery(ctx, deliveryID, `
		UPDATE notify_deliveries
		SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(storage.DeliveryStatusFailed), lastError, toMillis(at),
		deliveryID, string(storage.DeliveryStatusPending))
}

func (s *Store) markDelivery(ctx context.Context, deliveryID, query string, args ...any) error {
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark delivery: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark delivery result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanDelivery(scan func(dest ...any) error) (storage.DeliveryRecord, error) {
	var rec storage.DeliveryRecord
	var status string
	var nextAttemptAt, createdAt, updatedAt int64
	var deliveredAt sql.NullInt64

	err := scan(&rec.ID, &rec.Recipient, &rec.Topic, &rec.PayloadJSON, &rec.Link, &rec.Locale,
		&status, &rec.AttemptCount, &nextAttemptAt, &rec.LastError, &createdAt, &updatedAt, &deliveredAt)
	if err != nil {
		return storage.DeliveryRecord{}, err
	}
	rec.Status = storage.DeliveryStatus(status)
	rec.NextAttemptAt = fromMillis(nextAttemptAt)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	if deliveredAt.Valid {
		t := fromMillis(deliveredAt.Int64)
		rec.DeliveredAt = &t
	}
	return rec, nil
}

var _ storage.DeliveryStore = (*Store)(nil)
