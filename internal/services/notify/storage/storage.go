// Package storage defines the persistence boundary of the notify service.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested delivery record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// DeliveryStatus identifies one delivery lifecycle state.
type DeliveryStatus string

const (
	// DeliveryStatusPending means the delivery is queued or awaiting retry.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusDelivered means the channel delivery completed.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed means the delivery ran out of attempts.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DeliveryRecord stores one outbound delivery attempt state.
type DeliveryRecord struct {
	ID            string
	Recipient     string
	Topic         string
	PayloadJSON   string
	Link          string
	Locale        string
	Status        DeliveryStatus
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeliveredAt   *time.Time
}

// DeliveryStore persists outbound delivery attempt state.
type DeliveryStore interface {
	PutDelivery(ctx context.Context, rec DeliveryRecord) error
	GetDelivery(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	ListDueDeliveries(ctx context.Context, limit int, now time.Time) ([]DeliveryRecord, error)
	MarkDeliveryRetry(ctx context.Context, deliveryID string, attemptCount int, nextAttemptAt time.Time, lastError string) error
	MarkDeliverySucceeded(ctx context.Context, deliveryID string, deliveredAt time.Time) error
	MarkDeliveryFailed(ctx context.Context, deliveryID string, at time.Time, lastError string) error
}
