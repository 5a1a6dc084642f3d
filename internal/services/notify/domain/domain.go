// Package domain orchestrates outbound delivery of signing links and ballot
// invitations. A failed send is recorded and retried later; it never blocks
// the operation that requested it.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sheqdesk/signing/internal/platform/id"
	"github.com/sheqdesk/signing/internal/services/notify/render"
	"github.com/sheqdesk/signing/internal/services/notify/storage"
)

var (
	// ErrStoreNotConfigured indicates the dispatcher is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("delivery store is not configured")
	// ErrRecipientRequired indicates a recipient address is required.
	ErrRecipientRequired = errors.New("delivery recipient is required")
	// ErrTopicRequired indicates a delivery topic is required.
	ErrTopicRequired = errors.New("delivery topic is required")
)

const (
	maxAttempts      = 5
	baseRetryBackoff = time.Minute
)

// Email is one rendered outbound message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one rendered message over a concrete channel.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Delivery reports the outcome of one dispatch or retry pass.
type Delivery struct {
	ID          string
	Recipient   string
	Topic       string
	Status      storage.DeliveryStatus
	Attempts    int
	LastError   string
	DeliveredAt *time.Time
}

// DispatchInput describes one outbound delivery request.
type DispatchInput struct {
	Recipient   string
	Topic       string
	PayloadJSON string
	Link        string
	Locale      string
}

// Dispatcher records delivery intents and drives send attempts.
type Dispatcher struct {
	store  storage.DeliveryStore
	sender Sender
	clock  func() time.Time
	newID  func() (string, error)
}

// NewDispatcher wires a dispatcher. Nil clock and newID fall back to
// production defaults.
func NewDispatcher(store storage.DeliveryStore, sender Sender, clock func() time.Time, newID func() (string, error)) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Dispatcher{store: store, sender: sender, clock: clock, newID: newID}
}

// Dispatch records one delivery and immediately attempts the first send.
// A send failure is captured on the returned Delivery, not returned as an
// error, so callers treat it as a warning.
func (d *Dispatcher) Dispatch(ctx context.Context, input DispatchInput) (Delivery, error) {
	if d == nil || d.store == nil {
		return Delivery{}, ErrStoreNotConfigured
	}

	input.Recipient = strings.TrimSpace(input.Recipient)
	if input.Recipient == "" {
		return Delivery{}, ErrRecipientRequired
	}
	input.Topic = strings.TrimSpace(input.Topic)
	if input.Topic == "" {
		return Delivery{}, ErrTopicRequired
	}

	deliveryID, err := d.newID()
	if err != nil {
		return Delivery{}, err
	}

	now := d.clock().UTC()
	rec := storage.DeliveryRecord{
		ID:            deliveryID,
		Recipient:     input.Recipient,
		Topic:         input.Topic,
		PayloadJSON:   input.PayloadJSON,
		Link:          input.Link,
		Locale:        input.Locale,
		Status:        storage.DeliveryStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.store.PutDelivery(ctx, rec); err != nil {
		return Delivery{}, err
	}

	return d.attempt(ctx, rec)
}

// ProcessDue retries pending deliveries whose backoff has elapsed. It
// returns the outcomes of the deliveries it attempted.
func (d *Dispatcher) ProcessDue(ctx context.Context, limit int) ([]Delivery, error) {
	if d == nil || d.store == nil {
		return nil, ErrStoreNotConfigured
	}

	due, err := d.store.ListDueDeliveries(ctx, limit, d.clock().UTC())
	if err != nil {
		return nil, err
	}

	outcomes := make([]Delivery, 0, len(due))
	for _, rec := range due {
		outcome, err := d.attempt(ctx, rec)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (d *Dispatcher) attempt(ctx context.Context, rec storage.DeliveryRecord) (Delivery, error) {
	now := d.clock().UTC()
	attempt := rec.AttemptCount + 1

	sendErr := d.send(ctx, rec)
	if sendErr == nil {
		if err := d.store.MarkDeliverySucceeded(ctx, rec.ID, now); err != nil {
			return Delivery{}, err
		}
		return Delivery{
			ID:          rec.ID,
			Recipient:   rec.Recipient,
			Topic:       rec.Topic,
			Status:      storage.DeliveryStatusDelivered,
			Attempts:    attempt,
			DeliveredAt: &now,
		}, nil
	}

	if attempt >= maxAttempts {
		if err := d.store.MarkDeliveryFailed(ctx, rec.ID, now, sendErr.Error()); err != nil {
			return Delivery{}, err
		}
		return Delivery{
			ID:        rec.ID,
			Recipient: rec.Recipient,
			Topic:     rec.Topic,
			Status:    storage.DeliveryStatusFailed,
			Attempts:  attempt,
			LastError: sendErr.Error(),
		}, nil
	}

	nextAttemptAt := now.Add(retryBackoff(attempt))
	if err := d.store.MarkDeliveryRetry(ctx, rec.ID, attempt, nextAttemptAt, sendErr.Error()); err != nil {
		return Delivery{}, err
	}
	return Delivery{
		ID:        rec.ID,
		Recipient: rec.Recipient,
		Topic:     rec.Topic,
		Status:    storage.DeliveryStatusPending,
		Attempts:  attempt,
		LastError: sendErr.Error(),
	}, nil
}

func (d *Dispatcher) send(ctx context.Context, rec storage.DeliveryRecord) error {
	if d.sender == nil {
		return errors.New("no sender configured")
	}

	rendered := render.Render(render.Printer(rec.Locale), render.Input{
		Topic:       rec.Topic,
		PayloadJSON: rec.PayloadJSON,
		Link:        rec.Link,
	})
	return d.sender.Send(ctx, Email{
		To:      rec.Recipient,
		Subject: rendered.Subject,
		Body:    rendered.BodyText,
	})
}

// Backoff doubles per attempt: 1m, 2m, 4m, 8m.
func retryBackoff(attempt int) time.Duration {
	backoff := baseRetryBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}
