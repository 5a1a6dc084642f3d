package domain

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sheqdesk/signing/internal/services/notify/storage"
	"github.com/sheqdesk/signing/internal/services/notify/storage/sqlite"
)

type recordingSender struct {
	emails []Email
	err    error
}

func (s *recordingSender) Send(_ context.Context, email Email) error {
	if s.err != nil {
		return s.err
	}
	s.emails = append(s.emails, email)
	return nil
}

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "notify.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestDispatchDelivers(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	sender := &recordingSender{}
	dispatcher := NewDispatcher(store, sender, nil, nil)

	outcome, err := dispatcher.Dispatch(context.Background(), DispatchInput{
		Recipient:   "worker@example.test",
		Topic:       "signing.link.issued",
		PayloadJSON: `{"record_kind":"ppe_issue","role":"employee"}`,
		Link:        "https://sign.example.test/abc",
		Locale:      "en",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if outcome.Status != storage.DeliveryStatusDelivered {
		t.Errorf("Status = %q, want %q", outcome.Status, storage.DeliveryStatusDelivered)
	}
	if len(sender.emails) != 1 {
		t.Fatalf("len(emails) = %d, want 1", len(sender.emails))
	}
	if !strings.Contains(sender.emails[0].Body, "https://sign.example.test/abc") {
		t.Errorf("Body = %q, want link included", sender.emails[0].Body)
	}

	rec, err := store.GetDelivery(context.Background(), outcome.ID)
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if rec.Status != storage.DeliveryStatusDelivered || rec.DeliveredAt == nil {
		t.Errorf("stored delivery = %q/%v", rec.Status, rec.DeliveredAt)
	}
}

func TestDispatchSendFailureIsWarning(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	sender := &recordingSender{err: errors.New("gateway down")}
	dispatcher := NewDispatcher(store, sender, nil, nil)

	outcome, err := dispatcher.Dispatch(context.Background(), DispatchInput{
		Recipient: "worker@example.test",
		Topic:     "signing.link.issued",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want nil on send failure", err)
	}
	if outcome.Status != storage.DeliveryStatusPending {
		t.Errorf("Status = %q, want %q", outcome.Status, storage.DeliveryStatusPending)
	}
	if outcome.LastError == "" {
		t.Error("LastError empty after failed send")
	}

	rec, err := store.GetDelivery(context.Background(), outcome.ID)
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if rec.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", rec.AttemptCount)
	}
	if !rec.NextAttemptAt.After(rec.CreatedAt) {
		t.Error("NextAttemptAt not pushed into the future")
	}
}

func TestDispatchValidation(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(openTempStore(t), &recordingSender{}, nil, nil)

	if _, err := dispatcher.Dispatch(context.Background(), DispatchInput{Topic: "x"}); !errors.Is(err, ErrRecipientRequired) {
		t.Errorf("Dispatch() error = %v, want ErrRecipientRequired", err)
	}
	if _, err := dispatcher.Dispatch(context.Background(), DispatchInput{Recipient: "a@b"}); !errors.Is(err, ErrTopicRequired) {
		t.Errorf("Dispatch() error = %v, want ErrTopicRequired", err)
	}

	var nilDispatcher *Dispatcher
	if _, err := nilDispatcher.Dispatch(context.Background(), DispatchInput{}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Errorf("Dispatch() error = %v, want ErrStoreNotConfigured", err)
	}
}

func TestProcessDueRetriesThenDelivers(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	sender := &recordingSender{err: errors.New("gateway down")}

	current := time.Now().UTC()
	clock := func() time.Time { return current }
	dispatcher := NewDispatcher(store, sender, clock, nil)

	outcome, err := dispatcher.Dispatch(context.Background(), DispatchInput{
		Recipient: "worker@example.test",
		Topic:     "election.ballot.invited",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	// Not due yet.
	outcomes, err := dispatcher.ProcessDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("len(outcomes) = %d, want 0 before backoff elapses", len(outcomes))
	}

	sender.err = nil
	current = current.Add(2 * time.Minute)

	outcomes, err = dispatcher.ProcessDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	if outcomes[0].Status != storage.DeliveryStatusDelivered {
		t.Errorf("Status = %q, want %q", outcomes[0].Status, storage.DeliveryStatusDelivered)
	}

	rec, err := store.GetDelivery(context.Background(), outcome.ID)
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if rec.Status != storage.DeliveryStatusDelivered {
		t.Errorf("stored Status = %q, want %q", rec.Status, storage.DeliveryStatusDelivered)
	}
}

func TestProcessDueAbandonsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	sender := &recordingSender{err: errors.New("gateway down")}

	current := time.Now().UTC()
	clock := func() time.Time { return current }
	dispatcher := NewDispatcher(store, sender, clock, nil)

	outcome, err := dispatcher.Dispatch(context.Background(), DispatchInput{
		Recipient: "worker@example.test",
		Topic:     "signing.link.issued",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	for i := 0; i < maxAttempts; i++ {
		current = current.Add(time.Hour)
		if _, err := dispatcher.ProcessDue(context.Background(), 10); err != nil {
			t.Fatalf("ProcessDue() error = %v", err)
		}
	}

	rec, err := store.GetDelivery(context.Background(), outcome.ID)
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if rec.Status != storage.DeliveryStatusFailed {
		t.Errorf("Status = %q, want %q", rec.Status, storage.DeliveryStatusFailed)
	}
	if rec.LastError == "" {
		t.Error("LastError empty after abandonment")
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
	}
	for _, tc := range tests {
		if got := retryBackoff(tc.attempt); got != tc.want {
			t.Errorf("retryBackoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
