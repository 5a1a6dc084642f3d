package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sheqdesk/signing/internal/services/notify/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "notify.db"))
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

func testDelivery(id string) storage.DeliveryRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return storage.DeliveryRecord{
		ID:            id,
		Recipient:     "worker@example.test",
		Topic:         "signing.link.issued",
		PayloadJSON:   `{"record_kind":"ppe_issue"}`,
		Link:          "https://sign.example.test/abc",
		Locale:        "en",
		Status:        storage.DeliveryStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPutDeliveryRoundtrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	rec := testDelivery("d-1")
	if err := store.PutDelivery(ctx, rec); err != nil {
		t.Fatalf("PutDelivery() error = %v", err)
	}

	got, err := store.GetDelivery(ctx, "d-1")
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if got.Recipient != rec.Recipient || got.Topic != rec.Topic || got.Status != storage.DeliveryStatusPending {
		t.Errorf("GetDelivery() = %+v", got)
	}
	if !got.NextAttemptAt.Equal(rec.NextAttemptAt) {
		t.Errorf("NextAttemptAt = %v, want %v", got.NextAttemptAt, rec.NextAttemptAt)
	}

	if err := store.PutDelivery(ctx, rec); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate PutDelivery() error = %v, want ErrConflict", err)
	}
	if _, err := store.GetDelivery(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetDelivery() missing error = %v, want ErrNotFound", err)
	}
}

func TestListDueDeliveries(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := testDelivery("due")
	due.NextAttemptAt = now.Add(-time.Minute)
	later := testDelivery("later")
	later.NextAttemptAt = now.Add(time.Hour)
	done := testDelivery("done")
	done.NextAttemptAt = now.Add(-time.Minute)

	for _, rec := range []storage.DeliveryRecord{due, later, done} {
		if err := store.PutDelivery(ctx, rec); err != nil {
			t.Fatalf("PutDelivery(%q) error = %v", rec.ID, err)
		}
	}
	if err := store.MarkDeliverySucceeded(ctx, "done", now); err != nil {
		t.Fatalf("MarkDeliverySucceeded() error = %v", err)
	}

	listed, err := store.ListDueDeliveries(ctx, 10, now)
	if err != nil {
		t.Fatalf("ListDueDeliveries() error = %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "due" {
		t.Errorf("ListDueDeliveries() = %+v, want only %q", listed, "due")
	}
}

func TestMarkDeliveryTransitions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDelivery(ctx, testDelivery("d-1")); err != nil {
		t.Fatalf("PutDelivery() error = %v", err)
	}

	if err := store.MarkDeliveryRetry(ctx, "d-1", 1, now.Add(time.Minute), "gateway down"); err != nil {
		t.Fatalf("MarkDeliveryRetry() error = %v", err)
	}
	got, err := store.GetDelivery(ctx, "d-1")
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if got.AttemptCount != 1 || got.LastError != "gateway down" {
		t.Errorf("after retry = %+v", got)
	}

	if err := store.MarkDeliveryFailed(ctx, "d-1", now, "gateway still down"); err != nil {
		t.Fatalf("MarkDeliveryFailed() error = %v", err)
	}
	got, err = store.GetDelivery(ctx, "d-1")
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	if got.Status != storage.DeliveryStatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, storage.DeliveryStatusFailed)
	}

	// Terminal rows are not marked again.
	if err := store.MarkDeliverySucceeded(ctx, "d-1", now); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkDeliverySucceeded() on failed error = %v, want ErrNotFound", err)
	}
}
