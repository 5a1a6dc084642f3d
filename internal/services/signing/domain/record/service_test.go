package record

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

type fakeStore struct {
	status Status
	put    Record
	signed SignSlotRequest
	err    error
}

func (f *fakeStore) PutRecord(ctx context.Context, rec Record) error {
	f.put = rec
	return f.err
}

func (f *fakeStore) GetRecord(ctx context.Context, recordID string) (Record, error) {
	return Record{ID: recordID, Status: f.status}, f.err
}

func (f *fakeStore) SubmitRecord(ctx context.Context, recordID string, at time.Time) (Record, error) {
	return Record{ID: recordID, Status: StatusAwaitingSignatures}, f.err
}

func (f *fakeStore) SignSlot(ctx context.Context, req SignSlotRequest) (Record, error) {
	f.signed = req
	return Record{ID: req.RecordID, Status: StatusAwaitingSignatures}, f.err
}

func (f *fakeStore) VoidRecord(ctx context.Context, recordID string, at time.Time) (Record, error) {
	return Record{ID: recordID, Status: StatusVoided}, f.err
}

func TestServiceCreatePersists(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := NewService(store, fixedClock(t), staticID("rec-9"))
	rec, err := svc.Create(context.Background(), CreateInput{Kind: "ppe_issue", SlotRoles: []string{"issuer", "recipient"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if store.put.ID != rec.ID {
		t.Errorf("stored %q, returned %q", store.put.ID, rec.ID)
	}
}

func TestServiceSignSlotRemoteRequiresToken(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{}, fixedClock(t), staticID("rec-9"))
	_, err := svc.SignSlot(context.Background(), SignInput{
		RecordID:       "rec-1",
		Role:           "appointee",
		SignatureImage: inkedPNG(t, 24),
		Via:            "remote_token",
	})
	if got := apperrors.CodeOf(err); got != apperrors.CodeTokenRequired {
		t.Errorf("code = %q, want %q", got, apperrors.CodeTokenRequired)
	}
}

func TestServiceSignSlotInPersonDropsToken(t *testing.T) {
	t.Parallel()

	store := &fakeStore{status: StatusAwaitingSignatures}
	svc := NewService(store, fixedClock(t), staticID("rec-9"))
	_, err := svc.SignSlot(context.Background(), SignInput{
		RecordID:       " rec-1 ",
		Role:           " employer ",
		SignatureImage: inkedPNG(t, 24),
		Via:            "in_person",
		TokenID:        "tok-should-be-ignored",
	})
	if err != nil {
		t.Fatalf("SignSlot: %v", err)
	}
	if store.signed.TokenID != "" {
		t.Errorf("in-person sign carried token %q", store.signed.TokenID)
	}
	if store.signed.RecordID != "rec-1" || store.signed.Role != "employer" {
		t.Errorf("request not trimmed: %+v", store.signed)
	}
	if store.signed.At.Location() != time.UTC {
		t.Errorf("At not UTC: %v", store.signed.At)
	}
}

func TestServiceSignSlotValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{}, fixedClock(t), staticID("rec-9"))
	tests := []struct {
		name  string
		input SignInput
		code  apperrors.Code
	}{
		{
			name:  "missing record id",
			input: SignInput{Role: "employer", SignatureImage: inkedPNG(t, 24), Via: "in_person"},
			code:  apperrors.CodeRecordEmptyID,
		},
		{
			name:  "missing role",
			input: SignInput{RecordID: "rec-1", SignatureImage: inkedPNG(t, 24), Via: "in_person"},
			code:  apperrors.CodeSlotEmptyRole,
		},
		{
			name:  "unknown via",
			input: SignInput{RecordID: "rec-1", Role: "employer", SignatureImage: inkedPNG(t, 24), Via: "courier"},
			code:  apperrors.CodeSignatureInvalidVia,
		},
		{
			name:  "blank capture",
			input: SignInput{RecordID: "rec-1", Role: "employer", Via: "in_person"},
			code:  apperrors.CodeSignatureEmpty,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.SignSlot(context.Background(), tc.input)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Errorf("code = %q, want %q (err %v)", got, tc.code, err)
			}
		})
	}
}

func TestServiceSignSlotAcceptsDraft(t *testing.T) {
	t.Parallel()

	store := &fakeStore{status: StatusDraft}
	svc := NewService(store, fixedClock(t), staticID("rec-9"))
	_, err := svc.SignSlot(context.Background(), SignInput{
		RecordID:       "rec-1",
		Role:           "employer",
		SignatureImage: inkedPNG(t, 24),
		Via:            "in_person",
	})
	if err != nil {
		t.Fatalf("SignSlot on draft: %v", err)
	}
	if store.signed.RecordID != "rec-1" {
		t.Errorf("slot write not attempted: %+v", store.signed)
	}
}

func TestServiceSignSlotVoidedRecord(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{status: StatusVoided}, fixedClock(t), staticID("rec-9"))
	_, err := svc.SignSlot(context.Background(), SignInput{
		RecordID:       "rec-1",
		Role:           "employer",
		SignatureImage: inkedPNG(t, 24),
		Via:            "in_person",
	})
	if got := apperrors.CodeOf(err); got != apperrors.CodeRecordNotSignable {
		t.Errorf("code = %q, want %q", got, apperrors.CodeRecordNotSignable)
	}
}

func TestServiceSubmitCompletedRecord(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{status: StatusCompleted}, fixedClock(t), staticID("rec-9"))
	if _, err := svc.Submit(context.Background(), "rec-1"); apperrors.CodeOf(err) != apperrors.CodeRecordNotSignable {
		t.Errorf("Submit on completed err = %v", err)
	}
}

func TestServiceVoidCompletedRecord(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{status: StatusCompleted}, fixedClock(t), staticID("rec-9"))
	if _, err := svc.Void(context.Background(), "rec-1"); apperrors.CodeOf(err) != apperrors.CodeRecordNotSignable {
		t.Errorf("Void on completed err = %v", err)
	}
}

func TestServiceEmptyIDGuards(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{}, fixedClock(t), staticID("rec-9"))
	ctx := context.Background()
	if _, err := svc.Submit(ctx, "  "); apperrors.CodeOf(err) != apperrors.CodeRecordEmptyID {
		t.Errorf("Submit: %v", err)
	}
	if _, err := svc.Void(ctx, ""); apperrors.CodeOf(err) != apperrors.CodeRecordEmptyID {
		t.Errorf("Void: %v", err)
	}
	if _, err := svc.Get(ctx, ""); apperrors.CodeOf(err) != apperrors.CodeRecordEmptyID {
		t.Errorf("Get: %v", err)
	}
}

func TestServiceNilStore(t *testing.T) {
	t.Parallel()

	var svc *Service
	if _, err := svc.Create(context.Background(), CreateInput{}); err != ErrStoreNotConfigured {
		t.Errorf("nil service err = %v", err)
	}
}
