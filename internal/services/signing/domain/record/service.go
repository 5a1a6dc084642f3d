package record

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/platform/id"
)

// SignSlotRequest is one atomic slot-signing request against the store.
type SignSlotRequest struct {
	RecordID       string
	Role           string
	SignatureImage []byte
	Via            Via
	TokenID        string
	At             time.Time
}

// Store is the domain persistence boundary for record lifecycle behavior.
// Implementations must execute every state-changing call as one atomic unit:
// guards are re-evaluated against current row state inside the same
// transaction that writes the effect.
type Store interface {
	PutRecord(ctx context.Context, rec Record) error
	GetRecord(ctx context.Context, recordID string) (Record, error)
	SubmitRecord(ctx context.Context, recordID string, at time.Time) (Record, error)
	SignSlot(ctx context.Context, req SignSlotRequest) (Record, error)
	VoidRecord(ctx context.Context, recordID string, at time.Time) (Record, error)
}

// Service orchestrates record signing lifecycle behavior.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs record lifecycle use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{store: store, clock: clock, newID: newID}
}

// ErrStoreNotConfigured is reported when the service has no persistence wiring.
var ErrStoreNotConfigured = apperrors.New(apperrors.CodeUnknown, "record store is not configured")

// Create creates a draft record with its required signer slots.
func (s *Service) Create(ctx context.Context, input CreateInput) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrStoreNotConfigured
	}
	rec, err := Create(input, s.clock, s.newID)
	if err != nil {
		return Record{}, err
	}
	if err := s.store.PutRecord(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Submit moves a draft record to awaiting_signatures.
func (s *Service) Submit(ctx context.Context, recordID string) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrStoreNotConfigured
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return Record{}, apperrors.New(apperrors.CodeRecordEmptyID, "record id is required")
	}
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if err := ValidateSubmit(rec.Status); err != nil {
		return Record{}, err
	}
	return s.store.SubmitRecord(ctx, recordID, s.nowUTC())
}

// SignInput describes one slot-signing attempt.
type SignInput struct {
	RecordID       string
	Role           string
	SignatureImage []byte
	Via            string
	TokenID        string
}

// SignSlot attaches a signature to one unsigned slot. The slot write, the
// token consumption (remote path), and the completion transition commit as
// one atomic unit in the store.
func (s *Service) SignSlot(ctx context.Context, input SignInput) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrStoreNotConfigured
	}
	recordID := strings.TrimSpace(input.RecordID)
	if recordID == "" {
		return Record{}, apperrors.New(apperrors.CodeRecordEmptyID, "record id is required")
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		return Record{}, apperrors.New(apperrors.CodeSlotEmptyRole, "signer slot role is required")
	}
	via, err := ParseVia(input.Via)
	if err != nil {
		return Record{}, err
	}
	if err := ValidateSignature(input.SignatureImage); err != nil {
		return Record{}, err
	}

	tokenID := strings.TrimSpace(input.TokenID)
	switch via {
	case ViaRemoteToken:
		if tokenID == "" {
			return Record{}, apperrors.New(apperrors.CodeTokenRequired, "remote signing requires a token")
		}
	case ViaInPerson:
		// In-person signing never consumes a token.
		tokenID = ""
	}

	// Pre-check for a precise error; the store re-evaluates the status
	// inside the transaction that writes the signature.
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if err := ValidateSignable(rec.Status); err != nil {
		return Record{}, err
	}

	return s.store.SignSlot(ctx, SignSlotRequest{
		RecordID:       recordID,
		Role:           role,
		SignatureImage: input.SignatureImage,
		Via:            via,
		TokenID:        tokenID,
		At:             s.nowUTC(),
	})
}

// Void administratively cancels a non-completed record.
func (s *Service) Void(ctx context.Context, recordID string) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrStoreNotConfigured
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return Record{}, apperrors.New(apperrors.CodeRecordEmptyID, "record id is required")
	}
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if err := ValidateVoid(rec.Status); err != nil {
		return Record{}, err
	}
	return s.store.VoidRecord(ctx, recordID, s.nowUTC())
}

// Get returns the full record including slot signatures. Callable at any
// status; the rendering collaborator reads finalized records through it.
func (s *Service) Get(ctx context.Context, recordID string) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrStoreNotConfigured
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return Record{}, apperrors.New(apperrors.CodeRecordEmptyID, "record id is required")
	}
	return s.store.GetRecord(ctx, recordID)
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
