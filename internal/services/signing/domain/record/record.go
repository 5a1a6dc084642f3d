// Package record models signable records and their signing lifecycle.
package record

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/platform/id"
)

// Kind identifies one signable record kind.
type Kind string

const (
	// KindAppointment is a health-and-safety appointment letter.
	KindAppointment Kind = "appointment"
	// KindIncidentInvestigation is an incident investigation file.
	KindIncidentInvestigation Kind = "incident_investigation"
	// KindRiskAssessment is a risk assessment document.
	KindRiskAssessment Kind = "risk_assessment"
	// KindPpeIssue is a personal protective equipment issue slip.
	KindPpeIssue Kind = "ppe_issue"
)

// Kinds lists every valid record kind, used for exhaustive dispatch.
func Kinds() []Kind {
	return []Kind{KindAppointment, KindIncidentInvestigation, KindRiskAssessment, KindPpeIssue}
}

// ParseKind converts a kind label to a Kind value.
func ParseKind(label string) (Kind, error) {
	value := Kind(strings.ToLower(strings.TrimSpace(label)))
	for _, kind := range Kinds() {
		if value == kind {
			return kind, nil
		}
	}
	return "", apperrors.WithMetadata(apperrors.CodeRecordInvalidKind, "unknown record kind", map[string]string{"Kind": label})
}

// Status represents the signing lifecycle status of a record.
type Status string

const (
	// StatusDraft means the record has not been submitted for signing.
	StatusDraft Status = "draft"
	// StatusAwaitingSignatures means at least one required slot is unsigned.
	StatusAwaitingSignatures Status = "awaiting_signatures"
	// StatusCompleted means every required slot has been signed.
	StatusCompleted Status = "completed"
	// StatusVoided means the record was administratively cancelled.
	StatusVoided Status = "voided"
)

// Terminal reports whether no further signing activity is accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusVoided
}

// Via identifies how a signature was captured.
type Via string

const (
	// ViaInPerson means the signer drew the signature in an authenticated session.
	ViaInPerson Via = "in_person"
	// ViaRemoteToken means the signer used a single-use remote link.
	ViaRemoteToken Via = "remote_token"
)

// ParseVia converts a capture-path label to a Via value.
func ParseVia(label string) (Via, error) {
	switch Via(strings.ToLower(strings.TrimSpace(label))) {
	case ViaInPerson:
		return ViaInPerson, nil
	case ViaRemoteToken:
		return ViaRemoteToken, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeSignatureInvalidVia, "unknown signature capture path", map[string]string{"Via": label})
	}
}

// SignerSlot is one required signature position on a record.
type SignerSlot struct {
	Role           string
	Position       int
	SignatureImage []byte
	SignedAt       *time.Time
	SignedVia      Via
}

// Signed reports whether this slot already holds a signature.
func (s SignerSlot) Signed() bool {
	return s.SignedAt != nil
}

// Record is one signable record with its required signer slots.
type Record struct {
	ID          string
	Kind        Kind
	Status      Status
	PayloadJSON string
	Slots       []SignerSlot
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinalizedAt *time.Time
}

// UnsignedSlots counts the slots still awaiting a signature.
func (r Record) UnsignedSlots() int {
	remaining := 0
	for _, slot := range r.Slots {
		if !slot.Signed() {
			remaining++
		}
	}
	return remaining
}

// Slot returns the slot with the given role.
func (r Record) Slot(role string) (SignerSlot, bool) {
	for _, slot := range r.Slots {
		if slot.Role == role {
			return slot, true
		}
	}
	return SignerSlot{}, false
}

// CreateInput describes the metadata needed to create a signable record.
type CreateInput struct {
	Kind        string
	PayloadJSON string
	SlotRoles   []string
}

// Create creates a new draft record with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Record, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	kind, err := ParseKind(input.Kind)
	if err != nil {
		return Record{}, err
	}
	roles, err := normalizeSlotRoles(input.SlotRoles)
	if err != nil {
		return Record{}, err
	}

	recordID, err := idGenerator()
	if err != nil {
		return Record{}, fmt.Errorf("generate record id: %w", err)
	}

	createdAt := now().UTC()
	slots := make([]SignerSlot, 0, len(roles))
	for i, role := range roles {
		slots = append(slots, SignerSlot{Role: role, Position: i})
	}
	payload := strings.TrimSpace(input.PayloadJSON)
	if payload == "" {
		payload = "{}"
	}
	return Record{
		ID:          recordID,
		Kind:        kind,
		Status:      StatusDraft,
		PayloadJSON: payload,
		Slots:       slots,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

func normalizeSlotRoles(roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, apperrors.New(apperrors.CodeRecordNoSigners, "at least one signer slot is required")
	}
	normalized := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			return nil, apperrors.New(apperrors.CodeSlotEmptyRole, "signer slot role is required")
		}
		if _, dup := seen[role]; dup {
			return nil, apperrors.WithMetadata(apperrors.CodeRecordDuplicateRole, "duplicate signer slot role", map[string]string{"Role": role})
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized, nil
}

// ValidateSubmit checks that a record in the given status may move to
// awaiting_signatures.
func ValidateSubmit(status Status) error {
	switch status {
	case StatusDraft:
		return nil
	case StatusAwaitingSignatures:
		return apperrors.New(apperrors.CodeRecordInvalidStatus, "record is already awaiting signatures")
	default:
		return apperrors.WithMetadata(apperrors.CodeRecordNotSignable, "record is no longer signable", map[string]string{"Status": string(status)})
	}
}

// ValidateSignable checks that a record in the given status accepts slot
// signatures. Draft records are signable: the first signature submits the
// record to awaiting_signatures in the same transaction as the slot write.
func ValidateSignable(status Status) error {
	if status == StatusDraft || status == StatusAwaitingSignatures {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeRecordNotSignable, "record is not accepting signatures", map[string]string{"Status": string(status)})
}

// ValidateVoid checks that a record in the given status may be voided.
// Voided is permanently terminal; a fresh signing cycle requires a new record.
func ValidateVoid(status Status) error {
	switch status {
	case StatusDraft, StatusAwaitingSignatures:
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodeRecordNotSignable, "record is already terminal", map[string]string{"Status": string(status)})
	}
}
