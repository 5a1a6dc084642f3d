// Package token provides single-use remote signing capabilities.
//
// A token authorizes exactly one remote action: filling one signer slot or
// casting one ballot. The stored row is the authority on consumption; the
// link handed to the recipient is a signed grant (see grant.go) whose jti
// references the stored token.
package token

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/platform/id"
)

// Token is one single-use remote signing capability.
type Token struct {
	ID           string
	RecordID     string
	TargetRef    string
	Recipient    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	SupersededAt *time.Time
}

// IssueInput describes the metadata needed to issue a token.
type IssueInput struct {
	RecordID  string
	TargetRef string
	Recipient string
	TTL       time.Duration
}

// Issue creates a new token with a generated ID and expiry. Persisting it,
// including superseding any live prior token for the same (record, target),
// is the store's job.
func Issue(input IssueInput, now func() time.Time, idGenerator func() (string, error)) (Token, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := normalizeIssueInput(input)
	if err != nil {
		return Token{}, err
	}

	tokenID, err := idGenerator()
	if err != nil {
		return Token{}, fmt.Errorf("generate token id: %w", err)
	}

	issuedAt := now().UTC()
	return Token{
		ID:        tokenID,
		RecordID:  normalized.RecordID,
		TargetRef: normalized.TargetRef,
		Recipient: normalized.Recipient,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(normalized.TTL),
	}, nil
}

func normalizeIssueInput(input IssueInput) (IssueInput, error) {
	input.RecordID = strings.TrimSpace(input.RecordID)
	if input.RecordID == "" {
		return IssueInput{}, apperrors.New(apperrors.CodeRecordEmptyID, "record id is required")
	}
	input.TargetRef = strings.TrimSpace(input.TargetRef)
	if input.TargetRef == "" {
		return IssueInput{}, apperrors.New(apperrors.CodeSlotEmptyRole, "token target is required")
	}
	input.Recipient = strings.TrimSpace(input.Recipient)
	if input.Recipient == "" {
		return IssueInput{}, apperrors.New(apperrors.CodeTokenEmptyRecipient, "token recipient is required")
	}
	if input.TTL <= 0 {
		return IssueInput{}, apperrors.New(apperrors.CodeTokenInvalidTTL, "token ttl must be positive")
	}
	return input, nil
}

// Redeemable reports whether the token may still authorize its effect at
// the given instant. Expiry is evaluated lazily here; no background sweeper
// exists.
func Redeemable(tok Token, now time.Time) error {
	if tok.ConsumedAt != nil {
		return apperrors.New(apperrors.CodeTokenAlreadyConsumed, "token was already consumed")
	}
	if tok.SupersededAt != nil {
		return apperrors.New(apperrors.CodeTokenSuperseded, "token was superseded by a newer link")
	}
	if !now.UTC().Before(tok.ExpiresAt) {
		return apperrors.New(apperrors.CodeTokenExpired, "token is expired")
	}
	return nil
}

// ValidateBinding checks that the token authorizes the given target.
func ValidateBinding(tok Token, recordID string, targetRef string) error {
	if tok.RecordID != recordID || tok.TargetRef != targetRef {
		return apperrors.WithMetadata(apperrors.CodeTokenTargetMismatch, "token is bound to a different target", map[string]string{
			"RecordID":  tok.RecordID,
			"TargetRef": tok.TargetRef,
		})
	}
	return nil
}
