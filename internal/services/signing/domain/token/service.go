package token

import (
	"context"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
	"github.com/sheqdesk/signing/internal/platform/id"
)

// Store is the domain persistence boundary for tokens. IssueToken must
// mark any live prior token for the same (record, target) superseded and
// insert the new token in one atomic unit.
type Store interface {
	IssueToken(ctx context.Context, tok Token) error
	GetToken(ctx context.Context, tokenID string) (Token, error)
}

// ErrStoreNotConfigured is reported when the service has no persistence wiring.
var ErrStoreNotConfigured = apperrors.New(apperrors.CodeUnknown, "token store is not configured")

// Issued is the result of issuing one signing link.
type Issued struct {
	Token Token
	Grant string
	Link  string
}

// Preview is the read-only view a remote party sees before acting. Reading
// it never consumes the token.
type Preview struct {
	TokenID   string
	RecordID  string
	TargetRef string
	ExpiresAt time.Time
}

// Service issues and previews single-use signing links.
type Service struct {
	store Store
	cfg   Config
	grant GrantConfig
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs token use-cases.
func NewService(store Store, cfg Config, grant GrantConfig, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	if grant.Now == nil {
		grant.Now = clock
	}
	return &Service{store: store, cfg: cfg, grant: grant, clock: clock, newID: newID}
}

// Issue creates, persists, and signs one signing link. Issuing supersedes
// any live prior token for the same target; delivery is a separate step so
// a send failure never blocks issuance.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Issued, error) {
	if s == nil || s.store == nil {
		return Issued{}, ErrStoreNotConfigured
	}
	if input.TTL == 0 {
		input.TTL = s.cfg.DefaultTTL
	}
	tok, err := Issue(input, s.clock, s.newID)
	if err != nil {
		return Issued{}, err
	}
	if err := s.store.IssueToken(ctx, tok); err != nil {
		return Issued{}, err
	}
	grant, err := SignGrant(tok, s.grant)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: tok, Grant: grant, Link: s.cfg.LinkURL(grant)}, nil
}

// Preview validates a link grant and reports what it authorizes without
// consuming anything.
func (s *Service) Preview(ctx context.Context, grant string) (Preview, error) {
	if s == nil || s.store == nil {
		return Preview{}, ErrStoreNotConfigured
	}
	claims, err := ValidateGrant(grant, s.grant)
	if err != nil {
		return Preview{}, err
	}
	tok, err := s.store.GetToken(ctx, claims.TokenID)
	if err != nil {
		return Preview{}, err
	}
	if err := ValidateBinding(tok, claims.RecordID, claims.TargetRef); err != nil {
		return Preview{}, err
	}
	if err := Redeemable(tok, s.clock()); err != nil {
		return Preview{}, err
	}
	return Preview{
		TokenID:   tok.ID,
		RecordID:  tok.RecordID,
		TargetRef: tok.TargetRef,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// Resolve validates a link grant and returns the stored token it references
// after checking the grant's claimed binding against the stored row. The
// caller passes the token ID into the state-changing operation whose
// transaction performs the actual consumption.
func (s *Service) Resolve(ctx context.Context, grant string) (Token, error) {
	if s == nil || s.store == nil {
		return Token{}, ErrStoreNotConfigured
	}
	claims, err := ValidateGrant(grant, s.grant)
	if err != nil {
		return Token{}, err
	}
	tok, err := s.store.GetToken(ctx, claims.TokenID)
	if err != nil {
		return Token{}, err
	}
	if err := ValidateBinding(tok, claims.RecordID, claims.TargetRef); err != nil {
		return Token{}, err
	}
	return tok, nil
}
