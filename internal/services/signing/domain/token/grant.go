package token

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

// GrantClaims captures validated signing-link grant claims.
type GrantClaims struct {
	TokenID   string
	RecordID  string
	TargetRef string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	RecordID  string `json:"record_id"`
	TargetRef string `json:"target_ref"`
}

// SignGrant mints the link grant for a token. The grant is transport only:
// redemption is still decided by the stored token row.
func SignGrant(tok Token, cfg GrantConfig) (string, error) {
	if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return "", errors.New("grant signer is not configured")
	}
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ID:        tok.ID,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
		RecordID:  tok.RecordID,
		TargetRef: tok.TargetRef,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.PrivateKey)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "sign link grant", err)
	}
	return signed, nil
}

// ValidateGrant verifies a signing-link grant and returns its claims.
// Expiry of the stored token is authoritative; the grant exp is checked as
// a cheap first gate before any store read.
func ValidateGrant(grant string, cfg GrantConfig) (GrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.PublicKey) != ed25519.PublicKeySize {
		return GrantClaims{}, errors.New("grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.PublicKey, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return GrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return GrantClaims{}, apperrors.WithMetadata(apperrors.CodeTokenGrantInvalid, "link grant issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return GrantClaims{}, apperrors.WithMetadata(apperrors.CodeTokenGrantInvalid, "link grant audience mismatch", map[string]string{"Field": "audience"})
	}
	if parsed.ID == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant exp is required")
	}
	if strings.TrimSpace(parsed.RecordID) == "" || strings.TrimSpace(parsed.TargetRef) == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant target is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenExpired, "link grant is expired")
	}

	claims := GrantClaims{
		TokenID:   parsed.ID,
		RecordID:  parsed.RecordID,
		TargetRef: parsed.TargetRef,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenGrantInvalid, "link grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
