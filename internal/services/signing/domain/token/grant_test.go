package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

func testGrantConfig(t *testing.T, clock func() time.Time) GrantConfig {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return GrantConfig{
		Issuer:     "sheqdesk-signing",
		Audience:   "sheqdesk-remote-signer",
		PrivateKey: priv,
		PublicKey:  pub,
		Now:        clock,
	}
}

func testToken(t *testing.T, clock func() time.Time) Token {
	t.Helper()
	issuedAt := clock()
	return Token{
		ID:        "tok-1",
		RecordID:  "rec-1",
		TargetRef: "appointee",
		Recipient: "thandi@example.com",
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(72 * time.Hour),
	}
}

func TestGrantRoundtrip(t *testing.T) {
	t.Parallel()

	clock := fixedClock(t)
	cfg := testGrantConfig(t, clock)
	tok := testToken(t, clock)

	grant, err := SignGrant(tok, cfg)
	if err != nil {
		t.Fatalf("SignGrant: %v", err)
	}
	claims, err := ValidateGrant(grant, cfg)
	if err != nil {
		t.Fatalf("ValidateGrant: %v", err)
	}
	if claims.TokenID != tok.ID || claims.RecordID != tok.RecordID || claims.TargetRef != tok.TargetRef {
		t.Errorf("claims = %+v, want token %+v", claims, tok)
	}
	if !claims.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, tok.ExpiresAt)
	}
}

func TestValidateGrantRejections(t *testing.T) {
	t.Parallel()

	clock := fixedClock(t)
	cfg := testGrantConfig(t, clock)
	tok := testToken(t, clock)
	grant, err := SignGrant(tok, cfg)
	if err != nil {
		t.Fatalf("SignGrant: %v", err)
	}

	otherKey := testGrantConfig(t, clock)

	tests := []struct {
		name  string
		grant string
		cfg   GrantConfig
		code  apperrors.Code
	}{
		{name: "empty grant", grant: "  ", cfg: cfg, code: apperrors.CodeTokenGrantInvalid},
		{name: "garbage grant", grant: "not.a.jwt", cfg: cfg, code: apperrors.CodeTokenGrantInvalid},
		{name: "wrong key", grant: grant, cfg: otherKey, code: apperrors.CodeTokenGrantInvalid},
		{
			name:  "issuer mismatch",
			grant: grant,
			cfg: GrantConfig{
				Issuer: "someone-else", Audience: cfg.Audience,
				PrivateKey: cfg.PrivateKey, PublicKey: cfg.PublicKey, Now: clock,
			},
			code: apperrors.CodeTokenGrantInvalid,
		},
		{
			name:  "audience mismatch",
			grant: grant,
			cfg: GrantConfig{
				Issuer: cfg.Issuer, Audience: "another-audience",
				PrivateKey: cfg.PrivateKey, PublicKey: cfg.PublicKey, Now: clock,
			},
			code: apperrors.CodeTokenGrantInvalid,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ValidateGrant(tc.grant, tc.cfg)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Errorf("code = %q, want %q (err %v)", got, tc.code, err)
			}
		})
	}
}

func TestValidateGrantExpired(t *testing.T) {
	t.Parallel()

	clock := fixedClock(t)
	cfg := testGrantConfig(t, clock)
	tok := testToken(t, clock)
	grant, err := SignGrant(tok, cfg)
	if err != nil {
		t.Fatalf("SignGrant: %v", err)
	}

	cfg.Now = func() time.Time { return tok.ExpiresAt.Add(time.Second) }
	if _, err := ValidateGrant(grant, cfg); apperrors.CodeOf(err) != apperrors.CodeTokenExpired {
		t.Errorf("expired grant err = %v", err)
	}
}

func TestSignGrantRequiresKey(t *testing.T) {
	t.Parallel()

	clock := fixedClock(t)
	if _, err := SignGrant(testToken(t, clock), GrantConfig{Issuer: "x", Audience: "y"}); err == nil {
		t.Error("expected error without a private key")
	}
}
