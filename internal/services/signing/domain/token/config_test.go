package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg.BaseURL != "http://localhost:8090/sign" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DefaultTTL != 72*time.Hour {
		t.Errorf("DefaultTTL = %v", cfg.DefaultTTL)
	}
	if cfg.Issuer != "sheqdesk-signing" || cfg.Audience != "sheqdesk-remote-signer" {
		t.Errorf("issuer/audience = %q/%q", cfg.Issuer, cfg.Audience)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("SHEQDESK_SIGNING_LINK_BASE_URL", "https://sign.sheqdesk.example/s")
	t.Setenv("SHEQDESK_SIGNING_LINK_TTL", "24h")

	cfg := LoadConfigFromEnv()
	if cfg.BaseURL != "https://sign.sheqdesk.example/s" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DefaultTTL != 24*time.Hour {
		t.Errorf("DefaultTTL = %v", cfg.DefaultTTL)
	}
}

func TestGrantConfigFromSeed(t *testing.T) {
	t.Parallel()

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("read seed: %v", err)
	}
	cfg := Config{
		Issuer:     "sheqdesk-signing",
		Audience:   "sheqdesk-remote-signer",
		PrivateKey: base64.StdEncoding.EncodeToString(seed),
	}

	grant, err := cfg.GrantConfig(fixedClock(t))
	if err != nil {
		t.Fatalf("GrantConfig: %v", err)
	}
	want := ed25519.NewKeyFromSeed(seed)
	if !want.Equal(grant.PrivateKey) {
		t.Error("private key does not match seed")
	}
	if !want.Public().(ed25519.PublicKey).Equal(grant.PublicKey) {
		t.Error("public key does not match seed")
	}
}

func TestGrantConfigFromFullKey(t *testing.T) {
	t.Parallel()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := Config{PrivateKey: base64.RawStdEncoding.EncodeToString(priv)}

	grant, err := cfg.GrantConfig(fixedClock(t))
	if err != nil {
		t.Fatalf("GrantConfig: %v", err)
	}
	if !priv.Equal(grant.PrivateKey) {
		t.Error("private key does not roundtrip")
	}
}

func TestGrantConfigEphemeralFallback(t *testing.T) {
	t.Parallel()

	grant, err := Config{PrivateKey: "  "}.GrantConfig(fixedClock(t))
	if err != nil {
		t.Fatalf("GrantConfig: %v", err)
	}
	if len(grant.PrivateKey) != ed25519.PrivateKeySize || len(grant.PublicKey) != ed25519.PublicKeySize {
		t.Errorf("ephemeral key sizes = %d/%d", len(grant.PrivateKey), len(grant.PublicKey))
	}
}

func TestGrantConfigRejectsBadKey(t *testing.T) {
	t.Parallel()

	if _, err := (Config{PrivateKey: "%%%not-base64%%%"}).GrantConfig(nil); err == nil {
		t.Error("expected error for undecodable key")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := (Config{PrivateKey: short}).GrantConfig(nil); err == nil {
		t.Error("expected error for wrong key length")
	}
}

func TestLinkURL(t *testing.T) {
	t.Parallel()

	cfg := Config{BaseURL: "https://sign.sheqdesk.example/s"}
	link := cfg.LinkURL("abc+def/ghi")
	if !strings.HasPrefix(link, "https://sign.sheqdesk.example/s?grant=") {
		t.Errorf("link = %q", link)
	}
	if strings.Contains(link, "+") || strings.Contains(link, "/ghi") {
		t.Errorf("grant not escaped: %q", link)
	}
}
