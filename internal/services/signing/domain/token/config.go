package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// GrantConfig holds link grant signing and verification material.
type GrantConfig struct {
	Issuer     string
	Audience   string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	Now        func() time.Time
}

// Config controls signing-link timing and addressing.
//
// These values are read at startup so operator-controlled defaults can be
// tuned without changing runtime code paths.
type Config struct {
	BaseURL    string        `env:"SHEQDESK_SIGNING_LINK_BASE_URL" envDefault:"http://localhost:8090/sign"`
	DefaultTTL time.Duration `env:"SHEQDESK_SIGNING_LINK_TTL"      envDefault:"72h"`
	Issuer     string        `env:"SHEQDESK_SIGNING_LINK_ISSUER"   envDefault:"sheqdesk-signing"`
	Audience   string        `env:"SHEQDESK_SIGNING_LINK_AUDIENCE" envDefault:"sheqdesk-remote-signer"`
	PrivateKey string        `env:"SHEQDESK_SIGNING_LINK_PRIVATE_KEY"`
}

// LoadConfigFromEnv loads link configuration, falling back to the struct
// tag defaults when parsing fails.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8090/sign"
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 72 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "sheqdesk-signing"
	}
	if cfg.Audience == "" {
		cfg.Audience = "sheqdesk-remote-signer"
	}
	return cfg
}

// GrantConfig builds grant signing material from the loaded configuration.
// When no private key is configured an ephemeral key pair is generated, so
// links stop verifying across restarts; production deployments set
// SHEQDESK_SIGNING_LINK_PRIVATE_KEY.
func (c Config) GrantConfig(now func() time.Time) (GrantConfig, error) {
	if now == nil {
		now = time.Now
	}
	cfg := GrantConfig{
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Now:      now,
	}

	keyValue := strings.TrimSpace(c.PrivateKey)
	if keyValue == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return GrantConfig{}, fmt.Errorf("generate ephemeral grant key: %w", err)
		}
		cfg.PrivateKey = priv
		cfg.PublicKey = pub
		return cfg, nil
	}

	keyBytes, err := decodeBase64(keyValue)
	if err != nil {
		return GrantConfig{}, fmt.Errorf("decode grant private key: %w", err)
	}
	switch len(keyBytes) {
	case ed25519.SeedSize:
		priv := ed25519.NewKeyFromSeed(keyBytes)
		cfg.PrivateKey = priv
		cfg.PublicKey = priv.Public().(ed25519.PublicKey)
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(keyBytes)
		cfg.PrivateKey = priv
		cfg.PublicKey = priv.Public().(ed25519.PublicKey)
	default:
		return GrantConfig{}, fmt.Errorf("grant private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	return cfg, nil
}

// LinkURL builds the outbound signing link carrying a grant.
func (c Config) LinkURL(grant string) string {
	return c.BaseURL + "?grant=" + url.QueryEscape(grant)
}

func decodeBase64(value string) ([]byte, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
