package signing

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("signing", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("expected default port 8090, got %d", cfg.Port)
	}
	if cfg.DBPath != "signing.db" {
		t.Fatalf("expected default db path signing.db, got %q", cfg.DBPath)
	}
	if cfg.RetryInterval != time.Minute {
		t.Fatalf("expected default retry interval 1m, got %v", cfg.RetryInterval)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("SHEQDESK_SIGNING_PORT", "9090")

	fs := flag.NewFlagSet("signing", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9091", "-db", "/tmp/s.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9091 {
		t.Fatalf("expected port override 9091, got %d", cfg.Port)
	}
	if cfg.DBPath != "/tmp/s.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
}

func TestParseConfigEnvWithoutFlag(t *testing.T) {
	t.Setenv("SHEQDESK_SIGNING_PORT", "9090")

	fs := flag.NewFlagSet("signing", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected env port 9090, got %d", cfg.Port)
	}
}
