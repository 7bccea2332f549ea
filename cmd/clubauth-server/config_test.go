package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Engine.OTP.TTL != 5*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Engine.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
auth:
  otp_ttl: 2m
  otp_max_attempts: 5
  handoff_link_base: https://club.example/handoff
audit:
  enabled: true
members:
  - id: m-1
    email: ana@club.test
`)
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("TOKEN_SIGNING_SECRET", "from-env-secret")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("file addr not applied: %q", cfg.HTTPAddr)
	}
	if cfg.Engine.OTP.TTL != 90*time.Second {
		t.Fatalf("env must override file, got %v", cfg.Engine.OTP.TTL)
	}
	if cfg.Engine.OTP.MaxAttempts != 5 || cfg.Engine.Handoff.LinkBaseURL != "https://club.example/handoff" {
		t.Fatalf("file auth settings not applied: %+v", cfg.Engine)
	}
	if !cfg.Engine.Audit.Enabled || len(cfg.Members) != 1 || cfg.Members[0].Email != "ana@club.test" {
		t.Fatalf("unexpected audit/members: %+v", cfg)
	}
	if string(cfg.Engine.Token.PrivateKey) != "from-env-secret" {
		t.Fatal("signing secret not applied")
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "auth:\n  reset_ttl: soon\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigRequiresSecretWithoutEphemeral(t *testing.T) {
	t.Setenv("TOKEN_ALLOW_EPHEMERAL", "false")
	if _, err := loadConfig(""); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "later")
	t.Setenv("X_BOOL", "maybe")
	if envInt("X_INT", 4) != 4 || envDuration("X_DUR", time.Second) != time.Second || !envBool("X_BOOL", true) {
		t.Fatal("invalid env values must fall back")
	}
}

func TestSeedDirectory(t *testing.T) {
	members, err := seedDirectory([]memberSeed{{ID: "m-1", Email: "ana@club.test"}, {ID: "m-1", Email: "x@club.test"}})
	if err == nil || members != nil {
		t.Fatal("duplicate ids must fail seeding")
	}
}
