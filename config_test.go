package clubAuth

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.OTP.TTL != 5*time.Minute || cfg.Handoff.TTL != 10*time.Minute || cfg.PasswordReset.TTL != 10*time.Minute {
		t.Fatalf("unexpected default ttls %+v", cfg)
	}
	if cfg.OTP.MaxAttempts != 3 || cfg.PasswordReset.MaxAttempts != 3 {
		t.Fatal("default attempts must be 3")
	}
	if cfg.Reaper.Interval != 5*time.Minute {
		t.Fatalf("unexpected reaper interval %v", cfg.Reaper.Interval)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "otp ttl zero",
			mutate:    func(c *Config) { c.OTP.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "otp attempts too high",
			mutate:    func(c *Config) { c.OTP.MaxAttempts = 11 },
			wantValid: false,
		},
		{
			name:      "otp eight digits",
			mutate:    func(c *Config) { c.OTP.CodeDigits = 8 },
			wantValid: true,
		},
		{
			name:      "otp four digits",
			mutate:    func(c *Config) { c.OTP.CodeDigits = 4 },
			wantValid: false,
		},
		{
			name:      "handoff relative link",
			mutate:    func(c *Config) { c.Handoff.LinkBaseURL = "/login/handoff" },
			wantValid: false,
		},
		{
			name:      "handoff https link",
			mutate:    func(c *Config) { c.Handoff.LinkBaseURL = "https://club.test/handoff" },
			wantValid: true,
		},
		{
			name:      "reset min length zero",
			mutate:    func(c *Config) { c.PasswordReset.MinPasswordLength = 0 },
			wantValid: false,
		},
		{
			name:      "token signing ed25519",
			mutate:    func(c *Config) { c.Token.SigningMethod = "ed25519" },
			wantValid: true,
		},
		{
			name:      "token signing rs256",
			mutate:    func(c *Config) { c.Token.SigningMethod = "rs256" },
			wantValid: false,
		},
		{
			name:      "token leeway too large",
			mutate:    func(c *Config) { c.Token.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "reaper interval too small",
			mutate:    func(c *Config) { c.Reaper.Interval = time.Millisecond },
			wantValid: false,
		},
		{
			name: "reaper disabled ignores interval",
			mutate: func(c *Config) {
				c.Reaper.Enabled = false
				c.Reaper.Interval = 0
			},
			wantValid: true,
		},
		{
			name:      "notify no workers",
			mutate:    func(c *Config) { c.Notify.Workers = 0 },
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "empty redis prefix",
			mutate:    func(c *Config) { c.Store.RedisPrefix = "" },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("secret")
	out := cloneConfig(cfg)
	cfg.Token.PrivateKey[0] = 'X'
	if string(out.Token.PrivateKey) != "secret" {
		t.Fatal("cloneConfig must deep-copy key material")
	}
}
