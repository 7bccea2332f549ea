package clubAuth

import (
	"errors"
	"net/url"
	"time"
)

// Config holds every policy knob of the orchestrator. Start from
// [DefaultConfig] and override what you need.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	OTP           OTPConfig
	Handoff       HandoffConfig
	PasswordReset PasswordResetConfig
	Token         TokenConfig
	Store         StoreConfig
	Reaper        ReaperConfig
	Notify        NotifyConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// OTPConfig controls numeric login codes.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	CodeDigits  int
}

// HandoffConfig controls cross-device login links.
type HandoffConfig struct {
	TTL time.Duration
	// LinkBaseURL is the page the second device opens. The handoff token is
	// appended as the "token" query parameter.
	LinkBaseURL string
}

// PasswordResetConfig controls the two-phase reset flow.
type PasswordResetConfig struct {
	TTL               time.Duration
	MaxAttempts       int
	CodeDigits        int
	MinPasswordLength int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the built-in token issuer. It is ignored when a
// custom issuer is supplied with [Builder.WithTokenIssuer], except for
// LoginTTL.
type TokenConfig struct {
	LoginTTL      time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
RUNTIME CONFIG
====================================
*/

// StoreConfig applies when the engine is built with [Builder.WithRedis].
type StoreConfig struct {
	RedisPrefix string
	RedisGrace  time.Duration
}

// ReaperConfig controls the background expiry sweep.
type ReaperConfig struct {
	Enabled  bool
	Interval time.Duration
}

// NotifyConfig controls asynchronous notification delivery.
type NotifyConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 5 minute login codes,
// 10 minute handoff links and reset sessions, three attempts per code, and a
// 5 minute reaper interval.
func DefaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			TTL:         5 * time.Minute,
			MaxAttempts: 3,
			CodeDigits:  6,
		},
		Handoff: HandoffConfig{
			TTL:         10 * time.Minute,
			LinkBaseURL: "http://localhost:3000/login/handoff",
		},
		PasswordReset: PasswordResetConfig{
			TTL:               10 * time.Minute,
			MaxAttempts:       3,
			CodeDigits:        6,
			MinPasswordLength: 6,
		},
		Token: TokenConfig{
			LoginTTL:      24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "clubauth",
		},
		Store: StoreConfig{
			RedisPrefix: "clubauth",
			RedisGrace:  10 * time.Minute,
		},
		Reaper: ReaperConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Notify: NotifyConfig{
			Workers:     2,
			QueueSize:   256,
			SendTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Key material is checked by
// [Builder.Build] when the built-in issuer is used.
func (c *Config) Validate() error {
	// OTP
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxAttempts <= 0 || c.OTP.MaxAttempts > 10 {
		return errors.New("OTP MaxAttempts must be between 1 and 10")
	}
	if c.OTP.CodeDigits < 6 || c.OTP.CodeDigits > 10 {
		return errors.New("OTP CodeDigits must be between 6 and 10")
	}

	// Handoff
	if c.Handoff.TTL <= 0 {
		return errors.New("Handoff TTL must be > 0")
	}
	link, err := url.Parse(c.Handoff.LinkBaseURL)
	if err != nil || link.Scheme == "" || link.Host == "" {
		return errors.New("Handoff LinkBaseURL must be an absolute URL")
	}

	// Password reset
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.PasswordReset.MaxAttempts <= 0 || c.PasswordReset.MaxAttempts > 10 {
		return errors.New("PasswordReset MaxAttempts must be between 1 and 10")
	}
	if c.PasswordReset.CodeDigits < 6 || c.PasswordReset.CodeDigits > 10 {
		return errors.New("PasswordReset CodeDigits must be between 6 and 10")
	}
	if c.PasswordReset.MinPasswordLength <= 0 {
		return errors.New("PasswordReset MinPasswordLength must be > 0")
	}

	// Token
	if c.Token.LoginTTL <= 0 {
		return errors.New("Token LoginTTL must be > 0")
	}
	if c.Token.SigningMethod != "hs256" && c.Token.SigningMethod != "ed25519" {
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}
	if c.Store.RedisGrace < 0 {
		return errors.New("Store RedisGrace must be >= 0")
	}

	// Reaper
	if c.Reaper.Enabled && c.Reaper.Interval < time.Second {
		return errors.New("Reaper Interval must be >= 1s when the reaper is enabled")
	}

	// Notify
	if c.Notify.Workers <= 0 {
		return errors.New("Notify Workers must be > 0")
	}
	if c.Notify.QueueSize <= 0 {
		return errors.New("Notify QueueSize must be > 0")
	}
	if c.Notify.SendTimeout <= 0 {
		return errors.New("Notify SendTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
