package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/clubAuth"
	"gopkg.in/yaml.v3"
)

// serverConfig is the resolved runtime configuration: defaults, then the
// YAML file, then environment overrides.
type serverConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	RedisAddr string

	RabbitMQURL      string
	RabbitMQQueue    string
	RabbitMQExchange string

	// SigningSecret is the HS256 key. Empty with AllowEphemeralKey set
	// generates a random key per process.
	SigningSecret     string
	AllowEphemeralKey bool

	MetricsEnabled bool
	RuntimeMetrics bool

	Engine  clubAuth.Config
	Members []memberSeed
}

type memberSeed struct {
	ID          string `yaml:"id"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`
	Role        string `yaml:"role"`
	Password    string `yaml:"password"`
	Blocked     bool   `yaml:"blocked"`
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Server struct {
		Addr            string `yaml:"addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		LogLevel        string `yaml:"log_level"`
	} `yaml:"server"`
	Dependencies struct {
		RedisAddr        string `yaml:"redis_addr"`
		RabbitMQURL      string `yaml:"rabbitmq_url"`
		RabbitMQQueue    string `yaml:"rabbitmq_queue"`
		RabbitMQExchange string `yaml:"rabbitmq_exchange"`
	} `yaml:"dependencies"`
	Auth struct {
		OTPTTL           string `yaml:"otp_ttl"`
		OTPMaxAttempts   int    `yaml:"otp_max_attempts"`
		HandoffTTL       string `yaml:"handoff_ttl"`
		HandoffLinkBase  string `yaml:"handoff_link_base"`
		ResetTTL         string `yaml:"reset_ttl"`
		ResetMaxAttempts int    `yaml:"reset_max_attempts"`
		MinPassword      int    `yaml:"min_password_length"`
		LoginTokenTTL    string `yaml:"login_token_ttl"`
		TokenIssuer      string `yaml:"token_issuer"`
		ReaperInterval   string `yaml:"reaper_interval"`
	} `yaml:"auth"`
	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
		Runtime bool  `yaml:"runtime"`
	} `yaml:"metrics"`
	Members []memberSeed `yaml:"members"`
}

func loadConfig(path string) (serverConfig, error) {
	cfg := serverConfig{
		HTTPAddr:          ":8080",
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		RabbitMQQueue:     "clubauth.notifications",
		AllowEphemeralKey: true,
		MetricsEnabled:    true,
		Engine:            clubAuth.DefaultConfig(),
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return serverConfig{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return serverConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.HTTPAddr = envOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RedisAddr = envOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RabbitMQURL = envOrDefault("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQQueue = envOrDefault("RABBITMQ_QUEUE", cfg.RabbitMQQueue)
	cfg.RabbitMQExchange = envOrDefault("RABBITMQ_EXCHANGE", cfg.RabbitMQExchange)
	cfg.SigningSecret = envOrDefault("TOKEN_SIGNING_SECRET", cfg.SigningSecret)
	cfg.AllowEphemeralKey = envBool("TOKEN_ALLOW_EPHEMERAL", cfg.AllowEphemeralKey)
	cfg.MetricsEnabled = envBool("METRICS_ENABLED", cfg.MetricsEnabled)

	cfg.Engine.OTP.TTL = envDuration("OTP_TTL", cfg.Engine.OTP.TTL)
	cfg.Engine.OTP.MaxAttempts = envInt("OTP_MAX_ATTEMPTS", cfg.Engine.OTP.MaxAttempts)
	cfg.Engine.Handoff.TTL = envDuration("HANDOFF_TTL", cfg.Engine.Handoff.TTL)
	cfg.Engine.Handoff.LinkBaseURL = envOrDefault("HANDOFF_LINK_BASE", cfg.Engine.Handoff.LinkBaseURL)
	cfg.Engine.PasswordReset.TTL = envDuration("RESET_TTL", cfg.Engine.PasswordReset.TTL)
	cfg.Engine.PasswordReset.MaxAttempts = envInt("RESET_MAX_ATTEMPTS", cfg.Engine.PasswordReset.MaxAttempts)
	cfg.Engine.Token.LoginTTL = envDuration("LOGIN_TOKEN_TTL", cfg.Engine.Token.LoginTTL)
	cfg.Engine.Reaper.Interval = envDuration("REAPER_INTERVAL", cfg.Engine.Reaper.Interval)
	cfg.Engine.Audit.Enabled = envBool("AUDIT_ENABLED", cfg.Engine.Audit.Enabled)
	cfg.Engine.Metrics.Enabled = cfg.MetricsEnabled

	if cfg.SigningSecret == "" && !cfg.AllowEphemeralKey {
		return serverConfig{}, errors.New("missing TOKEN_SIGNING_SECRET")
	}
	if cfg.SigningSecret != "" {
		cfg.Engine.Token.PrivateKey = []byte(cfg.SigningSecret)
	}
	return cfg, nil
}

func (cfg *serverConfig) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Server.Addr != "" {
		cfg.HTTPAddr = f.Server.Addr
	}
	if f.Server.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(f.Server.LogLevel)
	}
	if f.Dependencies.RedisAddr != "" {
		cfg.RedisAddr = f.Dependencies.RedisAddr
	}
	if f.Dependencies.RabbitMQURL != "" {
		cfg.RabbitMQURL = f.Dependencies.RabbitMQURL
	}
	if f.Dependencies.RabbitMQQueue != "" {
		cfg.RabbitMQQueue = f.Dependencies.RabbitMQQueue
	}
	if f.Dependencies.RabbitMQExchange != "" {
		cfg.RabbitMQExchange = f.Dependencies.RabbitMQExchange
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"server.shutdown_timeout", f.Server.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"auth.otp_ttl", f.Auth.OTPTTL, &cfg.Engine.OTP.TTL},
		{"auth.handoff_ttl", f.Auth.HandoffTTL, &cfg.Engine.Handoff.TTL},
		{"auth.reset_ttl", f.Auth.ResetTTL, &cfg.Engine.PasswordReset.TTL},
		{"auth.login_token_ttl", f.Auth.LoginTokenTTL, &cfg.Engine.Token.LoginTTL},
		{"auth.reaper_interval", f.Auth.ReaperInterval, &cfg.Engine.Reaper.Interval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.field, err)
		}
		*d.dst = v
	}

	if f.Auth.OTPMaxAttempts > 0 {
		cfg.Engine.OTP.MaxAttempts = f.Auth.OTPMaxAttempts
	}
	if f.Auth.ResetMaxAttempts > 0 {
		cfg.Engine.PasswordReset.MaxAttempts = f.Auth.ResetMaxAttempts
	}
	if f.Auth.MinPassword > 0 {
		cfg.Engine.PasswordReset.MinPasswordLength = f.Auth.MinPassword
	}
	if f.Auth.HandoffLinkBase != "" {
		cfg.Engine.Handoff.LinkBaseURL = f.Auth.HandoffLinkBase
	}
	if f.Auth.TokenIssuer != "" {
		cfg.Engine.Token.Issuer = f.Auth.TokenIssuer
	}
	cfg.Engine.Audit.Enabled = f.Audit.Enabled
	if f.Metrics.Enabled != nil {
		cfg.MetricsEnabled = *f.Metrics.Enabled
	}
	cfg.RuntimeMetrics = f.Metrics.Runtime
	cfg.Members = f.Members
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envDuration accepts Go duration strings such as "90s" or "5m".
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
