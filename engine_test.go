package clubAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildRequiresDirectory(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "user directory") {
		t.Fatalf("expected missing directory error, got %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.OTP.MaxAttempts = 0
	if _, err := New().WithConfig(cfg).WithUserDirectory(newFakeDirectory()).Build(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildRequiresSigningKey(t *testing.T) {
	cfg := testConfig()
	cfg.Token.PrivateKey = nil
	if _, err := New().WithConfig(cfg).WithUserDirectory(newFakeDirectory()).Build(); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserDirectory(newFakeDirectory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestEngineSweepRemovesExpiredSessions(t *testing.T) {
	te := newTestEngine(t, "482913")
	ctx := context.Background()

	if _, err := te.SendLoginOptions(ctx, "ana@club.test"); err != nil {
		t.Fatalf("send login options: %v", err)
	}
	if _, err := te.SendResetOTP(ctx, "ana@club.test"); err != nil {
		t.Fatalf("send reset: %v", err)
	}

	te.clock.Advance(5 * time.Minute)
	if n := te.Sweep(ctx); n != 1 {
		t.Fatalf("expected only the otp session swept at 5m, got %d", n)
	}
	te.clock.Advance(5 * time.Minute)
	if n := te.Sweep(ctx); n != 2 {
		t.Fatalf("expected handoff and reset sessions swept at 10m, got %d", n)
	}
	if got := te.MetricsSnapshot().Counters[MetricReaperSwept]; got != 3 {
		t.Fatalf("expected 3 swept records counted, got %d", got)
	}
}

func TestEngineCloseIsIdempotent(t *testing.T) {
	te := newTestEngine(t, "482913")
	te.Close()
	te.Close()

	var nilEngine *Engine
	nilEngine.Close()
	if _, err := nilEngine.SendLoginOptions(context.Background(), "a@b.c"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestEngineConfigIsACopy(t *testing.T) {
	te := newTestEngine(t, "482913")
	cfg := te.Config()
	cfg.Token.PrivateKey[0] ^= 0xff
	if te.Config().Token.PrivateKey[0] == cfg.Token.PrivateKey[0] {
		t.Fatal("Config must return a copy of the key material")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrSessionNotFound, auditErrSessionNotFound},
		{ErrSessionExpired, auditErrSessionExpired},
		{ErrAttemptsExceeded, auditErrAttemptsExceeded},
		{&WrongCodeError{Remaining: 1}, auditErrWrongCode},
		{ErrInvalidToken, auditErrInvalidToken},
		{ErrTokenExpired, auditErrTokenExpired},
		{ErrSubjectBlocked, auditErrSubjectBlocked},
		{ErrSubjectNotFound, auditErrSubjectNotFound},
		{ErrNotVerified, auditErrNotVerified},
		{ErrValidation, auditErrValidation},
		{ErrNotificationFailure, auditErrNotificationFailure},
		{wrapUnavailable(errors.New("redis down")), auditErrUnavailable},
		{errors.New("boom"), auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
