package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOTPIssueStoresDigestAndNamespacedID(t *testing.T) {
	clock := newTestClock()
	otp, store := newTestOTP(clock, "004213")

	id, code, err := otp.Issue(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code != "004213" {
		t.Fatalf("expected fixed code, got %q", code)
	}
	if !strings.HasPrefix(id, "otp_") {
		t.Fatalf("expected otp_ prefix, got %q", id)
	}

	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Attempts != 0 || rec.MaxAttempts != 3 {
		t.Fatalf("unexpected attempts %d/%d", rec.Attempts, rec.MaxAttempts)
	}
	if !rec.ExpiresAt.Equal(clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}
}

func TestOTPWrongCodeExhaustion(t *testing.T) {
	clock := newTestClock()
	otp, store := newTestOTP(clock, "482913")
	ctx := context.Background()

	id, _, err := otp.Issue(ctx, "u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, remaining := range []int{2, 1} {
		_, err := otp.Verify(ctx, id, "000000")
		var wrong *WrongCodeError
		if !errors.As(err, &wrong) || !errors.Is(err, ErrWrongCode) {
			t.Fatalf("expected WrongCodeError, got %v", err)
		}
		if wrong.Remaining != remaining {
			t.Fatalf("expected %d remaining, got %d", remaining, wrong.Remaining)
		}
	}

	if _, err := otp.Verify(ctx, id, "000000"); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("expected ErrAttemptsExceeded on third wrong code, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("exhausted session must be destroyed")
	}
	if _, err := otp.Verify(ctx, id, "482913"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after exhaustion, got %v", err)
	}
}

func TestOTPVerifySingleUse(t *testing.T) {
	clock := newTestClock()
	otp, _ := newTestOTP(clock, "123456")
	ctx := context.Background()

	id, code, _ := otp.Issue(ctx, "u-1")
	subject, err := otp.Verify(ctx, id, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "u-1" {
		t.Fatalf("expected subject u-1, got %q", subject)
	}
	if _, err := otp.Verify(ctx, id, code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestOTPExpiredAtBoundary(t *testing.T) {
	clock := newTestClock()
	otp, store := newTestOTP(clock, "123456")
	ctx := context.Background()

	id, code, _ := otp.Issue(ctx, "u-1")
	_, _ = otp.Verify(ctx, id, "999999")

	clock.Advance(5 * time.Minute)
	if _, err := otp.Verify(ctx, id, code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at expiry, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("expired session must be removed")
	}
}

func TestOTPUnknownSession(t *testing.T) {
	otp, _ := newTestOTP(newTestClock(), "123456")
	if _, err := otp.Verify(context.Background(), "otp_missing", "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOTPConcurrentVerifyNeverOverspends(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			clock := newTestClock()
			otp := NewOTPChallenge(OTPDeps{
				Store:   newBackendStore[OTPSession](t, backend),
				Now:     clock.Now,
				NewCode: fixedCode("482913"),
			})
			ctx := context.Background()
			id, _, err := otp.Issue(ctx, "u-1")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}

			const workers = 20
			var (
				wg       sync.WaitGroup
				wrong    atomic.Int32
				exceeded atomic.Int32
				notFound atomic.Int32
				start    = make(chan struct{})
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := otp.Verify(ctx, id, "000000")
					switch {
					case errors.Is(err, ErrWrongCode):
						wrong.Add(1)
					case errors.Is(err, ErrAttemptsExceeded):
						exceeded.Add(1)
					case errors.Is(err, ErrNotFound):
						notFound.Add(1)
					default:
						t.Errorf("unexpected verify result: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if wrong.Load() != 2 || exceeded.Load() != 1 || notFound.Load() != workers-3 {
				t.Fatalf("unexpected outcome wrong=%d exceeded=%d notFound=%d", wrong.Load(), exceeded.Load(), notFound.Load())
			}
		})
	}
}

func TestOTPConcurrentCorrectCodeSingleWinner(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend, func(t *testing.T) {
			clock := newTestClock()
			otp := NewOTPChallenge(OTPDeps{
				Store:   newBackendStore[OTPSession](t, backend),
				Now:     clock.Now,
				NewCode: fixedCode("482913"),
			})
			ctx := context.Background()
			id, code, err := otp.Issue(ctx, "u-1")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}

			const workers = 16
			var (
				wg    sync.WaitGroup
				wins  atomic.Int32
				start = make(chan struct{})
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if _, err := otp.Verify(ctx, id, code); err == nil {
						wins.Add(1)
					} else if !errors.Is(err, ErrNotFound) {
						t.Errorf("losing verify must see ErrNotFound, got %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()
			if wins.Load() != 1 {
				t.Fatalf("expected one successful verify, got %d", wins.Load())
			}
		})
	}
}
