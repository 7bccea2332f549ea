package internal

import (
	"strings"
	"testing"
)

func TestNewOTPShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewOTP(6)
		if err != nil {
			t.Fatalf("new otp: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}

func TestNewOTPRejectsBadLength(t *testing.T) {
	if _, err := NewOTP(4); err == nil {
		t.Fatal("expected error for 4 digits")
	}
	if _, err := NewOTP(11); err == nil {
		t.Fatal("expected error for 11 digits")
	}
}

func TestNewSessionIDNamespaced(t *testing.T) {
	a := NewSessionID(PrefixHandoff)
	b := NewSessionID(PrefixHandoff)
	if !strings.HasPrefix(a, "bio_") {
		t.Fatalf("expected bio_ prefix, got %q", a)
	}
	if a == b {
		t.Fatal("expected unique ids")
	}
}

func TestCodeMatches(t *testing.T) {
	stored := HashCode("012345")
	if !CodeMatches(stored, "012345") {
		t.Fatal("expected matching code")
	}
	if CodeMatches(stored, "12345") || CodeMatches(stored, "012346") {
		t.Fatal("expected mismatch")
	}
}
