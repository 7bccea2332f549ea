package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestSignVerifyRoundTripHS256(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("club-secret-club-secret"), Now: clock.Now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Sign(Claims{Subject: "u-1", SessionID: "bio_1", Purpose: PurposeHandoff}, 10*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u-1" || claims.SessionID != "bio_1" || claims.Purpose != PurposeHandoff {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Equal(clock.now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}
	if !claims.IssuedAt.Equal(clock.now) {
		t.Fatalf("unexpected issued-at %v", claims.IssuedAt)
	}
}

func TestVerifyExpiredAtExactExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("club-secret-club-secret"), Now: clock.Now})

	token, err := m.Sign(Claims{Subject: "u-1", Purpose: PurposeLogin}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	clock.now = clock.now.Add(59 * time.Second)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token valid before expiry: %v", err)
	}

	clock.now = clock.now.Add(time.Second)
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at expiry, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndMalformed(t *testing.T) {
	m, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("club-secret-club-secret")})
	token, _ := m.Sign(Claims{Subject: "u-1", Purpose: PurposeLogin}, time.Minute)

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
	if _, err := m.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}

	other, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("another-secret-value")})
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign key, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := tokenClaims{Purpose: PurposeLogin, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u-1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "clubauth",
		Audience:      "members",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	good, err := m.Sign(Claims{Subject: "u", Purpose: PurposeLogin}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(good); err != nil {
		t.Fatalf("expected valid token to verify: %v", err)
	}

	sign := func(c tokenClaims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign raw: %v", err)
		}
		return s
	}
	base := func(iss string, aud string, exp time.Duration) tokenClaims {
		return tokenClaims{Purpose: PurposeLogin, RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-3 * time.Minute)),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
		}}
	}

	if _, err := m.Verify(sign(base("other", "members", time.Minute))); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}
	if _, err := m.Verify(sign(base("clubauth", "other", time.Minute))); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong audience to fail, got %v", err)
	}
	if _, err := m.Verify(sign(base("clubauth", "members", -15*time.Second))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Verify(sign(base("clubauth", "members", -2*time.Minute))); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	good, err := m.Sign(Claims{Subject: "u", Purpose: PurposeLogin}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	claims := tokenClaims{Purpose: PurposeLogin, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	unknown, _ := tok.SignedString(priv1)
	if _, err := m.Verify(unknown); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}

	m2, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv2, VerifyKeys: map[string][]byte{"k1": pub2}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m2.Verify(good); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("expected verify failure with mismatched key set")
	}
}

func TestSignRejectsIncompleteClaims(t *testing.T) {
	m, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("club-secret-club-secret")})
	if _, err := m.Sign(Claims{Purpose: PurposeLogin}, time.Minute); err == nil {
		t.Fatal("expected missing subject to fail")
	}
	if _, err := m.Sign(Claims{Subject: "u"}, time.Minute); err == nil {
		t.Fatal("expected missing purpose to fail")
	}
	if _, err := m.Sign(Claims{Subject: "u", Purpose: PurposeLogin}, 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing hs256 key to fail")
	}
	if _, err := NewManager(Config{SigningMethod: "rs256", PrivateKey: []byte("x")}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("x"), Leeway: time.Hour}); err == nil {
		t.Fatal("expected excessive leeway to fail")
	}
	_, priv := newEdKeys(t)
	if _, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv}); err == nil {
		t.Fatal("expected ed25519 without verify key to fail")
	}
}
