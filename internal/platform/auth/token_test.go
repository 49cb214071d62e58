package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-unit-tests-only"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	ti := NewTokenIssuer(testSecret, 8*time.Hour)
	ti.now = func() time.Time { return now }

	token, exp, err := ti.Issue(7, "sess-abc")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if !exp.Equal(now.Add(8 * time.Hour)) {
		t.Errorf("expected expiry now+8h, got %v", exp)
	}

	claims, err := ti.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	uid, err := claims.UserID()
	if err != nil || uid != 7 {
		t.Errorf("expected user 7, got %d (%v)", uid, err)
	}
	if claims.SessionID != "sess-abc" {
		t.Errorf("expected sid sess-abc, got %s", claims.SessionID)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	ti := NewTokenIssuer(testSecret, time.Hour)
	ti.now = func() time.Time { return now }

	token, _, err := ti.Issue(7, "sess")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	ti.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := ti.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("other-secret", time.Hour).Issue(1, "s")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := NewTokenIssuer(testSecret, time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SessionID: "s",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokenIssuer(testSecret, time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for HS512 token, got %v", err)
	}
}

func TestTokenIssuer_MissingSession(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokenIssuer(testSecret, time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken without sid, got %v", err)
	}
}

func TestClaims_UserID_Invalid(t *testing.T) {
	for _, sub := range []string{"", "abc", "0", "-3"} {
		c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
		if _, err := c.UserID(); err == nil {
			t.Errorf("subject %q: expected error", sub)
		}
	}
}
