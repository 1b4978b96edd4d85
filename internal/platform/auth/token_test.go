package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte(strings.Repeat("k", 32))

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, 7*24*time.Hour, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return issuer
}

func TestNewIssuer_RejectsShortSecret(t *testing.T) {
	if _, err := NewIssuer([]byte("short"), time.Hour, time.Minute); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestNewIssuer_RejectsNonPositiveTTL(t *testing.T) {
	if _, err := NewIssuer(testSecret, 0, time.Minute); err == nil {
		t.Error("expected error for zero session TTL")
	}
}

func TestIssueFullSession_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	accountID := uuid.New()

	tokenStr, err := issuer.IssueFullSession(accountID, "patient")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := issuer.Validate(tokenStr, TokenFull)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotID, err := claims.AccountID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != accountID {
		t.Errorf("expected account id %s, got %s", accountID, gotID)
	}
	if claims.Role != "patient" {
		t.Errorf("expected role patient, got %q", claims.Role)
	}
}

func TestValidate_RejectsWrongKind(t *testing.T) {
	issuer := newTestIssuer(t)
	accountID := uuid.New()

	pre2fa, err := issuer.IssuePre2FA(accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.Validate(pre2fa, TokenFull); !errors.Is(err, ErrTokenWrongType) {
		t.Errorf("expected ErrTokenWrongType for pre2fa token on full check, got %v", err)
	}

	full, err := issuer.IssueFullSession(accountID, "doctor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := issuer.Validate(full, TokenPre2FA); !errors.Is(err, ErrTokenWrongType) {
		t.Errorf("expected ErrTokenWrongType for full token on pre2fa check, got %v", err)
	}
}

func TestValidate_RejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t)

	// Sign an already-expired token with the issuer's own secret.
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Kind: string(TokenFull),
		Role: "patient",
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.Validate(tokenStr, TokenFull); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_RejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)

	other, err := NewIssuer([]byte(strings.Repeat("x", 32)), time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokenStr, err := other.IssueFullSession(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.Validate(tokenStr, TokenFull); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidate_RejectsUnsignedAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Kind: string(TokenFull),
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.Validate(tokenStr, TokenFull); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf(`expected ErrTokenInvalid for alg "none", got %v`, err)
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t)
	if _, err := issuer.Validate("not.a.token", TokenFull); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
