package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testIssuer = "pricehub-auth"

var testSecret = []byte("test-signing-secret")

func issueTestToken(t *testing.T, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func newTestValidator(t *testing.T, now time.Time) *Validator {
	t.Helper()
	validator, err := NewValidator(ValidatorConfig{
		SigningSecret: testSecret,
		Issuer:        testIssuer,
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func TestValidatorAcceptsWellFormedToken(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	validator := newTestValidator(t, now)

	signed := issueTestToken(t, SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Minute)),
		},
	})

	claims, err := validator.ValidateToken(signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserIdentifier() != "user-1" {
		t.Fatalf("unexpected user identifier %q", claims.UserIdentifier())
	}
}

func TestValidatorRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	validator := newTestValidator(t, now)

	signed := issueTestToken(t, SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	})

	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidatorRejectsWrongIssuer(t *testing.T) {
	now := time.Unix(1760000000, 0).UTC()
	validator := newTestValidator(t, now)

	signed := issueTestToken(t, SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidatorRejectsEmptyToken(t *testing.T) {
	validator := newTestValidator(t, time.Unix(1760000000, 0).UTC())
	if _, err := validator.ValidateToken("   "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestValidatorRequiresConfiguration(t *testing.T) {
	if _, err := NewValidator(ValidatorConfig{Issuer: testIssuer}); !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected ErrMissingSigningKey, got %v", err)
	}
	if _, err := NewValidator(ValidatorConfig{SigningSecret: testSecret}); !errors.Is(err, ErrMissingIssuer) {
		t.Fatalf("expected ErrMissingIssuer, got %v", err)
	}
}
