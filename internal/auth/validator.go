package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSigningKey = errors.New("session validator: signing key required")
	ErrMissingIssuer     = errors.New("session validator: issuer required")
	ErrMissingToken      = errors.New("session validator: token required")
	ErrInvalidToken      = errors.New("session validator: invalid token")
	ErrExpiredToken      = errors.New("session validator: token expired")
	ErrMissingSubject    = errors.New("session validator: subject required")
)

// SessionClaims mirrors the JWT payload emitted by the external auth service.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// ValidatorConfig describes how to validate externally issued session JWTs.
type ValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// Validator validates HS256 session tokens. Token issuance lives in the auth
// service; this side only verifies.
type Validator struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewValidator constructs a Validator with the provided configuration.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Validator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		clock:         clock,
	}, nil
}

// ValidateToken validates the supplied JWT string and returns the parsed claims.
func (v *Validator) ValidateToken(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpiredToken
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	if claims.Issuer != v.issuer {
		return SessionClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" && strings.TrimSpace(claims.UserID) == "" {
		return SessionClaims{}, ErrMissingSubject
	}
	return *claims, nil
}

// UserIdentifier returns the canonical user id carried by the claims,
// preferring the explicit user_id claim over the registered subject.
func (c SessionClaims) UserIdentifier() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}
