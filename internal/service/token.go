package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/bonusdrive/internal/errs"
)

// DefaultTokenTTL is the lifetime of tokens minted for API callers.
const DefaultTokenTTL = 24 * time.Hour

// TokenIssuer mints and verifies HS256 bearer tokens for the management API.
type TokenIssuer struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. A non-positive ttl uses DefaultTokenTTL.
func NewTokenIssuer(signKey []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{signKey: signKey, ttl: ttl, now: time.Now}
}

// Issue creates a signed token for subject.
func (t *TokenIssuer) Issue(subject string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.signKey)
	return signed, exp, err
}

// Verify checks signature and validity window and returns the subject.
// Every failure matches errs.ErrUnauthorized.
func (t *TokenIssuer) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}
