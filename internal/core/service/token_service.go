package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

const (
	defaultTokenTTL = time.Hour
	bearerPrefix    = "Bearer "
)

// ErrEmptySigningKey is returned by NewTokenService when no key is configured.
var ErrEmptySigningKey = errors.New("token signing key must not be empty")

// TokenService issues and verifies HS256 session tokens. It holds no session
// table: a token is valid while its signature checks out and now < exp.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

var _ ports.TokenService = (*TokenService)(nil)

// TokenOption customises a TokenService at construction time.
type TokenOption func(*TokenService)

// WithClock replaces time.Now as the source of the current instant.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService returns a TokenService signing with signingKey. A
// non-positive ttl falls back to one hour.
func NewTokenService(signingKey []byte, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrEmptySigningKey
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	s := &TokenService{signingKey: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime applied to every issued token.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// sessionClaims carries the expiry instant with nanosecond precision in
// exp_ns. The registered exp claim is rounded up to the next whole second so
// its check never rejects a token before exp_ns does.
type sessionClaims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns"`

	now time.Time
}

// Validate is called by the jwt parser after the registered claims checks.
func (c *sessionClaims) Validate() error {
	if c.ExpiresAtNano <= 0 {
		return jwt.ErrTokenRequiredClaimMissing
	}
	if !c.now.Before(time.Unix(0, c.ExpiresAtNano)) {
		return jwt.ErrTokenExpired
	}
	return nil
}

// Issue signs a token for subject that expires exactly TTL after issuance.
func (s *TokenService) Issue(subject string) (string, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(expiresAt)),
			ID:        uuid.NewString(),
		},
		ExpiresAtNano: expiresAt.UnixNano(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAndExtractSubject verifies token and returns its subject claim.
// Parser diagnostics are never returned; callers only ever see
// domain.ErrInvalidToken or domain.ErrExpiredToken.
func (s *TokenService) ValidateAndExtractSubject(token string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(token), bearerPrefix)
	if raw == "" {
		return "", domain.ErrInvalidToken
	}

	now := s.now()
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &sessionClaims{now: now}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case err == nil:
		return claims.Subject, nil
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "", domain.ErrInvalidToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", domain.ErrExpiredToken
	default:
		return "", domain.ErrInvalidToken
	}
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Before(t) {
		return truncated.Add(time.Second)
	}
	return truncated
}
