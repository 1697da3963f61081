package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educapi/account-service/internal/core/domain"
)

const testSigningKey = "it's a token key"

var issuedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// clock is a settable time source shared between issuance and validation.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestTokenService(t *testing.T, c *clock, ttl time.Duration) *TokenService {
	t.Helper()
	svc, err := NewTokenService([]byte(testSigningKey), ttl, WithClock(c.Now))
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty key", func(t *testing.T) {
		t.Parallel()
		_, err := NewTokenService(nil, time.Hour)
		assert.ErrorIs(t, err, ErrEmptySigningKey)
	})

	t.Run("defaults non-positive ttl", func(t *testing.T) {
		t.Parallel()
		svc, err := NewTokenService([]byte("k"), 0)
		require.NoError(t, err)
		assert.Equal(t, defaultTokenTTL, svc.TTL())
	})

	t.Run("copies key", func(t *testing.T) {
		t.Parallel()
		key := []byte("original-key")
		c := &clock{now: issuedAt}
		svc, err := NewTokenService(key, time.Hour, WithClock(c.Now))
		require.NoError(t, err)

		token, err := svc.Issue("a@x.com")
		require.NoError(t, err)

		copy(key, "XXXXXXXX")
		subject, err := svc.ValidateAndExtractSubject(token)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", subject)
	})
}

func TestTokenService_RoundTrip(t *testing.T) {
	t.Parallel()

	c := &clock{now: issuedAt}
	svc := newTestTokenService(t, c, time.Hour)

	for _, subject := range []string{"a@x.com", "user@test.com", "Mixed.Case+tag@Example.org", "ação@educapi.com.br"} {
		token, err := svc.Issue(subject)
		require.NoError(t, err)

		got, err := svc.ValidateAndExtractSubject(token)
		require.NoError(t, err)
		assert.Equal(t, subject, got)

		got, err = svc.ValidateAndExtractSubject("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, subject, got)
	}
}

func TestTokenService_Claims(t *testing.T) {
	t.Parallel()

	c := &clock{now: issuedAt.Add(750 * time.Millisecond)}
	ttl := 30 * time.Minute
	svc := newTestTokenService(t, c, ttl)

	token, err := svc.Issue("a@x.com")
	require.NoError(t, err)

	claims := &sessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, issuedAt.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, issuedAt.Add(ttl+time.Second).Unix(), claims.ExpiresAt.Unix(), "exp rounds up to the next second")
	assert.Equal(t, c.now.Add(ttl).UnixNano(), claims.ExpiresAtNano)
	assert.NotEmpty(t, claims.ID)

	other, err := svc.Issue("a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, token, other, "tokens carry a unique id")
}

func TestTokenService_Expiry(t *testing.T) {
	t.Parallel()

	ttl := time.Hour
	tests := []struct {
		name    string
		offset  time.Duration
		elapsed time.Duration
		wantErr error
	}{
		{name: "immediately", elapsed: 0},
		{name: "half way", elapsed: ttl / 2},
		{name: "last instant before expiry", elapsed: ttl - time.Nanosecond},
		{name: "exactly at expiry", elapsed: ttl, wantErr: domain.ErrExpiredToken},
		{name: "after expiry", elapsed: ttl + time.Second, wantErr: domain.ErrExpiredToken},
		{name: "long after expiry", elapsed: 30 * 24 * time.Hour, wantErr: domain.ErrExpiredToken},
		{name: "sub-second issue half a second before expiry", offset: 900 * time.Millisecond, elapsed: ttl - 500*time.Millisecond},
		{name: "sub-second issue last instant before expiry", offset: 900 * time.Millisecond, elapsed: ttl - time.Nanosecond},
		{name: "sub-second issue exactly at expiry", offset: 900 * time.Millisecond, elapsed: ttl, wantErr: domain.ErrExpiredToken},
		{name: "sub-second issue inside the rounded exp second", offset: 900 * time.Millisecond, elapsed: ttl + 50*time.Millisecond, wantErr: domain.ErrExpiredToken},
		{name: "nanosecond issue last instant before expiry", offset: 123456789 * time.Nanosecond, elapsed: ttl - time.Nanosecond},
		{name: "nanosecond issue exactly at expiry", offset: 123456789 * time.Nanosecond, elapsed: ttl, wantErr: domain.ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			t0 := issuedAt.Add(tt.offset)
			c := &clock{now: t0}
			svc := newTestTokenService(t, c, ttl)
			token, err := svc.Issue("a@x.com")
			require.NoError(t, err)

			c.now = t0.Add(tt.elapsed)
			subject, err := svc.ValidateAndExtractSubject(token)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, subject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", subject)
		})
	}
}

func TestTokenService_TamperSensitivity(t *testing.T) {
	t.Parallel()

	c := &clock{now: issuedAt}
	svc := newTestTokenService(t, c, time.Hour)
	token, err := svc.Issue("a@x.com")
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		tampered := token[:i] + string(replacement) + token[i+1:]

		subject, err := svc.ValidateAndExtractSubject(tampered)
		require.Equalf(t, domain.ErrInvalidToken, err, "position %d accepted", i)
		require.Empty(t, subject)
	}
}

func TestTokenService_InvalidTokens(t *testing.T) {
	t.Parallel()

	c := &clock{now: issuedAt}
	svc := newTestTokenService(t, c, time.Hour)

	foreign, err := NewTokenService([]byte("another key"), time.Hour, WithClock(c.Now))
	require.NoError(t, err)
	foreignToken, err := foreign.Issue("a@x.com")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512Token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	noExpToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "a@x.com",
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	// Registered claims only: the precise expiry claim is required.
	noExpNanoToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	// Expired and signed with the wrong key: the signature is checked first.
	c2 := &clock{now: issuedAt.Add(-2 * time.Hour)}
	expiredForeign, err := NewTokenService([]byte("another key"), time.Hour, WithClock(c2.Now))
	require.NoError(t, err)
	expiredForeignToken, err := expiredForeign.Issue("a@x.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "blank", token: "   "},
		{name: "bearer only", token: "Bearer "},
		{name: "invalid token", token: "invalid token"},
		{name: "not a jwt", token: "not.a.jwt"},
		{name: "too many segments", token: "this.is.not.a.valid.jwt.token"},
		{name: "wrong key", token: foreignToken},
		{name: "alg none", token: noneToken},
		{name: "other hmac alg", token: hs512Token},
		{name: "missing exp", token: noExpToken},
		{name: "missing exp_ns", token: noExpNanoToken},
		{name: "expired with wrong key", token: expiredForeignToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			subject, err := svc.ValidateAndExtractSubject(tt.token)
			assert.Equal(t, domain.ErrInvalidToken, err)
			assert.Empty(t, subject)
		})
	}
}

func TestTokenService_StableMessages(t *testing.T) {
	t.Parallel()

	c := &clock{now: issuedAt}
	svc := newTestTokenService(t, c, time.Minute)

	_, err := svc.ValidateAndExtractSubject("garbage")
	require.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())

	token, err := svc.Issue("a@x.com")
	require.NoError(t, err)
	c.now = issuedAt.Add(time.Hour)
	_, err = svc.ValidateAndExtractSubject(token)
	require.Error(t, err)
	assert.Equal(t, "token expired", err.Error())
	assert.False(t, strings.Contains(err.Error(), "jwt"))
}
