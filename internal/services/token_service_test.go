package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(now func() time.Time) *tokenService {
	return &tokenService{key: []byte("test-secret"), ttl: 15 * time.Minute, now: now}
}

func TestTokenIssueAndParse(t *testing.T) {
	clk := newClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ts := newTestTokens(clk.Now)

	token, exp, err := ts.Issue("user-1", "a@x.com")
	require.NoError(t, err)
	assert.True(t, exp.Equal(clk.Now().Add(15*time.Minute)))

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.True(t, claims.IssuedAt.Time.Equal(clk.Now()))
}

func TestTokenParseExpired(t *testing.T) {
	clk := newClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ts := newTestTokens(clk.Now)
	token, _, err := ts.Issue("user-1", "a@x.com")
	require.NoError(t, err)

	clk.Advance(16 * time.Minute)
	_, err = ts.Parse(token)
	assert.True(t, errors.Is(err, ErrTokenExpired))
}

func TestTokenParseRejectsOtherKey(t *testing.T) {
	ts := newTestTokens(time.Now)
	other := &tokenService{key: []byte("other"), ttl: time.Minute, now: time.Now}
	token, _, err := other.Issue("user-1", "a@x.com")
	require.NoError(t, err)

	_, err = ts.Parse(token)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestTokenParseRejectsNoneAlgorithm(t *testing.T) {
	ts := newTestTokens(time.Now)
	claims := &Claims{
		Email: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.Parse(token)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestTokenParseRequiresExpiry(t *testing.T) {
	ts := newTestTokens(time.Now)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.key)
	require.NoError(t, err)

	_, err = ts.Parse(token)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestTokenParseGarbage(t *testing.T) {
	_, err := newTestTokens(time.Now).Parse("not.a.jwt")
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}
