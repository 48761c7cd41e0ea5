package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errPinExpired = New(Gone, "pin_expired", "pin expired")

func TestIsMatchesKindAndType(t *testing.T) {
	err := fmt.Errorf("verify: %w", New(Gone, "pin_expired", "code expired, request a new one"))
	assert.True(t, errors.Is(err, errPinExpired))
	assert.False(t, errors.Is(err, New(Gone, "other", "")))
	assert.False(t, errors.Is(err, New(Unauthorized, "pin_expired", "")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Conflict, KindOf(New(Conflict, "x", "y")))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Unavailable, KindOf(fmt.Errorf("wrap: %w", Wrap(Unavailable, "x", "y", errors.New("dial")))))
}

func TestWithLockUntilCopies(t *testing.T) {
	base := New(Unauthorized, "account_locked", "locked")
	until := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("ART", -3*3600))
	locked := base.WithLockUntil(until)

	assert.Nil(t, base.LockUntil)
	if assert.NotNil(t, locked.LockUntil) {
		assert.Equal(t, time.UTC, locked.LockUntil.Location())
		assert.True(t, locked.LockUntil.Equal(until))
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(Unavailable, "profile_unavailable", "profile service unavailable", errors.New("connection refused"))
	assert.Equal(t, "profile service unavailable: connection refused", err.Error())
	assert.Equal(t, "unavailable", err.Kind.String())
}
