package services

import (
	"fmt"
	"time"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/models"
)

var (
	ErrInvalidCredentials = apperrors.New(apperrors.Unauthorized, "invalid_credentials", "invalid email or password")
	ErrAccountLocked      = apperrors.New(apperrors.Unauthorized, "account_locked", "the account is locked")
	ErrNotVerified        = apperrors.New(apperrors.Forbidden, "not_verified", "user not verified")
)

// LoginGuard is the lockout state machine. It only mutates the credential it
// is given; persisting the result is the caller's job.
//
//	OPEN   --failure (count reaches max)-->  LOCKED(lock_until = now + LockDuration)
//	LOCKED --login after lock_until------->  OPEN (counters cleared)
//	OPEN   --success------------------------> OPEN (counters cleared)
type LoginGuard struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// Admit runs before the password check. changed reports whether c was
// mutated (auto-unlock or forced lock) and must be persisted even when err
// is non-nil.
func (g LoginGuard) Admit(c *models.Credential, now time.Time) (changed bool, err error) {
	if c.IsLocked && c.LockUntil != nil && now.After(*c.LockUntil) {
		c.IsLocked = false
		c.LockUntil = nil
		c.FailedAttempts = 0
		changed = true
	}
	if c.IsLocked {
		if c.LockUntil == nil {
			// lock_until must accompany is_locked; restart the window.
			g.lock(c, now)
			changed = true
		}
		return changed, g.lockedError(*c.LockUntil)
	}
	if c.FailedAttempts >= g.MaxFailedAttempts {
		g.lock(c, now)
		return true, g.lockedError(*c.LockUntil)
	}
	return changed, nil
}

// RecordFailure counts a wrong password and locks once the limit is reached.
// The returned error carries lock_until when this failure locked the account.
func (g LoginGuard) RecordFailure(c *models.Credential, now time.Time) error {
	c.FailedAttempts++
	t := now.UTC()
	c.LastFailedLogin = &t
	if c.FailedAttempts >= g.MaxFailedAttempts {
		g.lock(c, now)
		return ErrInvalidCredentials.WithLockUntil(*c.LockUntil)
	}
	return ErrInvalidCredentials
}

// RecordSuccess clears every lockout field and reports whether anything changed.
func (g LoginGuard) RecordSuccess(c *models.Credential) bool {
	changed := c.FailedAttempts != 0 || c.LastFailedLogin != nil || c.IsLocked || c.LockUntil != nil
	c.FailedAttempts = 0
	c.LastFailedLogin = nil
	c.IsLocked = false
	c.LockUntil = nil
	return changed
}

func (g LoginGuard) lock(c *models.Credential, now time.Time) {
	until := now.UTC().Add(g.LockDuration)
	c.IsLocked = true
	c.LockUntil = &until
}

func (g LoginGuard) lockedError(until time.Time) error {
	e := ErrAccountLocked.WithLockUntil(until)
	e.Message = fmt.Sprintf("the account is locked until %s", until.UTC().Format("2006-01-02 15:04:05 MST"))
	return e
}
