package models

import "time"

// VerificationPin is the single live one-time code of an account, keyed by email.
type VerificationPin struct {
	Email               string    `json:"email"`
	Pin                 string    `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	IsValid             bool      `json:"is_valid"`
	CanChange           bool      `json:"can_change"`
	ForPasswordRecovery bool      `json:"for_password_recovery"`
	IncorrectAttempts   int       `json:"incorrect_attempts"`
}

// ExpiredAt reports whether the code is older than ttl at now.
func (p *VerificationPin) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.After(p.CreatedAt.Add(ttl))
}

type NotifyRequest struct {
	Email   string `json:"email" binding:"required,email"`
	To      string `json:"to"`
	Channel string `json:"channel"`
}

type PinRequest struct {
	Email string `json:"email" binding:"required,email"`
	Pin   string `json:"pin" binding:"required"`
}

type ChangePasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required"`
}
