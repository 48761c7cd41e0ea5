package models

import "time"

type Credential struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"` // empty for federated identities, stored as NULL
	FailedAttempts  int        `json:"failed_attempts"`
	LastFailedLogin *time.Time `json:"last_failed_login,omitempty"`
	IsLocked        bool       `json:"is_locked"`
	LockUntil       *time.Time `json:"lock_until,omitempty"`
	IsVerified      bool       `json:"is_verified"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsFederated reports whether the account has no local password.
func (c *Credential) IsFederated() bool {
	return c.PasswordHash == ""
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Role     string `json:"role"`
}

type GoogleLoginRequest struct {
	AccessToken string `json:"access_token"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
