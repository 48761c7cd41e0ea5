package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classconnect-auth/internal/apperrors"
)

var (
	ErrTokenExpired = apperrors.New(apperrors.Unauthorized, "token_expired", "session expired, please log in again")
	ErrTokenInvalid = apperrors.New(apperrors.Unauthorized, "token_invalid", "invalid token")
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type TokenIssuer interface {
	Issue(userID, email string) (token string, expiresAt time.Time, err error)
	Parse(token string) (*Claims, error)
}

type tokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) TokenIssuer {
	return &tokenService{key: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *tokenService) Issue(userID, email string) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse accepts only HMAC-signed tokens carrying a subject and an expiry.
func (s *tokenService) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.key, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
