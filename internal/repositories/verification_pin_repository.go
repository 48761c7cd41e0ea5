package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"classconnect-auth/internal/models"
)

// VerificationPinRepository keeps one row per account email.
type VerificationPinRepository interface {
	Create(ctx context.Context, p *models.VerificationPin) error
	Get(ctx context.Context, email string) (*models.VerificationPin, error)
	GetForUpdate(ctx context.Context, email string) (*models.VerificationPin, error)
	// Replace swaps the code in place: created_at is reset, is_valid=true,
	// can_change=false. incorrect_attempts is left as is.
	Replace(ctx context.Context, email, pin string, forRecovery bool, createdAt time.Time) error
	Invalidate(ctx context.Context, email string) error
	Delete(ctx context.Context, email string) error
	MarkCanChange(ctx context.Context, email string) error
	// IncrementIncorrectAttempts returns the counter after the increment.
	IncrementIncorrectAttempts(ctx context.Context, email string) (int, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type verificationPinRepository struct {
	q sqlx.ExtContext
}

type pinRow struct {
	Email               string    `db:"email"`
	Pin                 string    `db:"pin"`
	CreatedAt           time.Time `db:"created_at"`
	IsValid             bool      `db:"is_valid"`
	CanChange           bool      `db:"can_change"`
	ForPasswordRecovery bool      `db:"for_password_recovery"`
	IncorrectAttempts   int       `db:"incorrect_attempts"`
}

const pinColumns = `email, pin, created_at, is_valid, can_change, for_password_recovery, incorrect_attempts`

func (r *verificationPinRepository) get(ctx context.Context, op, q, email string) (*models.VerificationPin, error) {
	var row pinRow
	if err := sqlx.GetContext(ctx, r.q, &row, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("verification_pin %s: %w", op, err)
	}
	return &models.VerificationPin{
		Email:               row.Email,
		Pin:                 row.Pin,
		CreatedAt:           row.CreatedAt.UTC(),
		IsValid:             row.IsValid,
		CanChange:           row.CanChange,
		ForPasswordRecovery: row.ForPasswordRecovery,
		IncorrectAttempts:   row.IncorrectAttempts,
	}, nil
}

func (r *verificationPinRepository) Get(ctx context.Context, email string) (*models.VerificationPin, error) {
	return r.get(ctx, "get", `SELECT `+pinColumns+` FROM verification_pins WHERE email = $1`, email)
}

func (r *verificationPinRepository) GetForUpdate(ctx context.Context, email string) (*models.VerificationPin, error) {
	return r.get(ctx, "get for update", `SELECT `+pinColumns+` FROM verification_pins WHERE email = $1 FOR UPDATE`, email)
}

func (r *verificationPinRepository) Create(ctx context.Context, p *models.VerificationPin) error {
	const q = `
		INSERT INTO verification_pins (email, pin, created_at, is_valid, can_change, for_password_recovery, incorrect_attempts)
		VALUES ($1, $2, $3, TRUE, FALSE, $4, 0)
	`
	p.CreatedAt = p.CreatedAt.UTC()
	if _, err := r.q.ExecContext(ctx, q, p.Email, p.Pin, p.CreatedAt, p.ForPasswordRecovery); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("verification_pin create: %w", err)
	}
	p.IsValid = true
	p.CanChange = false
	p.IncorrectAttempts = 0
	return nil
}

func (r *verificationPinRepository) Replace(ctx context.Context, email, pin string, forRecovery bool, createdAt time.Time) error {
	const q = `
		UPDATE verification_pins
		SET pin=$1, created_at=$2, is_valid=TRUE, can_change=FALSE, for_password_recovery=$3
		WHERE email=$4
	`
	return r.exec(ctx, "replace", q, pin, createdAt.UTC(), forRecovery, email)
}

func (r *verificationPinRepository) Invalidate(ctx context.Context, email string) error {
	return r.exec(ctx, "invalidate", `UPDATE verification_pins SET is_valid=FALSE WHERE email=$1`, email)
}

func (r *verificationPinRepository) Delete(ctx context.Context, email string) error {
	return r.exec(ctx, "delete", `DELETE FROM verification_pins WHERE email=$1`, email)
}

func (r *verificationPinRepository) MarkCanChange(ctx context.Context, email string) error {
	return r.exec(ctx, "mark can change", `UPDATE verification_pins SET can_change=TRUE WHERE email=$1`, email)
}

func (r *verificationPinRepository) IncrementIncorrectAttempts(ctx context.Context, email string) (int, error) {
	const q = `
		UPDATE verification_pins
		SET incorrect_attempts = incorrect_attempts + 1
		WHERE email = $1
		RETURNING incorrect_attempts
	`
	var attempts int
	if err := r.q.QueryRowxContext(ctx, q, email).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("verification_pin increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationPinRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM verification_pins WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("verification_pin delete created before: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("verification_pin delete created before: rows affected: %w", err)
	}
	return n, nil
}

func (r *verificationPinRepository) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := r.q.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("verification_pin %s: %w", op, err)
	}
	return expectOneRow(res, "verification_pin "+op)
}
