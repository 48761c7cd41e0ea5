package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"classconnect-auth/internal/models"
)

type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	// GetByEmailForUpdate locks the row until the surrounding transaction ends.
	GetByEmailForUpdate(ctx context.Context, email string) (*models.Credential, error)
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	Create(ctx context.Context, c *models.Credential) error
	Update(ctx context.Context, c *models.Credential) error
	Delete(ctx context.Context, id string) error
}

type credentialRepository struct {
	q sqlx.ExtContext
}

type credentialRow struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	PasswordHash    sql.NullString `db:"password_hash"`
	FailedAttempts  int            `db:"failed_attempts"`
	LastFailedLogin sql.NullTime   `db:"last_failed_login"`
	IsLocked        bool           `db:"is_locked"`
	LockUntil       sql.NullTime   `db:"lock_until"`
	IsVerified      bool           `db:"is_verified"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r credentialRow) toModel() *models.Credential {
	return &models.Credential{
		ID:              r.ID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash.String,
		FailedAttempts:  r.FailedAttempts,
		LastFailedLogin: utcPtr(r.LastFailedLogin),
		IsLocked:        r.IsLocked,
		LockUntil:       utcPtr(r.LockUntil),
		IsVerified:      r.IsVerified,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

const credentialColumns = `id, email, password_hash, failed_attempts, last_failed_login,
		is_locked, lock_until, is_verified, created_at`

func (r *credentialRepository) get(ctx context.Context, op, q string, arg any) (*models.Credential, error) {
	var row credentialRow
	if err := sqlx.GetContext(ctx, r.q, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credential %s: %w", op, err)
	}
	return row.toModel(), nil
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE email = $1`
	return r.get(ctx, "get by email", q, email)
}

func (r *credentialRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE email = $1 FOR UPDATE`
	return r.get(ctx, "get by email for update", q, email)
}

func (r *credentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	return r.get(ctx, "get by id", q, id)
}

// Create inserts c with zeroed counters. An empty ID is filled with a new UUID.
func (r *credentialRepository) Create(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO credentials (id, email, password_hash, failed_attempts, is_locked, is_verified)
		VALUES ($1, $2, $3, 0, FALSE, $4)
		RETURNING created_at
	`
	hash := sql.NullString{String: c.PasswordHash, Valid: c.PasswordHash != ""}
	var createdAt time.Time
	if err := r.q.QueryRowxContext(ctx, q, c.ID, c.Email, hash, c.IsVerified).Scan(&createdAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("credential create: %w", err)
	}
	c.CreatedAt = createdAt.UTC()
	c.FailedAttempts = 0
	c.IsLocked = false
	c.LockUntil = nil
	c.LastFailedLogin = nil
	return nil
}

func (r *credentialRepository) Update(ctx context.Context, c *models.Credential) error {
	const q = `
		UPDATE credentials
		SET
			password_hash=$1,
			failed_attempts=$2,
			last_failed_login=$3,
			is_locked=$4,
			lock_until=$5,
			is_verified=$6
		WHERE id=$7
	`
	hash := sql.NullString{String: c.PasswordHash, Valid: c.PasswordHash != ""}
	res, err := r.q.ExecContext(ctx, q,
		hash,
		c.FailedAttempts,
		nullTime(c.LastFailedLogin),
		c.IsLocked,
		nullTime(c.LockUntil),
		c.IsVerified,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("credential update: %w", err)
	}
	return expectOneRow(res, "credential update")
}

func (r *credentialRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM credentials WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("credential delete: %w", err)
	}
	return expectOneRow(res, "credential delete")
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
