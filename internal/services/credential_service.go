package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/metrics"
	"classconnect-auth/internal/models"
	"classconnect-auth/internal/repositories"
)

var (
	ErrEmailRegistered    = apperrors.New(apperrors.Conflict, "email_registered", "email already registered")
	ErrGoogleTokenMissing = apperrors.New(apperrors.BadRequest, "missing_token", "google access token is required")
)

const (
	defaultRole         = "student"
	compensationTimeout = 5 * time.Second
)

type CredentialService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Credential, error)
	Login(ctx context.Context, email, password string) (*models.TokenResponse, error)
	LoginWithGoogle(ctx context.Context, accessToken string) (*models.TokenResponse, error)
	GetByID(ctx context.Context, id string) (*models.Credential, error)
}

type credentialService struct {
	store    repositories.Store
	hasher   PasswordHasher
	tokens   TokenIssuer
	guard    LoginGuard
	profiles ProfileClient
	identity IdentityProvider
	log      *zap.Logger
	now      func() time.Time
}

type CredentialOption func(*credentialService)

func WithCredentialClock(now func() time.Time) CredentialOption {
	return func(s *credentialService) { s.now = now }
}

// WithIdentityProvider enables federated login.
func WithIdentityProvider(p IdentityProvider) CredentialOption {
	return func(s *credentialService) { s.identity = p }
}

func NewCredentialService(
	store repositories.Store,
	hasher PasswordHasher,
	tokens TokenIssuer,
	guard LoginGuard,
	profiles ProfileClient,
	log *zap.Logger,
	opts ...CredentialOption,
) CredentialService {
	s := &credentialService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		guard:    guard,
		profiles: profiles,
		log:      log.Named("credentials"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register stores the credential and then asks the profile service for the
// matching profile. A profile failure deletes the credential again.
func (s *credentialService) Register(ctx context.Context, req models.RegisterRequest) (*models.Credential, error) {
	email := strings.TrimSpace(req.Email)
	if req.Password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{Email: email, PasswordHash: hash}
	if err := s.store.Credentials().Create(ctx, cred); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailRegistered
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}

	role := req.Role
	if role == "" {
		role = defaultRole
	}
	if err := s.createProfile(ctx, cred, models.Profile{
		ID:       cred.ID,
		Email:    email,
		Name:     req.Name,
		LastName: req.LastName,
		Role:     role,
	}); err != nil {
		return nil, err
	}

	s.log.Info("[register] credential created", zap.String("id", cred.ID))
	return cred, nil
}

func (s *credentialService) createProfile(ctx context.Context, cred *models.Credential, p models.Profile) error {
	if s.profiles == nil {
		return nil
	}
	err := s.profiles.CreateProfile(ctx, p)
	if err == nil {
		return nil
	}
	s.log.Warn("[register] profile creation failed, removing credential", zap.String("id", cred.ID), zap.Error(err))

	// The request context may already be cancelled.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if derr := s.store.Credentials().Delete(dctx, cred.ID); derr != nil {
		s.log.Error("[register] compensating delete failed", zap.String("id", cred.ID), zap.Error(derr))
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(apperrors.Unavailable, ErrProfileUnavailable.Type, ErrProfileUnavailable.Message, err)
}

// Login reads, checks and writes the lockout state under one row lock so
// concurrent attempts against an account are serialized. Rejections that
// mutate state (auto-unlock, counting a failure, locking) are committed
// before the rejection is returned.
func (s *credentialService) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	email = strings.TrimSpace(email)

	var (
		cred    *models.Credential
		outcome error
	)
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		cred, outcome = nil, nil
		c, err := r.Credentials().GetByEmailForUpdate(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = ErrInvalidCredentials
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		changed, admitErr := s.guard.Admit(c, now)
		if admitErr == nil && !c.IsVerified {
			admitErr = ErrNotVerified
		}
		if admitErr != nil {
			outcome = admitErr
			if changed {
				return r.Credentials().Update(ctx, c)
			}
			return nil
		}

		if !s.hasher.Verify(password, c.PasswordHash) {
			outcome = s.guard.RecordFailure(c, now)
			return r.Credentials().Update(ctx, c)
		}
		if s.guard.RecordSuccess(c) || changed {
			if err := r.Credentials().Update(ctx, c); err != nil {
				return err
			}
		}
		cred = c
		return nil
	})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}
	if outcome != nil {
		s.recordRejection(email, outcome)
		return nil, outcome
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return s.issueToken(cred)
}

func (s *credentialService) recordRejection(email string, outcome error) {
	e, ok := apperrors.As(outcome)
	if !ok {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.LoginAttemptsTotal.WithLabelValues(e.Type).Inc()
	if e.LockUntil != nil && errors.Is(outcome, ErrInvalidCredentials) {
		metrics.AccountLocksTotal.Inc()
		s.log.Warn("[login] account locked", zap.String("email", email), zap.Time("lock_until", *e.LockUntil))
	}
}

// LoginWithGoogle trusts the identity provider's email. First-time users get
// a federated credential (no password) and a profile.
func (s *credentialService) LoginWithGoogle(ctx context.Context, accessToken string) (*models.TokenResponse, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrGoogleTokenMissing
	}
	if s.identity == nil {
		return nil, apperrors.New(apperrors.Unavailable, "identity_disabled", "google login is not configured")
	}
	id, err := s.identity.UserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	cred, err := s.store.Credentials().GetByEmail(ctx, id.Email)
	switch {
	case err == nil:
		return s.issueToken(cred)
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cred = &models.Credential{Email: id.Email}
	if err := s.store.Credentials().Create(ctx, cred); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("create federated credential: %w", err)
		}
		// A concurrent first login won the insert.
		if cred, err = s.store.Credentials().GetByEmail(ctx, id.Email); err != nil {
			return nil, fmt.Errorf("load credential: %w", err)
		}
		return s.issueToken(cred)
	}

	if err := s.createProfile(ctx, cred, models.Profile{
		ID:       cred.ID,
		Email:    id.Email,
		Name:     id.Name,
		LastName: id.LastName,
		Role:     defaultRole,
		Picture:  id.Picture,
	}); err != nil {
		return nil, err
	}
	s.log.Info("[google] federated credential created", zap.String("id", cred.ID))
	return s.issueToken(cred)
}

func (s *credentialService) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	c, err := s.store.Credentials().GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return c, nil
}

func (s *credentialService) issueToken(c *models.Credential) (*models.TokenResponse, error) {
	token, exp, err := s.tokens.Issue(c.ID, c.Email)
	if err != nil {
		return nil, err
	}
	return &models.TokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: exp}, nil
}
