package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/limiters"
	"classconnect-auth/internal/metrics"
	"classconnect-auth/internal/models"
	"classconnect-auth/internal/repositories"
)

var (
	ErrAccountNotFound   = apperrors.New(apperrors.NotFound, "user_not_found", "user not found")
	ErrAlreadyVerified   = apperrors.New(apperrors.Conflict, "already_verified", "user already verified")
	ErrPinNotFound       = apperrors.New(apperrors.NotFound, "pin_not_found", "no pin was issued for this account")
	ErrPinMismatch       = apperrors.New(apperrors.Unauthorized, "pin_incorrect", "incorrect pin")
	ErrPinExpired        = apperrors.New(apperrors.Gone, "pin_expired", "pin expired, request a new one")
	ErrPinInvalidated    = apperrors.New(apperrors.Unauthorized, "pin_invalidated", "pin is no longer valid, request a new one")
	ErrPinWrongPurpose   = apperrors.New(apperrors.Forbidden, "pin_wrong_purpose", "pin was issued for a different purpose")
	ErrTooManyAttempts   = apperrors.New(apperrors.Unauthorized, "too_many_attempts", "too many incorrect attempts, request a new pin")
	ErrRecoveryRequired  = apperrors.New(apperrors.Forbidden, "recovery_not_confirmed", "password change not authorized")
	ErrPinRateLimited    = apperrors.New(apperrors.RateLimited, "too_many_requests", "too many pin requests, try again later")
	ErrLimiterDown       = apperrors.New(apperrors.Unavailable, "limiter_unavailable", "pin issuance temporarily unavailable")
	ErrDestinationNeeded = apperrors.New(apperrors.BadRequest, "destination_required", "a destination is required for this channel")
	ErrPasswordRequired  = apperrors.New(apperrors.BadRequest, "password_required", "password is required")
)

// IssueLimiter throttles PIN issuance per account and purpose.
type IssueLimiter interface {
	Allow(ctx context.Context, email string, recovery bool) error
}

type VerificationConfig struct {
	PinTTL              time.Duration
	MaxRecoveryAttempts int
	SendTimeout         time.Duration
}

type VerificationService interface {
	// NotifyUser issues an account verification PIN.
	NotifyUser(ctx context.Context, email, to string, channel Channel) error
	// SendRecoveryPin issues a password recovery PIN.
	SendRecoveryPin(ctx context.Context, email, to string, channel Channel) error
	VerifyPin(ctx context.Context, email, pin string) error
	ConfirmRecoveryPin(ctx context.Context, email, pin string) error
	ChangePassword(ctx context.Context, email, newPassword string) error
}

type verificationService struct {
	store    repositories.Store
	notifier Notifier
	hasher   PasswordHasher
	limiter  IssueLimiter
	cfg      VerificationConfig
	log      *zap.Logger
	now      func() time.Time
	generate func() (string, error)
}

type VerificationOption func(*verificationService)

// WithVerificationClock replaces time.Now.
func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(s *verificationService) { s.now = now }
}

// WithPinGenerator replaces the random PIN source.
func WithPinGenerator(gen func() (string, error)) VerificationOption {
	return func(s *verificationService) { s.generate = gen }
}

func NewVerificationService(
	store repositories.Store,
	notifier Notifier,
	hasher PasswordHasher,
	limiter IssueLimiter,
	cfg VerificationConfig,
	log *zap.Logger,
	opts ...VerificationOption,
) VerificationService {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s := &verificationService{
		store:    store,
		notifier: notifier,
		hasher:   hasher,
		limiter:  limiter,
		cfg:      cfg,
		log:      log.Named("verification"),
		now:      time.Now,
		generate: GeneratePin,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *verificationService) NotifyUser(ctx context.Context, email, to string, channel Channel) error {
	return s.issue(ctx, email, to, channel, false)
}

func (s *verificationService) SendRecoveryPin(ctx context.Context, email, to string, channel Channel) error {
	return s.issue(ctx, email, to, channel, true)
}

func purposeLabel(recovery bool) string {
	if recovery {
		return "recovery"
	}
	return "verification"
}

// issue delivers a fresh code first and persists it only after the provider
// accepted it, so a failed delivery leaves the previous row untouched.
func (s *verificationService) issue(ctx context.Context, email, to string, channel Channel, recovery bool) error {
	purpose := purposeLabel(recovery)
	email = strings.TrimSpace(email)

	cred, err := s.store.Credentials().GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if !recovery && cred.IsVerified {
		return ErrAlreadyVerified
	}

	if to = strings.TrimSpace(to); to == "" {
		if channel != ChannelEmail {
			return ErrDestinationNeeded
		}
		to = email
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, email, recovery); err != nil {
			metrics.PinIssuedTotal.WithLabelValues(purpose, string(channel), "rate_limited").Inc()
			if errors.Is(err, limiters.ErrIssueRateLimited) {
				return ErrPinRateLimited
			}
			s.log.Error("[pin][issue] limiter failed", zap.String("purpose", purpose), zap.Error(err))
			return apperrors.Wrap(apperrors.Unavailable, ErrLimiterDown.Type, ErrLimiterDown.Message, err)
		}
	}

	pin, err := s.generate()
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, to, pin, channel); err != nil {
		metrics.PinIssuedTotal.WithLabelValues(purpose, string(channel), apperrors.KindOf(err).String()).Inc()
		s.log.Warn("[pin][issue] delivery failed",
			zap.String("purpose", purpose),
			zap.String("channel", string(channel)),
			zap.Error(err))
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return notificationUnavailable(err)
	}

	createdAt := s.now().UTC()
	if err := s.storePin(ctx, email, pin, recovery, createdAt); err != nil {
		metrics.PinIssuedTotal.WithLabelValues(purpose, string(channel), "internal").Inc()
		return fmt.Errorf("store pin: %w", err)
	}
	metrics.PinIssuedTotal.WithLabelValues(purpose, string(channel), "sent").Inc()
	s.log.Info("[pin][issue] sent", zap.String("purpose", purpose), zap.String("channel", string(channel)))
	return nil
}

// storePin creates the row or replaces the existing one in place. Two first
// issues racing on the same email collide on the primary key; the loser
// retries once and takes the replace path.
func (s *verificationService) storePin(ctx context.Context, email, pin string, recovery bool, createdAt time.Time) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.store.WithinTx(ctx, func(r repositories.Repos) error {
			_, err := r.Pins().GetForUpdate(ctx, email)
			switch {
			case errors.Is(err, repositories.ErrNotFound):
				return r.Pins().Create(ctx, &models.VerificationPin{
					Email:               email,
					Pin:                 pin,
					CreatedAt:           createdAt,
					IsValid:             true,
					ForPasswordRecovery: recovery,
				})
			case err != nil:
				return err
			}
			return r.Pins().Replace(ctx, email, pin, recovery, createdAt)
		})
		if !errors.Is(err, repositories.ErrDuplicate) {
			return err
		}
	}
	return err
}

func (s *verificationService) VerifyPin(ctx context.Context, email, pin string) error {
	var outcome error
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		outcome = nil
		cred, err := r.Credentials().GetByEmailForUpdate(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = ErrAccountNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if cred.IsVerified {
			outcome = ErrAlreadyVerified
			return nil
		}

		p, err := r.Pins().GetForUpdate(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = ErrPinNotFound
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case !pinEqual(p.Pin, pin):
			outcome = ErrPinMismatch
			return r.Pins().Invalidate(ctx, email)
		case p.ExpiredAt(s.now().UTC(), s.cfg.PinTTL):
			outcome = ErrPinExpired
			return r.Pins().Invalidate(ctx, email)
		case !p.IsValid:
			outcome = ErrPinInvalidated
			return nil
		case p.ForPasswordRecovery:
			outcome = ErrPinWrongPurpose
			return r.Pins().Invalidate(ctx, email)
		}

		if err := r.Pins().Delete(ctx, email); err != nil {
			return err
		}
		cred.IsVerified = true
		return r.Credentials().Update(ctx, cred)
	})
	if err != nil {
		metrics.PinChecksTotal.WithLabelValues("verification", "error").Inc()
		return fmt.Errorf("verify pin: %w", err)
	}
	s.recordCheck("verification", outcome)
	return outcome
}

func (s *verificationService) ConfirmRecoveryPin(ctx context.Context, email, pin string) error {
	var outcome error
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		outcome = nil
		p, err := r.Pins().GetForUpdate(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = ErrPinNotFound
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case !pinEqual(p.Pin, pin):
			n, err := r.Pins().IncrementIncorrectAttempts(ctx, email)
			if err != nil {
				return err
			}
			if n >= s.cfg.MaxRecoveryAttempts {
				outcome = ErrTooManyAttempts
				return r.Pins().Invalidate(ctx, email)
			}
			outcome = ErrPinMismatch
			return nil
		case p.ExpiredAt(s.now().UTC(), s.cfg.PinTTL):
			outcome = ErrPinExpired
			return r.Pins().Invalidate(ctx, email)
		case !p.IsValid:
			outcome = ErrPinInvalidated
			return nil
		case !p.ForPasswordRecovery:
			outcome = ErrPinWrongPurpose
			return r.Pins().Invalidate(ctx, email)
		}
		return r.Pins().MarkCanChange(ctx, email)
	})
	if err != nil {
		metrics.PinChecksTotal.WithLabelValues("recovery", "error").Inc()
		return fmt.Errorf("confirm recovery pin: %w", err)
	}
	s.recordCheck("recovery", outcome)
	return outcome
}

func (s *verificationService) ChangePassword(ctx context.Context, email, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	var outcome error
	err = s.store.WithinTx(ctx, func(r repositories.Repos) error {
		outcome = nil
		cred, err := r.Credentials().GetByEmailForUpdate(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = ErrAccountNotFound
			return nil
		}
		if err != nil {
			return err
		}

		p, err := r.Pins().GetForUpdate(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = ErrRecoveryRequired
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case !p.ForPasswordRecovery:
			outcome = ErrPinWrongPurpose
			return nil
		case !p.IsValid:
			outcome = ErrPinInvalidated
			return nil
		case !p.CanChange:
			outcome = ErrRecoveryRequired
			return nil
		}

		cred.PasswordHash = hash
		if err := r.Credentials().Update(ctx, cred); err != nil {
			return err
		}
		return r.Pins().Delete(ctx, email)
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if outcome == nil {
		s.log.Info("[recovery][password] changed", zap.String("email", email))
	}
	return outcome
}

func (s *verificationService) recordCheck(purpose string, outcome error) {
	label := "ok"
	if e, ok := apperrors.As(outcome); ok {
		label = e.Type
	}
	metrics.PinChecksTotal.WithLabelValues(purpose, label).Inc()
}
