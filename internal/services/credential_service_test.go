package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"classconnect-auth/internal/apperrors"
	"classconnect-auth/internal/models"
)

type stubProfiles struct {
	mu  sync.Mutex
	got []models.Profile
	err error
}

func (p *stubProfiles) CreateProfile(_ context.Context, prof models.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, prof)
	return p.err
}

type stubIdentity struct {
	id  *models.Identity
	err error
}

func (s stubIdentity) UserInfo(context.Context, string) (*models.Identity, error) {
	return s.id, s.err
}

type credentialFixture struct {
	store    *memStore
	profiles *stubProfiles
	clock    *clock
	hasher   PasswordHasher
	tokens   TokenIssuer
	svc      CredentialService
}

func newCredentialFixture(t *testing.T, opts ...CredentialOption) *credentialFixture {
	t.Helper()
	f := &credentialFixture{
		store:    newMemStore(),
		profiles: &stubProfiles{},
		clock:    newClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		hasher:   NewBcryptHasher(bcrypt.MinCost),
	}
	f.tokens = &tokenService{key: []byte("test-secret"), ttl: 15 * time.Minute, now: f.clock.Now}
	opts = append([]CredentialOption{WithCredentialClock(f.clock.Now)}, opts...)
	f.svc = NewCredentialService(
		f.store, f.hasher, f.tokens,
		LoginGuard{MaxFailedAttempts: 3, LockDuration: 15 * time.Minute},
		f.profiles, zap.NewNop(), opts...,
	)
	return f
}

func (f *credentialFixture) seedVerified(t *testing.T, password string) *models.Credential {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return f.store.seed(&models.Credential{Email: testEmail, PasswordHash: hash, IsVerified: true})
}

func TestRegisterCreatesCredentialAndProfile(t *testing.T) {
	f := newCredentialFixture(t)
	cred, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Email: testEmail, Password: "secret1", Name: "Ana", LastName: "Diaz",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, cred.ID)
	assert.False(t, cred.IsVerified)
	stored := f.store.cred(testEmail)
	require.NotNil(t, stored)
	assert.True(t, f.hasher.Verify("secret1", stored.PasswordHash))

	require.Len(t, f.profiles.got, 1)
	assert.Equal(t, models.Profile{ID: cred.ID, Email: testEmail, Name: "Ana", LastName: "Diaz", Role: "student"}, f.profiles.got[0])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newCredentialFixture(t)
	f.seedVerified(t, "secret1")

	_, err := f.svc.Register(context.Background(), models.RegisterRequest{Email: testEmail, Password: "secret2"})
	assert.True(t, errors.Is(err, ErrEmailRegistered))
	assert.Empty(t, f.profiles.got)
}

func TestRegisterRollsBackOnProfileFailure(t *testing.T) {
	f := newCredentialFixture(t)
	f.profiles.err = errors.New("connection refused")

	_, err := f.svc.Register(context.Background(), models.RegisterRequest{Email: testEmail, Password: "secret1"})
	assert.Equal(t, apperrors.Unavailable, apperrors.KindOf(err))
	assert.Nil(t, f.store.cred(testEmail))

	f.profiles.err = nil
	_, err = f.svc.Register(context.Background(), models.RegisterRequest{Email: testEmail, Password: "secret1"})
	assert.NoError(t, err)
}

func TestRegisterCompensatesAfterCancellation(t *testing.T) {
	f := newCredentialFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.profiles.err = ErrProfileUnavailable
	cancel()

	_, err := f.svc.Register(ctx, models.RegisterRequest{Email: testEmail, Password: "secret1"})
	assert.True(t, errors.Is(err, ErrProfileUnavailable))
	assert.Nil(t, f.store.cred(testEmail))
}

func TestRegisterRequiresPassword(t *testing.T) {
	f := newCredentialFixture(t)
	_, err := f.svc.Register(context.Background(), models.RegisterRequest{Email: testEmail})
	assert.Equal(t, apperrors.BadRequest, apperrors.KindOf(err))
}

func TestLoginIssuesToken(t *testing.T) {
	f := newCredentialFixture(t)
	cred := f.seedVerified(t, "secret1")

	resp, err := f.svc.Login(context.Background(), testEmail, "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.True(t, resp.ExpiresAt.Equal(f.clock.Now().Add(15*time.Minute)))

	claims, err := f.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, claims.Subject)
	assert.Equal(t, testEmail, claims.Email)
}

func TestLoginUnknownEmailIsInvalidCredentials(t *testing.T) {
	f := newCredentialFixture(t)
	_, err := f.svc.Login(context.Background(), "ghost@example.com", "secret1")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestLoginUnverifiedAccount(t *testing.T) {
	f := newCredentialFixture(t)
	hash, _ := f.hasher.Hash("secret1")
	f.store.seed(&models.Credential{Email: testEmail, PasswordHash: hash})

	_, err := f.svc.Login(context.Background(), testEmail, "secret1")
	assert.True(t, errors.Is(err, ErrNotVerified))
	_, err = f.svc.Login(context.Background(), testEmail, "wrong")
	assert.True(t, errors.Is(err, ErrNotVerified))
	assert.Zero(t, f.store.cred(testEmail).FailedAttempts)
}

func TestLoginLocksAfterMaxFailures(t *testing.T) {
	f := newCredentialFixture(t)
	f.seedVerified(t, "secret1")
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := f.svc.Login(ctx, testEmail, "wrong")
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
		assert.Equal(t, i, f.store.cred(testEmail).FailedAttempts)
	}

	_, err := f.svc.Login(ctx, testEmail, "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	e, _ := apperrors.As(err)
	require.NotNil(t, e.LockUntil)
	assert.True(t, e.LockUntil.Equal(f.clock.Now().Add(15*time.Minute)))

	c := f.store.cred(testEmail)
	assert.True(t, c.IsLocked)
	assert.Equal(t, 3, c.FailedAttempts)

	_, err = f.svc.Login(ctx, testEmail, "secret1")
	assert.True(t, errors.Is(err, ErrAccountLocked))
	e, _ = apperrors.As(err)
	require.NotNil(t, e.LockUntil)
}

func TestLoginAutoUnlocksAfterLockExpires(t *testing.T) {
	f := newCredentialFixture(t)
	f.seedVerified(t, "secret1")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, testEmail, "wrong")
	}

	f.clock.Advance(15*time.Minute + time.Second)
	_, err := f.svc.Login(ctx, testEmail, "secret1")
	require.NoError(t, err)

	c := f.store.cred(testEmail)
	assert.False(t, c.IsLocked)
	assert.Nil(t, c.LockUntil)
	assert.Zero(t, c.FailedAttempts)
	assert.Nil(t, c.LastFailedLogin)
}

func TestLoginWrongPasswordAfterUnlockStartsNewCount(t *testing.T) {
	f := newCredentialFixture(t)
	f.seedVerified(t, "secret1")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, testEmail, "wrong")
	}

	f.clock.Advance(16 * time.Minute)
	_, err := f.svc.Login(ctx, testEmail, "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	c := f.store.cred(testEmail)
	assert.False(t, c.IsLocked)
	assert.Equal(t, 1, c.FailedAttempts)
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	f := newCredentialFixture(t)
	f.seedVerified(t, "secret1")
	ctx := context.Background()
	_, _ = f.svc.Login(ctx, testEmail, "wrong")
	_, _ = f.svc.Login(ctx, testEmail, "wrong")

	_, err := f.svc.Login(ctx, testEmail, "secret1")
	require.NoError(t, err)
	assert.Zero(t, f.store.cred(testEmail).FailedAttempts)
}

func TestLoginConcurrentFailuresCountEach(t *testing.T) {
	f := newCredentialFixture(t, WithCredentialClock(time.Now))
	f.seedVerified(t, "secret1")
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Login(ctx, testEmail, "wrong")
		}()
	}
	wg.Wait()

	c := f.store.cred(testEmail)
	assert.True(t, c.IsLocked)
	assert.Equal(t, 3, c.FailedAttempts)
}

func TestLoginFederatedAccountHasNoPassword(t *testing.T) {
	f := newCredentialFixture(t)
	f.store.seed(&models.Credential{Email: testEmail, IsVerified: true})

	_, err := f.svc.Login(context.Background(), testEmail, "")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestLoginWithGoogleCreatesFederatedAccount(t *testing.T) {
	id := &models.Identity{Email: "g@example.com", Name: "Gus", LastName: "Lee", Picture: "http://pic"}
	f := newCredentialFixture(t, WithIdentityProvider(stubIdentity{id: id}))
	ctx := context.Background()

	resp, err := f.svc.LoginWithGoogle(ctx, "google-token")
	require.NoError(t, err)

	c := f.store.cred("g@example.com")
	require.NotNil(t, c)
	assert.True(t, c.IsFederated())
	claims, err := f.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, c.ID, claims.Subject)

	require.Len(t, f.profiles.got, 1)
	assert.Equal(t, "http://pic", f.profiles.got[0].Picture)

	_, err = f.svc.LoginWithGoogle(ctx, "google-token")
	require.NoError(t, err)
	assert.Len(t, f.profiles.got, 1)
}

func TestLoginWithGoogleErrors(t *testing.T) {
	f := newCredentialFixture(t, WithIdentityProvider(stubIdentity{err: ErrIdentityInvalid}))
	_, err := f.svc.LoginWithGoogle(context.Background(), "")
	assert.True(t, errors.Is(err, ErrGoogleTokenMissing))

	_, err = f.svc.LoginWithGoogle(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrIdentityInvalid))

	disabled := newCredentialFixture(t)
	_, err = disabled.svc.LoginWithGoogle(context.Background(), "tok")
	assert.Equal(t, apperrors.Unavailable, apperrors.KindOf(err))
}

func TestLoginWithGoogleProfileFailureRemovesCredential(t *testing.T) {
	id := &models.Identity{Email: "g@example.com"}
	f := newCredentialFixture(t, WithIdentityProvider(stubIdentity{id: id}))
	f.profiles.err = errors.New("boom")

	_, err := f.svc.LoginWithGoogle(context.Background(), "tok")
	assert.Equal(t, apperrors.Unavailable, apperrors.KindOf(err))
	assert.Nil(t, f.store.cred("g@example.com"))
}

func TestGetByID(t *testing.T) {
	f := newCredentialFixture(t)
	cred := f.seedVerified(t, "secret1")

	got, err := f.svc.GetByID(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.Equal(t, testEmail, got.Email)

	_, err = f.svc.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestPinReaperSweep(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store.seed(&models.Credential{Email: "old@example.com"})
	store.seed(&models.Credential{Email: "new@example.com"})
	store.setPin(&models.VerificationPin{Email: "old@example.com", CreatedAt: now.Add(-25 * time.Hour)})
	store.setPin(&models.VerificationPin{Email: "new@example.com", CreatedAt: now.Add(-time.Hour)})

	r := NewPinReaper(store.Pins(), time.Minute, 24*time.Hour, zap.NewNop())
	r.now = func() time.Time { return now }

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Nil(t, store.pin("old@example.com"))
	assert.NotNil(t, store.pin("new@example.com"))
}
