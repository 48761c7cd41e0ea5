package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"classconnect-auth/internal/models"
	"classconnect-auth/internal/repositories"
)

// memStore is an in-memory repositories.Store. Transactions hold the store
// mutex for their whole duration, which serializes them the way row locks
// serialize transactions touching the same account.
type memStore struct {
	mu    sync.Mutex
	creds map[string]*models.Credential // by email
	pins  map[string]*models.VerificationPin

	failPinWrites error
}

func newMemStore() *memStore {
	return &memStore{
		creds: map[string]*models.Credential{},
		pins:  map[string]*models.VerificationPin{},
	}
}

func (s *memStore) Credentials() repositories.CredentialRepository {
	return memCreds{s: s}
}

func (s *memStore) Pins() repositories.VerificationPinRepository {
	return memPins{s: s}
}

func (s *memStore) WithinTx(_ context.Context, fn func(r repositories.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, pins := s.snapshot()
	if err := fn(memTx{s: s}); err != nil {
		s.creds, s.pins = creds, pins
		return err
	}
	return nil
}

func (s *memStore) snapshot() (map[string]*models.Credential, map[string]*models.VerificationPin) {
	creds := make(map[string]*models.Credential, len(s.creds))
	for k, v := range s.creds {
		creds[k] = copyCred(v)
	}
	pins := make(map[string]*models.VerificationPin, len(s.pins))
	for k, v := range s.pins {
		cp := *v
		pins[k] = &cp
	}
	return creds, pins
}

// seed adds a credential directly, bypassing repository rules.
func (s *memStore) seed(c *models.Credential) *models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.creds[c.Email] = copyCred(c)
	return c
}

func (s *memStore) cred(email string) *models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.creds[email]; ok {
		return copyCred(c)
	}
	return nil
}

func (s *memStore) pin(email string) *models.VerificationPin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pins[email]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (s *memStore) setPin(p *models.VerificationPin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pins[p.Email] = &cp
}

func copyCred(c *models.Credential) *models.Credential {
	cp := *c
	if c.LockUntil != nil {
		t := *c.LockUntil
		cp.LockUntil = &t
	}
	if c.LastFailedLogin != nil {
		t := *c.LastFailedLogin
		cp.LastFailedLogin = &t
	}
	return &cp
}

type memTx struct{ s *memStore }

func (t memTx) Credentials() repositories.CredentialRepository {
	return memCreds{s: t.s, inTx: true}
}

func (t memTx) Pins() repositories.VerificationPinRepository {
	return memPins{s: t.s, inTx: true}
}

type memCreds struct {
	s    *memStore
	inTx bool
}

func (r memCreds) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memCreds) GetByEmail(_ context.Context, email string) (*models.Credential, error) {
	defer r.lock()()
	c, ok := r.s.creds[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyCred(c), nil
}

func (r memCreds) GetByEmailForUpdate(ctx context.Context, email string) (*models.Credential, error) {
	return r.GetByEmail(ctx, email)
}

func (r memCreds) GetByID(_ context.Context, id string) (*models.Credential, error) {
	defer r.lock()()
	for _, c := range r.s.creds {
		if c.ID == id {
			return copyCred(c), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memCreds) Create(_ context.Context, c *models.Credential) error {
	defer r.lock()()
	if _, ok := r.s.creds[c.Email]; ok {
		return repositories.ErrDuplicate
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	c.FailedAttempts = 0
	c.IsLocked = false
	c.LockUntil = nil
	c.LastFailedLogin = nil
	r.s.creds[c.Email] = copyCred(c)
	return nil
}

func (r memCreds) Update(_ context.Context, c *models.Credential) error {
	defer r.lock()()
	cur, ok := r.s.creds[c.Email]
	if !ok || cur.ID != c.ID {
		return repositories.ErrNotFound
	}
	if c.IsLocked && c.LockUntil == nil {
		return fmt.Errorf("credential update: lock_until required when locked")
	}
	r.s.creds[c.Email] = copyCred(c)
	return nil
}

func (r memCreds) Delete(_ context.Context, id string) error {
	defer r.lock()()
	for email, c := range r.s.creds {
		if c.ID == id {
			delete(r.s.creds, email)
			delete(r.s.pins, email)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type memPins struct {
	s    *memStore
	inTx bool
}

func (r memPins) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memPins) Get(_ context.Context, email string) (*models.VerificationPin, error) {
	defer r.lock()()
	p, ok := r.s.pins[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memPins) GetForUpdate(ctx context.Context, email string) (*models.VerificationPin, error) {
	return r.Get(ctx, email)
}

func (r memPins) Create(_ context.Context, p *models.VerificationPin) error {
	defer r.lock()()
	if r.s.failPinWrites != nil {
		return r.s.failPinWrites
	}
	if _, ok := r.s.creds[p.Email]; !ok {
		return fmt.Errorf("verification_pin create: no credential for %s", p.Email)
	}
	if _, ok := r.s.pins[p.Email]; ok {
		return repositories.ErrDuplicate
	}
	cp := *p
	cp.IsValid = true
	cp.CanChange = false
	cp.IncorrectAttempts = 0
	r.s.pins[p.Email] = &cp
	return nil
}

func (r memPins) Replace(_ context.Context, email, pin string, forRecovery bool, createdAt time.Time) error {
	defer r.lock()()
	if r.s.failPinWrites != nil {
		return r.s.failPinWrites
	}
	p, ok := r.s.pins[email]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Pin = pin
	p.CreatedAt = createdAt.UTC()
	p.IsValid = true
	p.CanChange = false
	p.ForPasswordRecovery = forRecovery
	return nil
}

func (r memPins) update(email string, fn func(p *models.VerificationPin)) error {
	defer r.lock()()
	p, ok := r.s.pins[email]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(p)
	return nil
}

func (r memPins) Invalidate(_ context.Context, email string) error {
	return r.update(email, func(p *models.VerificationPin) { p.IsValid = false })
}

func (r memPins) MarkCanChange(_ context.Context, email string) error {
	return r.update(email, func(p *models.VerificationPin) { p.CanChange = true })
}

func (r memPins) IncrementIncorrectAttempts(_ context.Context, email string) (int, error) {
	var n int
	err := r.update(email, func(p *models.VerificationPin) {
		p.IncorrectAttempts++
		n = p.IncorrectAttempts
	})
	return n, err
}

func (r memPins) Delete(_ context.Context, email string) error {
	defer r.lock()()
	if _, ok := r.s.pins[email]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.pins, email)
	return nil
}

func (r memPins) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for email, p := range r.s.pins {
		if p.CreatedAt.Before(cutoff) {
			delete(r.s.pins, email)
			n++
		}
	}
	return n, nil
}

// clock is a settable time source shared by services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t.UTC()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
