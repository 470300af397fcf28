package session

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/repository"
)

// Listener is told about every session change. A nil identity means signed out.
type Listener func(identity *domain.Identity)

// Options tunes credential handling.
type Options struct {
	BcryptCost        int
	MinPasswordLength int
}

// Dependencies bundles collaborators of the store.
type Dependencies struct {
	Identities repository.IdentityRepository
	Tokens     *auth.TokenManager
	// Cache is optional; without it sessions do not survive a restart.
	Cache  TokenCache
	Logger *zap.Logger
}

// Store is the process-wide session context. It is created once at startup,
// restored from the token cache, and torn down to signed-out by End.
type Store struct {
	identities repository.IdentityRepository
	tokens     *auth.TokenManager
	cache      TokenCache
	logger     *zap.Logger
	opts       Options

	mu        sync.RWMutex
	current   *domain.Identity
	listeners map[uint64]Listener
	nextID    uint64

	// notifyMu keeps listener calls in change order.
	notifyMu sync.Mutex
}

// NewStore builds a signed-out store.
func NewStore(opts Options, deps Dependencies) *Store {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		identities: deps.Identities,
		tokens:     deps.Tokens,
		cache:      deps.Cache,
		logger:     logger,
		opts:       opts,
		listeners:  make(map[uint64]Listener),
	}
}

// OnChange registers fn and calls it right away with the current identity.
// The returned func removes the listener and may be called more than once.
func (s *Store) OnChange(fn Listener) func() {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := cloneIdentity(s.current)
	s.mu.Unlock()
	fn(current)
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Current returns the cached identity without any I/O.
func (s *Store) Current() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneIdentity(s.current)
}

// CreateIdentity registers credentials and signs the new identity in.
func (s *Store) CreateIdentity(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, newError(CodeInvalidEmail, nil)
	}
	if err := auth.CheckPasswordLength(password, s.opts.MinPasswordLength); err != nil {
		return nil, newError(CodeWeakPassword, err)
	}

	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return nil, newError(CodeInternal, err)
	}
	cred := &domain.Credential{Identity: domain.Identity{Email: email}, PasswordHash: hash}
	if err := s.identities.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(CodeEmailInUse, err)
		}
		return nil, newError(CodeInternal, err)
	}

	identity := cred.Identity
	s.signIn(ctx, identity)
	return cloneIdentity(&identity), nil
}

// AuthenticateIdentity verifies credentials and signs the identity in.
func (s *Store) AuthenticateIdentity(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, newError(CodeInvalidEmail, nil)
	}
	cred, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeUserNotFound, err)
		}
		return nil, newError(CodeInternal, err)
	}
	if err := auth.ComparePassword(cred.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, newError(CodeWrongPassword, err)
		}
		return nil, newError(CodeInternal, err)
	}

	identity := cred.Identity
	s.signIn(ctx, identity)
	return cloneIdentity(&identity), nil
}

// End signs out. The identity is cleared even when the token cache fails,
// in which case the cache error is returned.
func (s *Store) End(ctx context.Context) error {
	var cacheErr error
	if s.cache != nil {
		cacheErr = s.cache.Clear(ctx)
	}
	s.setCurrent(nil)
	return cacheErr
}

// Restore signs back in with a cached, still valid token. A missing, expired
// or orphaned token leaves the store signed out.
func (s *Store) Restore(ctx context.Context) error {
	if s.cache == nil || s.tokens == nil {
		return nil
	}
	token, err := s.cache.Load(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	identity, err := s.tokens.ParseToken(token)
	if err != nil {
		s.logger.Info("discarding cached session", zap.Error(err))
		return s.cache.Clear(ctx)
	}
	if _, err := s.identities.GetByID(ctx, identity.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("discarding session for unknown identity", zap.String("identity_id", identity.ID))
			return s.cache.Clear(ctx)
		}
		return err
	}
	s.setCurrent(identity)
	s.logger.Info("session restored", zap.String("identity_id", identity.ID))
	return nil
}

func (s *Store) signIn(ctx context.Context, identity domain.Identity) {
	if s.cache != nil && s.tokens != nil {
		token, _, err := s.tokens.GenerateToken(identity)
		if err == nil {
			err = s.cache.Save(ctx, token, s.tokens.TTL())
		}
		if err != nil {
			s.logger.Warn("session will not survive restart", zap.Error(err))
		}
	}
	s.setCurrent(&identity)
}

func (s *Store) setCurrent(identity *domain.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = cloneIdentity(identity)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneIdentity(identity))
	}
}

func cloneIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	out := *identity
	return &out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}
