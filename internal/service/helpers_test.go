package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/internal/repository/memory"
	"github.com/spec-kit/ticket-tracker/internal/session"
)

type countingSession struct {
	*session.Store
	mu      sync.Mutex
	creates int
	endErr  error
}

func (c *countingSession) CreateIdentity(ctx context.Context, email, password string) (*domain.Identity, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.Store.CreateIdentity(ctx, email, password)
}

func (c *countingSession) End(ctx context.Context) error {
	if c.endErr != nil {
		return c.endErr
	}
	return c.Store.End(ctx)
}

func (c *countingSession) createCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// laggingProfiles hides a profile for the first `hidden` reads after it was written.
type laggingProfiles struct {
	repository.ProfileRepository
	mu     sync.Mutex
	hidden int
	reads  int
	putErr error
	getErr error
}

func (l *laggingProfiles) Put(ctx context.Context, profile *domain.UserProfile) error {
	if l.putErr != nil {
		return l.putErr
	}
	return l.ProfileRepository.Put(ctx, profile)
}

func (l *laggingProfiles) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	l.mu.Lock()
	l.reads++
	hide := l.hidden > 0
	if hide {
		l.hidden--
	}
	l.mu.Unlock()
	if l.getErr != nil {
		return nil, l.getErr
	}
	if hide {
		return nil, repository.ErrNotFound
	}
	return l.ProfileRepository.Get(ctx, id)
}

func (l *laggingProfiles) readCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

type testEnv struct {
	session    *countingSession
	identities *memory.IdentityStore
	profiles   *laggingProfiles
	tickets    *memory.TicketStore
	history    *memory.HistoryStore
	dispatcher events.Dispatcher
	auth       *AuthService
	svc        *TicketService
	sleeps     []time.Duration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		Auth:    config.AuthConfig{MinPasswordLength: 6},
		Tracker: config.TrackerConfig{RoleLookupRetries: 3, RoleLookupBackoffMillis: 500},
	}

	identities := memory.NewIdentityStore()
	store := session.NewStore(session.Options{BcryptCost: 4}, session.Dependencies{Identities: identities})
	env := &testEnv{
		session:    &countingSession{Store: store},
		identities: identities,
		profiles:   &laggingProfiles{ProfileRepository: memory.NewProfileStore()},
		tickets:    memory.NewTicketStore(),
		history:    memory.NewHistoryStore(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	env.auth = NewAuthService(cfg, AuthDependencies{Session: env.session, Profiles: env.profiles})
	env.auth.sleep = func(_ context.Context, d time.Duration) error {
		env.sleeps = append(env.sleeps, d)
		return nil
	}
	env.svc = NewTicketService(TicketDependencies{
		Session:     env.session,
		TicketRepo:  env.tickets,
		HistoryRepo: env.history,
		ProfileRepo: env.profiles,
		Dispatcher:  env.dispatcher,
	})
	return env
}

func (e *testEnv) register(t *testing.T, email, name string, role domain.Role) *domain.Identity {
	t.Helper()
	identity, err := e.auth.Register(context.Background(), email, "secret123", name, role)
	require.NoError(t, err)
	return identity
}

func (e *testEnv) signIn(t *testing.T, email string) {
	t.Helper()
	_, err := e.auth.Authenticate(context.Background(), email, "secret123")
	require.NoError(t, err)
}

// lastList collects snapshots pushed to a subscription.
type lastList struct {
	mu    sync.Mutex
	lists [][]domain.Ticket
	errs  []error
}

func (l *lastList) onData(tickets []domain.Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lists = append(l.lists, tickets)
}

func (l *lastList) onError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *lastList) latest() []domain.Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lists) == 0 {
		return nil
	}
	return l.lists[len(l.lists)-1]
}

func (l *lastList) deliveries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lists)
}
