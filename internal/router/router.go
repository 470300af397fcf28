// Package router maps the session identity and its role onto the UI mode
// that decides which screens are reachable.
package router

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/session"
)

// State is the router's top-level variant.
type State string

const (
	StateResolving       State = "resolving"
	StateUnauthenticated State = "unauthenticated"
	StateClient          State = "client"
	StateAdmin           State = "admin"
)

// Mode is the current routing decision. Identity is set while resolving and
// in the client/admin states; Role only in the client/admin states.
type Mode struct {
	State    State
	Identity *domain.Identity
	Role     domain.Role
}

// SignedIn reports whether the mode grants access to a role screen set.
func (m Mode) SignedIn() bool {
	return m.State == StateClient || m.State == StateAdmin
}

func (m Mode) same(other Mode) bool {
	if m.State != other.State || m.Role != other.Role {
		return false
	}
	if m.Identity == nil || other.Identity == nil {
		return m.Identity == other.Identity
	}
	return m.Identity.ID == other.Identity.ID
}

// SessionSource is the part of the session store the router observes.
type SessionSource interface {
	OnChange(fn session.Listener) func()
}

// RoleResolver looks up roles and ends sessions that cannot be routed.
type RoleResolver interface {
	ResolveRole(ctx context.Context, identityID string) (domain.Role, error)
	EndSession(ctx context.Context) error
}

// ModeListener receives every mode change. Listeners run in registration
// order on the router goroutine and must not register further listeners.
type ModeListener func(mode Mode)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("router already started")
	// ErrUnroutable reports that the identity's role could not be resolved
	// and its session was ended.
	ErrUnroutable = errors.New("identity could not be routed")
)

// sessionChange is one session notification. seq counts sign-ins; a
// sign-out keeps the seq of the sign-in it ends.
type sessionChange struct {
	identity *domain.Identity
	seq      uint64
}

type resolution struct {
	generation uint64
	seq        uint64
	identity   *domain.Identity
	role       domain.Role
	err        error
}

// Router is the role state machine. All transitions happen on a single loop
// goroutine fed by session notifications.
type Router struct {
	session  SessionSource
	resolver RoleResolver
	logger   *zap.Logger

	mailbox chan sessionChange
	pushMu  sync.Mutex
	results chan resolution

	mu        sync.RWMutex
	mode      Mode
	signInSeq uint64
	failedID  string
	failedSeq uint64
	failure   error
	listeners map[uint64]ModeListener
	nextID    uint64
	notifyMu  sync.Mutex

	startOnce   sync.Once
	started     bool
	stop        context.CancelFunc
	unsubscribe func()
	done        chan struct{}
}

// New builds a router in the Resolving state.
func New(source SessionSource, resolver RoleResolver, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		session:   source,
		resolver:  resolver,
		logger:    logger,
		mailbox:   make(chan sessionChange, 1),
		results:   make(chan resolution),
		mode:      Mode{State: StateResolving},
		listeners: make(map[uint64]ModeListener),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the session store and runs the loop until ctx ends or
// Stop is called.
func (r *Router) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	r.startOnce.Do(func() {
		err = nil
		loopCtx, cancel := context.WithCancel(ctx)
		go r.loop(loopCtx)
		unsubscribe := r.session.OnChange(r.push)

		r.mu.Lock()
		r.started = true
		r.stop = cancel
		r.unsubscribe = unsubscribe
		r.mu.Unlock()
	})
	return err
}

// Stop unsubscribes from the session store and waits for the loop to exit.
func (r *Router) Stop() {
	r.mu.RLock()
	started, stop, unsubscribe := r.started, r.stop, r.unsubscribe
	r.mu.RUnlock()
	if !started {
		return
	}
	unsubscribe()
	stop()
	<-r.done
}

// Mode returns the current mode.
func (r *Router) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// OnModeChange registers fn and calls it right away with the current mode.
// The returned func may be called more than once.
func (r *Router) OnModeChange(fn ModeListener) func() {
	r.notifyMu.Lock()
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	current := r.mode
	r.mu.Unlock()
	fn(current)
	r.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// Await blocks until the mode settles into one of states or ctx ends.
func (r *Router) Await(ctx context.Context, states ...State) (Mode, error) {
	settled := make(chan Mode, 1)
	unsubscribe := r.OnModeChange(func(mode Mode) {
		for _, state := range states {
			if mode.State == state {
				select {
				case settled <- mode:
				default:
				}
				return
			}
		}
	})
	defer unsubscribe()

	select {
	case mode := <-settled:
		return mode, nil
	case <-ctx.Done():
		return r.Mode(), ctx.Err()
	}
}

// AwaitSettled blocks until routing of identityID is finished: the mode is
// Client or Admin for that identity, or its resolution failed and the router
// fell back to Unauthenticated. The latter returns the Unauthenticated mode
// and ErrUnroutable wrapping the resolution error.
func (r *Router) AwaitSettled(ctx context.Context, identityID string) (Mode, error) {
	type outcome struct {
		mode Mode
		err  error
	}
	settled := make(chan outcome, 1)
	unsubscribe := r.OnModeChange(func(mode Mode) {
		var result *outcome
		switch {
		case mode.SignedIn() && mode.Identity != nil && mode.Identity.ID == identityID:
			result = &outcome{mode: mode}
		case mode.State == StateUnauthenticated:
			if failed, cause := r.failedFor(identityID); failed {
				err := ErrUnroutable
				if cause != nil {
					err = fmt.Errorf("%w: %w", ErrUnroutable, cause)
				}
				result = &outcome{mode: mode, err: err}
			}
		}
		if result == nil {
			return
		}
		select {
		case settled <- *result:
		default:
		}
	})
	defer unsubscribe()

	select {
	case res := <-settled:
		return res.mode, res.err
	case <-ctx.Done():
		return r.Mode(), ctx.Err()
	}
}

// failedFor reports whether routing of identityID failed for the latest
// sign-in. A failure left over from an earlier sign-in does not count.
func (r *Router) failedFor(identityID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failedID != identityID || r.failedSeq != r.signInSeq {
		return false, nil
	}
	return true, r.failure
}

// push keeps only the latest session change. Session listeners must not block.
func (r *Router) push(identity *domain.Identity) {
	r.pushMu.Lock()
	defer r.pushMu.Unlock()

	r.mu.Lock()
	if identity != nil {
		r.signInSeq++
	}
	change := sessionChange{identity: identity, seq: r.signInSeq}
	r.mu.Unlock()

	select {
	case <-r.mailbox:
	default:
	}
	r.mailbox <- change
}

func (r *Router) loop(ctx context.Context) {
	defer close(r.done)

	var (
		generation uint64
		cancel     context.CancelFunc = func() {}
	)
	defer func() { cancel() }()

	for {
		select {
		case <-ctx.Done():
			return

		case change := <-r.mailbox:
			cancel()
			generation++
			if change.identity == nil {
				r.setMode(Mode{State: StateUnauthenticated})
				continue
			}
			r.setMode(Mode{State: StateResolving, Identity: change.identity})

			resolveCtx, resolveCancel := context.WithCancel(ctx)
			cancel = resolveCancel
			go r.resolve(resolveCtx, generation, change)

		case res := <-r.results:
			if res.generation != generation {
				continue
			}
			r.apply(ctx, res)
		}
	}
}

func (r *Router) resolve(ctx context.Context, generation uint64, change sessionChange) {
	role, err := r.resolver.ResolveRole(ctx, change.identity.ID)
	select {
	case r.results <- resolution{generation: generation, seq: change.seq, identity: change.identity, role: role, err: err}:
	case <-ctx.Done():
	}
}

func (r *Router) apply(ctx context.Context, res resolution) {
	if res.err == nil {
		switch res.role {
		case domain.RoleClient:
			r.setMode(Mode{State: StateClient, Identity: res.identity, Role: res.role})
			return
		case domain.RoleAdmin:
			r.setMode(Mode{State: StateAdmin, Identity: res.identity, Role: res.role})
			return
		}
	}

	r.logger.Warn("role resolution failed, ending session",
		zap.String("identity_id", res.identity.ID), zap.String("role", string(res.role)), zap.Error(res.err))
	r.mu.Lock()
	r.failedID, r.failedSeq, r.failure = res.identity.ID, res.seq, res.err
	r.mu.Unlock()
	// End the session first so no listener sees Unauthenticated while it is
	// still current.
	if err := r.resolver.EndSession(ctx); err != nil {
		r.logger.Error("failed to end unroutable session", zap.String("identity_id", res.identity.ID), zap.Error(err))
	}
	r.setMode(Mode{State: StateUnauthenticated})
}

func (r *Router) setMode(mode Mode) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if r.mode.same(mode) {
		r.mu.Unlock()
		return
	}
	r.mode = mode
	listeners := make([]ModeListener, 0, len(r.listeners))
	for _, id := range slices.Sorted(maps.Keys(r.listeners)) {
		listeners = append(listeners, r.listeners[id])
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(mode)
	}
}
