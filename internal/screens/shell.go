package screens

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/router"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

// ModeSource publishes router modes.
type ModeSource interface {
	OnModeChange(fn router.ModeListener) func()
}

// TicketSource is the slice of the ticket service the screens call.
type TicketSource interface {
	StatusSetter
	WatchOwnTickets(ctx context.Context, onData service.TicketsHandler, onError service.ErrorHandler) (service.Unsubscribe, error)
	WatchAllTickets(ctx context.Context, onData service.TicketsHandler, onError service.ErrorHandler) (service.Unsubscribe, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
}

// Shell follows router modes: it resets the navigator and keeps exactly one
// ticket list open for the client and admin modes.
type Shell struct {
	modes   ModeSource
	tickets TicketSource
	nav     *Navigator
	logger  *zap.Logger

	mu          sync.RWMutex
	ctx         context.Context
	mode        router.Mode
	generation  uint64
	stopped     bool
	list        *TicketList
	unsubscribe func()
}

// NewShell builds a shell that is not yet following modes.
func NewShell(modes ModeSource, tickets TicketSource, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		modes:   modes,
		tickets: tickets,
		nav:     NewNavigator(),
		logger:  logger,
		mode:    router.Mode{State: router.StateResolving},
	}
}

// Start follows mode changes. Lists are subscribed with ctx.
func (s *Shell) Start(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.stopped = false
	s.mu.Unlock()

	unsubscribe := s.modes.OnModeChange(s.apply)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Stop stops following modes and closes the open list.
func (s *Shell) Stop() {
	s.mu.Lock()
	unsubscribe, list := s.unsubscribe, s.list
	s.unsubscribe, s.list = nil, nil
	s.stopped = true
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	if list != nil {
		list.Close()
	}
}

// Mode returns the mode the shell last applied.
func (s *Shell) Mode() router.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Navigator exposes the screen stack.
func (s *Shell) Navigator() *Navigator {
	return s.nav
}

// List returns the open ticket list, or nil outside the client and admin modes.
func (s *Shell) List() *TicketList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list
}

// OpenDetail opens the detail screen on a ticket from the list snapshot.
// Only the admin mode reaches the detail screen.
func (s *Shell) OpenDetail(ctx context.Context, ticketID string) (*TicketDetail, error) {
	ticketID = strings.TrimSpace(ticketID)
	if err := s.nav.Push(ScreenTicketDetail); err != nil {
		return nil, err
	}

	var (
		ticket domain.Ticket
		found  bool
	)
	if list := s.List(); list != nil {
		ticket, found = list.Find(ticketID)
	}
	if !found {
		loaded, err := s.tickets.GetTicket(ctx, ticketID)
		if err != nil {
			s.nav.Back()
			return nil, err
		}
		ticket = *loaded
	}
	return NewTicketDetail(ticket, s.tickets, s.nav.Back), nil
}

func (s *Shell) apply(mode router.Mode) {
	s.mu.Lock()
	previous := s.list
	ctx := s.ctx
	s.list = nil
	s.mode = mode
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	s.nav.Reset(mode)

	var watch WatchFunc
	switch mode.State {
	case router.StateClient:
		watch = s.tickets.WatchOwnTickets
	case router.StateAdmin:
		watch = s.tickets.WatchAllTickets
	default:
		return
	}

	list, err := OpenTicketList(ctx, watch, nil)
	if err != nil {
		s.logger.Warn("ticket list subscription failed",
			zap.String("state", string(mode.State)), zap.Error(err))
	}

	s.mu.Lock()
	stale := s.stopped || s.generation != generation
	if !stale {
		s.list = list
	}
	s.mu.Unlock()
	if stale {
		list.Close()
	}
}
