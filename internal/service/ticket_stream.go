package service

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("ticket stream closed")

// TicketStream is the pull form of a live subscription: every Next returns
// the most recent full snapshot not yet consumed. Intermediate snapshots that
// were superseded before being read are dropped.
type TicketStream struct {
	mu      sync.Mutex
	updates chan []domain.Ticket
	errs    chan error
	done    chan struct{}
	cancel  Unsubscribe
	once    sync.Once
}

func newTicketStream() *TicketStream {
	return &TicketStream{
		updates: make(chan []domain.Ticket, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (s *TicketStream) push(tickets []domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- tickets
}

func (s *TicketStream) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Next blocks until a snapshot, a subscription error, Close or ctx ends.
// Once closed it always returns ErrStreamClosed, even with a snapshot buffered.
func (s *TicketStream) Next(ctx context.Context) ([]domain.Ticket, error) {
	select {
	case <-s.done:
		return nil, ErrStreamClosed
	default:
	}
	select {
	case tickets := <-s.updates:
		return tickets, nil
	default:
	}
	select {
	case tickets := <-s.updates:
		return tickets, nil
	case err := <-s.errs:
		return nil, err
	case <-s.done:
		return nil, ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the underlying subscription. It is safe to call repeatedly.
func (s *TicketStream) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// StreamOwnTickets is WatchOwnTickets in stream form.
func (s *TicketService) StreamOwnTickets(ctx context.Context) (*TicketStream, error) {
	stream := newTicketStream()
	cancel, err := s.WatchOwnTickets(ctx, stream.push, stream.fail)
	if err != nil {
		return nil, err
	}
	stream.cancel = cancel
	return stream, nil
}

// StreamAllTickets is WatchAllTickets in stream form.
func (s *TicketService) StreamAllTickets(ctx context.Context) (*TicketStream, error) {
	stream := newTicketStream()
	cancel, err := s.WatchAllTickets(ctx, stream.push, stream.fail)
	if err != nil {
		return nil, err
	}
	stream.cancel = cancel
	return stream, nil
}
