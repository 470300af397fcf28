package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/repository"
)

type subscription struct {
	query  repository.TicketQuery
	onData repository.SnapshotFunc
	active atomic.Bool
}

// TicketStore is an in-memory ticket collection with live queries. Snapshots
// are pushed from the writing goroutine once the write is committed.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	subs    map[uint64]*subscription
	nextSub uint64
	last    time.Time

	// deliverMu keeps pushes in commit order.
	deliverMu sync.Mutex
	now       func() time.Time
}

// NewTicketStore returns an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		tickets: make(map[string]domain.Ticket),
		subs:    make(map[uint64]*subscription),
		now:     time.Now,
	}
}

func (s *TicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = s.stamp()
	ticket.UpdatedAt = nil
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	s.mu.Unlock()

	s.publish()
	return nil
}

func (s *TicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneTicket(ticket)
	return &out, nil
}

func (s *TicketStore) Update(_ context.Context, id string, patch repository.TicketPatch) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	ticket, ok := s.tickets[id]
	if !ok {
		s.mu.Unlock()
		return repository.ErrNotFound
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	updated := s.stamp()
	ticket.UpdatedAt = &updated
	s.tickets[id] = ticket
	s.mu.Unlock()

	s.publish()
	return nil
}

// Subscribe registers a live query and pushes the current result set before returning.
func (s *TicketStore) Subscribe(ctx context.Context, query repository.TicketQuery, onData repository.SnapshotFunc, _ repository.ErrorFunc) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscription{query: query, onData: onData}
	sub.active.Store(true)

	s.deliverMu.Lock()
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	snapshot := s.snapshotLocked(query)
	s.mu.Unlock()
	onData(snapshot)
	s.deliverMu.Unlock()

	var once sync.Once
	stopped := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(stopped)
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-stopped:
			}
		}()
	}
	return cancel, nil
}

// Subscribers returns the number of live subscriptions.
func (s *TicketStore) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// publish must be called with deliverMu held and mu released.
func (s *TicketStore) publish() {
	type delivery struct {
		sub      *subscription
		snapshot []domain.Ticket
	}
	s.mu.RLock()
	deliveries := make([]delivery, 0, len(s.subs))
	for _, sub := range s.subs {
		deliveries = append(deliveries, delivery{sub: sub, snapshot: s.snapshotLocked(sub.query)})
	}
	s.mu.RUnlock()

	for _, d := range deliveries {
		if d.sub.active.Load() {
			d.sub.onData(d.snapshot)
		}
	}
}

func (s *TicketStore) snapshotLocked(query repository.TicketQuery) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		if query.Matches(&ticket) {
			out = append(out, cloneTicket(ticket))
		}
	}
	repository.SortNewestFirst(out)
	return out
}

// stamp returns a strictly increasing UTC timestamp.
func (s *TicketStore) stamp() time.Time {
	now := s.now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func cloneTicket(ticket domain.Ticket) domain.Ticket {
	if ticket.UpdatedAt != nil {
		updated := *ticket.UpdatedAt
		ticket.UpdatedAt = &updated
	}
	return ticket
}
