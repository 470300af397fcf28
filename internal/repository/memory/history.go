package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// HistoryStore appends status change entries per ticket.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.TicketHistory
}

// NewHistoryStore returns an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[string][]domain.TicketHistory)}
}

func (s *HistoryStore) Create(_ context.Context, history *domain.TicketHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now().UTC()
	s.entries[history.TicketID] = append(s.entries[history.TicketID], *history)
	return nil
}

func (s *HistoryStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TicketHistory, len(s.entries[ticketID]))
	copy(out, s.entries[ticketID])
	return out, nil
}
