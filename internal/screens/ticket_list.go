package screens

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

// WatchFunc opens a live ticket subscription.
type WatchFunc func(ctx context.Context, onData service.TicketsHandler, onError service.ErrorHandler) (service.Unsubscribe, error)

// ListState is what a ticket list screen renders.
type ListState struct {
	Tickets    []domain.Ticket
	Loading    bool
	Refreshing bool
	Err        error
}

// TicketList is the view model of the my-tickets and all-tickets screens.
type TicketList struct {
	mu          sync.Mutex
	state       ListState
	unsubscribe service.Unsubscribe
	closeOnce   sync.Once
	onUpdate    func(ListState)
}

// OpenTicketList subscribes through watch. The list starts loading and
// settles on the first delivery or error. onUpdate is optional and is told
// about every state change.
func OpenTicketList(ctx context.Context, watch WatchFunc, onUpdate func(ListState)) (*TicketList, error) {
	list := &TicketList{
		state:    ListState{Tickets: []domain.Ticket{}, Loading: true},
		onUpdate: onUpdate,
	}
	unsubscribe, err := watch(ctx, list.receive, list.fail)
	if err != nil {
		list.fail(err)
		return list, err
	}
	list.mu.Lock()
	list.unsubscribe = unsubscribe
	list.mu.Unlock()
	return list, nil
}

// State returns a copy of the current state.
func (l *TicketList) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Find returns the ticket with id from the last delivered snapshot.
func (l *TicketList) Find(id string) (domain.Ticket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ticket := range l.state.Tickets {
		if ticket.ID == id {
			return ticket, true
		}
	}
	return domain.Ticket{}, false
}

// Refresh is cosmetic: the live subscription already holds the latest
// snapshot, so no query is issued. It flips Refreshing on and off.
func (l *TicketList) Refresh() ListState {
	l.update(func(state *ListState) { state.Refreshing = true })
	l.update(func(state *ListState) { state.Refreshing = false })
	return l.State()
}

// Close cancels the subscription exactly once.
func (l *TicketList) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		unsubscribe := l.unsubscribe
		l.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

func (l *TicketList) receive(tickets []domain.Ticket) {
	l.update(func(state *ListState) {
		state.Tickets = tickets
		state.Loading = false
		state.Refreshing = false
		state.Err = nil
	})
}

func (l *TicketList) fail(err error) {
	l.update(func(state *ListState) {
		state.Loading = false
		state.Refreshing = false
		state.Err = err
	})
}

func (l *TicketList) update(fn func(state *ListState)) {
	l.mu.Lock()
	fn(&l.state)
	snapshot := l.snapshotLocked()
	onUpdate := l.onUpdate
	l.mu.Unlock()
	if onUpdate != nil {
		onUpdate(snapshot)
	}
}

func (l *TicketList) snapshotLocked() ListState {
	out := l.state
	out.Tickets = make([]domain.Ticket, len(l.state.Tickets))
	copy(out.Tickets, l.state.Tickets)
	return out
}
