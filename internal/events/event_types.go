package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// Event is a ticket lifecycle fact published after the store commits it.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload describes a newly filed ticket.
type TicketCreatedPayload struct {
	Type        domain.TicketType `json:"type"`
	Title       string            `json:"title"`
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email"`
}

// TicketStatusChangedPayload carries who to tell and what moved.
type TicketStatusChangedPayload struct {
	Title       string              `json:"title"`
	ClientID    string              `json:"client_id"`
	ClientEmail string              `json:"client_email"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
}

// NewTicketCreated builds the event for a ticket filed by its client.
func NewTicketCreated(ticket domain.Ticket) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   ticket.ClientID,
		Timestamp: time.Now().UTC(),
		Payload: TicketCreatedPayload{
			Type:        ticket.Type,
			Title:       ticket.Title,
			ClientName:  ticket.ClientName,
			ClientEmail: ticket.ClientEmail,
		},
	}
}

// NewTicketStatusChanged builds the event for ticket moving to status.
// ticket holds the state before the change. actorID may be empty.
func NewTicketStatusChanged(ticket domain.Ticket, status domain.TicketStatus, actorID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTicketStatusChanged,
		TicketID:  ticket.ID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload: TicketStatusChangedPayload{
			Title:       ticket.Title,
			ClientID:    ticket.ClientID,
			ClientEmail: ticket.ClientEmail,
			OldStatus:   ticket.Status,
			NewStatus:   status,
		},
	}
}
