package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists the canonical statuses in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a canonical status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketType distinguishes bug reports from feature requests.
type TicketType string

const (
	TicketTypeBug     TicketType = "bug"
	TicketTypeFeature TicketType = "feature"
)

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	return t == TicketTypeBug || t == TicketTypeFeature
}

// MaxTitleLength bounds ticket titles, counted in runes.
const MaxTitleLength = 100

// Ticket is a client-filed bug/feature record with mutable status.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Type        TicketType
	Status      TicketStatus
	ClientID    string
	ClientName  string
	ClientEmail string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
