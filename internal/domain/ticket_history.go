package domain

import "time"

// TicketHistory is an immutable audit trail entry for a status change.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangedByID *string
	OldStatus   TicketStatus
	NewStatus   TicketStatus
	CreatedAt   time.Time
}
