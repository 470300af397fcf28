package screens

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// StatusSetter changes ticket status.
type StatusSetter interface {
	SetTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error
}

// StatusOption is one entry of the status picker.
type StatusOption struct {
	Value   domain.TicketStatus `json:"value"`
	Label   string              `json:"label"`
	Current bool                `json:"current"`
}

var statusLabels = map[domain.TicketStatus]string{
	domain.TicketStatusOpen:       "Open",
	domain.TicketStatusInProgress: "In Progress",
	domain.TicketStatusResolved:   "Resolved",
	domain.TicketStatusClosed:     "Closed",
}

// TicketDetail is the admin view of one ticket snapshot.
type TicketDetail struct {
	setter StatusSetter
	back   func()

	mu     sync.Mutex
	ticket domain.Ticket
	saving bool
	err    error
}

// NewTicketDetail opens a detail view on ticket. back is invoked after a
// successful status change.
func NewTicketDetail(ticket domain.Ticket, setter StatusSetter, back func()) *TicketDetail {
	if back == nil {
		back = func() {}
	}
	return &TicketDetail{ticket: ticket, setter: setter, back: back}
}

// Ticket returns the snapshot shown by the view.
func (d *TicketDetail) Ticket() domain.Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticket
}

// Saving reports whether a status change is in flight.
func (d *TicketDetail) Saving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saving
}

// Err returns the last status change failure.
func (d *TicketDetail) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// StatusOptions lists the four canonical statuses in workflow order.
func (d *TicketDetail) StatusOptions() []StatusOption {
	current := d.Ticket().Status
	options := make([]StatusOption, 0, len(domain.TicketStatuses))
	for _, status := range domain.TicketStatuses {
		options = append(options, StatusOption{
			Value:   status,
			Label:   statusLabels[status],
			Current: status == current,
		})
	}
	return options
}

// ChangeStatus sets the ticket status and navigates back on success. On
// failure the view stays open and keeps the error for display.
func (d *TicketDetail) ChangeStatus(ctx context.Context, status domain.TicketStatus) error {
	d.mu.Lock()
	d.saving = true
	d.err = nil
	id := d.ticket.ID
	d.mu.Unlock()

	err := d.setter.SetTicketStatus(ctx, id, status)

	d.mu.Lock()
	d.saving = false
	d.err = err
	if err == nil {
		d.ticket.Status = status
	}
	d.mu.Unlock()

	if err != nil {
		return err
	}
	d.back()
	return nil
}
