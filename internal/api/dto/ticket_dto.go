package dto

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/screens"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Type        domain.TicketType `json:"type"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse is the full ticket record.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        domain.TicketType   `json:"type"`
	Status      domain.TicketStatus `json:"status"`
	ClientID    string              `json:"client_id"`
	ClientName  string              `json:"client_name"`
	ClientEmail string              `json:"client_email"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
}

// ErrorBody mirrors the error envelope written by the error middleware.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TicketListResponse is what a list screen renders.
type TicketListResponse struct {
	Tickets    []TicketResponse `json:"tickets"`
	Loading    bool             `json:"loading"`
	Refreshing bool             `json:"refreshing"`
	Error      *ErrorBody       `json:"error,omitempty"`
}

// TicketHistoryResponse is one status change.
type TicketHistoryResponse struct {
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	ChangedByID *string             `json:"changed_by_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// TicketDetailResponse backs the admin detail screen.
type TicketDetailResponse struct {
	Ticket        TicketResponse          `json:"ticket"`
	StatusOptions []screens.StatusOption  `json:"status_options"`
	History       []TicketHistoryResponse `json:"history"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Type:        ticket.Type,
		Status:      ticket.Status,
		ClientID:    ticket.ClientID,
		ClientName:  ticket.ClientName,
		ClientEmail: ticket.ClientEmail,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

// NewTicketListResponse maps a list screen state.
func NewTicketListResponse(state screens.ListState) TicketListResponse {
	items := make([]TicketResponse, 0, len(state.Tickets))
	for _, ticket := range state.Tickets {
		items = append(items, NewTicketResponse(ticket))
	}
	resp := TicketListResponse{
		Tickets:    items,
		Loading:    state.Loading,
		Refreshing: state.Refreshing,
	}
	if state.Err != nil {
		de := apperrors.ToDomainError(state.Err)
		resp.Error = &ErrorBody{Code: de.Code, Message: de.Message}
	}
	return resp
}

// NewTicketHistoryResponse maps status history.
func NewTicketHistoryResponse(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TicketHistoryResponse{
			OldStatus:   entry.OldStatus,
			NewStatus:   entry.NewStatus,
			ChangedByID: entry.ChangedByID,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out
}
