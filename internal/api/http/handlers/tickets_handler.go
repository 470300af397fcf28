package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/screens"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// TicketsHandler serves the client screens: my-tickets and new-ticket.
type TicketsHandler struct {
	service *service.TicketService
	shell   *screens.Shell
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, shell *screens.Shell) *TicketsHandler {
	return &TicketsHandler{service: ticketService, shell: shell}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}
	id, err := h.service.SubmitTicket(c.UserContext(), req.Title, req.Description, req.Type)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// ListTickets GET /tickets/mine renders the live list snapshot.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	list, err := openList(h.shell)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(list.State())})
}

// RefreshTickets POST /tickets/mine/refresh. No query is issued.
func (h *TicketsHandler) RefreshTickets(c *fiber.Ctx) error {
	list, err := openList(h.shell)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(list.Refresh())})
}

func openList(shell *screens.Shell) (*screens.TicketList, error) {
	list := shell.List()
	if list == nil {
		return nil, apperrors.NewForbidden("No ticket list for the current mode")
	}
	return list, nil
}
