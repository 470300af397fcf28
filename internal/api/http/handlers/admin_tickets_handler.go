package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/screens"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// AdminTicketsHandler serves the admin screens: all-tickets and ticket-detail.
type AdminTicketsHandler struct {
	service *service.TicketService
	shell   *screens.Shell
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService, shell *screens.Shell) *AdminTicketsHandler {
	return &AdminTicketsHandler{service: ticketService, shell: shell}
}

// ListTickets GET /admin/tickets.
func (h *AdminTicketsHandler) ListTickets(c *fiber.Ctx) error {
	list, err := openList(h.shell)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(list.State())})
}

// RefreshTickets POST /admin/tickets/refresh.
func (h *AdminTicketsHandler) RefreshTickets(c *fiber.Ctx) error {
	list, err := openList(h.shell)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(list.Refresh())})
}

// GetTicket GET /admin/tickets/:id opens the detail screen.
func (h *AdminTicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.shell.OpenDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.service.TicketHistory(c.UserContext(), detail.Ticket().ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket:        dto.NewTicketResponse(detail.Ticket()),
		StatusOptions: detail.StatusOptions(),
		History:       dto.NewTicketHistoryResponse(history),
	}})
}

// UpdateStatus PATCH /admin/tickets/:id/status changes status from the
// detail screen, which navigates back on success.
func (h *AdminTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}
	detail, err := h.shell.OpenDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if err := detail.ChangeStatus(c.UserContext(), req.Status); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":  dto.NewTicketResponse(detail.Ticket()),
		"current": h.shell.Navigator().Current(),
	}})
}
