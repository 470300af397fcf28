package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/router"
	"github.com/spec-kit/ticket-tracker/internal/screens"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// ModeRouter is the part of the role router the handlers need.
type ModeRouter interface {
	Mode() router.Mode
	AwaitSettled(ctx context.Context, identityID string) (router.Mode, error)
}

// AuthHandler exposes sign-up, sign-in, sign-out and the current mode.
type AuthHandler struct {
	auth          *service.AuthService
	router        ModeRouter
	shell         *screens.Shell
	settleTimeout time.Duration
}

// NewAuthHandler constructs handler. settleTimeout bounds how long sign-in
// waits for the router to route the new identity.
func NewAuthHandler(authService *service.AuthService, modes ModeRouter, shell *screens.Shell, settleTimeout time.Duration) *AuthHandler {
	if settleTimeout <= 0 {
		settleTimeout = 5 * time.Second
	}
	return &AuthHandler{auth: authService, router: modes, shell: shell, settleTimeout: settleTimeout}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}

	identity, err := h.auth.Register(c.UserContext(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		return err
	}
	mode, err := h.settle(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.modeResponse(mode)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}

	identity, err := h.auth.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	mode, err := h.settle(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.modeResponse(mode)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.EndSession(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Mode handles GET /app/mode.
func (h *AuthHandler) Mode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.modeResponse(h.router.Mode())})
}

func (h *AuthHandler) settle(ctx context.Context, identity *domain.Identity) (router.Mode, error) {
	ctx, cancel := context.WithTimeout(ctx, h.settleTimeout)
	defer cancel()

	mode, err := h.router.AwaitSettled(ctx, identity.ID)
	switch {
	case err == nil:
		return mode, nil
	case errors.Is(err, router.ErrUnroutable):
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return mode, domainErr
		}
		return mode, apperrors.NewRoleMissing()
	default:
		return mode, apperrors.NewInternal("Timed out waiting for role resolution", err)
	}
}

func (h *AuthHandler) modeResponse(mode router.Mode) dto.ModeResponse {
	resp := dto.NewModeResponse(mode)
	if h.shell != nil {
		resp.Current = h.shell.Navigator().Current()
	}
	return resp
}
