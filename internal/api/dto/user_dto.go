package dto

import (
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/router"
	"github.com/spec-kit/ticket-tracker/internal/screens"
)

// RegisterRequest payload for sign-up.
type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
}

// LoginRequest payload for sign-in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityResponse is the signed-in principal.
type IdentityResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ModeResponse describes the router mode and the screens it unlocks.
type ModeResponse struct {
	State    router.State       `json:"state"`
	Identity *IdentityResponse  `json:"identity,omitempty"`
	Role     domain.Role        `json:"role,omitempty"`
	Screens  []screens.ScreenID `json:"screens"`
	Current  screens.ScreenID   `json:"current,omitempty"`
}

// NewIdentityResponse maps a domain identity.
func NewIdentityResponse(identity *domain.Identity) *IdentityResponse {
	if identity == nil {
		return nil
	}
	return &IdentityResponse{ID: identity.ID, Email: identity.Email}
}

// NewModeResponse maps a router mode.
func NewModeResponse(mode router.Mode) ModeResponse {
	return ModeResponse{
		State:    mode.State,
		Identity: NewIdentityResponse(mode.Identity),
		Role:     mode.Role,
		Screens:  screens.ScreensFor(mode),
	}
}
