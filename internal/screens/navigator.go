// Package screens holds the view models behind the role-specific screens.
// They render whatever the live subscriptions last delivered and never run
// their own authorization checks; reachability is a function of the router
// mode alone.
package screens

import (
	"sync"

	"github.com/spec-kit/ticket-tracker/internal/router"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// ScreenID names a screen.
type ScreenID string

const (
	ScreenSplash       ScreenID = "splash"
	ScreenSignIn       ScreenID = "sign-in"
	ScreenSignUp       ScreenID = "sign-up"
	ScreenMyTickets    ScreenID = "my-tickets"
	ScreenNewTicket    ScreenID = "new-ticket"
	ScreenAllTickets   ScreenID = "all-tickets"
	ScreenTicketDetail ScreenID = "ticket-detail"
)

// ScreensFor is the single dispatch point from mode to the reachable screen
// set. The first entry is the mode's home screen.
func ScreensFor(mode router.Mode) []ScreenID {
	switch mode.State {
	case router.StateUnauthenticated:
		return []ScreenID{ScreenSignIn, ScreenSignUp}
	case router.StateClient:
		return []ScreenID{ScreenMyTickets, ScreenNewTicket}
	case router.StateAdmin:
		return []ScreenID{ScreenAllTickets, ScreenTicketDetail}
	default:
		return []ScreenID{ScreenSplash}
	}
}

// Navigator keeps the screen stack for the current mode.
type Navigator struct {
	mu    sync.RWMutex
	mode  router.Mode
	stack []ScreenID
}

// NewNavigator starts on the splash screen.
func NewNavigator() *Navigator {
	return &Navigator{
		mode:  router.Mode{State: router.StateResolving},
		stack: []ScreenID{ScreenSplash},
	}
}

// Reset drops the stack and shows mode's home screen.
func (n *Navigator) Reset(mode router.Mode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mode = mode
	n.stack = []ScreenID{ScreensFor(mode)[0]}
}

// Reachable reports whether screen belongs to the current mode.
func (n *Navigator) Reachable(screen ScreenID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return reachable(n.mode, screen)
}

// Push opens screen on top of the stack.
func (n *Navigator) Push(screen ScreenID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !reachable(n.mode, screen) {
		return apperrors.NewForbidden("Screen not available")
	}
	if n.stack[len(n.stack)-1] != screen {
		n.stack = append(n.stack, screen)
	}
	return nil
}

// Back pops the top screen. The home screen is never popped.
func (n *Navigator) Back() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) > 1 {
		n.stack = n.stack[:len(n.stack)-1]
	}
}

// Current returns the visible screen.
func (n *Navigator) Current() ScreenID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stack[len(n.stack)-1]
}

// Stack returns a copy of the screen stack, bottom first.
func (n *Navigator) Stack() []ScreenID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]ScreenID(nil), n.stack...)
}

func reachable(mode router.Mode, screen ScreenID) bool {
	for _, candidate := range ScreensFor(mode) {
		if candidate == screen {
			return true
		}
	}
	return false
}
