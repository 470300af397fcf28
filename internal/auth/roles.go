package auth

import "github.com/spec-kit/ticket-tracker/internal/domain"

// Permission names an action gated by role.
type Permission string

const (
	PermSubmitTicket   Permission = "ticket:submit"
	PermViewOwnTickets Permission = "ticket:view_own"
	PermViewAllTickets Permission = "ticket:view_all"
	PermChangeStatus   Permission = "ticket:change_status"
)

var rolePermissions = map[domain.Role]map[Permission]struct{}{
	domain.RoleClient: {
		PermSubmitTicket:   {},
		PermViewOwnTickets: {},
	},
	domain.RoleAdmin: {
		PermViewAllTickets: {},
		PermChangeStatus:   {},
	},
}

// Allows reports whether role carries every permission in perms.
func Allows(role domain.Role, perms ...Permission) bool {
	granted, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, perm := range perms {
		if _, exists := granted[perm]; !exists {
			return false
		}
	}
	return true
}
