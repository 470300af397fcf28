package domain

import "time"

// Role is the sole authorization attribute of a profile.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// UserProfile is the role/name record paired 1:1 with an Identity.
type UserProfile struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
}
