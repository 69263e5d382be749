package model

import "fmt"

// Role controls which management actions a user is offered.
type Role string

const (
	RoleUser        Role = "user"
	RoleUserManager Role = "user_manager"
	RoleAdmin       Role = "admin"
)

// Roles lists every role in ascending order of privilege.
func Roles() []Role {
	return []Role{RoleUser, RoleUserManager, RoleAdmin}
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q (expected user, user_manager or admin)", s)
}

// CanManageUsers reports whether the role may list, edit and delete users.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin || r == RoleUserManager
}

// CanManageAllRecords reports whether the role may see and create records
// on behalf of any user.
func (r Role) CanManageAllRecords() bool {
	return r == RoleAdmin
}

// User is an account known to the backend.
type User struct {
	ID             string  `json:"_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Role           Role    `json:"role"`
	// PreferredHours is nil when the backend sent no target.
	PreferredHours *float64 `json:"preferedHours,omitempty"`
}

// Key returns the user id.
func (u User) Key() string { return u.ID }

// Target returns the user's preferred daily hours, or fallback when unset.
// An explicit target of zero is kept.
func (u User) Target(fallback float64) float64 {
	if u.PreferredHours != nil {
		return *u.PreferredHours
	}
	return fallback
}

// Hours returns a pointer to v, for optional hour fields.
func Hours(v float64) *float64 { return &v }

// UserPatch is the payload for updating a user.
type UserPatch struct {
	Name           *string  `json:"name,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Role           *Role    `json:"role,omitempty"`
	PreferredHours *float64 `json:"preferedHours,omitempty"`
}
