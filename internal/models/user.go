package models

import "time"

// Role is the access level of a user account
type Role string

// Roles known to the access policy
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a user account
type User struct {
	ID           int64      `json:"id"`
	Login        string     `json:"login"`
	PasswordHash string     `json:"-"` // Never expose password hash in JSON
	DisplayName  string     `json:"display_name"`
	Email        string     `json:"email,omitempty"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	TOTPSecret   string     `json:"-"` // Never expose TOTP secret in JSON
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// TOTPEnabled reports whether the account has a second factor enrolled
func (u *User) TOTPEnabled() bool {
	return u.TOTPSecret != ""
}

// IsActiveAdmin reports whether the user counts toward the active-admin invariant
func (u *User) IsActiveAdmin() bool {
	return u.Role == RoleAdmin && u.Active
}
