// Package model contains domain models passed between layers.
//
// JSON tags mirror the backend API payloads.
package model

import (
	"strings"

	"github.com/guregu/null/v5"
)

// Role is the authorization role carried by a session.
type Role string

// Roles known to the platform.
const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleAdmin
}

// ParseRole normalises user input into a Role. Unknown input maps to participant.
func ParseRole(s string) Role {
	if Role(strings.ToLower(strings.TrimSpace(s))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleParticipant
}

// User is the authenticated session user.
type User struct {
	ID     string      `json:"id"`
	Email  string      `json:"email"`
	Role   Role        `json:"role"`
	Token  string      `json:"token"`
	TeamID null.String `json:"team_id"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// WithTeam returns a copy of u joined to teamID.
func (u User) WithTeam(teamID string) User {
	u.TeamID = null.StringFrom(teamID)
	return u
}

// Credentials is the body of POST /auth/signup and POST /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=participant admin"`
}
