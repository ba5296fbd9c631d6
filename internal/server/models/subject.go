package models

import "strings"

// Role is an authority carried by an authenticated subject.
type Role string

const (
	RoleAuthor       Role = "author"
	RoleEditor       Role = "editor"
	RoleSeniorEditor Role = "senior-editor"
	RoleReviewer     Role = "reviewer"
)

// Subject is the authenticated caller of a command. It is passed explicitly
// into every operation.
type Subject struct {
	ID    string
	Email string
	Roles []Role
}

// HasRole reports whether the subject carries r verbatim.
func (s Subject) HasRole(r Role) bool {
	for _, have := range s.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// RolesFromAuthorities converts token authorities into roles, dropping blanks.
func RolesFromAuthorities(authorities []string) []Role {
	out := make([]Role, 0, len(authorities))
	for _, a := range authorities {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		out = append(out, Role(a))
	}
	return out
}

// Authorities converts roles back to token authorities.
func Authorities(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
