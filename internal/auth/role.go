package auth

import (
	"errors"
	"strings"
)

// Role is the dashboard role an account was admitted under.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleConsultant Role = "consultant"
	RoleContractor Role = "contractor"
	RoleStaff      Role = "staff"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleConsultant:
		return RoleConsultant, nil
	case RoleContractor:
		return RoleContractor, nil
	case RoleStaff:
		return RoleStaff, nil
	default:
		return "", ErrUnknownRole
	}
}

// Caller identifies the authenticated account a core operation runs on
// behalf of. It is threaded explicitly through every service call; no
// package reads ambient role state.
type Caller struct {
	AccountID string
	Role      Role
}

// CanInvite reports whether the caller role may issue invitations.
func (c Caller) CanInvite() bool {
	return c.Role == RoleAdmin || c.Role == RoleConsultant
}
