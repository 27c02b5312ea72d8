package entity

import (
	"time"

	"github.com/buildra/service-onboarding-go/internal/auth"
)

// Status values for an invitation. Transitions are one-way:
// pending -> accepted or pending -> expired, both terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusExpired  = "expired"
)

// Invitation is a single-use token granting one email the right to create
// one account under one role. Rows are never deleted; terminal rows remain
// as an audit record.
type Invitation struct {
	ID           string     `db:"id" json:"id"`
	InviteeEmail string     `db:"invitee_email" json:"invitee_email"`
	Role         auth.Role  `db:"role" json:"role"`
	ProjectID    *string    `db:"project_id" json:"project_id,omitempty"`
	SectionID    *string    `db:"section_id" json:"section_id,omitempty"`
	InvitedBy    string     `db:"invited_by" json:"invited_by"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	AcceptedAt   *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
}
