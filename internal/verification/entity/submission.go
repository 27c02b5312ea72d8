package entity

import (
	"encoding/json"
	"time"
)

// Submission statuses and decisions.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Display sentinels for rows whose cross-entity lookups did not resolve.
const (
	UnknownContractor = "Unknown Contractor"
	UnknownProject    = "Unknown Project"
	UnknownMilestone  = "Unknown Milestone"
)

// Resolved is a display name that may not have resolved. Degraded lookups
// produce a sentinel value instead of an error so partial results stay
// composable.
type Resolved struct {
	Value string
	Known bool
}

func FoundName(v string) Resolved { return Resolved{Value: v, Known: true} }

func UnknownName(sentinel string) Resolved { return Resolved{Value: sentinel} }

// MarshalJSON renders the display value only; Known is a server-side fact.
func (r Resolved) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// QueueRow is one entry of the consultant's verification worklist.
type QueueRow struct {
	SubmissionID   string    `json:"submission_id"`
	Status         string    `json:"status"`
	SubmittedAt    time.Time `json:"submitted_at"`
	MilestoneID    string    `json:"milestone_id"`
	MilestoneName  Resolved  `json:"milestone_name"`
	ProjectID      string    `json:"project_id,omitempty"`
	ProjectName    Resolved  `json:"project_name"`
	ContractorID   string    `json:"contractor_id"`
	ContractorName Resolved  `json:"contractor_name"`
	Degraded       bool      `json:"degraded,omitempty"`
}

// JoinedRow is the repo projection when the full join is permitted.
type JoinedRow struct {
	SubmissionID  string    `db:"submission_id"`
	Status        string    `db:"status"`
	SubmittedAt   time.Time `db:"submitted_at"`
	MilestoneID   string    `db:"milestone_id"`
	MilestoneName string    `db:"milestone_name"`
	ProjectID     string    `db:"project_id"`
	ProjectName   string    `db:"project_name"`
	ContractorID  string    `db:"contractor_id"`
}

// MinimalRow is the single-table fallback projection.
type MinimalRow struct {
	SubmissionID string    `db:"id"`
	Status       string    `db:"status"`
	SubmittedAt  time.Time `db:"submitted_at"`
	MilestoneID  string    `db:"milestone_id"`
	ContractorID string    `db:"contractor_id"`
}
