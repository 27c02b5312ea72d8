package entity

import "time"

// Section is a sub-division of a project contractors are assigned to.
type Section struct {
	ID        string `db:"id" json:"id"`
	ProjectID string `db:"project_id" json:"project_id"`
	Name      string `db:"name" json:"name"`
}

// SectionSummary is the listing shape for the send dialog: the contractor
// count is informational only, the send operation re-checks at send time.
type SectionSummary struct {
	SectionID       string `db:"id" json:"section_id"`
	Name            string `db:"name" json:"name"`
	ContractorCount int    `db:"contractor_count" json:"contractor_count"`
}

// Notification is a consultant-authored message scoped to one section.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	SectionID string    `db:"section_id" json:"section_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SentView is a sent notification with its fan-out size.
type SentView struct {
	ID             string    `db:"id" json:"id"`
	SectionID      string    `db:"section_id" json:"section_id"`
	SectionName    string    `db:"section_name" json:"section_name"`
	Title          string    `db:"title" json:"title"`
	Message        string    `db:"message" json:"message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	RecipientCount int       `db:"recipient_count" json:"recipient_count"`
}
