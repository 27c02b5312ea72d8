package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/buildra/service-onboarding-go/internal/notification/entity"
	"github.com/buildra/service-onboarding-go/pkg/utilities"
)

// NotificationRepo provides data access for sections, assignments and the
// notification fan-out tables using sqlx.
type NotificationRepo struct {
	db *sqlx.DB
}

func NewNotificationRepo(db *sqlx.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// EnsureTables creates the section and notification tables if not exists
// (idempotent). This is a convenience for early development; prefer
// migrations in production.
func (r *NotificationRepo) EnsureTables(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sections (
  id varchar(32) PRIMARY KEY,
  project_id varchar(32) NOT NULL,
  name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS section_assignments (
  section_id varchar(32) NOT NULL REFERENCES sections(id),
  contractor_id varchar(32) NOT NULL,
  PRIMARY KEY (section_id, contractor_id)
);
CREATE TABLE IF NOT EXISTS notifications (
  id varchar(32) PRIMARY KEY,
  section_id varchar(32) NOT NULL REFERENCES sections(id),
  author_id varchar(32) NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS notification_deliveries (
  id varchar(32) PRIMARY KEY,
  notification_id varchar(32) NOT NULL REFERENCES notifications(id),
  contractor_id varchar(32) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (notification_id, contractor_id)
);
CREATE INDEX IF NOT EXISTS idx_sections_project ON sections(project_id);
CREATE INDEX IF NOT EXISTS idx_notifications_author ON notifications(author_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// ListSectionsWithCounts returns the sections of a project with their
// current assignment counts. Zero-count sections are valid results.
func (r *NotificationRepo) ListSectionsWithCounts(ctx context.Context, projectID string) ([]entity.SectionSummary, error) {
	const q = `SELECT s.id, s.name, COUNT(sa.contractor_id) AS contractor_count
	  FROM sections s
	  LEFT JOIN section_assignments sa ON sa.section_id = s.id
	 WHERE s.project_id = $1
	 GROUP BY s.id, s.name
	 ORDER BY s.name`
	var out []entity.SectionSummary
	if err := r.db.SelectContext(ctx, &out, q, projectID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return out, nil
}

// CreateWithDeliveries persists a notification and one delivery row per
// contractor assigned to the section, atomically against the assignment
// snapshot taken inside the transaction. Returns the recipient count;
// zero means nothing was written and the section was empty at send time.
func (r *NotificationRepo) CreateWithDeliveries(ctx context.Context, n *entity.Notification) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin fan-out tx: %w", err)
	}
	defer tx.Rollback()

	var recipients []string
	const snapshot = `SELECT contractor_id FROM section_assignments WHERE section_id = $1 FOR SHARE`
	if err := tx.SelectContext(ctx, &recipients, snapshot, n.SectionID); err != nil {
		return 0, fmt.Errorf("snapshot assignments: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	const insNotification = `INSERT INTO notifications (id, section_id, author_id, title, message)
	  VALUES (:id, :section_id, :author_id, :title, :message)`
	if _, err := tx.NamedExecContext(ctx, insNotification, n); err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	const insDelivery = `INSERT INTO notification_deliveries (id, notification_id, contractor_id) VALUES ($1, $2, $3)`
	for _, contractorID := range recipients {
		if _, err := tx.ExecContext(ctx, insDelivery, utilities.NewSnowflakeID(), n.ID, contractorID); err != nil {
			return 0, fmt.Errorf("insert delivery: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit fan-out tx: %w", err)
	}
	return len(recipients), nil
}

// ListSentByAuthor returns the notifications an author sent, newest first,
// with their recipient counts.
func (r *NotificationRepo) ListSentByAuthor(ctx context.Context, authorID string) ([]entity.SentView, error) {
	const q = `SELECT n.id, n.section_id, s.name AS section_name, n.title, n.message, n.created_at,
	    COUNT(nd.contractor_id) AS recipient_count
	  FROM notifications n
	  JOIN sections s ON s.id = n.section_id
	  LEFT JOIN notification_deliveries nd ON nd.notification_id = n.id
	 WHERE n.author_id = $1
	 GROUP BY n.id, n.section_id, s.name, n.title, n.message, n.created_at
	 ORDER BY n.created_at DESC`
	var out []entity.SentView
	if err := r.db.SelectContext(ctx, &out, q, authorID); err != nil {
		return nil, fmt.Errorf("list sent notifications: %w", err)
	}
	return out, nil
}
