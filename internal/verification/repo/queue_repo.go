package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/buildra/service-onboarding-go/internal/verification/entity"
)

// QueueRepo provides data access for projects, milestones and submissions
// using sqlx. It runs on the caller-scoped connection: the joined query is
// expected to be rejected whenever the ambient row-level policy refuses
// the cross-table read, and callers must be ready to fall back.
type QueueRepo struct {
	db *sqlx.DB
}

func NewQueueRepo(db *sqlx.DB) *QueueRepo { return &QueueRepo{db: db} }

// EnsureTables creates the work-tracking tables if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *QueueRepo) EnsureTables(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS projects (
  id varchar(32) PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS milestones (
  id varchar(32) PRIMARY KEY,
  project_id varchar(32) NOT NULL REFERENCES projects(id),
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS submissions (
  id varchar(32) PRIMARY KEY,
  milestone_id varchar(32) NOT NULL REFERENCES milestones(id),
  contractor_id varchar(32) NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  note TEXT NOT NULL DEFAULT '',
  submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  decided_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// ListJoined fetches submissions with milestone and project names attached,
// newest first.
func (r *QueueRepo) ListJoined(ctx context.Context, status string) ([]entity.JoinedRow, error) {
	const q = `SELECT s.id AS submission_id, s.status, s.submitted_at, s.contractor_id,
	    m.id AS milestone_id, m.name AS milestone_name,
	    p.id AS project_id, p.name AS project_name
	  FROM submissions s
	  JOIN milestones m ON m.id = s.milestone_id
	  JOIN projects p ON p.id = m.project_id
	 WHERE s.status = $1
	 ORDER BY s.submitted_at DESC`
	var rows []entity.JoinedRow
	if err := r.db.SelectContext(ctx, &rows, q, status); err != nil {
		return nil, fmt.Errorf("list joined submissions: %w", err)
	}
	return rows, nil
}

// ListMinimal is the single-table fallback when the joined read is refused.
func (r *QueueRepo) ListMinimal(ctx context.Context, status string) ([]entity.MinimalRow, error) {
	const q = `SELECT id, status, submitted_at, milestone_id, contractor_id
	  FROM submissions WHERE status = $1 ORDER BY submitted_at DESC`
	var rows []entity.MinimalRow
	if err := r.db.SelectContext(ctx, &rows, q, status); err != nil {
		return nil, fmt.Errorf("list minimal submissions: %w", err)
	}
	return rows, nil
}

// Decide records a decision on a still-pending submission. Returns false
// when the submission is missing or already decided.
func (r *QueueRepo) Decide(ctx context.Context, id, decision, note string) (bool, error) {
	const q = `UPDATE submissions SET status = $2, note = $3, decided_at = NOW()
	  WHERE id = $1 AND status = 'pending' RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, decision, note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
