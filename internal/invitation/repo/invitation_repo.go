package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/buildra/service-onboarding-go/internal/invitation/entity"
)

// ErrPendingExists signals the pending partial unique index fired: a
// concurrent issue won the race for the same (email, role) pair.
var ErrPendingExists = errors.New("pending invitation already exists")

// InvitationRepo provides data access for the invitations table using sqlx.
type InvitationRepo struct {
	db *sqlx.DB
}

func NewInvitationRepo(db *sqlx.DB) *InvitationRepo { return &InvitationRepo{db: db} }

// EnsureTable creates the invitations table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *InvitationRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS invitations (
  id varchar(36) PRIMARY KEY,
  invitee_email CITEXT NOT NULL,
  role TEXT NOT NULL,
  project_id varchar(32),
  section_id varchar(32),
  invited_by varchar(32) NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  accepted_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_pending_email_role
  ON invitations (invitee_email, role) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_invitations_status ON invitations(status);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new invitation row.
func (r *InvitationRepo) Create(ctx context.Context, inv *entity.Invitation) error {
	const q = `INSERT INTO invitations (id, invitee_email, role, project_id, section_id, invited_by, status)
	  VALUES (:id, :invitee_email, :role, :project_id, :section_id, :invited_by, :status)`
	if _, err := r.db.NamedExecContext(ctx, q, inv); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrPendingExists
		}
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// GetByID fetches an invitation row or sql.ErrNoRows.
func (r *InvitationRepo) GetByID(ctx context.Context, id string) (*entity.Invitation, error) {
	const q = `SELECT id, invitee_email, role, project_id, section_id, invited_by, status, created_at, accepted_at
	  FROM invitations WHERE id = $1`
	var inv entity.Invitation
	if err := r.db.GetContext(ctx, &inv, q, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// HasPending reports whether a pending invitation already exists for the
// (email, role) pair.
func (r *InvitationRepo) HasPending(ctx context.Context, email string, role string) (bool, error) {
	const q = `SELECT 1 FROM invitations WHERE invitee_email = $1 AND role = $2 AND status = 'pending'`
	var one int
	if err := r.db.GetContext(ctx, &one, q, email, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkAccepted flips a pending invitation to accepted. The WHERE clause is
// the single-writer guard: a second caller sees zero rows and must treat
// the invitation as consumed.
func (r *InvitationRepo) MarkAccepted(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE invitations SET status = 'accepted', accepted_at = NOW()
	  WHERE id = $1 AND status = 'pending' RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExpireByID flips a pending invitation to expired (admin triggered).
func (r *InvitationRepo) ExpireByID(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE invitations SET status = 'expired' WHERE id = $1 AND status = 'pending' RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExpireOlderThan expires every pending invitation created before the
// cutoff and returns the number of rows flipped.
func (r *InvitationRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND created_at < $1`
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
