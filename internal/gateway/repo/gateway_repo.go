package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/buildra/service-onboarding-go/internal/account/entity"
	"github.com/buildra/service-onboarding-go/internal/auth"
)

// Repo runs the gateway's elevated queries. It must be handed the
// privileged *sqlx.DB connection; the row-level policies that block
// ordinary repos from reading another role's identity do not apply to it.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo { return &Repo{db: db} }

// EnsureTable creates the role_profiles table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS role_profiles (
  account_id varchar(32) PRIMARY KEY,
  full_name TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  company_name TEXT,
  registration_number TEXT,
  zone TEXT,
  specialization TEXT,
  department TEXT,
  region TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_role_profiles_role ON role_profiles(role);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// ContractorNamesByProject returns contractor_id -> full_name for every
// contractor assigned to a section of the project. Contractors without a
// profile row are simply absent from the result.
func (r *Repo) ContractorNamesByProject(ctx context.Context, projectID string) (map[string]string, error) {
	const q = `SELECT sa.contractor_id, rp.full_name
	  FROM section_assignments sa
	  JOIN sections s ON s.id = sa.section_id
	  JOIN role_profiles rp ON rp.account_id = sa.contractor_id
	 WHERE s.project_id = $1`
	rows, err := r.db.QueryxContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("contractor names by project: %w", err)
	}
	defer rows.Close()
	names := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// HasProfile reports whether a profile row exists for the account.
func (r *Repo) HasProfile(ctx context.Context, accountID string) (bool, error) {
	const q = `SELECT 1 FROM role_profiles WHERE account_id = $1`
	var one int
	if err := r.db.GetContext(ctx, &one, q, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertProfile writes the role profile row on behalf of a freshly created
// account. Flattens the role-specific variant into nullable columns.
func (r *Repo) InsertProfile(ctx context.Context, p *entity.RoleProfile) error {
	const q = `INSERT INTO role_profiles
	  (account_id, full_name, phone, role, company_name, registration_number, zone, specialization, department, region)
	  VALUES (:account_id, :full_name, :phone, :role, :company_name, :registration_number, :zone, :specialization, :department, :region)`
	params := map[string]any{
		"account_id":          p.AccountID,
		"full_name":           p.FullName,
		"phone":               p.Phone,
		"role":                string(p.Role),
		"company_name":        nil,
		"registration_number": nil,
		"zone":                nil,
		"specialization":      nil,
		"department":          nil,
		"region":              nil,
	}
	if p.Role == auth.RoleContractor && p.Contractor != nil {
		params["company_name"] = p.Contractor.CompanyName
		params["registration_number"] = p.Contractor.RegistrationNumber
		params["zone"] = p.Contractor.Zone
	}
	if p.Role == auth.RoleConsultant && p.Consultant != nil {
		params["specialization"] = p.Consultant.Specialization
		params["department"] = p.Consultant.Department
		params["region"] = p.Consultant.Region
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("insert role profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile row. Used only by provisioning
// compensation paths.
func (r *Repo) DeleteProfile(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM role_profiles WHERE account_id = $1`, accountID)
	return err
}
