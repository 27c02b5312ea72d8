package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/buildra/service-onboarding-go/internal/account/entity"
)

// ErrEmailTaken signals the accounts unique-email constraint fired.
var ErrEmailTaken = errors.New("email already registered")

// AccountRepo provides data access for the accounts table using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// EnsureTable creates the accounts table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS accounts (
  id varchar(32) PRIMARY KEY,
  email CITEXT UNIQUE NOT NULL,
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row. Returns ErrEmailTaken when the email
// is already registered.
func (r *AccountRepo) Create(ctx context.Context, id, email, passwordHash, passwordAlgo string) (*entity.Account, error) {
	const q = `INSERT INTO accounts (id, email, password_hash, password_algo)
	  VALUES ($1, $2, $3, $4) RETURNING created_at`
	var createdAt time.Time
	if err := r.db.GetContext(ctx, &createdAt, q, id, email, passwordHash, passwordAlgo); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &entity.Account{ID: id, Email: email, CreatedAt: createdAt}, nil
}

// Delete removes an account row. Only the provisioning compensation path
// uses this; accounts are otherwise never deleted.
func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

// GetByEmail returns an account matched by email (case-insensitive due to
// citext) or sql.ErrNoRows.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	const q = `SELECT id, email, created_at FROM accounts WHERE email = $1`
	var a entity.Account
	if err := r.db.GetContext(ctx, &a, q, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAuthView returns the projection needed to authenticate a sign-in.
// Reading your own account and profile rows is within the ambient policy,
// so this runs on the caller-scoped connection.
func (r *AccountRepo) GetAuthView(ctx context.Context, email string) (*entity.AuthView, error) {
	const q = `SELECT a.id, a.email, a.password_hash, rp.role
	  FROM accounts a
	  JOIN role_profiles rp ON rp.account_id = a.id
	 WHERE a.email = $1`
	var v entity.AuthView
	if err := r.db.GetContext(ctx, &v, q, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, err
	}
	return &v, nil
}
