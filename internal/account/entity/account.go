package entity

import (
	"time"

	"github.com/buildra/service-onboarding-go/internal/auth"
)

// Account is the authentication identity. Created once at invitation
// acceptance and never re-created for the same email.
type Account struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoleProfile is the role-facing identity attached to an account. Exactly
// one exists per account.
type RoleProfile struct {
	AccountID  string             `db:"account_id" json:"account_id"`
	FullName   string             `db:"full_name" json:"full_name"`
	Phone      string             `db:"phone" json:"phone,omitempty"`
	Role       auth.Role          `db:"role" json:"role"`
	Contractor *ContractorDetails `json:"contractor,omitempty"`
	Consultant *ConsultantDetails `json:"consultant,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

// AuthView is the minimal projection required to authenticate a sign-in.
type AuthView struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         auth.Role `db:"role"`
}

// ContractorDetails is the contractor variant of the role-specific payload.
type ContractorDetails struct {
	CompanyName        string `db:"company_name" json:"company_name"`
	RegistrationNumber string `db:"registration_number" json:"registration_number"`
	Zone               string `db:"zone" json:"zone"`
}

// ConsultantDetails is the consultant variant of the role-specific payload.
type ConsultantDetails struct {
	Specialization string `db:"specialization" json:"specialization"`
	Department     string `db:"department" json:"department"`
	Region         string `db:"region" json:"region"`
}
