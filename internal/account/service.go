package account

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/buildra/service-onboarding-go/internal/account/entity"
	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/gateway"
	inventity "github.com/buildra/service-onboarding-go/internal/invitation/entity"
	"github.com/buildra/service-onboarding-go/pkg/utilities"
)

var (
	ErrInvalidInvitation     = errors.New("invitation is not available")
	ErrWeakPassword          = errors.New("password does not meet policy")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrAccountCreationFailed = errors.New("account creation failed")
	// ErrProvisioningFailed means the profile write failed and the identity
	// created for it was rolled back. The invitation stays pending, so the
	// invitee can retry the acceptance link.
	ErrProvisioningFailed = errors.New("provisioning failed, retry")
	ErrBadCredentials     = errors.New("invalid credentials")
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Registry is the slice of the invitation registry the saga depends on.
type Registry interface {
	FetchPending(ctx context.Context, id string) (*inventity.Invitation, error)
	MarkAccepted(ctx context.Context, id string) error
}

// Store is the accounts persistence surface.
type Store interface {
	Create(ctx context.Context, id, email, passwordHash, passwordAlgo string) (*entity.Account, error)
	Delete(ctx context.Context, id string) error
	GetAuthView(ctx context.Context, email string) (*entity.AuthView, error)
}

// ProfileWriter is the elevated profile surface of the access policy
// gateway: the provisioning write plus the rollback used on compensation.
type ProfileWriter interface {
	WriteRoleProfile(ctx context.Context, in gateway.WriteProfileInput) error
	DeleteRoleProfile(ctx context.Context, accountID string) error
}

// Provisioner turns a still-pending invitation plus registration data into
// a usable account. The sequence spans identity creation and the elevated
// profile write with no cross-system transaction, so the ordering and the
// compensation below are the whole point of this type.
type Provisioner struct {
	invitations Registry
	accounts    Store
	profiles    ProfileWriter
	tokens      *auth.TokenService
	hasher      PasswordHasher
	logger      *zap.SugaredLogger
}

func NewProvisioner(invitations Registry, accounts Store, profiles ProfileWriter, tokens *auth.TokenService, hasher PasswordHasher, logger *zap.SugaredLogger) *Provisioner {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Provisioner{invitations: invitations, accounts: accounts, profiles: profiles, tokens: tokens, hasher: hasher, logger: logger}
}

// AcceptInput is the registration data submitted with an acceptance.
type AcceptInput struct {
	FullName        string
	Phone           string
	Password        string
	ConfirmPassword string
	Contractor      *entity.ContractorDetails
	Consultant      *entity.ConsultantDetails
}

// Session is what a successful acceptance hands back to the presentation
// layer: an authenticated session and the role-home route to load.
type Session struct {
	AccountID string    `json:"account_id"`
	Role      auth.Role `json:"role"`
	Token     string    `json:"token"`
	HomeRoute string    `json:"home_route"`
}

// Accept runs the provisioning sequence. Steps are strictly ordered:
// validate invitation, validate input, create identity, write profile
// (compensated), consume invitation, establish session.
func (p *Provisioner) Accept(ctx context.Context, invitationID string, in AcceptInput) (*Session, error) {
	inv, err := p.invitations.FetchPending(ctx, invitationID)
	if err != nil {
		return nil, ErrInvalidInvitation
	}

	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if !passwordMeetsPolicy(in.Password) {
		return nil, ErrWeakPassword
	}
	profile := gateway.WriteProfileInput{
		FullName:   in.FullName,
		Phone:      in.Phone,
		Role:       inv.Role,
		Contractor: in.Contractor,
		Consultant: in.Consultant,
	}
	// shape check before anything external is touched; the gateway repeats
	// it on write
	probe := profile
	probe.AccountID = "probe"
	if err := gateway.ValidateProfile(probe); err != nil {
		return nil, err
	}

	hash, algo, err := p.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	acct, err := p.accounts.Create(ctx, utilities.NewKSUID(), inv.InviteeEmail, hash, algo)
	if err != nil {
		p.logger.Warnw("account creation failed", "invitation_id", inv.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrAccountCreationFailed, err)
	}

	profile.AccountID = acct.ID
	if err := p.profiles.WriteRoleProfile(ctx, profile); err != nil {
		// The identity now exists without a profile. Roll it back so the
		// invitation stays usable, on a context that survives caller
		// cancellation.
		p.compensate(context.WithoutCancel(ctx), acct.ID, inv.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	if err := p.invitations.MarkAccepted(ctx, inv.ID); err != nil {
		// Account and profile are fully usable; the invitation row only
		// serves audit from here. Non-fatal.
		p.logger.Errorw("invitation not marked accepted after provisioning",
			"invitation_id", inv.ID, "account_id", acct.ID, "err", err)
	}

	caller := auth.Caller{AccountID: acct.ID, Role: inv.Role}
	token, err := p.tokens.Issue(caller)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("account provisioned", "account_id", acct.ID, "role", inv.Role, "invitation_id", inv.ID)
	return &Session{AccountID: acct.ID, Role: inv.Role, Token: token, HomeRoute: homeRouteFor(inv.Role)}, nil
}

func (p *Provisioner) compensate(ctx context.Context, accountID, invitationID string, cause error) {
	// Remove whatever the failed write left behind before the account row,
	// so a retry never trips the one-profile-per-account guard.
	if err := p.profiles.DeleteRoleProfile(ctx, accountID); err != nil {
		p.logger.Warnw("profile rollback failed",
			"account_id", accountID, "invitation_id", invitationID, "err", err)
	}
	if err := p.accounts.Delete(ctx, accountID); err != nil {
		// Orphan identity left behind; needs operator attention.
		p.logger.Errorw("compensation failed, orphan account remains",
			"account_id", accountID, "invitation_id", invitationID, "cause", cause, "err", err)
		return
	}
	p.logger.Warnw("profile write failed, account rolled back",
		"account_id", accountID, "invitation_id", invitationID, "err", cause)
}

// Login authenticates a provisioned account and establishes a session.
// Missing accounts, half-provisioned accounts without a profile and wrong
// passwords all answer the same way to avoid enumeration.
func (p *Provisioner) Login(ctx context.Context, email, password string) (*Session, error) {
	view, err := p.accounts.GetAuthView(ctx, email)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if !p.hasher.Verify(view.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	caller := auth.Caller{AccountID: view.ID, Role: view.Role}
	token, err := p.tokens.Issue(caller)
	if err != nil {
		return nil, err
	}
	return &Session{AccountID: view.ID, Role: view.Role, Token: token, HomeRoute: homeRouteFor(view.Role)}, nil
}

// passwordMeetsPolicy: length >= 8 with at least one uppercase, one
// lowercase and one digit.
func passwordMeetsPolicy(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func homeRouteFor(role auth.Role) string {
	switch role {
	case auth.RoleAdmin:
		return "/admin"
	case auth.RoleConsultant:
		return "/consultant"
	case auth.RoleContractor:
		return "/contractor"
	default:
		return "/staff"
	}
}
