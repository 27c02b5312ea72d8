package invitation

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/invitation/entity"
	"github.com/buildra/service-onboarding-go/internal/invitation/repo"
	"github.com/buildra/service-onboarding-go/pkg/utilities"
)

var (
	ErrDuplicatePending = errors.New("pending invitation already exists")
	// ErrNotFound covers missing, expired and accepted invitations alike so
	// a prober cannot distinguish them by probing ids.
	ErrNotFound        = errors.New("invitation not found")
	ErrAlreadyAccepted = errors.New("invitation already accepted")
	ErrNotAllowed      = errors.New("caller may not issue invitations")
	ErrBadEmail        = errors.New("invalid email address")
)

// Store is the persistence surface the registry needs.
type Store interface {
	Create(ctx context.Context, inv *entity.Invitation) error
	GetByID(ctx context.Context, id string) (*entity.Invitation, error)
	HasPending(ctx context.Context, email string, role string) (bool, error)
	MarkAccepted(ctx context.Context, id string) (bool, error)
	ExpireByID(ctx context.Context, id string) (bool, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailer delivers the acceptance link to the invitee. The link carries the
// opaque invitation id and nothing else.
type Mailer interface {
	SendInvitation(ctx context.Context, email string, acceptURL string) error
}

// LogMailer is the default Mailer; it records the link instead of sending.
// Real deployments substitute the messaging collaborator.
type LogMailer struct {
	Logger *zap.SugaredLogger
}

func (m LogMailer) SendInvitation(ctx context.Context, email string, acceptURL string) error {
	m.Logger.Infow("invitation mail", "email", email, "url", acceptURL)
	return nil
}

// Service owns the invitation state machine:
// pending --accept--> accepted, pending --expire--> expired, both terminal.
type Service struct {
	store   Store
	mailer  Mailer
	logger  *zap.SugaredLogger
	baseURL string
}

func NewService(store Store, mailer Mailer, logger *zap.SugaredLogger, baseURL string) *Service {
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &Service{store: store, mailer: mailer, logger: logger, baseURL: strings.TrimRight(baseURL, "/")}
}

// Issue creates a pending invitation for (email, role) and triggers the
// acceptance mail. Fails ErrDuplicatePending when a pending invitation for
// the pair already exists.
func (s *Service) Issue(ctx context.Context, caller auth.Caller, email string, role auth.Role, projectID, sectionID *string) (*entity.Invitation, error) {
	if !caller.CanInvite() {
		return nil, ErrNotAllowed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrBadEmail
	}
	dup, err := s.store.HasPending(ctx, email, string(role))
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicatePending
	}
	inv := &entity.Invitation{
		ID:           utilities.NewOpaqueToken(),
		InviteeEmail: email,
		Role:         role,
		ProjectID:    projectID,
		SectionID:    sectionID,
		InvitedBy:    caller.AccountID,
		Status:       entity.StatusPending,
	}
	if err := s.store.Create(ctx, inv); err != nil {
		// a concurrent issue can win the race between HasPending and the
		// insert; the partial unique index is the authoritative guard
		if errors.Is(err, repo.ErrPendingExists) {
			return nil, ErrDuplicatePending
		}
		return nil, err
	}
	// Delivery is the messaging collaborator's problem; a failed mail does
	// not invalidate the invitation.
	if err := s.mailer.SendInvitation(ctx, email, s.baseURL+"/accept/"+inv.ID); err != nil {
		s.logger.Warnw("invitation mail failed", "invitation_id", inv.ID, "err", err)
	}
	s.logger.Infow("invitation issued", "invitation_id", inv.ID, "role", role, "invited_by", caller.AccountID)
	return inv, nil
}

// FetchPending resolves an id to its pending invitation. Anything else,
// including ids that never existed, is ErrNotFound.
func (s *Service) FetchPending(ctx context.Context, id string) (*entity.Invitation, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if inv.Status != entity.StatusPending {
		return nil, ErrNotFound
	}
	return inv, nil
}

// MarkAccepted consumes a pending invitation. Calling it twice fails the
// second time with ErrAlreadyAccepted; acceptance is entangled with
// one-time account creation, so silent success would hide a duplicate.
func (s *Service) MarkAccepted(ctx context.Context, id string) error {
	flipped, err := s.store.MarkAccepted(ctx, id)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrAlreadyAccepted
	}
	return nil
}

// Expire flips a pending invitation to expired on admin request.
func (s *Service) Expire(ctx context.Context, caller auth.Caller, id string) error {
	if caller.Role != auth.RoleAdmin {
		return ErrNotAllowed
	}
	flipped, err := s.store.ExpireByID(ctx, id)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrNotFound
	}
	return nil
}

// ExpireSweep expires pending invitations older than maxAge.
func (s *Service) ExpireSweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.store.ExpireOlderThan(ctx, time.Now().UTC().Add(-maxAge))
}

// StartExpirySweep runs ExpireSweep on a ticker until ctx is cancelled.
func (s *Service) StartExpirySweep(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				n, err := s.ExpireSweep(tickCtx, maxAge)
				cancel()
				if err != nil {
					s.logger.Warnw("expiry sweep failed", "err", err)
					continue
				}
				if n > 0 {
					s.logger.Infow("expiry sweep", "expired", n)
				}
			}
		}
	}()
}
