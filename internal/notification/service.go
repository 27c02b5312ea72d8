package notification

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/notification/entity"
	"github.com/buildra/service-onboarding-go/pkg/utilities"
)

var (
	ErrEmptySection   = errors.New("section has no assigned contractors")
	ErrMissingContent = errors.New("title and message are required")
	ErrNotAllowed     = errors.New("caller may not send notifications")
)

// Store is the persistence surface of the fan-out resolver.
type Store interface {
	ListSectionsWithCounts(ctx context.Context, projectID string) ([]entity.SectionSummary, error)
	CreateWithDeliveries(ctx context.Context, n *entity.Notification) (int, error)
	ListSentByAuthor(ctx context.Context, authorID string) ([]entity.SentView, error)
}

// Service resolves the recipient set for section-scoped notifications.
// Delivery is fire-and-forget: one row per recipient at send time, never
// mutated afterwards.
type Service struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, logger: logger}
}

// ListAssignableSections returns the sections of a project with contractor
// counts. A zero count is a valid listing; only Send refuses it.
func (s *Service) ListAssignableSections(ctx context.Context, caller auth.Caller, projectID string) ([]entity.SectionSummary, error) {
	return s.store.ListSectionsWithCounts(ctx, projectID)
}

// Send persists one notification and one delivery per contractor assigned
// to the section. The emptiness check happens at send time inside the
// fan-out transaction, not at list time, so assignment changes between
// listing and sending cannot race past it.
func (s *Service) Send(ctx context.Context, caller auth.Caller, sectionID, title, message string) (*entity.Notification, int, error) {
	if caller.Role != auth.RoleConsultant && caller.Role != auth.RoleAdmin {
		return nil, 0, ErrNotAllowed
	}
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, 0, ErrMissingContent
	}
	n := &entity.Notification{
		ID:        utilities.NewKSUID(),
		SectionID: sectionID,
		AuthorID:  caller.AccountID,
		Title:     title,
		Message:   message,
	}
	count, err := s.store.CreateWithDeliveries(ctx, n)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, ErrEmptySection
	}
	s.logger.Infow("notification sent", "notification_id", n.ID, "section_id", sectionID, "recipients", count)
	return n, count, nil
}

// ListSent returns the caller's sent notifications with recipient counts.
func (s *Service) ListSent(ctx context.Context, caller auth.Caller) ([]entity.SentView, error) {
	return s.store.ListSentByAuthor(ctx, caller.AccountID)
}
