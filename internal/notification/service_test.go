package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/notification/entity"
)

// fakeStore mimics the repo's transactional fan-out: the recipient set is
// snapshotted per section and deliveries are recorded atomically with the
// notification, or not at all.
type fakeStore struct {
	assignments map[string][]string
	sections    []entity.SectionSummary

	notifications []*entity.Notification
	deliveries    map[string][]string
}

func (f *fakeStore) ListSectionsWithCounts(ctx context.Context, projectID string) ([]entity.SectionSummary, error) {
	return f.sections, nil
}

func (f *fakeStore) CreateWithDeliveries(ctx context.Context, n *entity.Notification) (int, error) {
	recipients := f.assignments[n.SectionID]
	if len(recipients) == 0 {
		return 0, nil
	}
	if f.deliveries == nil {
		f.deliveries = map[string][]string{}
	}
	n.CreatedAt = time.Now().UTC()
	f.notifications = append(f.notifications, n)
	f.deliveries[n.ID] = recipients
	return len(recipients), nil
}

func (f *fakeStore) ListSentByAuthor(ctx context.Context, authorID string) ([]entity.SentView, error) {
	var out []entity.SentView
	for _, n := range f.notifications {
		if n.AuthorID != authorID {
			continue
		}
		out = append(out, entity.SentView{
			ID:             n.ID,
			SectionID:      n.SectionID,
			Title:          n.Title,
			Message:        n.Message,
			CreatedAt:      n.CreatedAt,
			RecipientCount: len(f.deliveries[n.ID]),
		})
	}
	return out, nil
}

var consultant = auth.Caller{AccountID: "acc-c", Role: auth.RoleConsultant}

func TestSendFansOutOneDeliveryPerContractor(t *testing.T) {
	store := &fakeStore{assignments: map[string][]string{
		"sec-1": {"ctr-1", "ctr-2", "ctr-3"},
	}}
	svc := NewService(store, zap.NewNop().Sugar())

	n, count, err := svc.Send(context.Background(), consultant, "sec-1", "  Inspection  ", "Bring the paperwork.")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 recipients, got %d", count)
	}
	if n.Title != "Inspection" {
		t.Fatalf("title not trimmed: %q", n.Title)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected exactly one notification row, got %d", len(store.notifications))
	}
	if got := len(store.deliveries[n.ID]); got != 3 {
		t.Fatalf("expected 3 delivery rows, got %d", got)
	}

	sent, err := svc.ListSent(context.Background(), consultant)
	if err != nil {
		t.Fatalf("list sent failed: %v", err)
	}
	if len(sent) != 1 || sent[0].RecipientCount != 3 {
		t.Fatalf("sent view should carry the fan-out size: %+v", sent)
	}
}

func TestSendEmptySection(t *testing.T) {
	store := &fakeStore{assignments: map[string][]string{}}
	svc := NewService(store, zap.NewNop().Sugar())

	_, _, err := svc.Send(context.Background(), consultant, "sec-empty", "Title", "Body")
	if !errors.Is(err, ErrEmptySection) {
		t.Fatalf("expected ErrEmptySection, got %v", err)
	}
	if len(store.notifications) != 0 {
		t.Fatalf("empty-section send must write nothing, got %d notifications", len(store.notifications))
	}
}

func TestSendValidation(t *testing.T) {
	store := &fakeStore{assignments: map[string][]string{"sec-1": {"ctr-1"}}}
	svc := NewService(store, zap.NewNop().Sugar())

	cases := map[string]struct {
		caller  auth.Caller
		title   string
		message string
		want    error
	}{
		"contractor cannot send": {auth.Caller{AccountID: "x", Role: auth.RoleContractor}, "T", "M", ErrNotAllowed},
		"blank title":            {consultant, "   ", "M", ErrMissingContent},
		"blank message":          {consultant, "T", "", ErrMissingContent},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Send(context.Background(), tc.caller, "sec-1", tc.title, tc.message)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if len(store.notifications) != 0 {
		t.Fatalf("rejected sends must write nothing")
	}
}

func TestListSentOnlyOwnNotifications(t *testing.T) {
	store := &fakeStore{assignments: map[string][]string{"sec-1": {"ctr-1"}}}
	svc := NewService(store, zap.NewNop().Sugar())

	other := auth.Caller{AccountID: "acc-other", Role: auth.RoleAdmin}
	if _, _, err := svc.Send(context.Background(), other, "sec-1", "Theirs", "Body"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, _, err := svc.Send(context.Background(), consultant, "sec-1", "Mine", "Body"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	sent, err := svc.ListSent(context.Background(), consultant)
	if err != nil {
		t.Fatalf("list sent failed: %v", err)
	}
	if len(sent) != 1 || sent[0].Title != "Mine" {
		t.Fatalf("expected only the caller's notifications, got %+v", sent)
	}
}
