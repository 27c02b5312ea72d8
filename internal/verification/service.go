package verification

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/verification/entity"
)

var (
	ErrBadDecision = errors.New("decision must be approved or rejected")
	ErrNotFound    = errors.New("submission not found or already decided")
	ErrNotAllowed  = errors.New("caller may not decide submissions")
)

// lookupLimit bounds the concurrent per-project name resolutions.
const lookupLimit = 4

// Store is the caller-scoped persistence surface of the assembler.
type Store interface {
	ListJoined(ctx context.Context, status string) ([]entity.JoinedRow, error)
	ListMinimal(ctx context.Context, status string) ([]entity.MinimalRow, error)
	Decide(ctx context.Context, id, decision, note string) (bool, error)
}

// NameResolver is the slice of the access policy gateway the assembler
// uses to attach contractor display names.
type NameResolver interface {
	ResolveContractorNames(ctx context.Context, projectID string) (map[string]string, error)
}

// Service assembles the consultant's verification worklist. Degradation is
// the design here: a policy-rejected join produces placeholder rows, a
// failed name lookup produces sentinel names, and the queue is never
// empty-on-error while matching rows exist.
type Service struct {
	store  Store
	names  NameResolver
	logger *zap.SugaredLogger
}

func NewService(store Store, names NameResolver, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, names: names, logger: logger}
}

// ListQueue returns pending-decision submissions (or another status) with
// human-readable names attached, newest first. projectFilter is applied to
// the merged set, not pushed into the query.
func (s *Service) ListQueue(ctx context.Context, caller auth.Caller, status, projectFilter string) ([]entity.QueueRow, error) {
	if status == "" {
		status = entity.StatusPending
	}

	joined, err := s.store.ListJoined(ctx, status)
	if err != nil {
		s.logger.Warnw("joined fetch rejected, degrading to minimal rows", "err", err)
		return s.listDegraded(ctx, status)
	}

	lookups := s.resolveNames(ctx, distinctProjects(joined))

	rows := make([]entity.QueueRow, 0, len(joined))
	for _, j := range joined {
		row := entity.QueueRow{
			SubmissionID:  j.SubmissionID,
			Status:        j.Status,
			SubmittedAt:   j.SubmittedAt,
			MilestoneID:   j.MilestoneID,
			MilestoneName: entity.FoundName(j.MilestoneName),
			ProjectID:     j.ProjectID,
			ProjectName:   entity.FoundName(j.ProjectName),
			ContractorID:  j.ContractorID,
		}
		if name, ok := lookups[j.ProjectID][j.ContractorID]; ok {
			row.ContractorName = entity.FoundName(name)
		} else {
			row.ContractorName = entity.UnknownName(entity.UnknownContractor)
		}
		if projectFilter != "" && j.ProjectID != projectFilter {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// resolveNames runs the per-project contractor-name lookups concurrently
// with a bounded fan-out. A failed lookup contributes an empty map; it
// never cancels the siblings or fails the queue.
func (s *Service) resolveNames(ctx context.Context, projectIDs []string) map[string]map[string]string {
	lookups := make(map[string]map[string]string, len(projectIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)
	for _, projectID := range projectIDs {
		g.Go(func() error {
			names, err := s.names.ResolveContractorNames(gctx, projectID)
			if err != nil {
				s.logger.Warnw("contractor name lookup failed", "project_id", projectID, "err", err)
				names = map[string]string{}
			}
			mu.Lock()
			lookups[projectID] = names
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return lookups
}

// listDegraded is the bottom rung of the ladder: single-table rows with
// placeholder names. No project id is known here, so a project filter
// cannot exclude anything.
func (s *Service) listDegraded(ctx context.Context, status string) ([]entity.QueueRow, error) {
	minimal, err := s.store.ListMinimal(ctx, status)
	if err != nil {
		return nil, err
	}
	rows := make([]entity.QueueRow, 0, len(minimal))
	for _, m := range minimal {
		rows = append(rows, entity.QueueRow{
			SubmissionID:   m.SubmissionID,
			Status:         m.Status,
			SubmittedAt:    m.SubmittedAt,
			MilestoneID:    m.MilestoneID,
			MilestoneName:  entity.UnknownName(entity.UnknownMilestone),
			ProjectName:    entity.UnknownName(entity.UnknownProject),
			ContractorID:   m.ContractorID,
			ContractorName: entity.UnknownName(entity.UnknownContractor),
			Degraded:       true,
		})
	}
	return rows, nil
}

// Decide records a consultant's decision on a pending submission.
func (s *Service) Decide(ctx context.Context, caller auth.Caller, id, decision, note string) error {
	if caller.Role != auth.RoleConsultant && caller.Role != auth.RoleAdmin {
		return ErrNotAllowed
	}
	if decision != entity.StatusApproved && decision != entity.StatusRejected {
		return ErrBadDecision
	}
	decided, err := s.store.Decide(ctx, id, decision, note)
	if err != nil {
		return err
	}
	if !decided {
		return ErrNotFound
	}
	s.logger.Infow("submission decided", "submission_id", id, "decision", decision, "by", caller.AccountID)
	return nil
}

func distinctProjects(rows []entity.JoinedRow) []string {
	seen := map[string]bool{}
	var ids []string
	for _, r := range rows {
		if !seen[r.ProjectID] {
			seen[r.ProjectID] = true
			ids = append(ids, r.ProjectID)
		}
	}
	return ids
}
