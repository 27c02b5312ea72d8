package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/account/entity"
	"github.com/buildra/service-onboarding-go/internal/auth"
)

var (
	ErrPolicyViolation = errors.New("policy violation")
	ErrValidation      = errors.New("validation error")
)

// Store is the elevated data access the gateway runs on. Abstract so tests
// can substitute an in-memory implementation.
type Store interface {
	ContractorNamesByProject(ctx context.Context, projectID string) (map[string]string, error)
	HasProfile(ctx context.Context, accountID string) (bool, error)
	InsertProfile(ctx context.Context, p *entity.RoleProfile) error
	DeleteProfile(ctx context.Context, accountID string) error
}

// NameCache is the slice of the redis client the name lookups use.
// *redis.Client satisfies it.
type NameCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Service is the access policy gateway: a short catalogue of elevated,
// single-purpose operations. Each returns only the projection its caller
// needs, so the blast radius of "runs with elevated privilege" stays
// bounded and testable. Callers are expected to have already passed their
// own entitlement checks before invoking it.
type Service struct {
	store  Store
	cache  NameCache
	logger *zap.SugaredLogger

	// CacheTTL bounds staleness of the advisory display-name lookup.
	CacheTTL time.Duration
}

// NewService constructs the gateway. cache may be nil; name resolution
// then always hits the store.
func NewService(store Store, cache NameCache, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, cache: cache, logger: logger, CacheTTL: time.Minute}
}

// WriteProfileInput is the privileged profile write payload.
type WriteProfileInput struct {
	AccountID  string
	FullName   string
	Phone      string
	Role       auth.Role
	Contractor *entity.ContractorDetails
	Consultant *entity.ConsultantDetails
}

// ResolveContractorNames returns display names for every contractor
// attached to the project. Unknown ids are absent, never an error. The
// result is advisory display data, so individual lookups are cacheable.
func (s *Service) ResolveContractorNames(ctx context.Context, projectID string) (map[string]string, error) {
	if names, ok := s.cachedNames(ctx, projectID); ok {
		return names, nil
	}
	names, err := s.store.ContractorNamesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	s.cacheNames(ctx, projectID, names)
	return names, nil
}

// WriteRoleProfile performs the privileged write of a role profile on
// behalf of a newly created account. The ordinary "write your own row"
// policy cannot apply because the row does not exist yet.
func (s *Service) WriteRoleProfile(ctx context.Context, in WriteProfileInput) error {
	if err := ValidateProfile(in); err != nil {
		return err
	}
	exists, err := s.store.HasProfile(ctx, in.AccountID)
	if err != nil {
		return err
	}
	if exists {
		return ErrPolicyViolation
	}
	p := &entity.RoleProfile{
		AccountID:  in.AccountID,
		FullName:   in.FullName,
		Phone:      in.Phone,
		Role:       in.Role,
		Contractor: in.Contractor,
		Consultant: in.Consultant,
	}
	if err := s.store.InsertProfile(ctx, p); err != nil {
		return err
	}
	s.logger.Infow("role profile written", "account_id", in.AccountID, "role", in.Role)
	return nil
}

// DeleteRoleProfile removes an account's profile row. Provisioning
// compensation calls it before deleting the account so a failed write
// cannot leave a half-provisioned pair behind.
func (s *Service) DeleteRoleProfile(ctx context.Context, accountID string) error {
	return s.store.DeleteProfile(ctx, accountID)
}

// ValidateProfile checks that the role-specific payload matches the role.
// Exported so the provisioning saga can reject a malformed payload before
// it creates anything.
func ValidateProfile(in WriteProfileInput) error {
	if in.AccountID == "" || in.FullName == "" {
		return ErrValidation
	}
	switch in.Role {
	case auth.RoleContractor:
		d := in.Contractor
		if d == nil || in.Consultant != nil {
			return ErrValidation
		}
		if d.CompanyName == "" || d.RegistrationNumber == "" || d.Zone == "" {
			return ErrValidation
		}
	case auth.RoleConsultant:
		d := in.Consultant
		if d == nil || in.Contractor != nil {
			return ErrValidation
		}
		if d.Specialization == "" || d.Department == "" || d.Region == "" {
			return ErrValidation
		}
	case auth.RoleAdmin, auth.RoleStaff:
		if in.Contractor != nil || in.Consultant != nil {
			return ErrValidation
		}
	default:
		return ErrValidation
	}
	return nil
}

func (s *Service) cachedNames(ctx context.Context, projectID string) (map[string]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, nameCacheKey(projectID)).Bytes()
	if err != nil {
		return nil, false
	}
	var names map[string]string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false
	}
	return names, true
}

func (s *Service) cacheNames(ctx context.Context, projectID string, names map[string]string) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, nameCacheKey(projectID), raw, s.CacheTTL).Err(); err != nil {
		s.logger.Debugw("name cache write failed", "project_id", projectID, "err", err)
	}
}

func nameCacheKey(projectID string) string {
	return "gateway:contractor-names:" + projectID
}
