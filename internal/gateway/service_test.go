package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/account/entity"
	"github.com/buildra/service-onboarding-go/internal/auth"
)

type fakeStore struct {
	names     map[string]map[string]string
	profiles  map[string]*entity.RoleProfile
	nameCalls int
}

func (f *fakeStore) ContractorNamesByProject(ctx context.Context, projectID string) (map[string]string, error) {
	f.nameCalls++
	names, ok := f.names[projectID]
	if !ok {
		return map[string]string{}, nil
	}
	return names, nil
}

func (f *fakeStore) HasProfile(ctx context.Context, accountID string) (bool, error) {
	_, ok := f.profiles[accountID]
	return ok, nil
}

func (f *fakeStore) InsertProfile(ctx context.Context, p *entity.RoleProfile) error {
	if f.profiles == nil {
		f.profiles = map[string]*entity.RoleProfile{}
	}
	f.profiles[p.AccountID] = p
	return nil
}

func (f *fakeStore) DeleteProfile(ctx context.Context, accountID string) error {
	delete(f.profiles, accountID)
	return nil
}

// fakeCache is a map-backed NameCache.
type fakeCache struct {
	data map[string]string
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.data == nil {
		f.data = map[string]string{}
	}
	f.data[key] = fmt.Sprintf("%s", value)
	return redis.NewStatusResult("OK", nil)
}

func contractorInput() WriteProfileInput {
	return WriteProfileInput{
		AccountID: "acc-1",
		FullName:  "Dana Builder",
		Phone:     "555-0100",
		Role:      auth.RoleContractor,
		Contractor: &entity.ContractorDetails{
			CompanyName:        "Acme Co",
			RegistrationNumber: "REG-42",
			Zone:               "north",
		},
	}
}

func TestResolveContractorNames(t *testing.T) {
	store := &fakeStore{names: map[string]map[string]string{
		"p-1": {"ctr-1": "Acme Co", "ctr-2": "Beta Ltd"},
	}}
	svc := NewService(store, nil, zap.NewNop().Sugar())

	names, err := svc.ResolveContractorNames(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(names) != 2 || names["ctr-1"] != "Acme Co" {
		t.Fatalf("unexpected names: %v", names)
	}

	// unknown project yields an empty map, not an error
	names, err = svc.ResolveContractorNames(context.Background(), "p-missing")
	if err != nil {
		t.Fatalf("unknown project must not error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty map, got %v", names)
	}
}

func TestResolveContractorNamesCacheHitAndMiss(t *testing.T) {
	store := &fakeStore{names: map[string]map[string]string{
		"p-1": {"ctr-1": "Acme Co"},
	}}
	svc := NewService(store, &fakeCache{}, zap.NewNop().Sugar())

	// miss falls through to the store and populates the cache
	names, err := svc.ResolveContractorNames(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if store.nameCalls != 1 {
		t.Fatalf("expected 1 store lookup on miss, got %d", store.nameCalls)
	}

	// hit is served from the cache without touching the store
	cached, err := svc.ResolveContractorNames(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("cached resolve failed: %v", err)
	}
	if store.nameCalls != 1 {
		t.Fatalf("expected cached lookup to skip the store, got %d calls", store.nameCalls)
	}
	if len(cached) != len(names) || cached["ctr-1"] != "Acme Co" {
		t.Fatalf("cached result diverged: %v vs %v", cached, names)
	}

	// a different project is its own key and misses again
	if _, err := svc.ResolveContractorNames(context.Background(), "p-2"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if store.nameCalls != 2 {
		t.Fatalf("expected a fresh store lookup for p-2, got %d calls", store.nameCalls)
	}
}

func TestResolveContractorNamesWithoutCache(t *testing.T) {
	store := &fakeStore{names: map[string]map[string]string{
		"p-1": {"ctr-1": "Acme Co"},
	}}
	svc := NewService(store, nil, zap.NewNop().Sugar())

	for i := 0; i < 2; i++ {
		if _, err := svc.ResolveContractorNames(context.Background(), "p-1"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
	}
	if store.nameCalls != 2 {
		t.Fatalf("nil cache must hit the store every time, got %d calls", store.nameCalls)
	}
}

func TestWriteRoleProfileRejectsDuplicate(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, zap.NewNop().Sugar())

	in := contractorInput()
	if err := svc.WriteRoleProfile(context.Background(), in); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := svc.WriteRoleProfile(context.Background(), in); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation on duplicate, got %v", err)
	}
	if len(store.profiles) != 1 {
		t.Fatalf("expected one profile, got %d", len(store.profiles))
	}
}

func TestValidateProfile(t *testing.T) {
	consultantDetails := &entity.ConsultantDetails{
		Specialization: "structural",
		Department:     "civil",
		Region:         "west",
	}

	cases := map[string]struct {
		mutate  func(*WriteProfileInput)
		wantErr bool
	}{
		"valid contractor": {func(in *WriteProfileInput) {}, false},
		"valid consultant": {func(in *WriteProfileInput) {
			in.Role = auth.RoleConsultant
			in.Contractor = nil
			in.Consultant = consultantDetails
		}, false},
		"valid admin without details": {func(in *WriteProfileInput) {
			in.Role = auth.RoleAdmin
			in.Contractor = nil
		}, false},
		"missing account id": {func(in *WriteProfileInput) { in.AccountID = "" }, true},
		"missing full name":  {func(in *WriteProfileInput) { in.FullName = "" }, true},
		"contractor without details": {func(in *WriteProfileInput) {
			in.Contractor = nil
		}, true},
		"contractor with consultant details": {func(in *WriteProfileInput) {
			in.Consultant = consultantDetails
		}, true},
		"contractor missing zone": {func(in *WriteProfileInput) {
			in.Contractor.Zone = ""
		}, true},
		"consultant missing department": {func(in *WriteProfileInput) {
			in.Role = auth.RoleConsultant
			in.Contractor = nil
			in.Consultant = &entity.ConsultantDetails{Specialization: "structural", Region: "west"}
		}, true},
		"staff with contractor details": {func(in *WriteProfileInput) {
			in.Role = auth.RoleStaff
		}, true},
		"unknown role": {func(in *WriteProfileInput) {
			in.Role = auth.Role("auditor")
			in.Contractor = nil
		}, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := contractorInput()
			tc.mutate(&in)
			err := ValidateProfile(in)
			if tc.wantErr && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
