package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	svc, err := NewTokenService("onboarding-test", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	want := Caller{AccountID: "acc-1", Role: RoleConsultant}

	token, err := svc.Issue(want)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	got, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got != want {
		t.Fatalf("caller roundtrip mismatch: got %+v want %+v", got, want)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc, err := NewTokenService("onboarding-test", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	token, err := svc.Issue(Caller{AccountID: "acc-1", Role: RoleStaff})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	issuerA, err := NewTokenService("service-a", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	issuerB, err := NewTokenService("service-b", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	token, err := issuerB.Issue(Caller{AccountID: "acc-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := issuerA.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected cross-issuer token to be rejected, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]struct {
		in      string
		want    Role
		wantErr bool
	}{
		"admin":       {"admin", RoleAdmin, false},
		"mixed case":  {" Consultant ", RoleConsultant, false},
		"contractor":  {"contractor", RoleContractor, false},
		"staff":       {"staff", RoleStaff, false},
		"empty":       {"", "", true},
		"unknown":     {"superuser", "", true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseRole(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownRole) {
					t.Fatalf("expected ErrUnknownRole, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ParseRole(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestCanInvite(t *testing.T) {
	if !(Caller{Role: RoleAdmin}).CanInvite() || !(Caller{Role: RoleConsultant}).CanInvite() {
		t.Fatalf("admin and consultant must be able to invite")
	}
	if (Caller{Role: RoleContractor}).CanInvite() || (Caller{Role: RoleStaff}).CanInvite() {
		t.Fatalf("contractor and staff must not be able to invite")
	}
}
