package authz

import (
	"errors"
	"testing"
)

func TestAssertTenantScope(t *testing.T) {
	cases := []struct {
		name     string
		resource string
		ctx      Context
		wantKind Kind
		wantErr  error
	}{
		{name: "same tenant agent", resource: "ten-1", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleAgent}},
		{name: "same tenant manager", resource: "ten-1", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleManager}},
		{name: "cross tenant agent denied", resource: "ten-2", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleAgent}, wantKind: KindAccessDenied},
		{name: "cross tenant manager denied", resource: "ten-2", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleManager}, wantKind: KindAccessDenied},
		{name: "cross tenant investor denied", resource: "ten-2", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleInvestor}, wantKind: KindAccessDenied},
		{name: "cross tenant super admin allowed", resource: "ten-2", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleSuperAdmin}},
		{name: "missing ctx tenant denied", resource: "ten-1", ctx: Context{UserID: "u1", Role: RoleAgent}, wantKind: KindAccessDenied},
		{name: "super admin without tenant selection denied", resource: "ten-1", ctx: Context{UserID: "u1", Role: RoleSuperAdmin}, wantKind: KindAccessDenied},
		{name: "resource without tenant is a bug", resource: "", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleAgent}, wantErr: ErrResourceTenantMissing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertTenantScope(tc.resource, tc.ctx)
			checkGuardResult(t, err, tc.wantKind, tc.wantErr)
		})
	}
}

func TestAssertTenantScopeSuperAdminReason(t *testing.T) {
	err := AssertTenantScope("ten-1", Context{UserID: "u1", Role: RoleSuperAdmin})
	d, ok := AsDenial(err)
	if !ok {
		t.Fatalf("expected denial, got %v", err)
	}
	if d.Reason != "tenant selection required" {
		t.Fatalf("expected tenant selection reason, got %q", d.Reason)
	}
}

func TestAssertInvestorAccess(t *testing.T) {
	scope := InvestorScope{ID: "inv-1", TenantID: "ten-1", AssignedAgentID: "u2", OwnerUserID: "u9"}

	cases := []struct {
		name     string
		ctx      Context
		wantKind Kind
		wantErr  error
	}{
		{name: "manager allowed", ctx: Context{TenantID: "ten-1", UserID: "u5", Role: RoleManager}},
		{name: "super admin allowed", ctx: Context{TenantID: "ten-1", UserID: "u5", Role: RoleSuperAdmin}},
		{name: "assigned agent allowed", ctx: Context{TenantID: "ten-1", UserID: "u2", Role: RoleAgent}},
		{name: "other agent denied", ctx: Context{TenantID: "ten-1", UserID: "u1", Role: RoleAgent}, wantKind: KindAccessDenied},
		{name: "owning investor user allowed", ctx: Context{TenantID: "ten-1", UserID: "u9", Role: RoleInvestor}},
		{name: "investor principal by id allowed", ctx: Context{TenantID: "ten-1", UserID: "u7", Role: RoleInvestor, InvestorID: "inv-1"}},
		{name: "other investor denied", ctx: Context{TenantID: "ten-1", UserID: "u7", Role: RoleInvestor, InvestorID: "inv-2"}, wantKind: KindAccessDenied},
		{name: "cross tenant manager denied", ctx: Context{TenantID: "ten-2", UserID: "u5", Role: RoleManager}, wantKind: KindAccessDenied},
		{name: "unknown role is a bug", ctx: Context{TenantID: "ten-1", UserID: "u5", Role: Role("owner")}, wantErr: ErrUnknownRole},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertInvestorAccess(scope, tc.ctx)
			checkGuardResult(t, err, tc.wantKind, tc.wantErr)
		})
	}
}

func TestAssertMemoAccess(t *testing.T) {
	memo := MemoScope{TenantID: "ten-1", InvestorID: "inv-1"}
	investor := &InvestorScope{ID: "inv-1", TenantID: "ten-1", AssignedAgentID: "u2"}

	cases := []struct {
		name     string
		ctx      Context
		investor *InvestorScope
		wantKind Kind
		wantErr  error
	}{
		{name: "manager allowed", ctx: Context{TenantID: "ten-1", UserID: "u5", Role: RoleManager}},
		{name: "investor self allowed", ctx: Context{TenantID: "ten-1", UserID: "u7", Role: RoleInvestor, InvestorID: "inv-1"}},
		{name: "other investor denied", ctx: Context{TenantID: "ten-1", UserID: "u7", Role: RoleInvestor, InvestorID: "inv-9"}, wantKind: KindAccessDenied},
		{name: "assigned agent allowed via investor", ctx: Context{TenantID: "ten-1", UserID: "u2", Role: RoleAgent}, investor: investor},
		{name: "other agent denied via investor", ctx: Context{TenantID: "ten-1", UserID: "u3", Role: RoleAgent}, investor: investor, wantKind: KindAccessDenied},
		{name: "agent without investor scope is a bug", ctx: Context{TenantID: "ten-1", UserID: "u2", Role: RoleAgent}, wantErr: ErrInvestorScopeMissing},
		{name: "agent with mismatched investor scope is a bug", ctx: Context{TenantID: "ten-1", UserID: "u2", Role: RoleAgent}, investor: &InvestorScope{ID: "inv-9", TenantID: "ten-1"}, wantErr: ErrInvestorScopeMissing},
		{name: "cross tenant denied before role rules", ctx: Context{TenantID: "ten-2", UserID: "u5", Role: RoleManager}, wantKind: KindAccessDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertMemoAccess(memo, tc.ctx, tc.investor)
			checkGuardResult(t, err, tc.wantKind, tc.wantErr)
		})
	}
}

// Tenant isolation holds for every non-platform role regardless of how the
// ownership fields line up.
func TestTenantIsolationAcrossRoles(t *testing.T) {
	scope := InvestorScope{ID: "inv-1", TenantID: "ten-2", AssignedAgentID: "u1", OwnerUserID: "u1"}
	for _, role := range []Role{RoleAgent, RoleManager, RoleInvestor} {
		ctx := Context{TenantID: "ten-1", UserID: "u1", Role: role, InvestorID: "inv-1"}
		err := AssertInvestorAccess(scope, ctx)
		if d, ok := AsDenial(err); !ok || d.Kind != KindAccessDenied {
			t.Fatalf("role %s: expected cross-tenant denial, got %v", role, err)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"agent", "manager", "investor", "super_admin"} {
		if _, err := ParseRole(raw); err != nil {
			t.Fatalf("ParseRole(%q) failed: %v", raw, err)
		}
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatal("expected ParseRole to reject unknown role")
	}
}

func checkGuardResult(t *testing.T, err error, wantKind Kind, wantErr error) {
	t.Helper()
	switch {
	case wantErr != nil:
		if !errors.Is(err, wantErr) {
			t.Fatalf("expected %v, got %v", wantErr, err)
		}
	case wantKind != "":
		d, ok := AsDenial(err)
		if !ok {
			t.Fatalf("expected denial, got %v", err)
		}
		if d.Kind != wantKind {
			t.Fatalf("expected kind %s, got %s (%s)", wantKind, d.Kind, d.Reason)
		}
	default:
		if err != nil {
			t.Fatalf("expected access granted, got %v", err)
		}
	}
}
