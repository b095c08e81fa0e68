// Package authz is the tenant/role authorization core. Every data-access
// path resolves a Context first and runs the scope guards in this package
// before touching a tenant resource. All functions here are pure: they
// take plain projections already fetched by the caller and return a value
// or a typed denial, never performing I/O themselves.
package authz

import "fmt"

// Role is the closed set of principal roles. Anything outside this set is
// a programming error, not a user-facing case.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleManager    Role = "manager"
	RoleInvestor   Role = "investor"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole validates a raw role string against the closed enum.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAgent, RoleManager, RoleInvestor, RoleSuperAdmin:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Context is the resolved identity a request acts under. It is immutable
// after resolution: guards only ever read it.
//
// TenantID is empty only for super_admin principals operating at platform
// level; any tenant-scoped action still requires an explicit tenant
// selection, which the guards enforce.
type Context struct {
	TenantID   string
	UserID     string
	Role       Role
	InvestorID string
}

// InvestorScope is the minimal projection of an investor record needed for
// authorization decisions.
type InvestorScope struct {
	ID              string
	TenantID        string
	AssignedAgentID string
	OwnerUserID     string
}

// MemoScope is the minimal projection of an IC memo needed for
// authorization decisions.
type MemoScope struct {
	TenantID   string
	InvestorID string
}
