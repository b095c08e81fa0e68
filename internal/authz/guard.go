package authz

// AssertTenantScope checks that ctx may touch a resource partitioned under
// resourceTenantID. super_admin may cross tenants, but only with an
// explicit tenant selected; platform-level contexts without one are denied
// with a distinct reason so the UI can prompt for a tenant.
func AssertTenantScope(resourceTenantID string, ctx Context) error {
	if resourceTenantID == "" {
		return ErrResourceTenantMissing
	}
	if ctx.TenantID == "" {
		if ctx.Role == RoleSuperAdmin {
			return denied("tenant selection required")
		}
		return denied("no tenant scope on request")
	}
	if resourceTenantID != ctx.TenantID && ctx.Role != RoleSuperAdmin {
		return denied("resource belongs to another tenant")
	}
	return nil
}

// AssertInvestorAccess checks record-level access to an investor. The
// tenant check always runs first; role rules apply within the tenant:
// managers see every investor, agents only their own book, investor
// principals only themselves.
func AssertInvestorAccess(investor InvestorScope, ctx Context) error {
	if err := AssertTenantScope(investor.TenantID, ctx); err != nil {
		return err
	}
	switch ctx.Role {
	case RoleSuperAdmin, RoleManager:
		return nil
	case RoleAgent:
		if investor.AssignedAgentID == ctx.UserID {
			return nil
		}
		return denied("investor is assigned to another agent")
	case RoleInvestor:
		if investor.OwnerUserID != "" && investor.OwnerUserID == ctx.UserID {
			return nil
		}
		if ctx.InvestorID != "" && ctx.InvestorID == investor.ID {
			return nil
		}
		return denied("investor record belongs to another principal")
	default:
		return ErrUnknownRole
	}
}

// AssertMemoAccess checks record-level access to an IC memo. Agent access
// is always mediated through investor ownership: the caller must supply
// the investor projection the memo belongs to, and the agent must pass
// AssertInvestorAccess on it. Passing a nil or mismatched projection for
// an agent caller is a bug in the calling code.
func AssertMemoAccess(memo MemoScope, ctx Context, investor *InvestorScope) error {
	if err := AssertTenantScope(memo.TenantID, ctx); err != nil {
		return err
	}
	switch ctx.Role {
	case RoleSuperAdmin, RoleManager:
		return nil
	case RoleInvestor:
		if ctx.InvestorID != "" && ctx.InvestorID == memo.InvestorID {
			return nil
		}
		return denied("memo belongs to another investor")
	case RoleAgent:
		if investor == nil || investor.ID != memo.InvestorID {
			return ErrInvestorScopeMissing
		}
		return AssertInvestorAccess(*investor, ctx)
	default:
		return ErrUnknownRole
	}
}
