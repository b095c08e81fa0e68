package authz

// Action and Resource form the coarse capability matrix used for UI and
// route gating. The matrix is pre-filtering only: the scoped guards stay
// authoritative for access to any specific record.
type Action string
type Resource string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

const (
	ResourceInvestors Resource = "investors"
	ResourceListings  Resource = "listings"
	ResourceMemos     Resource = "memos"
	ResourceTasks     Resource = "tasks"
	ResourceUsers     Resource = "users"
	ResourceSettings  Resource = "settings"
	ResourceDealRooms Resource = "deal_rooms"
	ResourceDomains   Resource = "domains"
	ResourceTenants   Resource = "tenants"
)

// Can reports whether role may perform action on resource.
func Can(role Role, action Action, resource Resource) bool {
	switch role {
	case RoleSuperAdmin:
		return true
	case RoleManager:
		return managerCan(action, resource)
	case RoleAgent:
		return agentCan(action, resource)
	case RoleInvestor:
		return investorCan(action, resource)
	default:
		return false
	}
}

// Managers administer their own tenant but never platform-level resources
// (domains, tenants).
func managerCan(action Action, resource Resource) bool {
	switch resource {
	case ResourceDomains, ResourceTenants:
		return action == ActionRead
	case ResourceSettings, ResourceUsers:
		return true
	case ResourceInvestors, ResourceListings, ResourceMemos, ResourceTasks, ResourceDealRooms:
		return action == ActionRead || action == ActionWrite || action == ActionDelete
	default:
		return false
	}
}

func agentCan(action Action, resource Resource) bool {
	switch resource {
	case ResourceInvestors, ResourceListings, ResourceMemos, ResourceTasks, ResourceDealRooms:
		return action == ActionRead || action == ActionWrite
	case ResourceUsers:
		return action == ActionRead
	default:
		return false
	}
}

// Investors read their own records; the scoped guards narrow
// ResourceInvestors reads to the caller's own investor record.
func investorCan(action Action, resource Resource) bool {
	switch resource {
	case ResourceInvestors, ResourceListings, ResourceMemos, ResourceDealRooms, ResourceTasks:
		return action == ActionRead
	default:
		return false
	}
}
