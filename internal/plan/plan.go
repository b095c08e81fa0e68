// Package plan enforces subscription-tier usage ceilings. The check is a
// pure read-then-decide: it never reserves capacity, so a race between
// check and create is accepted and backstopped by database constraints.
package plan

import "fmt"

// Plan is a subscription tier.
type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// LimitType names a counted resource.
type LimitType string

const (
	LimitInvestors     LimitType = "investors"
	LimitListings      LimitType = "listings"
	LimitMemos         LimitType = "memos"
	LimitOpportunities LimitType = "opportunities"
	LimitDealRooms     LimitType = "deal_rooms"
	LimitSeats         LimitType = "seats"
)

// Unlimited marks a ceiling that always allows.
const Unlimited = -1

// limits maps plan -> resource -> ceiling.
var limits = map[Plan]map[LimitType]int{
	PlanStarter: {
		LimitInvestors:     25,
		LimitListings:      100,
		LimitMemos:         10,
		LimitOpportunities: 200,
		LimitDealRooms:     5,
		LimitSeats:         3,
	},
	PlanProfessional: {
		LimitInvestors:     250,
		LimitListings:      2_000,
		LimitMemos:         100,
		LimitOpportunities: 5_000,
		LimitDealRooms:     50,
		LimitSeats:         25,
	},
	PlanEnterprise: {
		LimitInvestors:     Unlimited,
		LimitListings:      Unlimited,
		LimitMemos:         Unlimited,
		LimitOpportunities: Unlimited,
		LimitDealRooms:     Unlimited,
		LimitSeats:         Unlimited,
	},
}

// ParsePlan validates a raw plan string.
func ParsePlan(raw string) (Plan, error) {
	switch Plan(raw) {
	case PlanStarter, PlanProfessional, PlanEnterprise:
		return Plan(raw), nil
	default:
		return "", fmt.Errorf("unknown plan %q", raw)
	}
}

// LimitFor returns the ceiling for a plan/resource pair. Unknown pairs are
// treated as unlimited rather than denying by accident.
func LimitFor(p Plan, lt LimitType) int {
	byType, ok := limits[p]
	if !ok {
		return Unlimited
	}
	limit, ok := byType[lt]
	if !ok {
		return Unlimited
	}
	return limit
}

// Check is the outcome of a usage check.
type Check struct {
	Allowed     bool
	Current     int
	Limit       int
	Remaining   int
	Unlimited   bool
	PercentUsed float64
}

// CheckLimit decides whether one more resource of the given type may be
// created under the plan, given the tenant's current usage.
func CheckLimit(p Plan, lt LimitType, current int) Check {
	limit := LimitFor(p, lt)
	if limit == Unlimited {
		return Check{
			Allowed:   true,
			Current:   current,
			Limit:     Unlimited,
			Remaining: Unlimited,
			Unlimited: true,
		}
	}
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	percent := 0.0
	if limit > 0 {
		percent = float64(current) / float64(limit) * 100
		if percent > 100 {
			percent = 100
		}
	}
	return Check{
		Allowed:     current < limit,
		Current:     current,
		Limit:       limit,
		Remaining:   remaining,
		PercentUsed: percent,
	}
}

// LimitError reports a denied creation. An expected user-facing outcome,
// carried as a typed error to the boundary.
type LimitError struct {
	Plan  Plan
	Type  LimitType
	Check Check
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit exceeded: %s plan allows %d %s, %d in use", e.Plan, e.Check.Limit, e.Type, e.Check.Current)
}
