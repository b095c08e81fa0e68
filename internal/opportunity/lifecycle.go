// Package opportunity holds the pipeline state machine for a property
// shared with an investor, plus the memo-linkage invariant every consumer
// must respect.
package opportunity

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusRecommended Status = "recommended"
	StatusShortlisted Status = "shortlisted"
	StatusMemoReview  Status = "memo_review"
	StatusDealRoom    Status = "deal_room"
	StatusAcquired    Status = "acquired"
	StatusRejected    Status = "rejected"
	StatusExpired     Status = "expired"
)

type Decision string

const (
	DecisionPending        Decision = "pending"
	DecisionInterested     Decision = "interested"
	DecisionVeryInterested Decision = "very_interested"
	DecisionNotInterested  Decision = "not_interested"
)

// Opportunity is one property shared with one investor. At most one
// record exists per (InvestorID, ListingID) pair; re-sharing updates the
// existing record.
type Opportunity struct {
	ID           string
	TenantID     string
	InvestorID   string
	ListingID    string
	SharedBy     string
	SharedAt     time.Time
	Status       Status
	Decision     Decision
	MemoID       string
	DealRoomID   string
	HoldingID    string
	MatchScore   int
	MatchReasons []string
}

// stageIndex orders the main pipeline. Side-exit and terminal states are
// not part of the forward ordering.
var stageIndex = map[Status]int{
	StatusRecommended: 0,
	StatusShortlisted: 1,
	StatusMemoReview:  2,
	StatusDealRoom:    3,
	StatusAcquired:    4,
}

// IsTerminal reports whether no further status transitions are accepted.
func IsTerminal(s Status) bool {
	return s == StatusAcquired || s == StatusRejected || s == StatusExpired
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusRecommended, StatusShortlisted, StatusMemoReview, StatusDealRoom,
		StatusAcquired, StatusRejected, StatusExpired:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown opportunity status %q", raw)
	}
}

// ParseDecision validates a raw decision string.
func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case DecisionPending, DecisionInterested, DecisionVeryInterested, DecisionNotInterested:
		return Decision(raw), nil
	default:
		return "", fmt.Errorf("unknown opportunity decision %q", raw)
	}
}

// CheckTransition validates a proposed status change on the write path.
// The pipeline only moves forward; rejected and expired are reachable from
// any non-terminal state; terminal states accept nothing. Moving into
// memo_review or deal_room without an attached memo is rejected outright —
// the read-path downgrade in ValidateInvariant never applies to writes.
func CheckTransition(o Opportunity, next Status) error {
	if IsTerminal(o.Status) {
		return &InvalidStateError{
			Reason: fmt.Sprintf("opportunity is %s; no further transitions", o.Status),
		}
	}
	if next == StatusRejected || next == StatusExpired {
		return nil
	}
	from, okFrom := stageIndex[o.Status]
	to, okTo := stageIndex[next]
	if !okFrom || !okTo {
		return &InvalidStateError{Reason: fmt.Sprintf("no transition from %s to %s", o.Status, next)}
	}
	if to <= from {
		return &InvalidStateError{Reason: fmt.Sprintf("cannot move back from %s to %s", o.Status, next)}
	}
	if (next == StatusMemoReview || next == StatusDealRoom) && o.MemoID == "" {
		return &InvalidStateError{Reason: fmt.Sprintf("status %s requires a linked memo", next)}
	}
	return nil
}

// Validation is the outcome of the read-path invariant check.
type Validation struct {
	Valid            bool
	NormalizedStatus Status
	Warning          string
}

// ValidateInvariant detects memo-less memo_review/deal_room records. Such
// a record is inconsistent and must not be trusted: read-time consumers
// get an effective status of shortlisted plus a diagnostic. The stored
// record is deliberately left untouched — auto-correcting storage from a
// read path would mask the corruption.
func ValidateInvariant(o Opportunity) Validation {
	if (o.Status == StatusMemoReview || o.Status == StatusDealRoom) && o.MemoID == "" {
		return Validation{
			Valid:            false,
			NormalizedStatus: StatusShortlisted,
			Warning:          fmt.Sprintf("opportunity %s has status %s without a memo; treating as shortlisted", o.ID, o.Status),
		}
	}
	return Validation{Valid: true, NormalizedStatus: o.Status}
}

// InvalidStateError reports an entity violating a lifecycle invariant. It
// is an expected outcome on write paths, not a server fault.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}
