package store

import (
	"time"

	"dealdesk/api/internal/match"
)

type Tenant struct {
	ID        string
	Name      string
	Slug      string
	Plan      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Investor struct {
	ID              string
	TenantID        string
	Name            string
	Email           string
	AssignedAgentID string
	OwnerUserID     string
	// Mandate is nil when the investor has not stated preferences yet;
	// the scorer treats that as the fixed-floor case.
	Mandate   *match.Mandate
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Listing struct {
	ID               string
	TenantID         string
	Title            string
	Type             string
	Area             string
	Price            float64
	Bedrooms         int
	Size             float64
	ROI              float64
	CompletionStatus string
	Furnished        *bool
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Memo struct {
	ID         string
	TenantID   string
	InvestorID string
	ListingID  string
	Title      string
	Summary    string
	Status     string
	AuthorID   string
	// AttachmentKey is the object-store key of the uploaded memo document,
	// empty when none has been attached.
	AttachmentKey string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Opportunity struct {
	ID           string
	TenantID     string
	InvestorID   string
	ListingID    string
	SharedBy     string
	SharedAt     time.Time
	Status       string
	Decision     string
	MemoID       string
	DealRoomID   string
	HoldingID    string
	MatchScore   int
	MatchReasons []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
