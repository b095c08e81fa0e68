// Package match scores property candidates against an investor mandate.
// The rule scorer is deterministic and free of I/O; the enhanced path
// layers an external narrative collaborator on top of it and degrades to
// rule-only when that collaborator fails.
package match

// RiskTolerance is the mandate's stated appetite.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// Mandate is an investor's stated investment preferences. A nil Mandate is
// a valid input to the scorer and short-circuits to the no-mandate floor.
type Mandate struct {
	MinInvestment    float64
	MaxInvestment    float64
	PreferredAreas   []string
	PropertyTypes    []string
	Bedrooms         []int
	MinSize          float64
	MaxSize          float64
	RiskTolerance    RiskTolerance
	YieldTarget      string
	CompletionStatus string // "ready", "off_plan" or "any"; empty means any
	Furnished        *bool  // nil means no stated preference
}

// Property is the candidate projection the scorer consumes.
type Property struct {
	ListingID        string
	Title            string
	Type             string
	Area             string
	Price            float64
	Bedrooms         int
	Size             float64
	ROI              float64 // projected net yield, percent
	CompletionStatus string
	Furnished        *bool
}

// Result is a rule-score outcome. Reasons and Considerations are returned
// alongside the number so downstream UIs need no re-derivation.
type Result struct {
	Score          int
	Reasons        []string
	Considerations []string
}

// Ranked pairs a candidate with its rule score for quick-mode output.
type Ranked struct {
	Property Property
	Result   Result
}

// Tier classifies a combined score for the enhanced path.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierStrong    Tier = "strong"
	TierModerate  Tier = "moderate"
	TierWeak      Tier = "weak"
)

// Narrative is what the external AI collaborator returns per candidate.
type Narrative struct {
	AIScore        int
	Headline       string
	Reasoning      string
	KeyStrengths   []string
	Considerations []string
}

// Enhanced is one enhanced-mode ranking entry. RuleScore is always the
// floor of CombinedScore; Narrative is nil when the collaborator was
// unavailable and the entry degraded to rule-score-only.
type Enhanced struct {
	Property      Property
	RuleScore     int
	CombinedScore int
	Tier          Tier
	Result        Result
	Narrative     *Narrative
}
