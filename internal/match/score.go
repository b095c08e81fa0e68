package match

import (
	"fmt"
	"sort"
	"strings"
)

// Scoring weights. These are heuristic constants carried over from the
// production tuning; treat them as the contract, not as derivable values.
const (
	noMandateScore = 30

	typePoints           = 32
	areaPoints           = 24
	budgetPoints         = 24
	budgetNearPoints     = 12
	budgetNearTolerance  = 0.15
	bedroomPoints        = 10
	bedroomNeutralPoints = 5
	sizePoints           = 8
	yieldPoints          = 12
	yieldResidualPoints  = 3
	completionPoints     = 5
	completionResidual   = 1
	furnishedPoints      = 5

	maxScore = 100
)

// Score computes the deterministic 0-100 fit between a mandate and a
// property. Neutral credits (absent preferences) add points but no reason
// text; substantive hits append reasons, notable misses append
// considerations.
func Score(m *Mandate, p Property) Result {
	if m == nil {
		return Result{
			Score:   noMandateScore,
			Reasons: []string{"No mandate defined for this investor"},
		}
	}

	var r Result
	total := 0

	total += scoreType(m, p, &r)
	total += scoreArea(m, p, &r)
	total += scoreBudget(m, p, &r)
	total += scoreBedrooms(m, p, &r)
	total += scoreSize(m, p, &r)
	total += scoreYield(m, p, &r)
	total += scoreCompletion(m, p, &r)
	total += scoreFurnished(m, p, &r)

	if total > maxScore {
		total = maxScore
	}
	r.Score = total
	return r
}

func scoreType(m *Mandate, p Property, r *Result) int {
	if len(m.PropertyTypes) == 0 {
		return 0
	}
	if containsFold(m.PropertyTypes, p.Type) {
		r.Reasons = append(r.Reasons, fmt.Sprintf("Property type %s matches the mandate", p.Type))
		return typePoints
	}
	r.Considerations = append(r.Considerations, fmt.Sprintf("Property type %s is outside the preferred types", p.Type))
	return 0
}

func scoreArea(m *Mandate, p Property, r *Result) int {
	if len(m.PreferredAreas) == 0 {
		return 0
	}
	if containsFold(m.PreferredAreas, p.Area) {
		r.Reasons = append(r.Reasons, fmt.Sprintf("%s is a preferred area", p.Area))
		return areaPoints
	}
	r.Considerations = append(r.Considerations, fmt.Sprintf("%s is not among the preferred areas", p.Area))
	return 0
}

func scoreBudget(m *Mandate, p Property, r *Result) int {
	if m.MinInvestment <= 0 && m.MaxInvestment <= 0 {
		return 0
	}
	min, max := m.MinInvestment, m.MaxInvestment
	if p.Price >= min && (max <= 0 || p.Price <= max) {
		r.Reasons = append(r.Reasons, "Price is within the investment budget")
		return budgetPoints
	}
	// Near miss: within 15% of either bound earns half credit.
	if min > 0 && p.Price < min && p.Price >= min*(1-budgetNearTolerance) {
		r.Reasons = append(r.Reasons, "Price is slightly below the budget range")
		return budgetNearPoints
	}
	if max > 0 && p.Price > max && p.Price <= max*(1+budgetNearTolerance) {
		r.Reasons = append(r.Reasons, "Price is slightly above the budget range")
		return budgetNearPoints
	}
	r.Considerations = append(r.Considerations, "Price is outside the investment budget")
	return 0
}

func scoreBedrooms(m *Mandate, p Property, r *Result) int {
	if len(m.Bedrooms) == 0 {
		// No stated preference: neutral half credit, no reason text.
		return bedroomNeutralPoints
	}
	for _, b := range m.Bedrooms {
		if b == p.Bedrooms {
			r.Reasons = append(r.Reasons, fmt.Sprintf("%d bedrooms matches the preference", p.Bedrooms))
			return bedroomPoints
		}
	}
	r.Considerations = append(r.Considerations, fmt.Sprintf("%d bedrooms is outside the preferred counts", p.Bedrooms))
	return 0
}

func scoreSize(m *Mandate, p Property, r *Result) int {
	// A missing bound is unconstrained; with neither bound set every size
	// qualifies as a neutral credit.
	if m.MinSize <= 0 && m.MaxSize <= 0 {
		return sizePoints
	}
	if p.Size <= 0 {
		r.Considerations = append(r.Considerations, "Unit size is not stated on the listing")
		return 0
	}
	if m.MinSize > 0 && p.Size < m.MinSize {
		r.Considerations = append(r.Considerations, "Unit is smaller than the mandate's size range")
		return 0
	}
	if m.MaxSize > 0 && p.Size > m.MaxSize {
		r.Considerations = append(r.Considerations, "Unit is larger than the mandate's size range")
		return 0
	}
	r.Reasons = append(r.Reasons, "Unit size fits the mandate's range")
	return sizePoints
}

func scoreYield(m *Mandate, p Property, r *Result) int {
	switch m.RiskTolerance {
	case RiskHigh:
		if p.ROI >= 8 {
			r.Reasons = append(r.Reasons, fmt.Sprintf("%.1f%% yield suits a high risk appetite", p.ROI))
			return yieldPoints
		}
	case RiskMedium:
		if p.ROI >= 5 && p.ROI <= 10 {
			r.Reasons = append(r.Reasons, fmt.Sprintf("%.1f%% yield suits a balanced risk profile", p.ROI))
			return yieldPoints
		}
	case RiskLow:
		if p.ROI > 0 && p.ROI <= 7 {
			r.Reasons = append(r.Reasons, fmt.Sprintf("%.1f%% yield suits a conservative profile", p.ROI))
			return yieldPoints
		}
	default:
		// No stated tolerance: small residual credit only.
		return yieldResidualPoints
	}
	r.Considerations = append(r.Considerations, fmt.Sprintf("%.1f%% yield does not fit the %s risk profile", p.ROI, m.RiskTolerance))
	return yieldResidualPoints
}

func scoreCompletion(m *Mandate, p Property, r *Result) int {
	pref := strings.ToLower(strings.TrimSpace(m.CompletionStatus))
	if pref == "" || pref == "any" {
		return completionPoints
	}
	if strings.EqualFold(pref, p.CompletionStatus) {
		r.Reasons = append(r.Reasons, fmt.Sprintf("Completion status %s matches the preference", p.CompletionStatus))
		return completionPoints
	}
	r.Considerations = append(r.Considerations, fmt.Sprintf("Completion status %s differs from the preferred %s", p.CompletionStatus, pref))
	return completionResidual
}

func scoreFurnished(m *Mandate, p Property, r *Result) int {
	// Only scored when both sides state a concrete preference.
	if m.Furnished == nil || p.Furnished == nil {
		return 0
	}
	if *m.Furnished == *p.Furnished {
		r.Reasons = append(r.Reasons, "Furnishing matches the preference")
		return furnishedPoints
	}
	r.Considerations = append(r.Considerations, "Furnishing differs from the preference")
	return 0
}

// containsFold reports whether needle matches any entry, case-insensitive,
// allowing substring containment in either direction ("Dubai Marina" vs
// "Marina").
func containsFold(haystack []string, needle string) bool {
	n := strings.ToLower(strings.TrimSpace(needle))
	if n == "" {
		return false
	}
	for _, h := range haystack {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if h == n || strings.Contains(n, h) || strings.Contains(h, n) {
			return true
		}
	}
	return false
}

// QuickRank scores every candidate with the rule scorer, sorts descending
// and truncates to limit. The sort is stable so equal-score candidates
// keep their input order. Safe to call synchronously; no I/O.
func QuickRank(m *Mandate, candidates []Property, limit int) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{Property: c, Result: Score(m, c)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.Score > ranked[j].Result.Score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
