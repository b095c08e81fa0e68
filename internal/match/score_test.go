package match

import "testing"

func marinaMandate() *Mandate {
	return &Mandate{
		PropertyTypes:  []string{"villa"},
		PreferredAreas: []string{"Dubai Marina"},
		MinInvestment:  1_000_000,
		MaxInvestment:  3_000_000,
		RiskTolerance:  RiskMedium,
		YieldTarget:    "8%",
	}
}

func TestScoreStrongFit(t *testing.T) {
	p := Property{ListingID: "lst-1", Type: "villa", Area: "Dubai Marina", Price: 2_000_000, ROI: 8}
	r := Score(marinaMandate(), p)

	if r.Score < 92 {
		t.Fatalf("expected score >= 92, got %d", r.Score)
	}
	if r.Score > 100 {
		t.Fatalf("score exceeds cap: %d", r.Score)
	}
	if len(r.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d: %v", len(r.Reasons), r.Reasons)
	}
	if len(r.Considerations) != 0 {
		t.Fatalf("expected no considerations, got %v", r.Considerations)
	}
}

func TestScorePoorFit(t *testing.T) {
	p := Property{ListingID: "lst-2", Type: "apartment", Area: "Downtown", Price: 5_000_000, ROI: 3}
	r := Score(marinaMandate(), p)

	if r.Score >= 50 {
		t.Fatalf("expected score well under 50, got %d", r.Score)
	}
	if len(r.Considerations) == 0 {
		t.Fatal("expected non-empty considerations")
	}
}

func TestScoreNoMandateFloor(t *testing.T) {
	r := Score(nil, Property{ListingID: "lst-1", Type: "villa", Price: 1_500_000})
	if r.Score != 30 {
		t.Fatalf("expected fixed no-mandate score 30, got %d", r.Score)
	}
	if len(r.Reasons) != 1 {
		t.Fatalf("expected exactly one reason, got %v", r.Reasons)
	}
	if len(r.Considerations) != 0 {
		t.Fatalf("expected no considerations, got %v", r.Considerations)
	}
}

func TestScoreBudgetNearMiss(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		want  int
	}{
		{name: "in range", price: 2_000_000, want: budgetPoints},
		{name: "at lower bound", price: 1_000_000, want: budgetPoints},
		{name: "at upper bound", price: 3_000_000, want: budgetPoints},
		{name: "just below lower bound", price: 900_000, want: budgetNearPoints},
		{name: "just above upper bound", price: 3_400_000, want: budgetNearPoints},
		{name: "far below", price: 500_000, want: 0},
		{name: "far above", price: 5_000_000, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r Result
			got := scoreBudget(marinaMandate(), Property{Price: tc.price}, &r)
			if got != tc.want {
				t.Fatalf("scoreBudget(%v) = %d, want %d", tc.price, got, tc.want)
			}
		})
	}
}

func TestScoreYieldByRiskTolerance(t *testing.T) {
	cases := []struct {
		name string
		risk RiskTolerance
		roi  float64
		want int
	}{
		{name: "high wants 8 plus", risk: RiskHigh, roi: 9, want: yieldPoints},
		{name: "high misses on 6", risk: RiskHigh, roi: 6, want: yieldResidualPoints},
		{name: "medium band hit", risk: RiskMedium, roi: 7, want: yieldPoints},
		{name: "medium band miss high", risk: RiskMedium, roi: 12, want: yieldResidualPoints},
		{name: "low wants 7 or less", risk: RiskLow, roi: 5, want: yieldPoints},
		{name: "low misses on 9", risk: RiskLow, roi: 9, want: yieldResidualPoints},
		{name: "no tolerance stated", risk: "", roi: 9, want: yieldResidualPoints},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r Result
			m := &Mandate{RiskTolerance: tc.risk}
			if got := scoreYield(m, Property{ROI: tc.roi}, &r); got != tc.want {
				t.Fatalf("scoreYield(%s, %.1f) = %d, want %d", tc.risk, tc.roi, got, tc.want)
			}
		})
	}
}

func TestScoreTypeAndAreaSubstringMatch(t *testing.T) {
	m := &Mandate{
		PropertyTypes:  []string{"Villa"},
		PreferredAreas: []string{"marina"},
	}
	p := Property{Type: "villa", Area: "Dubai Marina"}
	r := Score(m, p)
	if len(r.Considerations) != 0 {
		t.Fatalf("expected case-insensitive substring hits, got considerations %v", r.Considerations)
	}
	if len(r.Reasons) < 2 {
		t.Fatalf("expected type and area reasons, got %v", r.Reasons)
	}
}

func TestScoreFurnishedOnlyWhenBothStated(t *testing.T) {
	yes, no := true, false

	var r Result
	if got := scoreFurnished(&Mandate{Furnished: &yes}, Property{}, &r); got != 0 {
		t.Fatalf("expected no score without a property preference, got %d", got)
	}
	r = Result{}
	if got := scoreFurnished(&Mandate{}, Property{Furnished: &yes}, &r); got != 0 {
		t.Fatalf("expected no score without a mandate preference, got %d", got)
	}
	r = Result{}
	if got := scoreFurnished(&Mandate{Furnished: &yes}, Property{Furnished: &yes}, &r); got != furnishedPoints {
		t.Fatalf("expected furnished points on agreement, got %d", got)
	}
	r = Result{}
	if got := scoreFurnished(&Mandate{Furnished: &yes}, Property{Furnished: &no}, &r); got != 0 {
		t.Fatalf("expected no points on disagreement, got %d", got)
	}
	if len(r.Considerations) != 1 {
		t.Fatalf("expected a furnishing consideration, got %v", r.Considerations)
	}
}

func TestScoreBounded(t *testing.T) {
	yes := true
	mandates := []*Mandate{
		nil,
		{},
		marinaMandate(),
		{
			PropertyTypes:    []string{"villa", "townhouse"},
			PreferredAreas:   []string{"Dubai Marina", "Palm Jumeirah"},
			MinInvestment:    500_000,
			MaxInvestment:    10_000_000,
			Bedrooms:         []int{3, 4},
			MinSize:          1_000,
			MaxSize:          6_000,
			RiskTolerance:    RiskHigh,
			CompletionStatus: "ready",
			Furnished:        &yes,
		},
	}
	properties := []Property{
		{},
		{Type: "villa", Area: "Dubai Marina", Price: 2_000_000, Bedrooms: 4, Size: 3_200, ROI: 9, CompletionStatus: "ready", Furnished: &yes},
		{Type: "apartment", Area: "Downtown", Price: 50_000_000, Bedrooms: 1, Size: 400, ROI: 0.5, CompletionStatus: "off_plan"},
	}

	for _, m := range mandates {
		for _, p := range properties {
			r := Score(m, p)
			if r.Score < 0 || r.Score > 100 {
				t.Fatalf("score out of bounds: %d for mandate %+v property %+v", r.Score, m, p)
			}
		}
	}
}

func TestQuickRankStableOrder(t *testing.T) {
	m := marinaMandate()
	candidates := []Property{
		{ListingID: "lst-low", Type: "apartment", Area: "Downtown", Price: 8_000_000, ROI: 2},
		{ListingID: "lst-a", Type: "villa", Area: "Dubai Marina", Price: 2_000_000, ROI: 8},
		{ListingID: "lst-b", Type: "villa", Area: "Dubai Marina", Price: 2_500_000, ROI: 7},
	}

	ranked := QuickRank(m, candidates, 0)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked entries, got %d", len(ranked))
	}
	if ranked[0].Property.ListingID != "lst-a" || ranked[1].Property.ListingID != "lst-b" {
		t.Fatalf("equal scores must keep input order, got %s then %s", ranked[0].Property.ListingID, ranked[1].Property.ListingID)
	}
	if ranked[2].Property.ListingID != "lst-low" {
		t.Fatalf("expected weakest candidate last, got %s", ranked[2].Property.ListingID)
	}

	truncated := QuickRank(m, candidates, 2)
	if len(truncated) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(truncated))
	}
}
