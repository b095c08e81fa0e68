package match

import (
	"context"
	"log"
	"sort"
)

// NarrativeScorer is the external AI collaborator contract. Implementations
// own their timeouts; the engine treats any error as "unavailable" and
// degrades the affected entry to rule-score-only.
type NarrativeScorer interface {
	ScoreProperty(ctx context.Context, m *Mandate, p Property) (Narrative, error)
}

// TierFor classifies a combined score.
func TierFor(score int) Tier {
	switch {
	case score >= 85:
		return TierExcellent
	case score >= 70:
		return TierStrong
	case score >= 50:
		return TierModerate
	default:
		return TierWeak
	}
}

// combine blends the rule and AI scores. The rule score is a floor: AI
// input can lift a candidate but never sink it below its deterministic fit.
func combine(ruleScore, aiScore int) int {
	blended := (ruleScore + aiScore) / 2
	if blended < ruleScore {
		return ruleScore
	}
	if blended > maxScore {
		return maxScore
	}
	return blended
}

// EnhancedRank runs the rule ranking, then asks the narrative collaborator
// to enrich the top candidates. Sorting by combined score is stable, so
// equal scores keep rule-rank order.
func EnhancedRank(ctx context.Context, scorer NarrativeScorer, m *Mandate, candidates []Property, limit int) []Enhanced {
	ranked := QuickRank(m, candidates, limit)
	out := make([]Enhanced, len(ranked))
	for i, rk := range ranked {
		e := Enhanced{
			Property:      rk.Property,
			RuleScore:     rk.Result.Score,
			CombinedScore: rk.Result.Score,
			Result:        rk.Result,
		}
		if scorer != nil {
			narrative, err := scorer.ScoreProperty(ctx, m, rk.Property)
			if err != nil {
				log.Printf("match: narrative scorer unavailable for listing %s: %v", rk.Property.ListingID, err)
			} else {
				n := narrative
				e.Narrative = &n
				e.CombinedScore = combine(e.RuleScore, n.AIScore)
			}
		}
		e.Tier = TierFor(e.CombinedScore)
		out[i] = e
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	return out
}
