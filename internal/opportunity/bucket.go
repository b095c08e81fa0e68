package opportunity

// Bucket is a dashboard grouping for an investor's opportunities.
type Bucket string

const (
	BucketTop         Bucket = "top"
	BucketMid         Bucket = "mid"
	BucketPipeline    Bucket = "pipeline"
	BucketRecommended Bucket = "recommended"
	BucketRejected    Bucket = "rejected"
)

// BucketFor derives the dashboard bucket for a single opportunity. The
// cascade is a strict priority order: status-derived buckets win over
// decision-derived ones.
func BucketFor(o Opportunity) Bucket {
	if o.Status == StatusRejected {
		return BucketRejected
	}
	switch o.Status {
	case StatusShortlisted, StatusMemoReview, StatusDealRoom:
		return BucketPipeline
	}
	switch o.Decision {
	case DecisionVeryInterested:
		return BucketTop
	case DecisionInterested:
		return BucketMid
	default:
		return BucketRecommended
	}
}

// Buckets groups a set of opportunities for the dashboard. Acquired and
// expired records are closed and stay off the dashboard; rejected keeps its
// own bucket. Records violating the memo invariant are bucketed by their
// effective status but returned unmodified, so callers still see the stored
// record and can surface the diagnostic themselves.
func Buckets(opps []Opportunity) map[Bucket][]Opportunity {
	out := make(map[Bucket][]Opportunity)
	for _, o := range opps {
		if o.Status == StatusAcquired || o.Status == StatusExpired {
			continue
		}
		effective := o
		effective.Status = ValidateInvariant(o).NormalizedStatus
		b := BucketFor(effective)
		out[b] = append(out[b], o)
	}
	return out
}
