// Package narrative is the HTTP client for the external AI scoring
// collaborator used by the enhanced matching mode. The service owns its
// own timeout and the match engine degrades to rule-score-only whenever a
// call fails, so nothing here is ever on the critical path of a request.
package narrative

import (
	"context"
	"fmt"
	"time"

	"dealdesk/api/internal/match"

	"github.com/go-resty/resty/v2"
)

type scoreRequest struct {
	Mandate  mandatePayload  `json:"mandate"`
	Property propertyPayload `json:"property"`
}

type mandatePayload struct {
	MinInvestment    float64  `json:"minInvestment,omitempty"`
	MaxInvestment    float64  `json:"maxInvestment,omitempty"`
	PreferredAreas   []string `json:"preferredAreas,omitempty"`
	PropertyTypes    []string `json:"propertyTypes,omitempty"`
	Bedrooms         []int    `json:"bedrooms,omitempty"`
	RiskTolerance    string   `json:"riskTolerance,omitempty"`
	YieldTarget      string   `json:"yieldTarget,omitempty"`
	CompletionStatus string   `json:"completionStatus,omitempty"`
}

type propertyPayload struct {
	ListingID        string  `json:"listingId"`
	Title            string  `json:"title,omitempty"`
	Type             string  `json:"type"`
	Area             string  `json:"area"`
	Price            float64 `json:"price"`
	Bedrooms         int     `json:"bedrooms,omitempty"`
	Size             float64 `json:"size,omitempty"`
	ROI              float64 `json:"roi,omitempty"`
	CompletionStatus string  `json:"completionStatus,omitempty"`
}

type scoreResponse struct {
	AIScore        int      `json:"aiScore"`
	Headline       string   `json:"headline"`
	Reasoning      string   `json:"reasoning"`
	KeyStrengths   []string `json:"keyStrengths"`
	Considerations []string `json:"considerations"`
}

// Client calls the narrative scoring service. Implements
// match.NarrativeScorer.
type Client struct {
	http *resty.Client
}

// New builds a client against baseURL. The timeout bounds each scoring
// call; retries are left to the caller's degradation policy rather than
// hammering a struggling model endpoint.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{http: c}
}

// ScoreProperty asks the collaborator for an AI fit assessment of one
// candidate against the mandate.
func (c *Client) ScoreProperty(ctx context.Context, m *match.Mandate, p match.Property) (match.Narrative, error) {
	req := scoreRequest{
		Property: propertyPayload{
			ListingID:        p.ListingID,
			Title:            p.Title,
			Type:             p.Type,
			Area:             p.Area,
			Price:            p.Price,
			Bedrooms:         p.Bedrooms,
			Size:             p.Size,
			ROI:              p.ROI,
			CompletionStatus: p.CompletionStatus,
		},
	}
	if m != nil {
		req.Mandate = mandatePayload{
			MinInvestment:    m.MinInvestment,
			MaxInvestment:    m.MaxInvestment,
			PreferredAreas:   m.PreferredAreas,
			PropertyTypes:    m.PropertyTypes,
			Bedrooms:         m.Bedrooms,
			RiskTolerance:    string(m.RiskTolerance),
			YieldTarget:      m.YieldTarget,
			CompletionStatus: m.CompletionStatus,
		}
	}

	var out scoreResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/score")
	if err != nil {
		return match.Narrative{}, fmt.Errorf("narrative score call: %w", err)
	}
	if resp.IsError() {
		return match.Narrative{}, fmt.Errorf("narrative score call: status %d", resp.StatusCode())
	}
	if out.AIScore < 0 || out.AIScore > 100 {
		return match.Narrative{}, fmt.Errorf("narrative score out of range: %d", out.AIScore)
	}

	return match.Narrative{
		AIScore:        out.AIScore,
		Headline:       out.Headline,
		Reasoning:      out.Reasoning,
		KeyStrengths:   out.KeyStrengths,
		Considerations: out.Considerations,
	}, nil
}
