// Package search provides tenant-scoped listing search: Meilisearch when
// reachable, Postgres ILIKE fallback otherwise.
package search

// Result is a single listing hit.
type Result struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenantId"`
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	Area     string  `json:"area"`
	Price    float64 `json:"price"`
}

// Query describes a listing search request. TenantID is mandatory: search
// never crosses tenants regardless of backend.
type Query struct {
	TenantID string
	Text     string
	Limit    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Record is what gets pushed into the index when a listing changes.
type Record struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenantId"`
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	Area     string  `json:"area"`
	Price    float64 `json:"price"`
	Active   bool    `json:"active"`
}

// Searcher can execute a listing search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
