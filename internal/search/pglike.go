package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgLike implements Searcher with a plain ILIKE scan over the listings
// table. It is the fallback when Meilisearch is unreachable.
type PgLike struct {
	db *sql.DB
}

// NewPgLike creates a Postgres-backed searcher.
func NewPgLike(db *sql.DB) *PgLike {
	return &PgLike{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgLike) Healthy() bool {
	return true
}

// Search scans active listings for the tenant matching the query text
// against title, area, and type.
func (p *PgLike) Search(q Query) ([]Result, int, error) {
	if q.TenantID == "" {
		return nil, 0, fmt.Errorf("tenant filter required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, tenant_id, title, type, area, price
		FROM listings
		WHERE tenant_id = $1 AND active
		AND (title ILIKE '%' || $2 || '%' OR area ILIKE '%' || $2 || '%' OR type ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := p.db.Query(query, q.TenantID, q.Text, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("pglike search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Title, &r.Type, &r.Area, &r.Price); err != nil {
			return nil, 0, fmt.Errorf("pglike scan: %w", err)
		}
		results = append(results, r)
	}
	return results, len(results), rows.Err()
}
