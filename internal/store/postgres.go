package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

func (s *PostgresStore) GetTenant(ctx context.Context, id string) (Tenant, error) {
	const q = `SELECT id, name, slug, plan, created_at, updated_at FROM tenants WHERE id = $1`
	var t Tenant
	err := s.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Investors
// ---------------------------------------------------------------------------

func (s *PostgresStore) GetInvestor(ctx context.Context, id string) (Investor, error) {
	const q = `
		SELECT id, tenant_id, name, email, assigned_agent_id, COALESCE(owner_user_id, ''), mandate, created_at, updated_at
		FROM investors WHERE id = $1
	`
	var inv Investor
	var mandateJSON []byte
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&inv.ID, &inv.TenantID, &inv.Name, &inv.Email, &inv.AssignedAgentID,
		&inv.OwnerUserID, &mandateJSON, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Investor{}, ErrNotFound
	}
	if err != nil {
		return Investor{}, fmt.Errorf("get investor: %w", err)
	}
	if len(mandateJSON) > 0 && string(mandateJSON) != "null" {
		if err := json.Unmarshal(mandateJSON, &inv.Mandate); err != nil {
			return Investor{}, fmt.Errorf("decode investor mandate: %w", err)
		}
	}
	return inv, nil
}

func (s *PostgresStore) InsertInvestor(ctx context.Context, inv Investor) error {
	mandateJSON, err := json.Marshal(inv.Mandate)
	if err != nil {
		return fmt.Errorf("encode investor mandate: %w", err)
	}
	const q = `
		INSERT INTO investors (id, tenant_id, name, email, assigned_agent_id, owner_user_id, mandate)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`
	if _, err := s.db.ExecContext(ctx, q, inv.ID, inv.TenantID, inv.Name, inv.Email, inv.AssignedAgentID, inv.OwnerUserID, mandateJSON); err != nil {
		return fmt.Errorf("insert investor: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

const listingColumns = `id, tenant_id, title, type, area, price, bedrooms, size_sqft, roi, completion_status, furnished, active, created_at, updated_at`

func scanListing(row interface{ Scan(...any) error }) (Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.TenantID, &l.Title, &l.Type, &l.Area, &l.Price, &l.Bedrooms,
		&l.Size, &l.ROI, &l.CompletionStatus, &l.Furnished, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// ListActiveListings returns a tenant's active inventory, newest first.
// The recommendation path feeds these to the match engine.
func (s *PostgresStore) ListActiveListings(ctx context.Context, tenantID string, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 200
	}
	q := `SELECT ` + listingColumns + ` FROM listings WHERE tenant_id = $1 AND active ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertListing(ctx context.Context, l Listing) error {
	const q = `
		INSERT INTO listings (id, tenant_id, title, type, area, price, bedrooms, size_sqft, roi, completion_status, furnished, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := s.db.ExecContext(ctx, q, l.ID, l.TenantID, l.Title, l.Type, l.Area, l.Price,
		l.Bedrooms, l.Size, l.ROI, l.CompletionStatus, l.Furnished, l.Active); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Memos
// ---------------------------------------------------------------------------

func (s *PostgresStore) GetMemo(ctx context.Context, id string) (Memo, error) {
	const q = `
		SELECT id, tenant_id, investor_id, listing_id, title, summary, status, author_id, COALESCE(attachment_key, ''), created_at, updated_at
		FROM memos WHERE id = $1
	`
	var m Memo
	err := s.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.TenantID, &m.InvestorID, &m.ListingID,
		&m.Title, &m.Summary, &m.Status, &m.AuthorID, &m.AttachmentKey, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Memo{}, ErrNotFound
	}
	if err != nil {
		return Memo{}, fmt.Errorf("get memo: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) InsertMemo(ctx context.Context, m Memo) error {
	const q = `
		INSERT INTO memos (id, tenant_id, investor_id, listing_id, title, summary, status, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, q, m.ID, m.TenantID, m.InvestorID, m.ListingID, m.Title, m.Summary, m.Status, m.AuthorID); err != nil {
		return fmt.Errorf("insert memo: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMemoContent(ctx context.Context, id, title, summary string) error {
	const q = `UPDATE memos SET title = $2, summary = $3, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, title, summary)
	if err != nil {
		return fmt.Errorf("update memo: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SetMemoAttachment(ctx context.Context, id, attachmentKey string) error {
	const q = `UPDATE memos SET attachment_key = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, attachmentKey)
	if err != nil {
		return fmt.Errorf("set memo attachment: %w", err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// Opportunities
// ---------------------------------------------------------------------------

const opportunityColumns = `id, tenant_id, investor_id, listing_id, shared_by, shared_at, status, decision,
	COALESCE(memo_id, ''), COALESCE(deal_room_id, ''), COALESCE(holding_id, ''), match_score, match_reasons, created_at, updated_at`

func scanOpportunity(row interface{ Scan(...any) error }) (Opportunity, error) {
	var o Opportunity
	var reasonsJSON []byte
	err := row.Scan(&o.ID, &o.TenantID, &o.InvestorID, &o.ListingID, &o.SharedBy, &o.SharedAt,
		&o.Status, &o.Decision, &o.MemoID, &o.DealRoomID, &o.HoldingID, &o.MatchScore, &reasonsJSON,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Opportunity{}, err
	}
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &o.MatchReasons); err != nil {
			return Opportunity{}, fmt.Errorf("decode match reasons: %w", err)
		}
	}
	return o, nil
}

// UpsertOpportunity creates or refreshes the single record for an
// (investor, listing) pair. The unique constraint makes re-sharing the
// same property an update rather than a duplicate, and doubles as the
// backstop for the limiter's check/create race.
func (s *PostgresStore) UpsertOpportunity(ctx context.Context, o Opportunity) (Opportunity, error) {
	reasonsJSON, err := json.Marshal(o.MatchReasons)
	if err != nil {
		return Opportunity{}, fmt.Errorf("encode match reasons: %w", err)
	}
	q := `
		INSERT INTO opportunities (id, tenant_id, investor_id, listing_id, shared_by, shared_at, status, decision, match_score, match_reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (investor_id, listing_id) DO UPDATE SET
			shared_by = EXCLUDED.shared_by,
			shared_at = EXCLUDED.shared_at,
			match_score = EXCLUDED.match_score,
			match_reasons = EXCLUDED.match_reasons,
			updated_at = NOW()
		RETURNING ` + opportunityColumns
	row := s.db.QueryRowContext(ctx, q, o.ID, o.TenantID, o.InvestorID, o.ListingID, o.SharedBy,
		o.SharedAt, o.Status, o.Decision, o.MatchScore, reasonsJSON)
	saved, err := scanOpportunity(row)
	if err != nil {
		return Opportunity{}, fmt.Errorf("upsert opportunity: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id string) (Opportunity, error) {
	q := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	o, err := scanOpportunity(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Opportunity{}, ErrNotFound
	}
	if err != nil {
		return Opportunity{}, fmt.Errorf("get opportunity: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListInvestorOpportunities(ctx context.Context, investorID string) ([]Opportunity, error) {
	q := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE investor_id = $1 ORDER BY shared_at DESC`
	rows, err := s.db.QueryContext(ctx, q, investorID)
	if err != nil {
		return nil, fmt.Errorf("list investor opportunities: %w", err)
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOpportunityStatus persists a status change already validated by
// the lifecycle rules. memoID and dealRoomID attach their links when the
// pipeline reaches those stages.
func (s *PostgresStore) UpdateOpportunityStatus(ctx context.Context, id, status, memoID, dealRoomID string) error {
	const q = `
		UPDATE opportunities SET
			status = $2,
			memo_id = COALESCE(NULLIF($3, ''), memo_id),
			deal_room_id = COALESCE(NULLIF($4, ''), deal_room_id),
			updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, q, id, status, memoID, dealRoomID)
	if err != nil {
		return fmt.Errorf("update opportunity status: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) UpdateOpportunityDecision(ctx context.Context, id, decision string) error {
	const q = `UPDATE opportunities SET decision = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, decision)
	if err != nil {
		return fmt.Errorf("update opportunity decision: %w", err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// Usage counts
// ---------------------------------------------------------------------------

// CountTenantResource returns the tenant's live usage for a counted
// resource. Feeds the plan limiter; no reservation happens here.
func (s *PostgresStore) CountTenantResource(ctx context.Context, tenantID, resource string) (int, error) {
	var q string
	switch resource {
	case "investors":
		q = `SELECT COUNT(*) FROM investors WHERE tenant_id = $1`
	case "listings":
		q = `SELECT COUNT(*) FROM listings WHERE tenant_id = $1`
	case "memos":
		q = `SELECT COUNT(*) FROM memos WHERE tenant_id = $1`
	case "opportunities":
		q = `SELECT COUNT(*) FROM opportunities WHERE tenant_id = $1`
	case "deal_rooms":
		q = `SELECT COUNT(DISTINCT deal_room_id) FROM opportunities WHERE tenant_id = $1 AND deal_room_id IS NOT NULL`
	default:
		return 0, fmt.Errorf("uncounted resource %q", resource)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, q, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", resource, err)
	}
	return count, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
