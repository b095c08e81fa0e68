// Package app wires the authorization core, the lifecycle rules, and the
// match engine to storage and the HTTP surface. Every operation takes the
// caller's resolved authz.Context and runs the capability gate before the
// record-level guards.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealdesk/api/internal/authz"
	"dealdesk/api/internal/blob"
	"dealdesk/api/internal/config"
	"dealdesk/api/internal/match"
	"dealdesk/api/internal/memolog"
	"dealdesk/api/internal/opportunity"
	"dealdesk/api/internal/plan"
	"dealdesk/api/internal/search"
	"dealdesk/api/internal/store"
	"dealdesk/api/internal/util"
)

type ShareOpportunityInput struct {
	InvestorID string `json:"investorId"`
	ListingID  string `json:"listingId"`
}

type AdvanceOpportunityInput struct {
	Status     string `json:"status"`
	MemoID     string `json:"memoId"`
	DealRoomID string `json:"dealRoomId"`
}

type DecisionInput struct {
	Decision string `json:"decision"`
}

type CreateInvestorInput struct {
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	AssignedAgentID string         `json:"assignedAgentId"`
	OwnerUserID     string         `json:"ownerUserId"`
	Mandate         *match.Mandate `json:"mandate"`
}

type CreateListingInput struct {
	Title            string  `json:"title"`
	Type             string  `json:"type"`
	Area             string  `json:"area"`
	Price            float64 `json:"price"`
	Bedrooms         int     `json:"bedrooms"`
	Size             float64 `json:"size"`
	ROI              float64 `json:"roi"`
	CompletionStatus string  `json:"completionStatus"`
	Furnished        *bool   `json:"furnished"`
}

type CreateMemoInput struct {
	InvestorID string `json:"investorId"`
	ListingID  string `json:"listingId"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Thesis     string `json:"thesis"`
	Risks      string `json:"risks"`
	Commercial string `json:"commercial"`
}

type UpdateMemoInput struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Thesis     string `json:"thesis"`
	Risks      string `json:"risks"`
	Commercial string `json:"commercial"`
	Message    string `json:"message"`
}

type dataStore interface {
	Ping(context.Context) error
	GetTenant(context.Context, string) (store.Tenant, error)
	GetInvestor(context.Context, string) (store.Investor, error)
	InsertInvestor(context.Context, store.Investor) error
	GetListing(context.Context, string) (store.Listing, error)
	ListActiveListings(context.Context, string, int) ([]store.Listing, error)
	InsertListing(context.Context, store.Listing) error
	GetMemo(context.Context, string) (store.Memo, error)
	InsertMemo(context.Context, store.Memo) error
	UpdateMemoContent(context.Context, string, string, string) error
	SetMemoAttachment(context.Context, string, string) error
	UpsertOpportunity(context.Context, store.Opportunity) (store.Opportunity, error)
	GetOpportunity(context.Context, string) (store.Opportunity, error)
	ListInvestorOpportunities(context.Context, string) ([]store.Opportunity, error)
	UpdateOpportunityStatus(context.Context, string, string, string, string) error
	UpdateOpportunityDecision(context.Context, string, string) error
	CountTenantResource(context.Context, string, string) (int, error)
}

type memoHistory interface {
	EnsureMemoRepo(string, memolog.Content, string) error
	CommitRevision(string, memolog.Content, string, string) (memolog.RevisionInfo, error)
	History(string, int) ([]memolog.RevisionInfo, error)
	ContentAt(string, string) (memolog.Content, error)
}

type attachmentStore interface {
	Put(ctx context.Context, tenantID, memoID, filename, contentType string, r io.Reader, size int64) (string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type listingSearch interface {
	Search(q search.Query) search.Response
	IndexListing(rec search.Record)
}

type Service struct {
	cfg    config.Config
	store  dataStore
	search listingSearch
	scorer match.NarrativeScorer
	memos  memoHistory
	blobs  attachmentStore
}

// New builds the service. search, scorer, memos, and blobs may each be nil
// when the backing system is not configured; the affected operations
// degrade or report unavailability.
func New(cfg config.Config, dataStore *store.PostgresStore, searchSvc *search.Service,
	scorer match.NarrativeScorer, memos *memolog.Service, blobs *blob.Service) *Service {
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		scorer: scorer,
	}
	// Typed nils must not end up inside non-nil interface values.
	if searchSvc != nil {
		s.search = searchSvc
	}
	if memos != nil {
		s.memos = memos
	}
	if blobs != nil {
		s.blobs = blobs
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Me describes the caller and the actions its role may attempt, so the UI
// can hide controls the server would reject anyway.
func (s *Service) Me(actx authz.Context) map[string]any {
	resources := []authz.Resource{
		authz.ResourceInvestors, authz.ResourceListings, authz.ResourceMemos,
		authz.ResourceTasks, authz.ResourceUsers, authz.ResourceSettings,
		authz.ResourceDealRooms, authz.ResourceDomains, authz.ResourceTenants,
	}
	actions := []authz.Action{authz.ActionRead, authz.ActionWrite, authz.ActionDelete, authz.ActionAdmin}

	capabilities := map[string][]string{}
	for _, resource := range resources {
		var allowed []string
		for _, action := range actions {
			if authz.Can(actx.Role, action, resource) {
				allowed = append(allowed, string(action))
			}
		}
		if len(allowed) > 0 {
			capabilities[string(resource)] = allowed
		}
	}

	payload := map[string]any{
		"userId":       actx.UserID,
		"role":         string(actx.Role),
		"tenantId":     actx.TenantID,
		"capabilities": capabilities,
	}
	if actx.InvestorID != "" {
		payload["investorId"] = actx.InvestorID
	}
	return payload
}

// ---------------------------------------------------------------------------
// Investors
// ---------------------------------------------------------------------------

func (s *Service) GetInvestorProfile(ctx context.Context, actx authz.Context, investorID string) (store.Investor, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceInvestors) {
		return store.Investor{}, accessDenied("role may not read investors")
	}
	inv, err := s.store.GetInvestor(ctx, investorID)
	if err != nil {
		return store.Investor{}, err
	}
	if err := authz.AssertInvestorAccess(investorScope(inv), actx); err != nil {
		return store.Investor{}, err
	}
	return inv, nil
}

func (s *Service) CreateInvestor(ctx context.Context, actx authz.Context, input CreateInvestorInput) (store.Investor, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceInvestors) {
		return store.Investor{}, accessDenied("role may not create investors")
	}
	tenantID, err := s.effectiveTenant(actx)
	if err != nil {
		return store.Investor{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return store.Investor{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.enforceLimit(ctx, tenantID, plan.LimitInvestors); err != nil {
		return store.Investor{}, err
	}

	inv := store.Investor{
		ID:              util.NewID("inv"),
		TenantID:        tenantID,
		Name:            input.Name,
		Email:           input.Email,
		AssignedAgentID: input.AssignedAgentID,
		OwnerUserID:     input.OwnerUserID,
		Mandate:         input.Mandate,
	}
	if err := s.store.InsertInvestor(ctx, inv); err != nil {
		return store.Investor{}, err
	}
	return inv, nil
}

// InvestorDashboard groups the investor's opportunities into the pipeline
// buckets. Records violating the memo-linkage rule are surfaced with their
// effective status and a diagnostic, never silently.
func (s *Service) InvestorDashboard(ctx context.Context, actx authz.Context, investorID string) (map[string]any, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceInvestors) {
		return nil, accessDenied("role may not read investors")
	}
	inv, err := s.store.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertInvestorAccess(investorScope(inv), actx); err != nil {
		return nil, err
	}

	records, err := s.store.ListInvestorOpportunities(ctx, investorID)
	if err != nil {
		return nil, err
	}

	opps := make([]opportunity.Opportunity, 0, len(records))
	for _, rec := range records {
		opps = append(opps, toDomainOpportunity(rec))
	}
	buckets := opportunity.Buckets(opps)

	payload := map[string]any{
		"investorId": investorID,
		"total":      len(opps),
	}
	grouped := map[string][]map[string]any{}
	for bucket, items := range buckets {
		entries := make([]map[string]any, 0, len(items))
		for _, o := range items {
			validation := opportunity.ValidateInvariant(o)
			entry := map[string]any{
				"id":         o.ID,
				"listingId":  o.ListingID,
				"status":     string(validation.NormalizedStatus),
				"decision":   string(o.Decision),
				"matchScore": o.MatchScore,
				"memoId":     o.MemoID,
				"sharedAt":   o.SharedAt,
			}
			if validation.Warning != "" {
				entry["warning"] = validation.Warning
			}
			entries = append(entries, entry)
		}
		grouped[string(bucket)] = entries
	}
	payload["buckets"] = grouped
	return payload, nil
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

func (s *Service) CreateListing(ctx context.Context, actx authz.Context, input CreateListingInput) (store.Listing, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceListings) {
		return store.Listing{}, accessDenied("role may not create listings")
	}
	tenantID, err := s.effectiveTenant(actx)
	if err != nil {
		return store.Listing{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return store.Listing{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if err := s.enforceLimit(ctx, tenantID, plan.LimitListings); err != nil {
		return store.Listing{}, err
	}

	listing := store.Listing{
		ID:               util.NewID("lst"),
		TenantID:         tenantID,
		Title:            input.Title,
		Type:             input.Type,
		Area:             input.Area,
		Price:            input.Price,
		Bedrooms:         input.Bedrooms,
		Size:             input.Size,
		ROI:              input.ROI,
		CompletionStatus: input.CompletionStatus,
		Furnished:        input.Furnished,
		Active:           true,
	}
	if err := s.store.InsertListing(ctx, listing); err != nil {
		return store.Listing{}, err
	}
	if s.search != nil {
		s.search.IndexListing(search.Record{
			ID:       listing.ID,
			TenantID: listing.TenantID,
			Title:    listing.Title,
			Type:     listing.Type,
			Area:     listing.Area,
			Price:    listing.Price,
			Active:   listing.Active,
		})
	}
	return listing, nil
}

func (s *Service) SearchListings(actx authz.Context, text string, limit int) (search.Response, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceListings) {
		return search.Response{}, accessDenied("role may not read listings")
	}
	tenantID, err := s.effectiveTenant(actx)
	if err != nil {
		return search.Response{}, err
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{TenantID: tenantID, Text: text, Limit: limit}), nil
}

// ---------------------------------------------------------------------------
// Opportunities
// ---------------------------------------------------------------------------

// ShareOpportunity shares a listing with an investor. Re-sharing the same
// pair refreshes the existing record instead of creating a duplicate, and
// the share is scored against the investor's mandate at share time.
func (s *Service) ShareOpportunity(ctx context.Context, actx authz.Context, input ShareOpportunityInput) (store.Opportunity, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceInvestors) {
		return store.Opportunity{}, accessDenied("role may not share opportunities")
	}

	inv, err := s.store.GetInvestor(ctx, input.InvestorID)
	if err != nil {
		return store.Opportunity{}, err
	}
	if err := authz.AssertInvestorAccess(investorScope(inv), actx); err != nil {
		return store.Opportunity{}, err
	}

	listing, err := s.store.GetListing(ctx, input.ListingID)
	if err != nil {
		return store.Opportunity{}, err
	}
	if err := authz.AssertTenantScope(listing.TenantID, actx); err != nil {
		return store.Opportunity{}, err
	}
	if listing.TenantID != inv.TenantID {
		return store.Opportunity{}, accessDenied("listing and investor belong to different tenants")
	}

	if err := s.enforceLimit(ctx, inv.TenantID, plan.LimitOpportunities); err != nil {
		return store.Opportunity{}, err
	}

	result := match.Score(inv.Mandate, propertyFromListing(listing))

	saved, err := s.store.UpsertOpportunity(ctx, store.Opportunity{
		ID:           util.NewID("opp"),
		TenantID:     inv.TenantID,
		InvestorID:   inv.ID,
		ListingID:    listing.ID,
		SharedBy:     actx.UserID,
		SharedAt:     time.Now(),
		Status:       string(opportunity.StatusRecommended),
		Decision:     string(opportunity.DecisionPending),
		MatchScore:   result.Score,
		MatchReasons: result.Reasons,
	})
	if err != nil {
		return store.Opportunity{}, err
	}
	return saved, nil
}

func (s *Service) GetOpportunity(ctx context.Context, actx authz.Context, id string) (store.Opportunity, error) {
	opp, _, err := s.loadOpportunityForRead(ctx, actx, id)
	return opp, err
}

// AdvanceOpportunity applies a validated status transition. Attaching a
// memo happens in the same call so a move into memo_review never exists
// without its link.
func (s *Service) AdvanceOpportunity(ctx context.Context, actx authz.Context, id string, input AdvanceOpportunityInput) (store.Opportunity, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceInvestors) {
		return store.Opportunity{}, accessDenied("role may not update opportunities")
	}
	opp, _, err := s.loadOpportunityForRead(ctx, actx, id)
	if err != nil {
		return store.Opportunity{}, err
	}

	next, err := opportunity.ParseStatus(input.Status)
	if err != nil {
		return store.Opportunity{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	dom := toDomainOpportunity(opp)
	if input.MemoID != "" {
		memo, err := s.store.GetMemo(ctx, input.MemoID)
		if err != nil {
			return store.Opportunity{}, err
		}
		if memo.TenantID != opp.TenantID || memo.InvestorID != opp.InvestorID {
			return store.Opportunity{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				"memo does not belong to this opportunity's investor", nil)
		}
		dom.MemoID = input.MemoID
	}
	if input.DealRoomID != "" {
		dom.DealRoomID = input.DealRoomID
	}

	if err := opportunity.CheckTransition(dom, next); err != nil {
		return store.Opportunity{}, err
	}

	if err := s.store.UpdateOpportunityStatus(ctx, id, string(next), input.MemoID, input.DealRoomID); err != nil {
		return store.Opportunity{}, err
	}
	return s.store.GetOpportunity(ctx, id)
}

// RecordDecision stores the investor's verdict. Investors may only decide
// on their own opportunities; staff roles go through the capability gate.
func (s *Service) RecordDecision(ctx context.Context, actx authz.Context, id string, input DecisionInput) (store.Opportunity, error) {
	opp, _, err := s.loadOpportunityForRead(ctx, actx, id)
	if err != nil {
		return store.Opportunity{}, err
	}

	if actx.Role == authz.RoleInvestor {
		if actx.InvestorID == "" || actx.InvestorID != opp.InvestorID {
			return store.Opportunity{}, accessDenied("investor may only decide on own opportunities")
		}
	} else if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceInvestors) {
		return store.Opportunity{}, accessDenied("role may not record decisions")
	}

	decision, err := opportunity.ParseDecision(input.Decision)
	if err != nil {
		return store.Opportunity{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	if opportunity.IsTerminal(opportunity.Status(opp.Status)) {
		return store.Opportunity{}, &opportunity.InvalidStateError{
			Reason: fmt.Sprintf("opportunity is %s; decisions are closed", opp.Status),
		}
	}

	if err := s.store.UpdateOpportunityDecision(ctx, id, string(decision)); err != nil {
		return store.Opportunity{}, err
	}
	return s.store.GetOpportunity(ctx, id)
}

// loadOpportunityForRead fetches the record and runs the tenant and
// investor guards shared by every opportunity operation.
func (s *Service) loadOpportunityForRead(ctx context.Context, actx authz.Context, id string) (store.Opportunity, store.Investor, error) {
	opp, err := s.store.GetOpportunity(ctx, id)
	if err != nil {
		return store.Opportunity{}, store.Investor{}, err
	}
	if err := authz.AssertTenantScope(opp.TenantID, actx); err != nil {
		return store.Opportunity{}, store.Investor{}, err
	}
	inv, err := s.store.GetInvestor(ctx, opp.InvestorID)
	if err != nil {
		return store.Opportunity{}, store.Investor{}, err
	}
	if err := authz.AssertInvestorAccess(investorScope(inv), actx); err != nil {
		return store.Opportunity{}, store.Investor{}, err
	}
	return opp, inv, nil
}

// ---------------------------------------------------------------------------
// Recommendations
// ---------------------------------------------------------------------------

// Recommendations ranks the tenant's active inventory against the
// investor's mandate. Quick mode is rule-only; enhanced mode layers the
// narrative collaborator on top and degrades per candidate on failure.
// Listings already shared with the investor are excluded.
func (s *Service) Recommendations(ctx context.Context, actx authz.Context, investorID, mode string, limit int) (map[string]any, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceListings) {
		return nil, accessDenied("role may not read listings")
	}
	inv, err := s.store.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertInvestorAccess(investorScope(inv), actx); err != nil {
		return nil, err
	}

	listings, err := s.store.ListActiveListings(ctx, inv.TenantID, 0)
	if err != nil {
		return nil, err
	}
	shared, err := s.store.ListInvestorOpportunities(ctx, investorID)
	if err != nil {
		return nil, err
	}
	alreadyShared := make(map[string]bool, len(shared))
	for _, o := range shared {
		alreadyShared[o.ListingID] = true
	}

	candidates := make([]match.Property, 0, len(listings))
	for _, l := range listings {
		if alreadyShared[l.ID] {
			continue
		}
		candidates = append(candidates, propertyFromListing(l))
	}

	if limit <= 0 {
		limit = 10
	}

	switch mode {
	case "", "quick":
		ranked := match.QuickRank(inv.Mandate, candidates, limit)
		entries := make([]map[string]any, 0, len(ranked))
		for _, r := range ranked {
			entries = append(entries, map[string]any{
				"listingId":      r.Property.ListingID,
				"title":          r.Property.Title,
				"score":          r.Result.Score,
				"reasons":        r.Result.Reasons,
				"considerations": r.Result.Considerations,
			})
		}
		return map[string]any{"mode": "quick", "investorId": investorID, "results": entries}, nil
	case "enhanced":
		ranked := match.EnhancedRank(ctx, s.scorer, inv.Mandate, candidates, limit)
		entries := make([]map[string]any, 0, len(ranked))
		for _, r := range ranked {
			entry := map[string]any{
				"listingId":      r.Property.ListingID,
				"title":          r.Property.Title,
				"ruleScore":      r.RuleScore,
				"combinedScore":  r.CombinedScore,
				"tier":           string(r.Tier),
				"reasons":        r.Result.Reasons,
				"considerations": r.Result.Considerations,
			}
			if r.Narrative != nil {
				entry["narrative"] = map[string]any{
					"aiScore":        r.Narrative.AIScore,
					"headline":       r.Narrative.Headline,
					"reasoning":      r.Narrative.Reasoning,
					"keyStrengths":   r.Narrative.KeyStrengths,
					"considerations": r.Narrative.Considerations,
				}
			}
			entries = append(entries, entry)
		}
		return map[string]any{"mode": "enhanced", "investorId": investorID, "results": entries}, nil
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("unknown recommendation mode %q", mode), nil)
	}
}

// ---------------------------------------------------------------------------
// Memos
// ---------------------------------------------------------------------------

func (s *Service) CreateMemo(ctx context.Context, actx authz.Context, input CreateMemoInput) (store.Memo, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceMemos) {
		return store.Memo{}, accessDenied("role may not create memos")
	}
	inv, err := s.store.GetInvestor(ctx, input.InvestorID)
	if err != nil {
		return store.Memo{}, err
	}
	if err := authz.AssertInvestorAccess(investorScope(inv), actx); err != nil {
		return store.Memo{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return store.Memo{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if err := s.enforceLimit(ctx, inv.TenantID, plan.LimitMemos); err != nil {
		return store.Memo{}, err
	}

	memo := store.Memo{
		ID:         util.NewID("memo"),
		TenantID:   inv.TenantID,
		InvestorID: inv.ID,
		ListingID:  input.ListingID,
		Title:      input.Title,
		Summary:    input.Summary,
		Status:     "draft",
		AuthorID:   actx.UserID,
	}
	if err := s.store.InsertMemo(ctx, memo); err != nil {
		return store.Memo{}, err
	}

	if s.memos != nil {
		if err := s.memos.EnsureMemoRepo(memo.ID, memoContent(input), actx.UserID); err != nil {
			return store.Memo{}, fmt.Errorf("init memo history: %w", err)
		}
	}
	return memo, nil
}

func (s *Service) GetMemoDetail(ctx context.Context, actx authz.Context, memoID string) (store.Memo, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceMemos) {
		return store.Memo{}, accessDenied("role may not read memos")
	}
	memo, err := s.loadGuardedMemo(ctx, actx, memoID)
	if err != nil {
		return store.Memo{}, err
	}
	return memo, nil
}

func (s *Service) UpdateMemo(ctx context.Context, actx authz.Context, memoID string, input UpdateMemoInput) (map[string]any, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceMemos) {
		return nil, accessDenied("role may not update memos")
	}
	memo, err := s.loadGuardedMemo(ctx, actx, memoID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	if err := s.store.UpdateMemoContent(ctx, memoID, input.Title, input.Summary); err != nil {
		return nil, err
	}

	payload := map[string]any{"id": memo.ID, "title": input.Title, "summary": input.Summary}
	if s.memos != nil {
		message := input.Message
		if strings.TrimSpace(message) == "" {
			message = "Update memo"
		}
		rev, err := s.memos.CommitRevision(memoID, memolog.Content{
			Title:      input.Title,
			Summary:    input.Summary,
			Thesis:     input.Thesis,
			Risks:      input.Risks,
			Commercial: input.Commercial,
		}, actx.UserID, message)
		if err != nil {
			return nil, fmt.Errorf("record memo revision: %w", err)
		}
		payload["revision"] = rev
	}
	return payload, nil
}

func (s *Service) MemoRevisions(ctx context.Context, actx authz.Context, memoID string, limit int) ([]memolog.RevisionInfo, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceMemos) {
		return nil, accessDenied("role may not read memos")
	}
	if _, err := s.loadGuardedMemo(ctx, actx, memoID); err != nil {
		return nil, err
	}
	if s.memos == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Memo history is not configured", nil)
	}
	return s.memos.History(memoID, limit)
}

func (s *Service) MemoRevisionContent(ctx context.Context, actx authz.Context, memoID, hash string) (memolog.Content, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceMemos) {
		return memolog.Content{}, accessDenied("role may not read memos")
	}
	if _, err := s.loadGuardedMemo(ctx, actx, memoID); err != nil {
		return memolog.Content{}, err
	}
	if s.memos == nil {
		return memolog.Content{}, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Memo history is not configured", nil)
	}
	return s.memos.ContentAt(memoID, hash)
}

func (s *Service) AttachMemoFile(ctx context.Context, actx authz.Context, memoID, filename, contentType string, r io.Reader, size int64) (store.Memo, error) {
	if !authz.Can(actx.Role, authz.ActionWrite, authz.ResourceMemos) {
		return store.Memo{}, accessDenied("role may not update memos")
	}
	memo, err := s.loadGuardedMemo(ctx, actx, memoID)
	if err != nil {
		return store.Memo{}, err
	}
	if s.blobs == nil {
		return store.Memo{}, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	if strings.TrimSpace(filename) == "" {
		return store.Memo{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filename is required", nil)
	}

	key, err := s.blobs.Put(ctx, memo.TenantID, memo.ID, filename, contentType, r, size)
	if err != nil {
		return store.Memo{}, fmt.Errorf("store attachment: %w", err)
	}
	if err := s.store.SetMemoAttachment(ctx, memoID, key); err != nil {
		return store.Memo{}, err
	}
	memo.AttachmentKey = key
	return memo, nil
}

func (s *Service) MemoAttachmentURL(ctx context.Context, actx authz.Context, memoID string) (string, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceMemos) {
		return "", accessDenied("role may not read memos")
	}
	memo, err := s.loadGuardedMemo(ctx, actx, memoID)
	if err != nil {
		return "", err
	}
	if memo.AttachmentKey == "" {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Memo has no attachment", nil)
	}
	if s.blobs == nil {
		return "", domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	return s.blobs.PresignedURL(ctx, memo.AttachmentKey, 15*time.Minute)
}

// loadGuardedMemo runs the memo guard, resolving the investor scope the
// agent rule needs.
func (s *Service) loadGuardedMemo(ctx context.Context, actx authz.Context, memoID string) (store.Memo, error) {
	memo, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return store.Memo{}, err
	}
	inv, err := s.store.GetInvestor(ctx, memo.InvestorID)
	if err != nil {
		return store.Memo{}, err
	}
	scope := investorScope(inv)
	memoScope := authz.MemoScope{TenantID: memo.TenantID, InvestorID: memo.InvestorID}
	if err := authz.AssertMemoAccess(memoScope, actx, &scope); err != nil {
		return store.Memo{}, err
	}
	return memo, nil
}

// ---------------------------------------------------------------------------
// Plan usage
// ---------------------------------------------------------------------------

// PlanUsage reports the tenant's consumption against every counted limit.
func (s *Service) PlanUsage(ctx context.Context, actx authz.Context) (map[string]any, error) {
	if !authz.Can(actx.Role, authz.ActionRead, authz.ResourceSettings) {
		return nil, accessDenied("role may not read plan usage")
	}
	tenantID, err := s.effectiveTenant(actx)
	if err != nil {
		return nil, err
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	tenantPlan := plan.Plan(tenant.Plan)

	counted := []plan.LimitType{
		plan.LimitInvestors, plan.LimitListings, plan.LimitMemos,
		plan.LimitOpportunities, plan.LimitDealRooms,
	}
	usage := map[string]any{}
	for _, lt := range counted {
		current, err := s.store.CountTenantResource(ctx, tenantID, string(lt))
		if err != nil {
			return nil, err
		}
		check := plan.CheckLimit(tenantPlan, lt, current)
		usage[string(lt)] = map[string]any{
			"current":     check.Current,
			"limit":       check.Limit,
			"remaining":   check.Remaining,
			"unlimited":   check.Unlimited,
			"percentUsed": check.PercentUsed,
		}
	}

	return map[string]any{
		"tenantId": tenantID,
		"plan":     tenant.Plan,
		"usage":    usage,
	}, nil
}

// enforceLimit blocks a create when the tenant is at its plan ceiling.
// The unique constraints in storage backstop the check/create race.
func (s *Service) enforceLimit(ctx context.Context, tenantID string, lt plan.LimitType) error {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	tenantPlan := plan.Plan(tenant.Plan)
	current, err := s.store.CountTenantResource(ctx, tenantID, string(lt))
	if err != nil {
		return err
	}
	check := plan.CheckLimit(tenantPlan, lt, current)
	if !check.Allowed {
		return &plan.LimitError{Plan: tenantPlan, Type: lt, Check: check}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// effectiveTenant is the tenant writes are scoped to. Regular roles carry
// it in their context; a super_admin without a selected tenant is refused.
func (s *Service) effectiveTenant(actx authz.Context) (string, error) {
	if actx.TenantID == "" {
		return "", accessDenied("tenant selection required")
	}
	return actx.TenantID, nil
}

func accessDenied(reason string) error {
	return &authz.Denial{Kind: authz.KindAccessDenied, Reason: reason}
}

func investorScope(inv store.Investor) authz.InvestorScope {
	return authz.InvestorScope{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		AssignedAgentID: inv.AssignedAgentID,
		OwnerUserID:     inv.OwnerUserID,
	}
}

func propertyFromListing(l store.Listing) match.Property {
	return match.Property{
		ListingID:        l.ID,
		Title:            l.Title,
		Type:             l.Type,
		Area:             l.Area,
		Price:            l.Price,
		Bedrooms:         l.Bedrooms,
		Size:             l.Size,
		ROI:              l.ROI,
		CompletionStatus: l.CompletionStatus,
		Furnished:        l.Furnished,
	}
}

func toDomainOpportunity(o store.Opportunity) opportunity.Opportunity {
	return opportunity.Opportunity{
		ID:           o.ID,
		TenantID:     o.TenantID,
		InvestorID:   o.InvestorID,
		ListingID:    o.ListingID,
		SharedBy:     o.SharedBy,
		SharedAt:     o.SharedAt,
		Status:       opportunity.Status(o.Status),
		Decision:     opportunity.Decision(o.Decision),
		MemoID:       o.MemoID,
		DealRoomID:   o.DealRoomID,
		HoldingID:    o.HoldingID,
		MatchScore:   o.MatchScore,
		MatchReasons: o.MatchReasons,
	}
}

func memoContent(input CreateMemoInput) memolog.Content {
	return memolog.Content{
		Title:      input.Title,
		Summary:    input.Summary,
		Thesis:     input.Thesis,
		Risks:      input.Risks,
		Commercial: input.Commercial,
	}
}
