package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealdesk/api/internal/authz"
	"dealdesk/api/internal/opportunity"
	"dealdesk/api/internal/plan"
	"dealdesk/api/internal/resolver"
	"dealdesk/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	resolver   resolver.Resolver
	corsOrigin string
}

func NewHTTPServer(service *Service, contextResolver resolver.Resolver, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, resolver: contextResolver, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	actx, ok := s.requireContext(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/me" {
		writeJSON(w, http.StatusOK, s.service.Me(actx))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		response, err := s.service.SearchListings(actx, q, limit)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/plan/usage" {
		payload, err := s.service.PlanUsage(r.Context(), actx)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "investors":
		s.handleInvestors(w, r, actx, parts[2:])
	case "listings":
		s.handleListings(w, r, actx, parts[2:])
	case "opportunities":
		s.handleOpportunities(w, r, actx, parts[2:])
	case "memos":
		s.handleMemos(w, r, actx, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleInvestors(w http.ResponseWriter, r *http.Request, actx authz.Context, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var input CreateInvestorInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		inv, err := s.service.CreateInvestor(r.Context(), actx, input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, investorPayload(inv))

	case len(parts) == 1 && r.Method == http.MethodGet:
		inv, err := s.service.GetInvestorProfile(r.Context(), actx, parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, investorPayload(inv))

	case len(parts) == 2 && parts[1] == "dashboard" && r.Method == http.MethodGet:
		payload, err := s.service.InvestorDashboard(r.Context(), actx, parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && parts[1] == "recommendations" && r.Method == http.MethodGet:
		mode := strings.TrimSpace(r.URL.Query().Get("mode"))
		limit, ok := queryInt(w, r, "limit", 10)
		if !ok {
			return
		}
		payload, err := s.service.Recommendations(r.Context(), actx, parts[0], mode, limit)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleListings(w http.ResponseWriter, r *http.Request, actx authz.Context, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodPost {
		var input CreateListingInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		listing, err := s.service.CreateListing(r.Context(), actx, input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, listingPayload(listing))
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleOpportunities(w http.ResponseWriter, r *http.Request, actx authz.Context, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var input ShareOpportunityInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		opp, err := s.service.ShareOpportunity(r.Context(), actx, input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, opportunityPayload(opp))

	case len(parts) == 1 && r.Method == http.MethodGet:
		opp, err := s.service.GetOpportunity(r.Context(), actx, parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opportunityPayload(opp))

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		var input AdvanceOpportunityInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		opp, err := s.service.AdvanceOpportunity(r.Context(), actx, parts[0], input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opportunityPayload(opp))

	case len(parts) == 2 && parts[1] == "decision" && r.Method == http.MethodPost:
		var input DecisionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		opp, err := s.service.RecordDecision(r.Context(), actx, parts[0], input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opportunityPayload(opp))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMemos(w http.ResponseWriter, r *http.Request, actx authz.Context, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var input CreateMemoInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		memo, err := s.service.CreateMemo(r.Context(), actx, input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, memoPayload(memo))

	case len(parts) == 1 && r.Method == http.MethodGet:
		memo, err := s.service.GetMemoDetail(r.Context(), actx, parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memoPayload(memo))

	case len(parts) == 1 && r.Method == http.MethodPut:
		var input UpdateMemoInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateMemo(r.Context(), actx, parts[0], input)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && parts[1] == "revisions" && r.Method == http.MethodGet:
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		revisions, err := s.service.MemoRevisions(r.Context(), actx, parts[0], limit)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})

	case len(parts) == 3 && parts[1] == "revisions" && r.Method == http.MethodGet:
		content, err := s.service.MemoRevisionContent(r.Context(), actx, parts[0], parts[2])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)

	case len(parts) == 2 && parts[1] == "attachment" && r.Method == http.MethodPost:
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form expected", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
			return
		}
		defer file.Close()
		memo, err := s.service.AttachMemoFile(r.Context(), actx, parts[0],
			header.Filename, header.Header.Get("Content-Type"), file, header.Size)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memoPayload(memo))

	case len(parts) == 2 && parts[1] == "attachment" && r.Method == http.MethodGet:
		url, err := s.service.MemoAttachmentURL(r.Context(), actx, parts[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// requireContext resolves the caller's identity or writes the failure.
func (s *HTTPServer) requireContext(w http.ResponseWriter, r *http.Request) (authz.Context, bool) {
	actx, err := s.resolver.Resolve(r.Context(), r)
	if err != nil {
		s.writeMapped(w, err)
		return authz.Context{}, false
	}
	return actx, true
}

func (s *HTTPServer) writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", key+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// mapError translates the core's typed errors into HTTP responses. The
// typed errors never carry status codes themselves; this is the single
// place that decides them.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var denial *authz.Denial
	if errors.As(err, &denial) {
		if denial.Kind == authz.KindAuthenticationRequired {
			return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
		}
		return http.StatusForbidden, "FORBIDDEN", denial.Reason, nil
	}

	var invalidState *opportunity.InvalidStateError
	if errors.As(err, &invalidState) {
		return http.StatusConflict, "INVALID_STATE", invalidState.Reason, nil
	}

	var limitErr *plan.LimitError
	if errors.As(err, &limitErr) {
		return http.StatusPaymentRequired, "LIMIT_EXCEEDED", limitErr.Error(), map[string]any{
			"plan":    string(limitErr.Plan),
			"type":    string(limitErr.Type),
			"limit":   limitErr.Check.Limit,
			"current": limitErr.Check.Current,
		}
	}

	if errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func investorPayload(inv store.Investor) map[string]any {
	payload := map[string]any{
		"id":              inv.ID,
		"tenantId":        inv.TenantID,
		"name":            inv.Name,
		"email":           inv.Email,
		"assignedAgentId": inv.AssignedAgentID,
		"ownerUserId":     inv.OwnerUserID,
	}
	if inv.Mandate != nil {
		payload["mandate"] = inv.Mandate
	}
	return payload
}

func listingPayload(l store.Listing) map[string]any {
	return map[string]any{
		"id":               l.ID,
		"tenantId":         l.TenantID,
		"title":            l.Title,
		"type":             l.Type,
		"area":             l.Area,
		"price":            l.Price,
		"bedrooms":         l.Bedrooms,
		"size":             l.Size,
		"roi":              l.ROI,
		"completionStatus": l.CompletionStatus,
		"furnished":        l.Furnished,
		"active":           l.Active,
	}
}

func opportunityPayload(o store.Opportunity) map[string]any {
	validation := opportunity.ValidateInvariant(toDomainOpportunity(o))
	payload := map[string]any{
		"id":           o.ID,
		"tenantId":     o.TenantID,
		"investorId":   o.InvestorID,
		"listingId":    o.ListingID,
		"sharedBy":     o.SharedBy,
		"sharedAt":     o.SharedAt,
		"status":       string(validation.NormalizedStatus),
		"decision":     o.Decision,
		"memoId":       o.MemoID,
		"dealRoomId":   o.DealRoomID,
		"matchScore":   o.MatchScore,
		"matchReasons": o.MatchReasons,
	}
	if validation.Warning != "" {
		payload["warning"] = validation.Warning
	}
	return payload
}

func memoPayload(m store.Memo) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"tenantId":      m.TenantID,
		"investorId":    m.InvestorID,
		"listingId":     m.ListingID,
		"title":         m.Title,
		"summary":       m.Summary,
		"status":        m.Status,
		"authorId":      m.AuthorID,
		"hasAttachment": m.AttachmentKey != "",
	}
}
