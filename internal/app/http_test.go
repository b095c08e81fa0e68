package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealdesk/api/internal/opportunity"
	"dealdesk/api/internal/resolver"
	"dealdesk/api/internal/store"
)

func newTestServer(fs *fakeStore) *HTTPServer {
	return NewHTTPServer(newTestService(fs), resolver.NewHeaderResolver(), "*")
}

func doRequest(t *testing.T, server *HTTPServer, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func identityHeaders(role, tenantID string) map[string]string {
	return map[string]string{
		"x-user-id":   "user-" + role,
		"x-role":      role,
		"x-tenant-id": tenantID,
	}
}

func decodePayload(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthNeedsNoIdentity(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodePayload(t, rr); payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %v", payload["code"])
	}
}

func TestUnknownRoleIsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/me", "", map[string]string{
		"x-user-id":   "user-1",
		"x-role":      "owner",
		"x-tenant-id": "ten-1",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown role, got %d", rr.Code)
	}
}

func TestMeReportsCapabilities(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/me", "", identityHeaders("agent", "ten-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := decodePayload(t, rr)
	capabilities := payload["capabilities"].(map[string]any)
	if capabilities["settings"] != nil {
		t.Fatalf("agent must not see settings capability, got %v", capabilities["settings"])
	}
	if capabilities["investors"] == nil {
		t.Fatal("agent should have investors capability")
	}
}

func TestInvestorRoleCannotShare(t *testing.T) {
	server := newTestServer(&fakeStore{})
	headers := identityHeaders("investor", "ten-1")
	headers["x-investor-id"] = "inv-1"

	rr := doRequest(t, server, http.MethodPost, "/api/opportunities",
		`{"investorId":"inv-1","listingId":"lst-1"}`, headers)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodePayload(t, rr); payload["code"] != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN code, got %v", payload["code"])
	}
}

func TestCrossTenantDashboardForbidden(t *testing.T) {
	fs := &fakeStore{
		getInvestorFn: func(_ context.Context, _ string) (store.Investor, error) {
			return testInvestor("ten-other"), nil
		},
	}
	server := newTestServer(fs)

	rr := doRequest(t, server, http.MethodGet, "/api/investors/inv-1/dashboard", "", identityHeaders("manager", "ten-1"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 across tenants, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestShareReturnsPaymentRequiredAtLimit(t *testing.T) {
	fs := &fakeStore{
		getTenantFn: func(_ context.Context, id string) (store.Tenant, error) {
			return store.Tenant{ID: id, Plan: "starter"}, nil
		},
		getInvestorFn: func(_ context.Context, _ string) (store.Investor, error) {
			return testInvestor("ten-1"), nil
		},
		getListingFn: func(_ context.Context, id string) (store.Listing, error) {
			return store.Listing{ID: id, TenantID: "ten-1", Active: true}, nil
		},
		countTenantResourceFn: func(_ context.Context, _, _ string) (int, error) {
			return 200, nil
		},
	}
	server := newTestServer(fs)

	rr := doRequest(t, server, http.MethodPost, "/api/opportunities",
		`{"investorId":"inv-1","listingId":"lst-1"}`, identityHeaders("manager", "ten-1"))
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	if payload["code"] != "LIMIT_EXCEEDED" {
		t.Fatalf("expected LIMIT_EXCEEDED code, got %v", payload["code"])
	}
	details := payload["details"].(map[string]any)
	if details["type"] != "opportunities" {
		t.Fatalf("expected opportunities limit in details, got %v", details["type"])
	}
}

func TestStatusTransitionConflictSurfacesAs409(t *testing.T) {
	fs := &fakeStore{
		getOpportunityFn: func(_ context.Context, id string) (store.Opportunity, error) {
			return store.Opportunity{
				ID: id, TenantID: "ten-1", InvestorID: "inv-1",
				Status: string(opportunity.StatusDealRoom), Decision: "interested", MemoID: "memo-1",
			}, nil
		},
		getInvestorFn: func(_ context.Context, _ string) (store.Investor, error) {
			return testInvestor("ten-1"), nil
		},
	}
	server := newTestServer(fs)

	rr := doRequest(t, server, http.MethodPost, "/api/opportunities/opp-1/status",
		`{"status":"shortlisted"}`, identityHeaders("manager", "ten-1"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for backward transition, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodePayload(t, rr); payload["code"] != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE code, got %v", payload["code"])
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/unknown", "", identityHeaders("manager", "ten-1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestOpportunityNotFoundIs404(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/opportunities/opp-missing", "", identityHeaders("manager", "ten-1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSuperAdminWithoutTenantSelectionForbidden(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/plan/usage", "", map[string]string{
		"x-user-id": "user-root",
		"x-role":    "super_admin",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without tenant selection, got %d body=%s", rr.Code, rr.Body.String())
	}
}
