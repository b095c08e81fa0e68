package resolver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"dealdesk/api/internal/auth"
	"dealdesk/api/internal/authz"
	"dealdesk/api/internal/session"

	"github.com/alicebob/miniredis/v2"
)

func TestHeaderResolver(t *testing.T) {
	cases := []struct {
		name     string
		headers  map[string]string
		wantRole authz.Role
		wantFail bool
	}{
		{
			name:     "agent with tenant",
			headers:  map[string]string{"x-user-id": "u1", "x-role": "agent", "x-tenant-id": "ten-1"},
			wantRole: authz.RoleAgent,
		},
		{
			name:     "investor with investor id",
			headers:  map[string]string{"x-user-id": "u2", "x-role": "investor", "x-tenant-id": "ten-1", "x-investor-id": "inv-1"},
			wantRole: authz.RoleInvestor,
		},
		{
			name:     "super admin without tenant",
			headers:  map[string]string{"x-user-id": "u3", "x-role": "super_admin"},
			wantRole: authz.RoleSuperAdmin,
		},
		{
			name:     "missing user id",
			headers:  map[string]string{"x-role": "agent", "x-tenant-id": "ten-1"},
			wantFail: true,
		},
		{
			name:     "invalid role",
			headers:  map[string]string{"x-user-id": "u1", "x-role": "owner", "x-tenant-id": "ten-1"},
			wantFail: true,
		},
		{
			name:     "missing tenant for agent",
			headers:  map[string]string{"x-user-id": "u1", "x-role": "agent"},
			wantFail: true,
		},
	}

	hr := NewHeaderResolver()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/me", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			got, err := hr.Resolve(context.Background(), req)
			if tc.wantFail {
				d, ok := authz.AsDenial(err)
				if !ok || d.Kind != authz.KindAuthenticationRequired {
					t.Fatalf("expected authentication failure, got ctx=%+v err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if got.Role != tc.wantRole {
				t.Fatalf("Role = %s, want %s", got.Role, tc.wantRole)
			}
			if got.UserID != tc.headers["x-user-id"] {
				t.Fatalf("UserID = %s, want %s", got.UserID, tc.headers["x-user-id"])
			}
		})
	}
}

func newSessionResolver(t *testing.T) (*SessionResolver, *session.RedisStore, []byte) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := session.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	secret := []byte("test-secret")
	return NewSessionResolver(secret, store), store, secret
}

func issueSessionToken(t *testing.T, store *session.RedisStore, secret []byte, rec session.Record, jti string) string {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	if err := store.Save(context.Background(), jti, rec, exp); err != nil {
		t.Fatalf("save session: %v", err)
	}
	token, err := auth.IssueToken(secret, auth.Claims{
		Sub:      rec.UserID,
		Role:     rec.Role,
		Tenant:   rec.TenantID,
		Investor: rec.InvestorID,
		JTI:      jti,
		Exp:      exp.Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestSessionResolverHappyPath(t *testing.T) {
	sr, store, secret := newSessionResolver(t)
	rec := session.Record{UserID: "u1", Role: "manager", TenantID: "ten-1"}
	token := issueSessionToken(t, store, secret, rec, "jti-1")

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	got, err := sr.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.UserID != "u1" || got.Role != authz.RoleManager || got.TenantID != "ten-1" {
		t.Fatalf("unexpected context: %+v", got)
	}
}

func TestSessionResolverRevokedSession(t *testing.T) {
	sr, store, secret := newSessionResolver(t)
	rec := session.Record{UserID: "u1", Role: "agent", TenantID: "ten-1"}
	token := issueSessionToken(t, store, secret, rec, "jti-2")

	if err := store.Revoke(context.Background(), "jti-2"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err := sr.Resolve(context.Background(), req)
	d, ok := authz.AsDenial(err)
	if !ok || d.Kind != authz.KindAuthenticationRequired {
		t.Fatalf("expected authentication failure after revocation, got %v", err)
	}
}

func TestSessionResolverMissingOrBadToken(t *testing.T) {
	sr, _, _ := newSessionResolver(t)

	req := httptest.NewRequest("GET", "/api/me", nil)
	if _, err := sr.Resolve(context.Background(), req); err == nil {
		t.Fatal("expected failure without a token")
	}

	req.Header.Set("Authorization", "Bearer garbage")
	_, err := sr.Resolve(context.Background(), req)
	d, ok := authz.AsDenial(err)
	if !ok || d.Kind != authz.KindAuthenticationRequired {
		t.Fatalf("expected authentication failure for bad token, got %v", err)
	}
}

func TestSessionResolverTenantSwitchViaRecord(t *testing.T) {
	sr, store, secret := newSessionResolver(t)
	rec := session.Record{UserID: "u1", Role: "super_admin"}
	token := issueSessionToken(t, store, secret, rec, "jti-3")

	// Tenant selection updates the session record, not the token.
	rec.TenantID = "ten-9"
	if err := store.Save(context.Background(), "jti-3", rec, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("update session: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	got, err := sr.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.TenantID != "ten-9" {
		t.Fatalf("expected session record tenant to win, got %q", got.TenantID)
	}
}
