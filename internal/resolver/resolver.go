// Package resolver turns an inbound HTTP request into a validated
// authz.Context. Two strategies exist: a header-trusting legacy mode for
// deployments behind an authenticating proxy, and a session mode verifying
// a signed bearer token against the Redis session registry. The
// authorization core never learns which strategy produced the context.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dealdesk/api/internal/auth"
	"dealdesk/api/internal/authz"
	"dealdesk/api/internal/session"
)

// Resolver is the single entry point the HTTP layer uses.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (authz.Context, error)
}

func unauthenticated(reason string) error {
	return &authz.Denial{Kind: authz.KindAuthenticationRequired, Reason: reason}
}

// buildContext validates the raw identity fields shared by both
// strategies. Missing user or an unknown role is a hard error; a missing
// tenant is a hard error for every role except super_admin, which selects
// its tenant per request.
func buildContext(userID, rawRole, tenantID, investorID string) (authz.Context, error) {
	if strings.TrimSpace(userID) == "" {
		return authz.Context{}, unauthenticated("missing user identity")
	}
	role, err := authz.ParseRole(rawRole)
	if err != nil {
		return authz.Context{}, unauthenticated(fmt.Sprintf("invalid role %q", rawRole))
	}
	if tenantID == "" && role != authz.RoleSuperAdmin {
		return authz.Context{}, unauthenticated("missing tenant scope")
	}
	return authz.Context{
		TenantID:   tenantID,
		UserID:     userID,
		Role:       role,
		InvestorID: investorID,
	}, nil
}

// HeaderResolver reads identity from x-* headers. It trusts the transport:
// only deploy it behind a proxy that strips and sets these headers itself.
type HeaderResolver struct{}

func NewHeaderResolver() *HeaderResolver {
	return &HeaderResolver{}
}

func (hr *HeaderResolver) Resolve(_ context.Context, r *http.Request) (authz.Context, error) {
	return buildContext(
		r.Header.Get("x-user-id"),
		r.Header.Get("x-role"),
		r.Header.Get("x-tenant-id"),
		r.Header.Get("x-investor-id"),
	)
}

// SessionResolver verifies a signed bearer token and requires its JTI to
// still be registered in the session store, so revocation takes effect
// immediately.
type SessionResolver struct {
	secret   []byte
	sessions *session.RedisStore
}

func NewSessionResolver(secret []byte, sessions *session.RedisStore) *SessionResolver {
	return &SessionResolver{secret: secret, sessions: sessions}
}

func (sr *SessionResolver) Resolve(ctx context.Context, r *http.Request) (authz.Context, error) {
	token := bearerToken(r)
	if token == "" {
		return authz.Context{}, unauthenticated("missing bearer token")
	}

	claims, err := auth.ParseToken(sr.secret, token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return authz.Context{}, unauthenticated("token expired")
		}
		return authz.Context{}, unauthenticated("invalid token")
	}

	rec, err := sr.sessions.Lookup(ctx, claims.JTI)
	if errors.Is(err, session.ErrNotFound) {
		return authz.Context{}, unauthenticated("session revoked or expired")
	}
	if err != nil {
		return authz.Context{}, fmt.Errorf("session lookup: %w", err)
	}
	if rec.UserID != claims.Sub {
		return authz.Context{}, unauthenticated("session does not match token subject")
	}

	// The session record wins over token claims for tenant selection:
	// super_admin tenant switches update the record without re-issuing
	// the token.
	return buildContext(rec.UserID, rec.Role, rec.TenantID, rec.InvestorID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return strings.TrimSpace(token)
}
