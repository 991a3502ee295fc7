package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-notify-api/internal/domain"
	jwtinfra "github.com/go-notify-api/internal/infrastructure/jwt"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// TokenVerifier verifies a bearer token's signature and expiry.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// TenantSource looks up a tenant by id.
type TenantSource interface {
	Get(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// MembershipSource looks up a user's membership in a tenant.
type MembershipSource interface {
	Get(ctx context.Context, userID, tenantID string) (*domain.Membership, error)
}

// Authenticator turns a bearer token into a Principal: token verification
// followed by an active tenant-membership lookup. Fails closed — any
// verification error, missing tenant, or inactive membership rejects the
// caller before any handler state is touched.
type Authenticator struct {
	verifier    TokenVerifier
	tenants     TenantSource
	memberships MembershipSource
}

func NewAuthenticator(verifier TokenVerifier, tenants TenantSource, memberships MembershipSource) *Authenticator {
	return &Authenticator{verifier: verifier, tenants: tenants, memberships: memberships}
}

// Resolve authenticates tokenStr and resolves the bearer's active tenant
// context. Shared by the REST middleware and the WebSocket handshake.
func (a *Authenticator) Resolve(ctx context.Context, tokenStr string) (*domain.Principal, error) {
	claims, err := a.verifier.Verify(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", domain.ErrUnauthorized)
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("token missing identity claims: %w", domain.ErrUnauthorized)
	}

	tenant, err := a.tenants.Get(ctx, claims.TenantID)
	if err != nil || tenant.Status != domain.TenantActive {
		return nil, fmt.Errorf("tenant not active: %w", domain.ErrUnauthorized)
	}
	member, err := a.memberships.Get(ctx, claims.UserID, claims.TenantID)
	if err != nil || member.Status != domain.MemberActive {
		return nil, fmt.Errorf("membership not active: %w", domain.ErrUnauthorized)
	}

	return &domain.Principal{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Plan:     tenant.Plan,
		Role:     member.Role,
	}, nil
}

// BearerToken extracts the credential from the Authorization header, falling
// back to the token query parameter (used by WebSocket clients that cannot
// set headers).
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Auth returns middleware that authenticates the request and injects the
// resolved Principal into the context.
func Auth(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			p, err := a.Resolve(r.Context(), token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), PrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext extracts the authenticated Principal from the request context.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*domain.Principal)
	return p, ok
}

// RequireRole returns middleware that restricts a route to the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				writeJSONError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
