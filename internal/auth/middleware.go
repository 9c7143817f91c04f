package auth

import (
	"context"
	"net/http"
	"strings"
)

// SessionCookieName is the staff session cookie set at login.
const SessionCookieName = "session_token"

// Identity is an authenticated principal.
type Identity struct {
	TenantID string
	Role     Role
	Subject  string
}

// SessionAuthenticator resolves a staff session token to an identity.
type SessionAuthenticator interface {
	AuthenticateSession(ctx context.Context, token string) (Identity, error)
}

// Middleware validates credentials and enforces RBAC.
//
// Managers and back-office tooling present Bearer JWTs; staff on bound
// tablets present the session cookie issued by the PIN login flow.
type Middleware struct {
	Secret   []byte
	Policy   Policy
	Sessions SessionAuthenticator
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, sessions SessionAuthenticator) *Middleware {
	return &Middleware{Secret: secret, Policy: policy, Sessions: sessions}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !RoleAtLeast(identity.Role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), identity.TenantID, identity.Role, identity.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (Identity, error) {
	if token := extractBearer(r); token != "" {
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			return Identity{}, err
		}
		role, _ := NormalizeRole(claims.Role)
		return Identity{TenantID: claims.TenantID, Role: role, Subject: claims.Subject}, nil
	}
	if m.Sessions != nil {
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			return m.Sessions.AuthenticateSession(r.Context(), cookie.Value)
		}
	}
	return Identity{}, ErrUnauthorized
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
