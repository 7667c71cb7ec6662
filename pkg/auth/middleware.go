package auth

import (
	"context"
	"net/http"
)

type contextKey string

// ContextKeyClaims is the context key under which a verified token's claims
// are stored once Middleware has run.
const ContextKeyClaims contextKey = "auth_claims"

// Middleware returns an HTTP middleware that requires a valid bearer token
// carrying requiredPermission. This is the first of the three composable
// handler stages (authenticate, authorize, handle): it authenticates the
// token and authorizes the role in one pass, short-circuiting with a
// terminal response on either failure.
func (m *Manager) Middleware(requiredPermission Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "unauthorized: missing authorization header", http.StatusUnauthorized)
				return
			}

			token, err := ParseAuthHeader(authHeader)
			if err != nil {
				http.Error(w, "unauthorized: invalid authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := m.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}

			if !HasPermission(claims.Role, requiredPermission) {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts the verified Claims that Middleware attached
// to the request context.
func ClaimsFromContext(r *http.Request) (Claims, bool) {
	claims, ok := r.Context().Value(ContextKeyClaims).(Claims)
	return claims, ok
}
