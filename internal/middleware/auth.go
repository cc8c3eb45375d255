package middleware

import (
	"context"
	"net/http"

	"github.com/ayan/bookrack/internal/auth"
)

// TokenRevocations reports whether a token id has been denylisted.
type TokenRevocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RequireAuth is middleware that validates the bearer token and injects the
// user_id into the request context.
func RequireAuth(tokens *auth.TokenManager, revoked TokenRevocations) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r)
			if !ok {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Resolve(token)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			if isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID); err != nil || isRevoked {
				http.Error(w, `{"error":"session expired"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), "user_id", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
