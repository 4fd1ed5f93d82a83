package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/campus-events/server/internal/api/problem"
	"github.com/campus-events/server/internal/auth"
)

const claimsKey contextKey = "auth_claims"

// RequireRoles admits requests bearing a valid HS256 token whose role is one
// of roles. Missing or invalid tokens get 401; a valid token with the wrong
// role gets 403.
func RequireRoles(manager *auth.JWTManager, env string, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="teacher-portal"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env)
				return
			}

			claims, err := manager.Authorize(token, roles...)
			if err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="teacher-portal", error="invalid_token"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
