package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ecomauth/server/internal/auth"
	"github.com/ecomauth/server/internal/model"
	"github.com/ecomauth/server/internal/repo"
)

type contextKey string

const (
	userKey   contextKey = "user"
	claimsKey contextKey = "claims"
)

// AuthMiddleware validates access tokens, loads the user, and attaches both
// to the request context.
func AuthMiddleware(codec *auth.TokenCodec, users repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondUnauthorized(w, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondUnauthorized(w, "missing token")
				return
			}

			claims, err := codec.VerifyAccess(tokenString)
			if err != nil {
				respondUnauthorized(w, "invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					respondUnauthorized(w, "user not found")
					return
				}
				respondUnauthorized(w, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the user attached to the request context (set by AuthMiddleware)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// GetClaims returns the verified access-token claims from the context.
func GetClaims(ctx context.Context) (*auth.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.AccessClaims)
	return c, ok
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
