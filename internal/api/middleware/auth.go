package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/airwaycast/airwaycast/internal/api/models"
	"github.com/airwaycast/airwaycast/internal/auth"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.JWTClaims, error)
}

type claimsKey struct{}

// Auth validates the bearer token and stores its claims in the context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				unauthorized(w, r, "invalid authorization header format")
				return
			}

			token := strings.TrimSpace(authHeader[len(bearerPrefix):])
			if token == "" {
				unauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					unauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					unauthorized(w, r, "invalid access token")
				default:
					unauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope rejects authenticated requests whose token lacks scope. It
// must run after Auth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				unauthorized(w, r, "authentication required")
				return
			}
			if !claims.HasScope(scope) {
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "token lacks scope "+scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
}

// GetClaims returns the validated token claims, or nil when unauthenticated.
func GetClaims(ctx context.Context) *auth.JWTClaims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.JWTClaims)
	return claims
}

// GetUserID returns the authenticated user ID, or "" when unauthenticated.
func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// WithClaims returns ctx carrying claims, for handlers exercised without Auth.
func WithClaims(ctx context.Context, claims *auth.JWTClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}
