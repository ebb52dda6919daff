package handler

import (
	"context"

	"github.com/airwaycast/airwaycast/internal/api/middleware"
	"github.com/airwaycast/airwaycast/internal/auth"
)

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// unreadableUser returns the first of userIDs the caller may not read, or ""
// when all are allowed. Without the read-all scope a token reads only its
// own user.
func unreadableUser(claims *auth.JWTClaims, userIDs []string) string {
	if claims.HasScope(auth.ScopeReadAll) {
		return ""
	}
	for _, id := range userIDs {
		if id != claims.UserID {
			return id
		}
	}
	return ""
}
