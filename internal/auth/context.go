package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const identityKey ctxKey = iota

// Identity is the authenticated caller, resolved once per request.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// WithIdentity stores the caller identity in a context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller identity from a context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil && id.UserID != ""
}

// UserID returns the authenticated user id for a gin request, or "" when anonymous.
func UserID(c *gin.Context) string {
	if id, ok := IdentityFromContext(c.Request.Context()); ok {
		return id.UserID
	}
	return ""
}
