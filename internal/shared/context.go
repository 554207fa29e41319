package shared

import "context"

// Identity describes the authenticated client attached to a request.
type Identity struct {
	ClientID     int64
	Username     string
	RoleIDs      []int64
	DepartmentID int64
	Token        string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
