package editor

import "context"

type ownerKey struct{}

// WithOwner returns a context acting for userID. Sessions opened under it are
// only visible to contexts carrying the same user.
func WithOwner(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, userID)
}

// OwnerFromContext returns the user set by WithOwner, or "" for anonymous callers
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
