package core

import "context"

type identityKey struct{}

// Identity is the authenticated caller, as asserted by the auth collaborator (JWT claims).
type Identity struct {
	ID       string
	Email    string
	Name     string
	FullName string
	Roles    []string
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
