package shared

import "context"

// PrincipalKind distinguishes user and group principals in grant records.
type PrincipalKind string

const (
	// PrincipalUser marks a grant held by an individual user.
	PrincipalUser PrincipalKind = "user"
	// PrincipalGroup marks a grant held by a group.
	PrincipalGroup PrincipalKind = "group"
)

// Principal describes the actor performing an operation. It is resolved by
// the authentication layer before the core is invoked and never re-derived
// here.
type Principal struct {
	ID            int64
	Kind          PrincipalKind
	GroupIDs      []int64
	IsAdmin       bool
	IsStaff       bool
	Authenticated bool
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{Kind: PrincipalUser}
}

// IsAnonymous reports whether the principal carries no authenticated identity.
func (p Principal) IsAnonymous() bool {
	return !p.Authenticated || p.ID == 0
}

// Moderator reports whether the principal bypasses moderation visibility by
// role alone.
func (p Principal) Moderator() bool {
	return p.IsAdmin || p.IsStaff
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, returning the
// anonymous principal when none is set.
func PrincipalFromContext(ctx context.Context) Principal {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok {
		return Anonymous()
	}
	return p
}
