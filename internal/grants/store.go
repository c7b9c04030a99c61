package grants

import "context"

// Store is the durable mapping of grant records. Implementations must make
// Upsert and Delete idempotent: re-granting an existing tuple and revoking a
// missing one are both successes.
type Store interface {
	Upsert(ctx context.Context, g Grant) error
	Delete(ctx context.Context, g Grant) error
	DeleteByObject(ctx context.Context, obj ObjectRef) error
	Capabilities(ctx context.Context, p PrincipalRef, obj ObjectRef) ([]string, error)
	PrincipalsWithCapability(ctx context.Context, capability string, obj ObjectRef) ([]PrincipalRef, error)
}
