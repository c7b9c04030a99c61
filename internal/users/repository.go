package users

import "context"

// RepositoryPort defines data access methods for user accounts. Lookups
// return shared.ErrNotFound for unknown users.
type RepositoryPort interface {
	Create(ctx context.Context, u User) (int64, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	GroupIDs(ctx context.Context, userID int64) ([]int64, error)
}
