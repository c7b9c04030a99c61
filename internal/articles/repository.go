package articles

import (
	"context"

	"github.com/inkstream-blog/inkstream/internal/counter"
)

// Repository is the persistence surface for articles. Get returns
// shared.ErrNotFound when the id does not resolve. IncrementViews and
// TopViewed also satisfy counter.Repository so the same store backs the
// view counter.
type Repository interface {
	Create(ctx context.Context, a Article) (int64, error)
	Get(ctx context.Context, id int64) (Article, error)
	Update(ctx context.Context, a Article) error
	SetStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Article, error)
	IncrementViews(ctx context.Context, id int64) (int64, bool, error)
	TopViewed(ctx context.Context, limit int) ([]counter.HotEntry, error)
}
