package comments

import (
	"context"

	"github.com/inkstream-blog/inkstream/internal/moderation"
)

// Repository is the persistence surface for comments. Get returns
// shared.ErrNotFound when the id does not resolve.
type Repository interface {
	Create(ctx context.Context, c Comment) (int64, error)
	Get(ctx context.Context, id int64) (Comment, error)
	SetStatus(ctx context.Context, id int64, status moderation.Status) error
	Delete(ctx context.Context, id int64) error
	ListForArticle(ctx context.Context, articleID int64) ([]Comment, error)
	ListReplies(ctx context.Context, parentID int64) ([]Comment, error)
}
