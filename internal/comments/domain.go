package comments

import (
	"time"

	"github.com/inkstream-blog/inkstream/internal/moderation"
	"github.com/inkstream-blog/inkstream/internal/visibility"
)

// Comment is one moderated comment on an article, optionally threaded under
// a parent comment. Body holds the post-filter text; the raw submission is
// never persisted. Status belongs to the moderation pipeline alone.
type Comment struct {
	ID        int64
	ArticleID int64
	AuthorID  int64
	ParentID  *int64
	Body      string
	Status    moderation.Status
	CreatedAt time.Time
}

// Approved reports whether the comment is publicly visible.
func (c Comment) Approved() bool {
	return c.Status == moderation.StatusApproved
}

func (c Comment) visibilityView() visibility.Comment {
	return visibility.Comment{ID: c.ID, AuthorID: c.AuthorID, Approved: c.Approved()}
}
