package articles

import "time"

// Status is the publication state of an article.
type Status string

const (
	// StatusDraft keeps the article visible only to its author and
	// view_draft capability holders.
	StatusDraft Status = "draft"
	// StatusPublished makes the article public and its view counter live.
	StatusPublished Status = "published"
)

// Article is a blog post.
type Article struct {
	ID        int64
	Title     string
	Body      string
	AuthorID  int64
	Status    Status
	ViewCount int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Published reports whether the article is publicly visible.
func (a Article) Published() bool {
	return a.Status == StatusPublished
}

// DetailView is the cacheable detail representation of an article.
type DetailView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  int64     `json:"author_id"`
	Status    Status    `json:"status"`
	ViewCount int64     `json:"view_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDetailView(a Article) DetailView {
	return DetailView{
		ID:        a.ID,
		Title:     a.Title,
		Body:      a.Body,
		AuthorID:  a.AuthorID,
		Status:    a.Status,
		ViewCount: a.ViewCount,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
