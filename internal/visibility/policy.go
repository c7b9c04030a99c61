// Package visibility composes the grants engine with object status into the
// "can principal X see or act on object Y" predicates used by listing and
// detail retrieval. List and detail paths share these predicates so the two
// can never disagree about who sees a pending comment.
package visibility

import (
	"context"

	"github.com/inkstream-blog/inkstream/internal/grants"
	"github.com/inkstream-blog/inkstream/internal/shared"
)

// Article is the slice of article state the policy needs.
type Article struct {
	ID        int64
	AuthorID  int64
	Published bool
}

// Comment is the slice of comment state the policy needs.
type Comment struct {
	ID       int64
	AuthorID int64
	Approved bool
}

// Policy answers visibility and mutation questions for content objects.
type Policy struct {
	engine *grants.Engine
}

// NewPolicy constructs a Policy over the grants engine.
func NewPolicy(engine *grants.Engine) *Policy {
	return &Policy{engine: engine}
}

// CanViewArticle reports whether the principal may see the article.
// Published articles are public; drafts are visible to admins, the author,
// and view_draft capability holders.
func (p *Policy) CanViewArticle(ctx context.Context, principal shared.Principal, a Article) (bool, error) {
	if a.Published {
		return true, nil
	}
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.IsAdmin || principal.ID == a.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapArticleViewDraft, grants.ArticleRef(a.ID))
}

// CanViewComment reports whether the principal may see the comment.
// Approved comments are public; pending and rejected ones are visible only
// to staff/admins, the author, and moderate capability holders.
func (p *Policy) CanViewComment(ctx context.Context, principal shared.Principal, c Comment) (bool, error) {
	if c.Approved {
		return true, nil
	}
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.Moderator() || principal.ID == c.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapCommentModerate, grants.CommentRef(c.ID))
}

// CanEditArticle reports whether the principal may edit the article.
// Comments are never editable, so there is no comment counterpart.
func (p *Policy) CanEditArticle(ctx context.Context, principal shared.Principal, a Article) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.IsAdmin || principal.ID == a.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapArticleEdit, grants.ArticleRef(a.ID))
}

// CanPublishArticle reports whether the principal may publish the article.
func (p *Policy) CanPublishArticle(ctx context.Context, principal shared.Principal, a Article) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.IsAdmin || principal.ID == a.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapArticlePublish, grants.ArticleRef(a.ID))
}

// CanDeleteArticle reports whether the principal may delete the article.
func (p *Policy) CanDeleteArticle(ctx context.Context, principal shared.Principal, a Article) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.IsAdmin || principal.ID == a.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapArticleManage, grants.ArticleRef(a.ID))
}

// CanDeleteComment reports whether the principal may delete the comment.
func (p *Policy) CanDeleteComment(ctx context.Context, principal shared.Principal, c Comment) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.IsAdmin || principal.ID == c.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapCommentManage, grants.CommentRef(c.ID))
}

// CanReplyComment reports whether the principal may thread a reply under
// the comment. Anyone may reply to an approved comment they can see;
// replying under a pending or rejected one needs moderator standing, a
// reply grant, or authorship.
func (p *Policy) CanReplyComment(ctx context.Context, principal shared.Principal, c Comment) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	if c.Approved || principal.Moderator() || principal.ID == c.AuthorID {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapCommentReply, grants.CommentRef(c.ID))
}

// CanModerateComment reports whether the principal may change the comment's
// moderation status.
func (p *Policy) CanModerateComment(ctx context.Context, principal shared.Principal, c Comment) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	if principal.Moderator() {
		return true, nil
	}
	return p.engine.Check(ctx, principal, grants.CapCommentModerate, grants.CommentRef(c.ID))
}

// Gate converts a (visible, allowed) pair into the two-tier error signal.
// An invisible object reports not-found so denial cannot reveal that it
// exists; only a visible object with a denied mutation reports forbidden.
func Gate(visible, allowed bool) error {
	if !visible {
		return shared.ErrNotFound
	}
	if !allowed {
		return shared.ErrForbidden
	}
	return nil
}
