package grants

import (
	"time"

	"github.com/inkstream-blog/inkstream/internal/shared"
)

// Object types carried in grant records.
const (
	ObjectArticle = "article"
	ObjectComment = "comment"
)

// Article capabilities. There is no comment edit capability: comments are
// never editable, a revision requires delete and recreate.
const (
	CapArticleEdit      = "edit_article"
	CapArticlePublish   = "publish_article"
	CapArticleViewDraft = "view_draft_article"
	CapArticleManage    = "manage_article"

	CapCommentModerate = "moderate_comment"
	CapCommentReply    = "reply_comment"
	CapCommentManage   = "manage_comment"
)

// ArticleCapabilities lists every capability defined for articles.
func ArticleCapabilities() []string {
	return []string{CapArticleEdit, CapArticlePublish, CapArticleViewDraft, CapArticleManage}
}

// ArticleEditorCapabilities lists the subset granted to co-editors.
func ArticleEditorCapabilities() []string {
	return []string{CapArticleEdit, CapArticleViewDraft}
}

// CommentCapabilities lists every capability defined for comments.
func CommentCapabilities() []string {
	return []string{CapCommentModerate, CapCommentReply, CapCommentManage}
}

// CommentAuthorCapabilities lists the subset granted to a comment's author.
func CommentAuthorCapabilities() []string {
	return []string{CapCommentReply, CapCommentManage}
}

// ObjectRef is a weak reference to a content object. Grants never hold a
// foreign key back into content tables; the (type, id) pair is the whole
// relationship.
type ObjectRef struct {
	Type string
	ID   int64
}

// ArticleRef builds an ObjectRef for an article id.
func ArticleRef(id int64) ObjectRef {
	return ObjectRef{Type: ObjectArticle, ID: id}
}

// CommentRef builds an ObjectRef for a comment id.
func CommentRef(id int64) ObjectRef {
	return ObjectRef{Type: ObjectComment, ID: id}
}

// Valid reports whether the reference points at a persisted object.
func (o ObjectRef) Valid() bool {
	return o.Type != "" && o.ID > 0
}

// PrincipalRef identifies the holder of a grant.
type PrincipalRef struct {
	ID   int64
	Kind shared.PrincipalKind
}

// Grant is one persisted (principal, capability, object) record.
type Grant struct {
	Principal  PrincipalRef
	Capability string
	Object     ObjectRef
	CreatedAt  time.Time
}
