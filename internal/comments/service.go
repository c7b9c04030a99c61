package comments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/inkstream-blog/inkstream/internal/grants"
	"github.com/inkstream-blog/inkstream/internal/moderation"
	"github.com/inkstream-blog/inkstream/internal/shared"
	"github.com/inkstream-blog/inkstream/internal/visibility"
)

// ArticleDirectory resolves the article a comment hangs off. The composition
// root adapts the articles repository; returns shared.ErrNotFound for
// unknown ids.
type ArticleDirectory interface {
	Find(ctx context.Context, articleID int64) (visibility.Article, error)
}

// IdempotencyChecker guards against duplicate submissions. Delete rolls a
// key back when processing fails after the key was claimed. Satisfied by
// shared.IdempotencyStore.
type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service wraps comment submission, moderation and deletion.
type Service struct {
	repo     Repository
	articles ArticleDirectory
	engine   *grants.Engine
	filter   *moderation.Filter
	policy   *visibility.Policy
	idem     IdempotencyChecker
	audit    *shared.AuditLogger
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a Service. idem and audit may be nil.
func NewService(repo Repository, articles ArticleDirectory, engine *grants.Engine, filter *moderation.Filter, policy *visibility.Policy, idem IdempotencyChecker, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		articles: articles,
		engine:   engine,
		filter:   filter,
		policy:   policy,
		idem:     idem,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
	}
}

// SubmitInput carries one comment submission. Body is the raw pre-filter
// text and is discarded after classification.
type SubmitInput struct {
	ArticleID      int64  `validate:"required"`
	ParentID       *int64 `validate:"omitempty,gt=0"`
	Body           string `validate:"required"`
	IdempotencyKey string `validate:"omitempty,uuid4"`
}

// SubmitResult pairs the stored comment with the advisory issues surfaced
// only to the submitter.
type SubmitResult struct {
	Comment Comment
	Issues  []string
}

// Submit classifies and stores a new comment. The initial status comes from
// the classifier: clean content goes straight to approved, flagged content
// is held pending. The submitter never writes the status.
func (s *Service) Submit(ctx context.Context, p shared.Principal, in SubmitInput) (SubmitResult, error) {
	if err := shared.WrapValidation(s.validate.Struct(in)); err != nil {
		return SubmitResult{}, err
	}

	article, err := s.articles.Find(ctx, in.ArticleID)
	if err != nil {
		return SubmitResult{}, err
	}
	visible, err := s.policy.CanViewArticle(ctx, p, article)
	if err != nil {
		return SubmitResult{}, err
	}
	if !visible {
		return SubmitResult{}, shared.ErrNotFound
	}
	if p.IsAnonymous() {
		return SubmitResult{}, shared.ErrForbidden
	}

	if in.ParentID != nil {
		parent, err := s.repo.Get(ctx, *in.ParentID)
		if err != nil {
			return SubmitResult{}, err
		}
		if parent.ArticleID != in.ArticleID {
			return SubmitResult{}, shared.NewValidationError("parent comment belongs to a different article")
		}
		parentVisible, err := s.policy.CanViewComment(ctx, p, parent.visibilityView())
		if err != nil {
			return SubmitResult{}, err
		}
		if !parentVisible {
			return SubmitResult{}, shared.ErrNotFound
		}
		canReply, err := s.policy.CanReplyComment(ctx, p, parent.visibilityView())
		if err != nil {
			return SubmitResult{}, err
		}
		if !canReply {
			return SubmitResult{}, shared.ErrForbidden
		}
	}

	keyClaimed := false
	if s.idem != nil && in.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, "comments"); err != nil {
			return SubmitResult{}, err
		}
		keyClaimed = true
	}

	res := s.filter.Classify(in.Body)
	if !res.Valid {
		s.releaseKey(ctx, keyClaimed, in.IdempotencyKey)
		return SubmitResult{}, shared.NewValidationError(res.Issues...)
	}

	c := Comment{
		ArticleID: in.ArticleID,
		AuthorID:  p.ID,
		ParentID:  in.ParentID,
		Body:      res.FilteredText,
		Status:    moderation.InitialStatus(res.AutoApprove),
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		s.releaseKey(ctx, keyClaimed, in.IdempotencyKey)
		return SubmitResult{}, fmt.Errorf("comments: create: %w", err)
	}
	if ok, err := s.engine.AssignCommentAuthor(ctx, p, id); err != nil {
		return SubmitResult{}, err
	} else if !ok {
		s.logger.Warn("author grants incomplete", slog.Int64("comment_id", id))
	}

	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	s.logger.Info("comment submitted",
		slog.Int64("comment_id", id),
		slog.Int64("article_id", in.ArticleID),
		slog.Int64("author_id", p.ID),
		slog.String("status", string(stored.Status)))
	return SubmitResult{Comment: stored, Issues: res.Issues}, nil
}

// Get returns a single comment, reporting not-found when the principal may
// not see it.
func (s *Service) Get(ctx context.Context, p shared.Principal, id int64) (Comment, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	visible, err := s.policy.CanViewComment(ctx, p, c.visibilityView())
	if err != nil {
		return Comment{}, err
	}
	if !visible {
		return Comment{}, shared.ErrNotFound
	}
	return c, nil
}

// ListForArticle returns the comments on an article the principal may see.
// The same predicate gates the detail path, so the two never diverge.
func (s *Service) ListForArticle(ctx context.Context, p shared.Principal, articleID int64) ([]Comment, error) {
	article, err := s.articles.Find(ctx, articleID)
	if err != nil {
		return nil, err
	}
	visible, err := s.policy.CanViewArticle(ctx, p, article)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, shared.ErrNotFound
	}
	all, err := s.repo.ListForArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	out := make([]Comment, 0, len(all))
	for _, c := range all {
		ok, err := s.policy.CanViewComment(ctx, p, c.visibilityView())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Moderate records a moderator decision on the comment's status.
func (s *Service) Moderate(ctx context.Context, p shared.Principal, id int64, to moderation.Status) (Comment, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	view := c.visibilityView()
	visible, err := s.policy.CanViewComment(ctx, p, view)
	if err != nil {
		return Comment{}, err
	}
	allowed, err := s.policy.CanModerateComment(ctx, p, view)
	if err != nil {
		return Comment{}, err
	}
	if err := visibility.Gate(visible, allowed); err != nil {
		return Comment{}, err
	}
	if !moderation.CanTransition(c.Status, to) {
		return Comment{}, shared.NewValidationError("invalid status transition")
	}
	if err := s.repo.SetStatus(ctx, id, to); err != nil {
		return Comment{}, fmt.Errorf("comments: set status: %w", err)
	}
	s.recordAudit(ctx, p.ID, "moderate", id, map[string]any{"from": string(c.Status), "to": string(to)})
	s.logger.Info("comment moderated",
		slog.Int64("comment_id", id),
		slog.Int64("actor_id", p.ID),
		slog.String("to", string(to)))
	return s.repo.Get(ctx, id)
}

// Delete removes a comment and its reply subtree: replies bottom-up, then
// the node, then the node's grants.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id int64) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	view := c.visibilityView()
	visible, err := s.policy.CanViewComment(ctx, p, view)
	if err != nil {
		return err
	}
	allowed, err := s.policy.CanDeleteComment(ctx, p, view)
	if err != nil {
		return err
	}
	if err := visibility.Gate(visible, allowed); err != nil {
		return err
	}
	if err := s.deleteTree(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, p.ID, "delete", id, nil)
	s.logger.Info("comment deleted", slog.Int64("comment_id", id), slog.Int64("actor_id", p.ID))
	return nil
}

// DeleteForArticle removes every comment under an article. Used by article
// deletion; the explicit walk replaces any reliance on database cascades.
func (s *Service) DeleteForArticle(ctx context.Context, articleID int64) error {
	all, err := s.repo.ListForArticle(ctx, articleID)
	if err != nil {
		return err
	}
	for _, c := range all {
		if c.ParentID == nil {
			if err := s.deleteTree(ctx, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) deleteTree(ctx context.Context, id int64) error {
	replies, err := s.repo.ListReplies(ctx, id)
	if err != nil {
		return err
	}
	for _, reply := range replies {
		if err := s.deleteTree(ctx, reply.ID); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("comments: delete %d: %w", id, err)
	}
	if _, err := s.engine.CleanupObject(ctx, grants.CommentRef(id)); err != nil {
		return fmt.Errorf("comments: cleanup grants %d: %w", id, err)
	}
	return nil
}

// releaseKey hands a claimed idempotency key back when submission failed
// before the comment row existed, so a retry with the same key can succeed.
// Once the row is stored the key stays claimed.
func (s *Service) releaseKey(ctx context.Context, claimed bool, key string) {
	if !claimed {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("idempotency key release failed",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, commentID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "comments." + action,
		Entity:   grants.ObjectComment,
		EntityID: strconv.FormatInt(commentID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
