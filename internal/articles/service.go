package articles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/inkstream-blog/inkstream/internal/counter"
	"github.com/inkstream-blog/inkstream/internal/grants"
	"github.com/inkstream-blog/inkstream/internal/shared"
	"github.com/inkstream-blog/inkstream/internal/visibility"
)

// CommentSweeper removes every comment below an article, replies first,
// including their grants. Satisfied by the comments service; the indirection
// keeps articles free of a dependency on the comments package.
type CommentSweeper interface {
	DeleteForArticle(ctx context.Context, articleID int64) error
}

// Service wraps article business rules.
type Service struct {
	repo     Repository
	engine   *grants.Engine
	policy   *visibility.Policy
	counter  *counter.Service
	sweeper  CommentSweeper
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a Service. The sweeper may be nil when no comment
// store is attached.
func NewService(repo Repository, engine *grants.Engine, policy *visibility.Policy, ctr *counter.Service, sweeper CommentSweeper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		engine:   engine,
		policy:   policy,
		counter:  ctr,
		sweeper:  sweeper,
		logger:   logger,
		validate: shared.NewValidator(),
	}
}

// CreateInput carries a new article submission.
type CreateInput struct {
	Title string `validate:"required,max=255"`
	Body  string `validate:"required"`
}

func (a Article) visibilityView() visibility.Article {
	return visibility.Article{ID: a.ID, AuthorID: a.AuthorID, Published: a.Published()}
}

// Create stores a draft article and grants the author the full capability
// set on it.
func (s *Service) Create(ctx context.Context, p shared.Principal, in CreateInput) (Article, error) {
	if p.IsAnonymous() {
		return Article{}, shared.ErrForbidden
	}
	if err := shared.WrapValidation(s.validate.Struct(in)); err != nil {
		return Article{}, err
	}
	a := Article{Title: in.Title, Body: in.Body, AuthorID: p.ID, Status: StatusDraft}
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return Article{}, fmt.Errorf("articles: create: %w", err)
	}
	a.ID = id
	if ok, err := s.engine.AssignArticleAuthor(ctx, p, id); err != nil {
		return Article{}, err
	} else if !ok {
		s.logger.Warn("author grants incomplete", slog.Int64("article_id", id))
	}
	s.invalidateList(ctx)
	s.logger.Info("article created", slog.Int64("article_id", id), slog.Int64("author_id", p.ID))
	return s.repo.Get(ctx, id)
}

// Get returns the article detail through the cache, counting the view when
// the article is published. Invisible articles report not-found.
func (s *Service) Get(ctx context.Context, p shared.Principal, id int64) (DetailView, error) {
	var view DetailView
	err := s.counter.FetchDetail(ctx, id, &view, func(ctx context.Context) (interface{}, error) {
		a, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return toDetailView(a), nil
	})
	if err != nil {
		return DetailView{}, err
	}
	visible, err := s.policy.CanViewArticle(ctx, p, visibility.Article{ID: view.ID, AuthorID: view.AuthorID, Published: view.Status == StatusPublished})
	if err != nil {
		return DetailView{}, err
	}
	if !visible {
		return DetailView{}, shared.ErrNotFound
	}
	if view.Status == StatusPublished {
		views, incremented, err := s.counter.IncrementOnView(ctx, id)
		if err != nil {
			return DetailView{}, err
		}
		if incremented {
			view.ViewCount = views
		}
	}
	return view, nil
}

// UpdateInput carries an article edit.
type UpdateInput struct {
	Title string `validate:"required,max=255"`
	Body  string `validate:"required"`
}

// Update edits title and body. Authors, admins and edit capability holders
// may edit; everyone else gets forbidden, or not-found when they cannot
// even see the article.
func (s *Service) Update(ctx context.Context, p shared.Principal, id int64, in UpdateInput) (Article, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Article{}, err
	}
	if err := s.gate(ctx, p, a, s.policy.CanEditArticle); err != nil {
		return Article{}, err
	}
	if err := shared.WrapValidation(s.validate.Struct(in)); err != nil {
		return Article{}, err
	}
	a.Title = in.Title
	a.Body = in.Body
	if err := s.repo.Update(ctx, a); err != nil {
		return Article{}, fmt.Errorf("articles: update: %w", err)
	}
	// Invalidate only after the store mutation committed.
	if err := s.counter.InvalidateDetail(ctx, id); err != nil {
		s.logger.Warn("invalidate detail cache", slog.Int64("article_id", id), slog.Any("error", err))
	}
	s.invalidateList(ctx)
	return s.repo.Get(ctx, id)
}

// Publish moves a draft to published.
func (s *Service) Publish(ctx context.Context, p shared.Principal, id int64) (Article, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Article{}, err
	}
	if err := s.gate(ctx, p, a, s.policy.CanPublishArticle); err != nil {
		return Article{}, err
	}
	if err := s.repo.SetStatus(ctx, id, StatusPublished); err != nil {
		return Article{}, fmt.Errorf("articles: publish: %w", err)
	}
	if err := s.counter.InvalidateDetail(ctx, id); err != nil {
		s.logger.Warn("invalidate detail cache", slog.Int64("article_id", id), slog.Any("error", err))
	}
	s.invalidateList(ctx)
	s.logger.Info("article published", slog.Int64("article_id", id), slog.Int64("actor_id", p.ID))
	return s.repo.Get(ctx, id)
}

// Delete removes the article with explicit cascade: comments and their
// grants first, then the row, then the article's own grants, then the
// cached detail.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, p, a, s.policy.CanDeleteArticle); err != nil {
		return err
	}
	if s.sweeper != nil {
		if err := s.sweeper.DeleteForArticle(ctx, id); err != nil {
			return fmt.Errorf("articles: sweep comments: %w", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("articles: delete: %w", err)
	}
	if _, err := s.engine.CleanupObject(ctx, grants.ArticleRef(id)); err != nil {
		return fmt.Errorf("articles: cleanup grants: %w", err)
	}
	if err := s.counter.InvalidateDetail(ctx, id); err != nil {
		s.logger.Warn("invalidate detail cache", slog.Int64("article_id", id), slog.Any("error", err))
	}
	s.invalidateList(ctx)
	s.logger.Info("article deleted", slog.Int64("article_id", id), slog.Int64("actor_id", p.ID))
	return nil
}

// List returns every article the principal may see: published ones, their
// own, and drafts they hold view_draft on. The predicate is the same one the
// detail path uses. The unfiltered listing is cached; visibility filtering
// always runs live so a cached entry cannot leak across principals.
func (s *Service) List(ctx context.Context, p shared.Principal) ([]Article, error) {
	var all []Article
	err := s.counter.FetchList(ctx, &all, func(ctx context.Context) (interface{}, error) {
		return s.repo.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	visible := make([]Article, 0, len(all))
	for _, a := range all {
		ok, err := s.policy.CanViewArticle(ctx, p, a.visibilityView())
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// GrantEditor gives another user the co-editor capability subset. Only the
// author, an admin, or a manage capability holder may delegate.
func (s *Service) GrantEditor(ctx context.Context, actor shared.Principal, editorID, articleID int64) error {
	a, err := s.repo.Get(ctx, articleID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, actor, a, s.policy.CanDeleteArticle); err != nil {
		return err
	}
	editor := shared.Principal{ID: editorID, Kind: shared.PrincipalUser, Authenticated: true}
	ok, err := s.engine.AssignArticleEditor(ctx, editor, articleID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewValidationError("editor grants incomplete")
	}
	return nil
}

// Transfer hands every capability the current owner holds to another user.
func (s *Service) Transfer(ctx context.Context, actor shared.Principal, from, to shared.Principal, articleID int64) error {
	a, err := s.repo.Get(ctx, articleID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, actor, a, s.policy.CanDeleteArticle); err != nil {
		return err
	}
	ok, err := s.engine.TransferOwnership(ctx, from, to, grants.ArticleRef(articleID), nil)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewValidationError("ownership transfer incomplete")
	}
	return nil
}

func (s *Service) invalidateList(ctx context.Context) {
	if err := s.counter.InvalidateList(ctx); err != nil {
		s.logger.Warn("invalidate list cache", slog.Any("error", err))
	}
}

type articlePredicate func(context.Context, shared.Principal, visibility.Article) (bool, error)

// gate applies the two-tier not-found/forbidden signal for a mutation.
func (s *Service) gate(ctx context.Context, p shared.Principal, a Article, allowed articlePredicate) error {
	view := a.visibilityView()
	visible, err := s.policy.CanViewArticle(ctx, p, view)
	if err != nil {
		return err
	}
	permitted, err := allowed(ctx, p, view)
	if err != nil {
		return err
	}
	return visibility.Gate(visible, permitted)
}
