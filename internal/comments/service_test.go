package comments

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inkstream-blog/inkstream/internal/grants"
	"github.com/inkstream-blog/inkstream/internal/moderation"
	"github.com/inkstream-blog/inkstream/internal/shared"
	"github.com/inkstream-blog/inkstream/internal/visibility"
)

type memoryCommentRepo struct {
	mu       sync.Mutex
	comments map[int64]Comment
	nextID   int64
}

func newMemoryCommentRepo() *memoryCommentRepo {
	return &memoryCommentRepo{comments: make(map[int64]Comment)}
}

func (r *memoryCommentRepo) Create(ctx context.Context, c Comment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.comments[c.ID] = c
	return c.ID, nil
}

func (r *memoryCommentRepo) Get(ctx context.Context, id int64) (Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return Comment{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryCommentRepo) SetStatus(ctx context.Context, id int64, status moderation.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.Status = status
	r.comments[id] = c
	return nil
}

func (r *memoryCommentRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

func (r *memoryCommentRepo) ListForArticle(ctx context.Context, articleID int64) ([]Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Comment
	for _, c := range r.comments {
		if c.ArticleID == articleID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryCommentRepo) ListReplies(ctx context.Context, parentID int64) ([]Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Comment
	for _, c := range r.comments {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeDirectory struct {
	articles map[int64]visibility.Article
}

func (d *fakeDirectory) Find(ctx context.Context, articleID int64) (visibility.Article, error) {
	a, ok := d.articles[articleID]
	if !ok {
		return visibility.Article{}, shared.ErrNotFound
	}
	return a, nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]struct{})
	}
	if _, dup := f.seen[key]; dup {
		return shared.ErrIdempotencyConflict
	}
	f.seen[key] = struct{}{}
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, key)
	return nil
}

func (f *fakeIdempotency) holds(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

type fixture struct {
	svc    *Service
	repo   *memoryCommentRepo
	engine *grants.Engine
	idem   *fakeIdempotency
}

func user(id int64) shared.Principal {
	return shared.Principal{ID: id, Kind: shared.PrincipalUser, Authenticated: true}
}

func staff(id int64) shared.Principal {
	p := user(id)
	p.IsStaff = true
	return p
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := grants.NewEngine(grants.NewMemoryStore(), nil, slog.New(slog.DiscardHandler))
	policy := visibility.NewPolicy(engine)
	filter := moderation.NewFilter(moderation.Config{})
	repo := newMemoryCommentRepo()
	dir := &fakeDirectory{articles: map[int64]visibility.Article{
		1: {ID: 1, AuthorID: 100, Published: true},
		2: {ID: 2, AuthorID: 100, Published: false},
	}}
	idem := &fakeIdempotency{}
	svc := NewService(repo, dir, engine, filter, policy, idem, nil, slog.New(slog.DiscardHandler))
	return &fixture{svc: svc, repo: repo, engine: engine, idem: idem}
}

func TestSubmitCleanContentAutoApproved(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := user(5)

	res, err := fx.svc.Submit(ctx, alice, SubmitInput{ArticleID: 1, Body: "hello world"})
	require.NoError(t, err)
	require.Equal(t, moderation.StatusApproved, res.Comment.Status)
	require.Equal(t, "hello world", res.Comment.Body)
	require.Empty(t, res.Issues)

	// The author received their capability bundle on the new comment.
	has, err := fx.engine.Check(ctx, alice, grants.CapCommentManage, grants.CommentRef(res.Comment.ID))
	require.NoError(t, err)
	require.True(t, has)
}

func TestSubmitBlockedTermHeldForReview(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := user(5)

	res, err := fx.svc.Submit(ctx, alice, SubmitInput{ArticleID: 1, Body: "you should buy cheap watches today"})
	require.NoError(t, err)
	require.Equal(t, moderation.StatusPending, res.Comment.Status)
	require.Equal(t, "you should *** today", res.Comment.Body)
	require.Contains(t, res.Issues, moderation.IssueManualReview)
}

func TestSubmitInvalidContentRejected(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Submit(ctx, user(5), SubmitInput{ArticleID: 1, Body: "   "})
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), moderation.IssueContentRequired)

	_, err = fx.svc.Submit(ctx, user(5), SubmitInput{ArticleID: 1, Body: strings.Repeat("a", 1001)})
	require.True(t, shared.IsValidation(err))
}

func TestSubmitAnonymousForbidden(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Submit(ctx, shared.Anonymous(), SubmitInput{ArticleID: 1, Body: "hello"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSubmitToInvisibleArticleReportsNotFound(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	// Article 2 is an unpublished draft: a stranger must not learn it
	// exists.
	_, err := fx.svc.Submit(ctx, user(5), SubmitInput{ArticleID: 2, Body: "hello"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSubmitReplyValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := user(5)
	bob := user(6)

	parent, err := fx.svc.Submit(ctx, alice, SubmitInput{ArticleID: 1, Body: "parent comment"})
	require.NoError(t, err)

	reply, err := fx.svc.Submit(ctx, bob, SubmitInput{ArticleID: 1, ParentID: &parent.Comment.ID, Body: "a reply"})
	require.NoError(t, err)
	require.Equal(t, parent.Comment.ID, *reply.Comment.ParentID)

	// A parent on another article is rejected.
	wrong := parent.Comment.ID
	fx.repo.mu.Lock()
	c := fx.repo.comments[wrong]
	c.ArticleID = 2
	fx.repo.comments[wrong] = c
	fx.repo.mu.Unlock()
	_, err = fx.svc.Submit(ctx, bob, SubmitInput{ArticleID: 1, ParentID: &wrong, Body: "bad reply"})
	require.True(t, shared.IsValidation(err))
}

func TestSubmitIdempotencyKeyRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	key := uuid.NewString()

	_, err := fx.svc.Submit(ctx, user(5), SubmitInput{ArticleID: 1, Body: "hello", IdempotencyKey: key})
	require.NoError(t, err)

	_, err = fx.svc.Submit(ctx, user(5), SubmitInput{ArticleID: 1, Body: "hello", IdempotencyKey: key})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestSubmitRejectionReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := user(5)
	key := uuid.NewString()

	_, err := fx.svc.Submit(ctx, alice, SubmitInput{ArticleID: 1, Body: "   ", IdempotencyKey: key})
	require.True(t, shared.IsValidation(err))
	require.False(t, fx.idem.holds(key))

	// The same key works once the content passes.
	res, err := fx.svc.Submit(ctx, alice, SubmitInput{ArticleID: 1, Body: "hello again", IdempotencyKey: key})
	require.NoError(t, err)
	require.Equal(t, moderation.StatusApproved, res.Comment.Status)
	require.True(t, fx.idem.holds(key))
}

type failingCreateRepo struct {
	*memoryCommentRepo
}

func (r *failingCreateRepo) Create(ctx context.Context, c Comment) (int64, error) {
	return 0, errors.New("insert failed")
}

func TestSubmitStoreFailureReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	engine := grants.NewEngine(grants.NewMemoryStore(), nil, slog.New(slog.DiscardHandler))
	policy := visibility.NewPolicy(engine)
	dir := &fakeDirectory{articles: map[int64]visibility.Article{
		1: {ID: 1, AuthorID: 100, Published: true},
	}}
	idem := &fakeIdempotency{}
	repo := &failingCreateRepo{memoryCommentRepo: newMemoryCommentRepo()}
	svc := NewService(repo, dir, engine, moderation.NewFilter(moderation.Config{}), policy, idem, nil, slog.New(slog.DiscardHandler))

	key := uuid.NewString()
	_, err := svc.Submit(ctx, user(5), SubmitInput{ArticleID: 1, Body: "hello", IdempotencyKey: key})
	require.Error(t, err)
	require.False(t, idem.holds(key))
}

func submitPending(t *testing.T, fx *fixture, author shared.Principal) Comment {
	t.Helper()
	res, err := fx.svc.Submit(context.Background(), author, SubmitInput{ArticleID: 1, Body: "free money for all"})
	require.NoError(t, err)
	require.Equal(t, moderation.StatusPending, res.Comment.Status)
	return res.Comment
}

func TestPendingCommentListingVisibility(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := user(5)
	pending := submitPending(t, fx, alice)

	_, err := fx.svc.Submit(ctx, user(6), SubmitInput{ArticleID: 1, Body: "a normal comment"})
	require.NoError(t, err)

	ids := func(list []Comment) []int64 {
		out := make([]int64, 0, len(list))
		for _, c := range list {
			out = append(out, c.ID)
		}
		return out
	}

	// Anonymous and unrelated users see only the approved comment.
	list, err := fx.svc.ListForArticle(ctx, shared.Anonymous(), 1)
	require.NoError(t, err)
	require.NotContains(t, ids(list), pending.ID)

	list, err = fx.svc.ListForArticle(ctx, user(7), 1)
	require.NoError(t, err)
	require.NotContains(t, ids(list), pending.ID)

	// The author and a moderator see it.
	list, err = fx.svc.ListForArticle(ctx, alice, 1)
	require.NoError(t, err)
	require.Contains(t, ids(list), pending.ID)

	list, err = fx.svc.ListForArticle(ctx, staff(9), 1)
	require.NoError(t, err)
	require.Contains(t, ids(list), pending.ID)
}

func TestModerateNotFoundVersusForbidden(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	pending := submitPending(t, fx, user(5))

	// An ordinary user cannot see the pending comment, so moderation
	// reports not-found rather than forbidden.
	_, err := fx.svc.Moderate(ctx, user(6), pending.ID, moderation.StatusApproved)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// Once approved the comment is visible, so denial becomes forbidden.
	mod := staff(9)
	approved, err := fx.svc.Moderate(ctx, mod, pending.ID, moderation.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, moderation.StatusApproved, approved.Status)

	_, err = fx.svc.Moderate(ctx, user(6), pending.ID, moderation.StatusRejected)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestModerateRejectsNoOpTransition(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	pending := submitPending(t, fx, user(5))

	_, err := fx.svc.Moderate(ctx, staff(9), pending.ID, moderation.StatusPending)
	require.True(t, shared.IsValidation(err))
}

func TestModerateViaCapabilityGrant(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	pending := submitPending(t, fx, user(5))

	mod := user(7)
	_, err := fx.engine.Grant(ctx, mod, grants.CapCommentModerate, grants.CommentRef(pending.ID))
	require.NoError(t, err)

	approved, err := fx.svc.Moderate(ctx, mod, pending.ID, moderation.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, moderation.StatusApproved, approved.Status)
}

func TestDeleteCascadesRepliesAndGrants(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := user(5)
	bob := user(6)

	parent, err := fx.svc.Submit(ctx, alice, SubmitInput{ArticleID: 1, Body: "parent"})
	require.NoError(t, err)
	reply, err := fx.svc.Submit(ctx, bob, SubmitInput{ArticleID: 1, ParentID: &parent.Comment.ID, Body: "reply"})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, alice, parent.Comment.ID))

	_, err = fx.repo.Get(ctx, parent.Comment.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = fx.repo.Get(ctx, reply.Comment.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// Grants on both nodes are gone.
	caps, err := fx.engine.ListCapabilities(ctx, alice, grants.CommentRef(parent.Comment.ID))
	require.NoError(t, err)
	require.Empty(t, caps)
	caps, err = fx.engine.ListCapabilities(ctx, bob, grants.CommentRef(reply.Comment.ID))
	require.NoError(t, err)
	require.Empty(t, caps)
}

func TestDeleteForArticleRemovesEverything(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	first, err := fx.svc.Submit(ctx, user(5), SubmitInput{ArticleID: 1, Body: "first"})
	require.NoError(t, err)
	_, err = fx.svc.Submit(ctx, user(6), SubmitInput{ArticleID: 1, ParentID: &first.Comment.ID, Body: "reply"})
	require.NoError(t, err)
	_, err = fx.svc.Submit(ctx, user(7), SubmitInput{ArticleID: 1, Body: "second"})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteForArticle(ctx, 1))

	remaining, err := fx.repo.ListForArticle(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, remaining)
}
