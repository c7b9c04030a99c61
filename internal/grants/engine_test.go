package grants

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkstream-blog/inkstream/internal/shared"
)

func testUser(id int64) shared.Principal {
	return shared.Principal{ID: id, Kind: shared.PrincipalUser, Authenticated: true}
}

func testAdmin(id int64) shared.Principal {
	p := testUser(id)
	p.IsAdmin = true
	return p
}

func newTestEngine() *Engine {
	return NewEngine(NewMemoryStore(), nil, slog.New(slog.DiscardHandler))
}

func TestGrantIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	alice := testUser(1)
	obj := ArticleRef(10)

	ok, err := engine.Grant(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, ok)

	// Granting again must be a no-op success.
	ok, err = engine.Grant(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, ok)

	caps, err := engine.ListCapabilities(ctx, alice, obj)
	require.NoError(t, err)
	require.Equal(t, []string{CapArticleEdit}, caps)

	has, err := engine.Check(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, has)
}

func TestGrantRejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()

	ok, err := engine.Grant(ctx, shared.Anonymous(), CapArticleEdit, ArticleRef(10))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.Grant(ctx, testUser(1), CapArticleEdit, ObjectRef{})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.Grant(ctx, testUser(1), "", ArticleRef(10))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeMissingGrantIsSuccess(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	alice := testUser(1)
	obj := ArticleRef(10)

	ok, err := engine.Revoke(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.Revoke(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckUnauthenticatedAlwaysFalse(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	obj := ArticleRef(10)

	// A grant on record for an id must not leak to an unauthenticated
	// principal carrying the same id.
	_, err := engine.Grant(ctx, testUser(1), CapArticleEdit, obj)
	require.NoError(t, err)

	ghost := shared.Principal{ID: 1, Kind: shared.PrincipalUser}
	has, err := engine.Check(ctx, ghost, CapArticleEdit, obj)
	require.NoError(t, err)
	require.False(t, has)

	caps, err := engine.ListCapabilities(ctx, ghost, obj)
	require.NoError(t, err)
	require.Empty(t, caps)
}

func TestCheckAdminShortCircuit(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	admin := testAdmin(99)

	has, err := engine.Check(ctx, admin, CapCommentModerate, CommentRef(123))
	require.NoError(t, err)
	require.True(t, has)
}

func TestCheckThroughGroupMembership(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	obj := ArticleRef(10)

	editors := shared.Principal{ID: 7, Kind: shared.PrincipalGroup, Authenticated: true}
	ok, err := engine.Grant(ctx, editors, CapArticleViewDraft, obj)
	require.NoError(t, err)
	require.True(t, ok)

	member := testUser(2)
	member.GroupIDs = []int64{7}
	has, err := engine.Check(ctx, member, CapArticleViewDraft, obj)
	require.NoError(t, err)
	require.True(t, has)

	outsider := testUser(3)
	has, err = engine.Check(ctx, outsider, CapArticleViewDraft, obj)
	require.NoError(t, err)
	require.False(t, has)
}

func TestBulkGrantReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	alice := testUser(1)
	obj := ArticleRef(10)

	ok, err := engine.BulkGrant(ctx, alice, []string{CapArticleEdit, ""}, obj)
	require.NoError(t, err)
	require.False(t, ok)

	// The valid grant stuck: best-effort, no rollback.
	has, err := engine.Check(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, has)
}

func TestTransferOwnershipFullSet(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	alice := testUser(1)
	bob := testUser(2)
	obj := ArticleRef(10)

	ok, err := engine.AssignArticleAuthor(ctx, alice, obj.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.TransferOwnership(ctx, alice, bob, obj, nil)
	require.NoError(t, err)
	require.True(t, ok)

	for _, capability := range ArticleCapabilities() {
		has, err := engine.Check(ctx, bob, capability, obj)
		require.NoError(t, err)
		require.True(t, has, capability)

		has, err = engine.Check(ctx, alice, capability, obj)
		require.NoError(t, err)
		require.False(t, has, capability)
	}
}

func TestTransferOwnershipFilteredSet(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	alice := testUser(1)
	bob := testUser(2)
	obj := ArticleRef(10)

	_, err := engine.AssignArticleAuthor(ctx, alice, obj.ID)
	require.NoError(t, err)

	ok, err := engine.TransferOwnership(ctx, alice, bob, obj, []string{CapArticleEdit})
	require.NoError(t, err)
	require.True(t, ok)

	has, err := engine.Check(ctx, bob, CapArticleEdit, obj)
	require.NoError(t, err)
	require.True(t, has)

	// Alice keeps what was not transferred.
	has, err = engine.Check(ctx, alice, CapArticleManage, obj)
	require.NoError(t, err)
	require.True(t, has)
	has, err = engine.Check(ctx, alice, CapArticleEdit, obj)
	require.NoError(t, err)
	require.False(t, has)
}

type failingUpsertStore struct {
	*MemoryStore
	failing bool
}

func (s *failingUpsertStore) Upsert(ctx context.Context, g Grant) error {
	if s.failing {
		return errors.New("storage unreachable")
	}
	return s.MemoryStore.Upsert(ctx, g)
}

func TestTransferOwnershipGrantPhaseFailureKeepsSource(t *testing.T) {
	ctx := context.Background()
	store := &failingUpsertStore{MemoryStore: NewMemoryStore()}
	engine := NewEngine(store, nil, slog.New(slog.DiscardHandler))
	alice := testUser(1)
	bob := testUser(2)
	obj := ArticleRef(10)

	_, err := engine.AssignArticleAuthor(ctx, alice, obj.ID)
	require.NoError(t, err)

	store.failing = true
	ok, err := engine.TransferOwnership(ctx, alice, bob, obj, nil)
	require.Error(t, err)
	require.False(t, ok)

	// The revoke phase never ran: alice keeps every grant.
	store.failing = false
	for _, capability := range ArticleCapabilities() {
		has, err := engine.Check(ctx, alice, capability, obj)
		require.NoError(t, err)
		require.True(t, has, capability)
	}
}

func TestCleanupObjectRemovesEveryGrant(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	obj := CommentRef(55)
	alice := testUser(1)
	bob := testUser(2)

	_, err := engine.AssignCommentAuthor(ctx, alice, obj.ID)
	require.NoError(t, err)
	_, err = engine.AssignCommentModerator(ctx, bob, obj.ID)
	require.NoError(t, err)

	ok, err := engine.CleanupObject(ctx, obj)
	require.NoError(t, err)
	require.True(t, ok)

	for _, p := range []shared.Principal{alice, bob} {
		caps, err := engine.ListCapabilities(ctx, p, obj)
		require.NoError(t, err)
		require.Empty(t, caps)
	}
}

func TestListPrincipalsWithCapability(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()
	obj := ArticleRef(10)

	_, err := engine.Grant(ctx, testUser(1), CapArticleEdit, obj)
	require.NoError(t, err)
	_, err = engine.Grant(ctx, testUser(2), CapArticleEdit, obj)
	require.NoError(t, err)
	_, err = engine.Grant(ctx, testUser(3), CapArticlePublish, obj)
	require.NoError(t, err)

	principals, err := engine.ListPrincipalsWithCapability(ctx, CapArticleEdit, obj)
	require.NoError(t, err)
	require.Len(t, principals, 2)
}
