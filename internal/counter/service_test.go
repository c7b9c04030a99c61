package counter

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryCounterRepo struct {
	mu        sync.Mutex
	views     map[int64]int64
	published map[int64]bool
	titles    map[int64]string
	loads     int
}

func newMemoryCounterRepo() *memoryCounterRepo {
	return &memoryCounterRepo{
		views:     make(map[int64]int64),
		published: make(map[int64]bool),
		titles:    make(map[int64]string),
	}
}

func (r *memoryCounterRepo) IncrementViews(ctx context.Context, articleID int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.published[articleID] {
		return r.views[articleID], false, nil
	}
	r.views[articleID]++
	return r.views[articleID], true, nil
}

func (r *memoryCounterRepo) TopViewed(ctx context.Context, limit int) ([]HotEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	entries := make([]HotEntry, 0, len(r.views))
	for id, views := range r.views {
		if !r.published[id] {
			continue
		}
		entries = append(entries, HotEntry{ArticleID: id, Title: r.titles[id], ViewCount: views})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ViewCount > entries[j].ViewCount })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ttls := TTLs{Detail: time.Minute, List: time.Minute, HotList: time.Minute}
	return NewService(repo, NewCache(client, ttls), slog.New(slog.DiscardHandler))
}

func TestConcurrentIncrementsLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCounterRepo()
	repo.published[1] = true
	svc := newTestService(t, repo)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := svc.IncrementOnView(ctx, 1)
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	views, incremented, err := svc.IncrementOnView(ctx, 1)
	require.NoError(t, err)
	require.True(t, incremented)
	require.Equal(t, int64(n+1), views)
}

func TestUnpublishedArticleNeverCounts(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCounterRepo()
	svc := newTestService(t, repo)

	views, incremented, err := svc.IncrementOnView(ctx, 2)
	require.NoError(t, err)
	require.False(t, incremented)
	require.Zero(t, views)
}

func TestIncrementInvalidatesDetailCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCounterRepo()
	repo.published[1] = true
	svc := newTestService(t, repo)

	type detail struct {
		Views int64 `json:"views"`
	}

	loads := 0
	loader := func(ctx context.Context) (interface{}, error) {
		loads++
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return detail{Views: repo.views[1]}, nil
	}

	var d detail
	require.NoError(t, svc.FetchDetail(ctx, 1, &d, loader))
	require.Equal(t, 1, loads)

	// Cached: no second load.
	require.NoError(t, svc.FetchDetail(ctx, 1, &d, loader))
	require.Equal(t, 1, loads)
	require.Zero(t, d.Views)

	_, _, err := svc.IncrementOnView(ctx, 1)
	require.NoError(t, err)

	// The increment dropped the cached detail.
	require.NoError(t, svc.FetchDetail(ctx, 1, &d, loader))
	require.Equal(t, 2, loads)
	require.Equal(t, int64(1), d.Views)
}

func TestListCacheDropsOnInvalidate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemoryCounterRepo())

	loads := 0
	loader := func(ctx context.Context) (interface{}, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	var titles []string
	require.NoError(t, svc.FetchList(ctx, &titles, loader))
	require.Equal(t, []string{"a", "b"}, titles)
	require.Equal(t, 1, loads)

	require.NoError(t, svc.FetchList(ctx, &titles, loader))
	require.Equal(t, 1, loads)

	require.NoError(t, svc.InvalidateList(ctx))
	require.NoError(t, svc.FetchList(ctx, &titles, loader))
	require.Equal(t, 2, loads)
}

func TestHotListUsesVersionedKey(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCounterRepo()
	repo.published[1] = true
	repo.published[2] = true
	repo.titles[1] = "first"
	repo.titles[2] = "second"
	repo.views[1] = 10
	repo.views[2] = 20
	svc := newTestService(t, repo)

	entries, err := svc.HotList(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].ArticleID)
	require.Equal(t, 1, repo.loads)

	// Cached until the version bumps.
	_, err = svc.HotList(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads)

	require.NoError(t, svc.WarmHotList(ctx, 10))
	require.Equal(t, 2, repo.loads)
}
