package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// HotEntry is one row of the most-viewed listing.
type HotEntry struct {
	ArticleID int64  `json:"article_id"`
	Title     string `json:"title"`
	ViewCount int64  `json:"view_count"`
}

// Repository is the persistence surface the counter needs. IncrementViews
// must be a single atomic statement against the backing store, never a
// read-then-write in application code, and must only advance the counter
// for published articles.
type Repository interface {
	IncrementViews(ctx context.Context, articleID int64) (viewCount int64, incremented bool, err error)
	TopViewed(ctx context.Context, limit int) ([]HotEntry, error)
}

// Service provides race-safe view counting with read-through caching.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs a Service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// IncrementOnView advances the article's view counter. The counter only
// moves for published articles; incremented reports whether it did. The
// cached detail view is invalidated after the store mutation commits so a
// racing reader cannot re-cache the stale count indefinitely.
func (s *Service) IncrementOnView(ctx context.Context, articleID int64) (int64, bool, error) {
	views, incremented, err := s.repo.IncrementViews(ctx, articleID)
	if err != nil {
		return 0, false, fmt.Errorf("counter: increment views: %w", err)
	}
	if !incremented {
		return views, false, nil
	}
	if err := s.cache.Invalidate(ctx, DetailKey(articleID)); err != nil {
		s.logger.Warn("invalidate detail cache",
			slog.Int64("article_id", articleID),
			slog.Any("error", err))
	}
	return views, true, nil
}

// FetchDetail loads the article detail view through the cache, collapsing
// concurrent misses for the same article into one loader call.
func (s *Service) FetchDetail(ctx context.Context, articleID int64, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key := DetailKey(articleID)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		var payload interface{}
		err := s.cache.FetchDetailJSON(ctx, key, &payload, loader)
		return payload, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return remarshal(res.Val, dest)
	}
}

// InvalidateDetail drops the cached detail view after a mutation.
func (s *Service) InvalidateDetail(ctx context.Context, articleID int64) error {
	return s.cache.Invalidate(ctx, DetailKey(articleID))
}

// FetchList loads the unfiltered article listing through the cache. Callers
// apply per-principal visibility filtering on the result.
func (s *Service) FetchList(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	return s.cache.FetchListJSON(ctx, dest, loader)
}

// InvalidateList drops the cached listing after any article mutation.
func (s *Service) InvalidateList(ctx context.Context) error {
	return s.cache.Invalidate(ctx, ListKey())
}

// HotList returns the most-viewed published articles through the versioned
// hot-list cache.
func (s *Service) HotList(ctx context.Context, limit int) ([]HotEntry, error) {
	var entries []HotEntry
	err := s.cache.FetchHotListJSON(ctx, &entries, func(ctx context.Context) (interface{}, error) {
		return s.repo.TopViewed(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WarmHotList refreshes the hot list: bump the version so stale keys expire
// unused, then populate the new key.
func (s *Service) WarmHotList(ctx context.Context, limit int) error {
	if err := s.cache.BumpHotList(ctx); err != nil {
		return err
	}
	_, err := s.HotList(ctx, limit)
	return err
}

func remarshal(value, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
