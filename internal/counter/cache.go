package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	hotListVersionKey = "articles:hot:version"
	listCacheKey      = "articles:list"
)

// TTLs carries the expiry per cached view.
type TTLs struct {
	Detail  time.Duration
	List    time.Duration
	HotList time.Duration
}

// Cache wraps Redis based caching of article views with versioning controls
// for the hot list. A nil client degrades to pass-through loads.
type Cache struct {
	client *redis.Client
	ttls   TTLs
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttls TTLs) *Cache {
	return &Cache{client: client, ttls: ttls}
}

// DetailKey composes the cache key for one article's detail view.
func DetailKey(articleID int64) string {
	return fmt.Sprintf("article:detail:%d", articleID)
}

// ListKey is the cache key for the unfiltered article listing.
func ListKey() string {
	return listCacheKey
}

// HotListVersion returns the current hot-list version, initialising when
// missing.
func (c *Cache) HotListVersion(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, hotListVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, hotListVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// HotListKey composes the versioned hot-list cache key.
func (c *Cache) HotListKey(ctx context.Context) (string, error) {
	ver, err := c.HotListVersion(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("articles:hot:%d", ver), nil
}

// BumpHotList invalidates every cached hot list by advancing the version.
func (c *Cache) BumpHotList(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, hotListVersionKey).Err()
}

// FetchDetailJSON loads a cached detail view or populates it via the loader.
func (c *Cache) FetchDetailJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	return c.fetchJSON(ctx, key, c.ttl().Detail, dest, loader)
}

// FetchListJSON loads the cached unfiltered listing or populates it via the
// loader.
func (c *Cache) FetchListJSON(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	return c.fetchJSON(ctx, listCacheKey, c.ttl().List, dest, loader)
}

// FetchHotListJSON loads the current versioned hot list or populates it via
// the loader.
func (c *Cache) FetchHotListJSON(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := c.HotListKey(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		key = "articles:hot:0"
	}
	return c.fetchJSON(ctx, key, c.ttl().HotList, dest, loader)
}

func (c *Cache) ttl() TTLs {
	if c == nil {
		return TTLs{}
	}
	return c.ttls
}

func (c *Cache) fetchJSON(ctx context.Context, key string, ttl time.Duration, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("counter: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate deletes the given cache keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
