// Package cache memoises search results in Redis. Identical queries within
// the TTL are served from cache, and concurrent identical misses collapse
// into a single execution.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/elchin-rustamov/courtsearch/internal/searcher"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	pkgredis "github.com/elchin-rustamov/courtsearch/pkg/redis"
)

const keyPrefix = "search:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, q searcher.Query) (*searcher.Result, bool) {
	key := buildKey(q)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result searcher.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, q searcher.Query, result *searcher.Result) {
	key := buildKey(q)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes and caches one. The
// second return value reports whether the cache served the result.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q searcher.Query,
	computeFn func() (*searcher.Result, error),
) (*searcher.Result, bool, error) {
	if result, ok := c.Get(ctx, q); ok {
		return result, true, nil
	}
	key := buildKey(q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, q); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*searcher.Result), false, nil
}

// Invalidate drops every cached search result. Called after any ingestion
// or deletion, since a new document can change any query's answer.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("search cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey derives a stable key from the folded query tokens, the sorted
// filter pairs, and the limit. Token order does not change the key.
func buildKey(q searcher.Query) string {
	tokens := textnorm.Tokenize(q.Text)
	sort.Strings(tokens)

	filters := make([]string, 0, len(q.Filters))
	for field, value := range q.Filters {
		filters = append(filters, field+"="+textnorm.Fold(value))
	}
	sort.Strings(filters)

	raw := fmt.Sprintf("%s|%s|limit=%d",
		strings.Join(tokens, ","), strings.Join(filters, "&"), q.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
