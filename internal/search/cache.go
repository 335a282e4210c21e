// internal/search/cache.go
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webhook-search/internal/common/database"
	"webhook-search/internal/normalize"
)

const DefaultCachePrefix = "search:view:"

// Cache stores normalized views by cache key.
type Cache interface {
	Get(ctx context.Context, key string) (*normalize.View, bool, error)
	Set(ctx context.Context, key string, view *normalize.View) error
}

// RedisCache keeps views as JSON strings with a fixed TTL.
type RedisCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *database.RedisClient, ttl time.Duration, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	return &RedisCache{redis: client, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*normalize.View, bool, error) {
	raw, found, err := c.redis.Get(ctx, c.prefix+key)
	if err != nil || !found {
		return nil, false, err
	}
	var view normalize.View
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, false, fmt.Errorf("decode cached view: %w", err)
	}
	return &view, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, view *normalize.View) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	return c.redis.Set(ctx, c.prefix+key, raw, c.ttl)
}

// CacheKey hashes the case-folded, whitespace-collapsed query.
func CacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
