package storage

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedURL is a signed URL and the moment it stops working.
type CachedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// URLCache remembers signed URLs per object path. Caching only saves signing
// calls; callers must always be ready to mint a fresh URL.
type URLCache interface {
	Get(ctx context.Context, key string) (CachedURL, bool)
	Set(ctx context.Context, key string, v CachedURL)
}

// DefaultURLCacheSize bounds the in-process cache.
const DefaultURLCacheSize = 512

// MemoryURLCache is a bounded in-process LRU.
type MemoryURLCache struct {
	entries *lru.Cache[string, CachedURL]
}

// NewMemoryURLCache returns an LRU holding at most size entries.
func NewMemoryURLCache(size int) *MemoryURLCache {
	if size <= 0 {
		size = DefaultURLCacheSize
	}
	entries, _ := lru.New[string, CachedURL](size)
	return &MemoryURLCache{entries: entries}
}

// Get implements URLCache.
func (m *MemoryURLCache) Get(_ context.Context, key string) (CachedURL, bool) {
	return m.entries.Get(key)
}

// Set implements URLCache.
func (m *MemoryURLCache) Set(_ context.Context, key string, v CachedURL) {
	m.entries.Add(key, v)
}

// Len returns the number of cached entries.
func (m *MemoryURLCache) Len() int { return m.entries.Len() }

// RedisURLCache shares signed URLs between processes. Entries expire in
// Redis together with the URL.
type RedisURLCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisURLCache stores entries under "signed-url:<path>".
func NewRedisURLCache(client *redis.Client, logger *zap.Logger) *RedisURLCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisURLCache{client: client, prefix: "signed-url:", logger: logger}
}

// Get implements URLCache. Redis errors count as a miss.
func (r *RedisURLCache) Get(ctx context.Context, key string) (CachedURL, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("signed url cache read failed", zap.String("key", key), zap.Error(err))
		}
		return CachedURL{}, false
	}
	var v CachedURL
	if err := json.Unmarshal(raw, &v); err != nil {
		return CachedURL{}, false
	}
	return v, true
}

// Set implements URLCache. Already-expired entries are not stored.
func (r *RedisURLCache) Set(ctx context.Context, key string, v CachedURL) {
	ttl := time.Until(v.ExpiresAt)
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		r.logger.Warn("signed url cache write failed", zap.String("key", key), zap.Error(err))
	}
}
