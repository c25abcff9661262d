package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryURLCacheIsBounded(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryURLCache(2)
	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), CachedURL{URL: "u"})
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "k0")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "k4")
	assert.True(t, ok)
}

func TestRedisURLCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisURLCache(client, nil)

	_, ok := c.Get(ctx, "proofs/p1.png")
	assert.False(t, ok)

	want := CachedURL{URL: "https://signed.example/p1", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	c.Set(ctx, "proofs/p1.png", want)
	got, ok := c.Get(ctx, "proofs/p1.png")
	require.True(t, ok)
	assert.Equal(t, want.URL, got.URL)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	ttl := mr.TTL("signed-url:proofs/p1.png")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	c.Set(ctx, "expired", CachedURL{URL: "x", ExpiresAt: time.Now().Add(-time.Second)})
	assert.False(t, mr.Exists("signed-url:expired"))
}
