// Package redis connects the optional Redis instance used to share signed
// URLs between server processes.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options selects the Redis instance. An empty Addr disables Redis.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings Redis. It returns (nil, nil) when opts.Addr is
// empty so callers can fall back to an in-process cache.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", opts.Addr))
	return rdb, nil
}
