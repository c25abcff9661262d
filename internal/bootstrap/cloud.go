// Package bootstrap opens the optional cloud backends shared by the server
// and the migrate command.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campus-dues/backend/config"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/database"
	"github.com/campus-dues/backend/pkg/mongodb"
)

// OpenCloudStore connects the cloud document store named by kind. It returns
// a nil backend for config.CloudStoreNone. The returned close func is never nil.
func OpenCloudStore(ctx context.Context, cfg *config.Config, kind string, logger *zap.Logger) (store.Backend, func(), error) {
	switch kind {
	case config.CloudStoreNone:
		return nil, func() {}, nil
	case config.CloudStorePostgres:
		pool, err := database.NewPostgresPool(ctx, database.PoolOptions{
			DSN:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			ApplicationName: "campus-dues",
		}, logger)
		if err != nil {
			return nil, func() {}, fmt.Errorf("postgres: %w", err)
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, func() {}, fmt.Errorf("postgres migrate: %w", err)
		}
		return store.NewPostgresBackend(pool), pool.Close, nil
	case config.CloudStoreMongo:
		db, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			return nil, func() {}, fmt.Errorf("mongo: %w", err)
		}
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect", zap.Error(err))
			}
		}
		return store.NewMongoBackend(db), closeFn, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown cloud store %q", kind)
	}
}
