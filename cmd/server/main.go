// Package main runs the campus dues HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campus-dues/backend/config"
	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/internal/bootstrap"
	"github.com/campus-dues/backend/internal/events"
	"github.com/campus-dues/backend/internal/middleware"
	"github.com/campus-dues/backend/internal/objects"
	"github.com/campus-dues/backend/internal/officers"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/payments"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/internal/users"
	"github.com/campus-dues/backend/pkg/redis"
	"github.com/campus-dues/backend/pkg/response"
	"github.com/campus-dues/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	local := store.NewFileBackend(cfg.Store.DataFile, logger)
	cloud, closeCloud, err := bootstrap.OpenCloudStore(ctx, cfg, cfg.Store.CloudStore, logger)
	if err != nil {
		// The local file keeps the service up without its cloud store.
		logger.Error("cloud store unavailable; using local file only", zap.String("kind", cfg.Store.CloudStore), zap.Error(err))
		cloud = nil
	}
	defer closeCloud()
	db := store.NewMirrored(local, cloud, logger)
	logger.Info("document store ready", zap.String("backend", db.Name()), zap.String("data_file", local.Path()))

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Warn("redis disabled", zap.Error(err))
		rdb = nil
	}
	var urlCache storage.URLCache = storage.NewMemoryURLCache(cfg.Uploads.URLCacheSize)
	if rdb != nil {
		defer rdb.Close()
		urlCache = storage.NewRedisURLCache(rdb, logger)
	}

	var bucket storage.ObjectStore
	if cfg.AWS.Bucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.Bucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			bucket = s3Client
		}
	}
	localDisk := storage.NewLocalDisk(cfg.Uploads.Dir, cfg.Uploads.URLPrefix)
	blobs := storage.NewBlobs(bucket, localDisk, urlCache, logger)
	urlTTL := time.Duration(cfg.AWS.PresignExpireMinutes) * time.Minute

	var verifier auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.ExpireHours)
	} else {
		logger.Warn("JWT_SECRET not set; authentication disabled and every caller is treated as an officer")
	}

	orgRegistry := organizations.NewRegistry(db, logger)
	orgHandler := organizations.NewHandler(orgRegistry)

	eventRegistry := events.NewRegistry(db, orgRegistry, blobs, logger)
	eventHandler := events.NewHandler(eventRegistry, cfg.Uploads.MaxBytes(), urlTTL)

	paymentService := payments.NewService(db, orgRegistry, eventRegistry, blobs, logger)
	paymentHandler := payments.NewHandler(paymentService, cfg.Uploads.MaxBytes())

	officerRegistry := officers.NewRegistry(db, orgRegistry, logger)
	officerHandler := officers.NewHandler(officerRegistry)

	userHandler := users.NewHandler(users.NewRepository(db))
	objectHandler := objects.NewHandler(blobs, urlTTL)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "store": db.Name(), "objectStorage": blobs.HasCloud()})
	})
	// Only QR codes are public; proofs go through /api/payments/:id/proof.
	router.Static(localDisk.FolderURL("qr"), localDisk.FolderDir("qr"))

	api := router.Group("/api")
	api.Use(middleware.Authenticate(verifier, cfg.Auth.OfficerRole, logger))
	{
		api.GET("/orgs", orgHandler.List)
		api.POST("/orgs", middleware.RequireOfficer(), orgHandler.Create)
		api.GET("/orgs/:id", orgHandler.Get)
		api.DELETE("/orgs/:id", middleware.RequireOfficer(), orgHandler.Delete)

		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.Get)
		api.GET("/events/:id/qr-url", eventHandler.QRURL)
		api.POST("/events", middleware.RequireOfficer(), eventHandler.Create)
		api.PUT("/events/:id", middleware.RequireOfficer(), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireOfficer(), eventHandler.Delete)

		api.GET("/payments", middleware.RequireOfficer(), paymentHandler.List)
		api.GET("/payments/stats", middleware.RequireOfficer(), paymentHandler.Stats)
		api.GET("/payments/mine", middleware.RequireAuth(), paymentHandler.Mine)
		api.POST("/payments", middleware.RequireAuth(), paymentHandler.Submit)
		api.GET("/payments/:id/proof-url", middleware.RequireAuth(), paymentHandler.ProofURL)
		api.GET("/payments/:id/proof", middleware.RequireAuth(), paymentHandler.Proof)
		api.POST("/payments/:id/approve", middleware.RequireOfficer(), paymentHandler.Approve)
		api.POST("/payments/:id/unapprove", middleware.RequireOfficer(), paymentHandler.Unapprove)
		api.POST("/payments/:id/reject", middleware.RequireOfficer(), paymentHandler.Reject)

		api.GET("/officer-profiles", officerHandler.List)
		api.POST("/officer-profiles", middleware.RequireAuth(), officerHandler.Upsert)

		api.GET("/users/me", middleware.RequireAuth(), userHandler.Get)
		api.POST("/users/me", middleware.RequireAuth(), userHandler.Me)
		api.GET("/storage/signed-url", middleware.RequireOfficer(), objectHandler.SignedURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
