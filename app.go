package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rodeway/board/config"
	"github.com/rodeway/board/models"
	"github.com/rodeway/board/routes"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/storage"
	"github.com/rodeway/board/utils"
)

// app holds the process-wide dependencies built from configuration.
type app struct {
	cfg   config.AppConfig
	db    *gorm.DB
	svc   routes.Services
	blobs storage.BlobStore
}

func newApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	db, err := config.InitDatabase(cfg, models.All()...)
	if err != nil {
		return nil, err
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	// Connects and pings once; an unreachable server is logged and caching is skipped per call.
	if rc := utils.GetRedis(); rc != nil {
		utils.Logger.Info("redis enabled", zap.String("addr", rc.Options().Addr))
	}

	opts := []services.Option{
		services.WithLogger(utils.Logger),
		services.WithPageSize(cfg.DefaultPageSize),
	}
	a := &app{
		cfg:   cfg,
		db:    db,
		blobs: blobs,
		svc: routes.Services{
			Accounts:   services.NewAccountService(db, utils.BcryptHasher{}, opts...),
			Content:    services.NewContentService(db, opts...),
			Moderation: services.NewModerationService(db, opts...),
			Stats:      services.NewStatsService(db, opts...),
			Uploads:    services.NewUploadService(db, blobs, int64(cfg.UploadMaxMB)<<20, opts...),
		},
	}

	created, err := a.svc.Accounts.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	switch {
	case errors.Is(err, services.ErrBootstrapCredential):
		utils.Logger.Warn("no admin account exists and ADMIN_PASSWORD is not set; admin bootstrap skipped")
	case errors.Is(err, services.ErrDuplicateUsername):
		utils.Logger.Warn("admin bootstrap skipped; choose another ADMIN_USERNAME or promote the account by hand",
			zap.String("username", cfg.AdminUsername), zap.Error(err))
	case err != nil:
		a.close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	case created:
		utils.Logger.Info("admin account created", zap.String("username", cfg.AdminUsername))
	}
	return a, nil
}

func newBlobStore(ctx context.Context, cfg config.AppConfig) (storage.BlobStore, error) {
	switch cfg.BlobBackend {
	case "local":
		return storage.NewLocalStore(cfg.UploadDir)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

func (a *app) router() *gin.Engine {
	return routes.SetupRouter(a.cfg, a.svc)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = utils.Logger.Sync()
}
