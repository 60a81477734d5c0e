package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rodeway/board/config"
	"github.com/rodeway/board/controllers"
	"github.com/rodeway/board/middleware"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

// Services bundles the core services the HTTP layer exposes.
type Services struct {
	Accounts   *services.AccountService
	Content    *services.ContentService
	Moderation *services.ModerationService
	Stats      *services.StatsService
	Uploads    *services.UploadService
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, svc Services) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; without one it joins the application log.
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			accessLog = gl
		} else {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	cacheTTL := time.Duration(cfg.ListCacheSeconds) * time.Second
	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour
	authController := controllers.NewAuthController(svc.Accounts, svc.Uploads, tokenTTL, int64(cfg.UploadMaxMB)<<20)
	postController := controllers.NewPostController(svc.Content, svc.Uploads, cacheTTL)
	moderationController := controllers.NewModerationController(svc.Moderation)
	statsController := controllers.NewStatsController(svc.Stats, cacheTTL)

	limiter := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.Use(middleware.OptionalAuth(), middleware.VisitRecorder(svc.Stats, utils.Logger))

	authGroup := api.Group("/auth")
	authGroup.Use(limiter)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)
	authGroup.POST("/avatar", middleware.AuthRequired(), authController.UploadAvatar)

	// Public reads; a valid token still identifies the viewer for secret posts.
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)
	api.GET("/posts/:id/comments", postController.ListComments)
	api.GET("/blobs/*handle", postController.ServeBlob)
	api.GET("/users/:id", authController.GetUserPublic)
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), limiter)
	protected.POST("/posts", postController.CreatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/like", postController.LikePost)
	protected.POST("/posts/:id/dislike", postController.DislikePost)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.POST("/comments/:id/like", postController.LikeComment)
	protected.DELETE("/comments/:id", postController.DeleteComment)
	protected.POST("/upload", postController.UploadAttachment)
	protected.POST("/reports", moderationController.FileReport)
	protected.GET("/notifications", moderationController.ListNotifications)
	protected.POST("/notifications/read-all", moderationController.MarkAllRead)
	protected.POST("/notifications/:id/read", moderationController.MarkRead)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired())
	admin.GET("/reports", moderationController.ListReports)
	admin.POST("/users/:id/ban", authController.BanUser)
	admin.POST("/users/:id/unban", authController.UnbanUser)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
