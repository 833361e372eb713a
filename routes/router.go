package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/controllers"
	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers. m and metricsHandler
// may be nil when metrics are disabled.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, m *metrics.Metrics, metricsHandler http.Handler) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, true))
	} else {
		utils.Sugar.Warnf("gin logger unavailable, falling back to default recovery: %v", err)
		r.Use(gin.Recovery())
	}
	r.Use(middleware.HTTPMetrics(m))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
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

	logger := utils.Logger
	r.Use(middleware.PageViewRecorder(db, logger))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	reg := registry.Default()
	postService := services.NewPostService(db, logger)
	reactionService := services.NewReactionService(db, reg, logger)
	commentService := services.NewCommentService(db, logger)
	followService := services.NewFollowService(db, logger)
	tagService := services.NewTagService(db, logger)
	analyticsService := services.NewAnalyticsService(db, logger)

	authController := controllers.NewAuthController(db, cfg, followService, logger)
	postController := controllers.NewPostController(db, cfg, postService, reactionService, logger)
	commentController := controllers.NewCommentController(commentService, logger)
	reactionController := controllers.NewReactionController(reactionService, m, logger)
	followController := controllers.NewFollowController(followService, m, logger)
	tagController := controllers.NewTagController(tagService, logger)
	analyticsController := controllers.NewAnalyticsController(analyticsService, m, logger)
	statsController := controllers.NewStatsController(db, postService, logger)
	configController := controllers.NewConfigController(reg)

	limit := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)
	adminOnly := middleware.AdminRequired(db, cfg.AdminUsernames)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(limit)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	public := api.Group("")
	public.Use(middleware.OptionalAuth())
	public.GET("/posts", postController.ListPosts)
	public.GET("/posts/:id", postController.GetPost)
	public.GET("/posts/slug/:slug", postController.GetPostBySlug)
	public.GET("/posts/:id/comments", commentController.ListComments)
	public.GET("/posts/:id/stats", statsController.GetPostStats)
	public.GET("/reactions/:type/:id", reactionController.Status)
	public.GET("/tags", tagController.ListTags)
	public.GET("/users/:id", authController.GetUserPublic)
	public.GET("/users/:id/posts", postController.ListUserPosts)
	public.GET("/users/:id/followers", followController.Followers)
	public.GET("/users/:id/following", followController.Following)
	public.GET("/stats", statsController.GetStats)
	public.GET("/config/reactions", configController.GetReactions)
	public.GET("/analytics/posts", analyticsController.ListPostSnapshots)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), limit)
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.GET("/users/me/posts", postController.ListMyPosts)
	protected.POST("/posts/:id/comments", commentController.CreateComment)
	protected.PUT("/comments/:commentId", commentController.UpdateComment)
	protected.DELETE("/comments/:commentId", commentController.DeleteComment)
	protected.POST("/reactions/:type/:id", reactionController.Toggle)
	protected.POST("/users/:id/follow", followController.Follow)
	protected.DELETE("/users/:id/follow", followController.Unfollow)
	protected.GET("/feed", followController.Feed)
	protected.GET("/analytics/likes", analyticsController.ListLikeSnapshots)
	protected.POST("/analytics/likes/snapshot", analyticsController.CaptureLikeSnapshot)

	admin := protected.Group("")
	admin.Use(adminOnly)
	admin.POST("/tags", tagController.CreateTag)
	admin.DELETE("/tags/:id", tagController.DeleteTag)
	admin.POST("/analytics/posts/snapshot", analyticsController.CapturePostSnapshot)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
