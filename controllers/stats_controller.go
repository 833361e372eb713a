package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// StatsController provides site statistics such as counts and daily page views.
type StatsController struct {
	db     *gorm.DB
	posts  *services.PostService
	logger *zap.Logger
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, posts *services.PostService, logger *zap.Logger) *StatsController {
	return &StatsController{db: db, posts: posts, logger: logger}
}

// GetStats returns aggregate statistics for the site.
func (s *StatsController) GetStats(ctx *gin.Context) {
	db := s.db.WithContext(ctx.Request.Context())
	counts := gin.H{}
	for name, model := range map[string]interface{}{
		"user_count":     &models.User{},
		"post_count":     &models.Post{},
		"comment_count":  &models.Comment{},
		"reaction_count": &models.Reaction{},
		"follow_count":   &models.Follow{},
	} {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			// a failing counter reports 0 instead of failing the whole endpoint
			s.logger.Warn("stats count failed", zap.String("counter", name), zap.Error(err))
		}
		counts[name] = n
	}

	dayStart := models.ViewDay(time.Now())
	var today int64
	if err := db.Model(&models.PageView{}).
		Where("date >= ? AND date < ?", dayStart, dayStart.AddDate(0, 0, 1)).
		Select("COALESCE(SUM(count),0)").
		Scan(&today).Error; err != nil {
		s.logger.Warn("stats page views failed", zap.Error(err))
	}
	counts["daily_page_views"] = today

	utils.Success(ctx, counts)
}

// GetPostStats returns page views, likes, viewers and comments for a post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	st, err := s.posts.Stats(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, s.logger, err, 50090, "failed to load post stats")
		return
	}

	var pv int64
	path := middleware.PostDetailPath(id)
	if err := s.db.WithContext(ctx.Request.Context()).Model(&models.PageView{}).
		Where("path = ?", path).
		Select("COALESCE(SUM(count),0)").
		Scan(&pv).Error; err != nil {
		s.logger.Warn("post page views failed", zap.Uint("post_id", id), zap.Error(err))
	}

	utils.Success(ctx, gin.H{
		"pv":             pv,
		"likes":          st.Likes,
		"viewers":        st.Viewers,
		"comments_count": st.Comments,
	})
}
