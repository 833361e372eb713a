package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// PostController manages posts and their public listings.
type PostController struct {
	db        *gorm.DB
	cfg       config.AppConfig
	posts     *services.PostService
	reactions *services.ReactionService
	logger    *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, cfg config.AppConfig, posts *services.PostService, reactions *services.ReactionService, logger *zap.Logger) *PostController {
	return &PostController{db: db, cfg: cfg, posts: posts, reactions: reactions, logger: logger}
}

type postRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Status  string   `json:"status"`
	Tags    []string `json:"tags"`
}

func (r postRequest) input() services.PostInput {
	return services.PostInput{Title: r.Title, Content: r.Content, Status: r.Status, Tags: r.Tags}
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	post, err := p.posts.Create(ctx.Request.Context(), middleware.UserID(ctx), req.input())
	if err != nil {
		respondError(ctx, p.logger, err, 50020, "failed to create post")
		return
	}
	utils.InvalidateByPrefix(postsCachePrefix)
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns published posts, newest first. Unsearched pages are cached.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	search := strings.TrimSpace(ctx.Query("search"))
	tag := strings.TrimSpace(ctx.Query("tag"))

	cacheKey := ""
	if search == "" {
		cacheKey = fmt.Sprintf("%slist:tag=%s:page=%d:size=%d", postsCachePrefix, tag, page.Page, page.PageSize)
		if replayCached(ctx, cacheKey) {
			return
		}
	}

	posts, total, err := p.posts.List(ctx.Request.Context(), services.PostFilter{
		Status: models.StatusPublished,
		Tag:    tag,
		Search: search,
		Page:   page,
	})
	if err != nil {
		respondError(ctx, p.logger, err, 50022, "failed to list posts")
		return
	}

	payload := gin.H{"items": posts, "pagination": utils.NewPagination(page.Page, page.PageSize, total)}
	if cacheKey != "" {
		successCached(ctx, cacheKey, payload)
		return
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its live like count and marks it viewed
// for signed-in readers.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	viewer := middleware.UserID(ctx)
	post, err := p.posts.Get(ctx.Request.Context(), id, viewer)
	if err != nil {
		respondError(ctx, p.logger, err, 50023, "failed to load post")
		return
	}
	p.respondPost(ctx, post, viewer)
}

// GetPostBySlug is GetPost keyed by slug. Published posts are cached without
// their like counts, which are always read live.
func (p *PostController) GetPostBySlug(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))
	viewer := middleware.UserID(ctx)
	cacheKey := postsCachePrefix + "slug:" + slug

	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		var cached models.Post
		if err := json.Unmarshal(b, &cached); err == nil {
			p.respondPost(ctx, &cached, viewer)
			return
		}
	}

	post, err := p.posts.GetBySlug(ctx.Request.Context(), slug, viewer)
	if err != nil {
		respondError(ctx, p.logger, err, 50024, "failed to load post")
		return
	}
	if post.Status == models.StatusPublished {
		utils.CacheSetJSON(cacheKey, post, cacheTTL)
	}
	p.respondPost(ctx, post, viewer)
}

func (p *PostController) respondPost(ctx *gin.Context, post *models.Post, viewer uint) {
	if err := p.posts.MarkViewed(ctx.Request.Context(), post.ID, viewer); err != nil {
		p.logger.Warn("mark viewed failed", zap.Uint("post_id", post.ID), zap.Uint("user_id", viewer), zap.Error(err))
	}
	status, err := p.reactions.Status(ctx.Request.Context(), viewer, string(registry.KindPost), post.ID)
	if err != nil {
		respondError(ctx, p.logger, err, 50025, "failed to count likes")
		return
	}
	utils.Success(ctx, gin.H{"post": post, "like_count": status.Total, "liked": status.Reacted})
}

// UpdatePost lets the author edit a post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "invalid request payload")
		return
	}
	post, err := p.posts.Update(ctx.Request.Context(), id, middleware.UserID(ctx), req.input())
	if err != nil {
		respondError(ctx, p.logger, err, 50026, "failed to update post")
		return
	}
	utils.InvalidateByPrefix(postsCachePrefix)
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post. Authors may delete their own posts and admins any.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	admin := middleware.IsAdmin(ctx, p.db, p.cfg.AdminUsernames)
	if err := p.posts.Delete(ctx.Request.Context(), id, middleware.UserID(ctx), admin); err != nil {
		respondError(ctx, p.logger, err, 50027, "failed to delete post")
		return
	}
	utils.InvalidateByPrefix(postsCachePrefix)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// ListMyPosts returns every post of the caller, drafts included.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	posts, total, err := p.posts.List(ctx.Request.Context(), services.PostFilter{
		AuthorID: middleware.UserID(ctx),
		Status:   strings.ToUpper(strings.TrimSpace(ctx.Query("status"))),
		Page:     page,
	})
	if err != nil {
		respondError(ctx, p.logger, err, 50028, "failed to list user posts")
		return
	}
	utils.Paginated(ctx, posts, utils.NewPagination(page.Page, page.PageSize, total))
}

// ListUserPosts returns the published posts of a user.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	page := pageFromQuery(ctx)
	posts, total, err := p.posts.List(ctx.Request.Context(), services.PostFilter{
		AuthorID: id,
		Status:   models.StatusPublished,
		Page:     page,
	})
	if err != nil {
		respondError(ctx, p.logger, err, 50060, "failed to list user posts")
		return
	}
	utils.Paginated(ctx, posts, utils.NewPagination(page.Page, page.PageSize, total))
}
