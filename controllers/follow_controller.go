package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// FollowController serves the follow graph and the personal feed.
type FollowController struct {
	follows *services.FollowService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewFollowController(follows *services.FollowService, m *metrics.Metrics, logger *zap.Logger) *FollowController {
	return &FollowController{follows: follows, metrics: m, logger: logger}
}

func invalidateProfiles(ids ...uint) {
	for _, id := range ids {
		utils.InvalidateByPrefix(usersCachePrefix + strconv.Itoa(int(id)))
	}
}

// Follow makes the caller follow the user in the path. Repeating it is harmless.
func (f *FollowController) Follow(ctx *gin.Context) {
	target, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	me := middleware.UserID(ctx)
	created, err := f.follows.Follow(ctx.Request.Context(), me, target)
	if err != nil {
		respondError(ctx, f.logger, err, 50050, "failed to follow user")
		return
	}
	if created {
		f.metrics.RecordFollowChange(ctx.Request.Context(), "follow")
		invalidateProfiles(me, target)
	}
	f.respondCounts(ctx, target, true)
}

// Unfollow removes the edge if present.
func (f *FollowController) Unfollow(ctx *gin.Context) {
	target, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	me := middleware.UserID(ctx)
	removed, err := f.follows.Unfollow(ctx.Request.Context(), me, target)
	if err != nil {
		respondError(ctx, f.logger, err, 50051, "failed to unfollow user")
		return
	}
	if removed {
		f.metrics.RecordFollowChange(ctx.Request.Context(), "unfollow")
		invalidateProfiles(me, target)
	}
	f.respondCounts(ctx, target, false)
}

func (f *FollowController) respondCounts(ctx *gin.Context, target uint, following bool) {
	counts, err := f.follows.Counts(ctx.Request.Context(), target)
	if err != nil {
		respondError(ctx, f.logger, err, 50052, "failed to count follows")
		return
	}
	utils.Success(ctx, gin.H{"user_id": target, "following": following, "followers": counts.Followers})
}

func (f *FollowController) Followers(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	page := pageFromQuery(ctx)
	users, total, err := f.follows.Followers(ctx.Request.Context(), id, page)
	if err != nil {
		respondError(ctx, f.logger, err, 50053, "failed to list followers")
		return
	}
	utils.Paginated(ctx, users, utils.NewPagination(page.Page, page.PageSize, total))
}

func (f *FollowController) Following(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	page := pageFromQuery(ctx)
	users, total, err := f.follows.Following(ctx.Request.Context(), id, page)
	if err != nil {
		respondError(ctx, f.logger, err, 50054, "failed to list following")
		return
	}
	utils.Paginated(ctx, users, utils.NewPagination(page.Page, page.PageSize, total))
}

// Feed returns posts by everyone the caller follows, newest first.
func (f *FollowController) Feed(ctx *gin.Context) {
	page := pageFromQuery(ctx)
	posts, total, err := f.follows.Feed(ctx.Request.Context(), middleware.UserID(ctx), page)
	if err != nil {
		respondError(ctx, f.logger, err, 50055, "failed to load feed")
		return
	}
	utils.Paginated(ctx, posts, utils.NewPagination(page.Page, page.PageSize, total))
}
