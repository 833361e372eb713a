package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// ReactionController exposes likes on any registered target kind.
type ReactionController struct {
	reactions *services.ReactionService
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewReactionController(reactions *services.ReactionService, m *metrics.Metrics, logger *zap.Logger) *ReactionController {
	return &ReactionController{reactions: reactions, metrics: m, logger: logger}
}

// Toggle flips the caller's like on /reactions/:type/:id.
func (r *ReactionController) Toggle(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	kind := ctx.Param("type")
	res, err := r.reactions.Toggle(ctx.Request.Context(), middleware.UserID(ctx), kind, id)
	if err != nil {
		respondError(ctx, r.logger, err, 50040, "failed to toggle reaction")
		return
	}
	r.metrics.RecordReactionToggle(ctx.Request.Context(), kind, res.Reacted)
	utils.Success(ctx, gin.H{"type": kind, "id": id, "reacted": res.Reacted, "total": res.Total})
}

// Status returns the like count of a target and whether the caller liked it.
func (r *ReactionController) Status(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	kind := ctx.Param("type")
	res, err := r.reactions.Status(ctx.Request.Context(), middleware.UserID(ctx), kind, id)
	if err != nil {
		respondError(ctx, r.logger, err, 50041, "failed to load reactions")
		return
	}
	utils.Success(ctx, gin.H{"type": kind, "id": id, "reacted": res.Reacted, "total": res.Total})
}
