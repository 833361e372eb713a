package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

type TagController struct {
	tags   *services.TagService
	logger *zap.Logger
}

func NewTagController(tags *services.TagService, logger *zap.Logger) *TagController {
	return &TagController{tags: tags, logger: logger}
}

func (t *TagController) ListTags(ctx *gin.Context) {
	tags, err := t.tags.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, t.logger, err, 50070, "failed to list tags")
		return
	}
	utils.Success(ctx, gin.H{"items": tags})
}

func (t *TagController) CreateTag(ctx *gin.Context) {
	var req struct {
		TagName string `json:"tag_name" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}
	tag, err := t.tags.Create(ctx.Request.Context(), req.TagName)
	if err != nil {
		respondError(ctx, t.logger, err, 50071, "failed to create tag")
		return
	}
	utils.Success(ctx, gin.H{"tag": tag})
}

// DeleteTag removes a tag from every post and then the tag itself.
func (t *TagController) DeleteTag(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := t.tags.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, t.logger, err, 50072, "failed to delete tag")
		return
	}
	utils.InvalidateByPrefix(postsCachePrefix)
	utils.Success(ctx, gin.H{"message": "tag deleted"})
}
