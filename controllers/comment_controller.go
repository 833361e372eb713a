package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// CommentController serves threaded comments.
type CommentController struct {
	comments *services.CommentService
	logger   *zap.Logger
}

func NewCommentController(comments *services.CommentService, logger *zap.Logger) *CommentController {
	return &CommentController{comments: comments, logger: logger}
}

// ListComments returns the comment tree of a post.
func (c *CommentController) ListComments(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	tree, err := c.comments.ListTree(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, c.logger, err, 50030, "failed to load comments")
		return
	}
	utils.Success(ctx, gin.H{"items": tree})
}

// CreateComment adds a comment or, with parent_id, a reply.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}
	comment, err := c.comments.Add(ctx.Request.Context(), postID, middleware.UserID(ctx), req.Content, req.ParentID)
	if err != nil {
		respondError(ctx, c.logger, err, 50031, "failed to create comment")
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

func (c *CommentController) UpdateComment(ctx *gin.Context) {
	id, ok := parseID(ctx, "commentId")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}
	comment, err := c.comments.Update(ctx.Request.Context(), id, middleware.UserID(ctx), req.Content)
	if err != nil {
		respondError(ctx, c.logger, err, 50032, "failed to update comment")
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment and all of its replies.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	id, ok := parseID(ctx, "commentId")
	if !ok {
		return
	}
	deleted, err := c.comments.Delete(ctx.Request.Context(), id, middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, c.logger, err, 50033, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"deleted": deleted})
}
