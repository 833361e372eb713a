package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/utils"
)

// ConfigController serves static client configuration.
type ConfigController struct {
	registry *registry.Registry
}

func NewConfigController(reg *registry.Registry) *ConfigController {
	return &ConfigController{registry: reg}
}

// GetReactions lists the reactable target kinds and the post statuses.
func (c *ConfigController) GetReactions(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"kinds":    c.registry.Kinds(),
		"statuses": []string{models.StatusPublished, models.StatusDraft, models.StatusModeration},
	})
}
