package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// IsAdmin reports whether the authenticated caller holds the admin role or is
// listed in admins by username.
func IsAdmin(ctx *gin.Context, db *gorm.DB, admins []string) bool {
	uid := UserID(ctx)
	if uid == 0 {
		return false
	}
	if name := ctx.GetString(ContextUsernameKey); name != "" {
		for _, a := range admins {
			if strings.EqualFold(strings.TrimSpace(a), name) {
				return true
			}
		}
	}
	var n int64
	if err := db.WithContext(ctx.Request.Context()).Model(&models.User{}).
		Where("id = ? AND role = ?", uid, models.RoleAdmin).
		Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

// AdminRequired aborts with 403 unless IsAdmin holds. It must run after AuthRequired.
func AdminRequired(db *gorm.DB, admins []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx, db, admins) {
			utils.Error(ctx, http.StatusForbidden, 40302, "admin privileges required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
