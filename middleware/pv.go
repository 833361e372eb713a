package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
)

// PostDetailRoute is the route whose successful reads are counted as page views.
const PostDetailRoute = "/api/v1/posts/:id"

// PostDetailPath is the canonical page view key of a post; /posts/007 and
// /posts/7 share it.
func PostDetailPath(id uint) string {
	return strings.Replace(PostDetailRoute, ":id", strconv.FormatUint(uint64(id), 10), 1)
}

// PageViewRecorder counts successful post detail reads per day and path.
func PageViewRecorder(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet || c.FullPath() != PostDetailRoute {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			return
		}
		path := PostDetailPath(uint(id))
		if err := RecordPageView(db.WithContext(c.Request.Context()), path, time.Now()); err != nil {
			logger.Warn("record page view failed", zap.String("path", path), zap.Error(err))
		}
	}
}

// RecordPageView adds one view of path on the local calendar day of at.
func RecordPageView(db *gorm.DB, path string, at time.Time) error {
	// atomic upsert; concurrent first views of a day must not collide
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": time.Now()}),
	}).Create(&models.PageView{Date: models.ViewDay(at), Path: path, Count: 1}).Error
}
