package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

// AnalyticsController lists weekly snapshots and triggers them on demand.
type AnalyticsController struct {
	analytics *services.AnalyticsService
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewAnalyticsController(analytics *services.AnalyticsService, m *metrics.Metrics, logger *zap.Logger) *AnalyticsController {
	return &AnalyticsController{analytics: analytics, metrics: m, logger: logger}
}

// referenceTime reads ?at= in any common date layout. Absent means now.
func referenceTime(ctx *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(ctx.Query("at"))
	if raw == "" {
		return time.Time{}, true
	}
	at, err := dateparse.ParseLocal(raw)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid at parameter")
		return time.Time{}, false
	}
	return at, true
}

func limitFromQuery(ctx *gin.Context) int {
	n, _ := strconv.Atoi(ctx.Query("limit"))
	return n
}

// ListPostSnapshots returns recent site-wide post snapshots.
func (a *AnalyticsController) ListPostSnapshots(ctx *gin.Context) {
	items, err := a.analytics.ListPostSnapshots(ctx.Request.Context(), limitFromQuery(ctx))
	if err != nil {
		respondError(ctx, a.logger, err, 50080, "failed to list post snapshots")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// ListLikeSnapshots returns the caller's recent like snapshots.
func (a *AnalyticsController) ListLikeSnapshots(ctx *gin.Context) {
	items, err := a.analytics.ListLikeSnapshots(ctx.Request.Context(), middleware.UserID(ctx), limitFromQuery(ctx))
	if err != nil {
		respondError(ctx, a.logger, err, 50081, "failed to list like snapshots")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// CapturePostSnapshot records a site-wide post snapshot for the week containing ?at=.
func (a *AnalyticsController) CapturePostSnapshot(ctx *gin.Context) {
	at, ok := referenceTime(ctx)
	if !ok {
		return
	}
	start := time.Now()
	snap, err := a.analytics.ComputePostSnapshot(ctx.Request.Context(), at)
	a.metrics.RecordSnapshotRun(ctx.Request.Context(), "posts", err, time.Since(start))
	if err != nil {
		respondError(ctx, a.logger, err, 50082, "failed to capture post snapshot")
		return
	}
	utils.Success(ctx, gin.H{"snapshot": snap})
}

// CaptureLikeSnapshot records the caller's like snapshot for the week containing ?at=.
func (a *AnalyticsController) CaptureLikeSnapshot(ctx *gin.Context) {
	at, ok := referenceTime(ctx)
	if !ok {
		return
	}
	start := time.Now()
	snap, err := a.analytics.ComputeLikeSnapshot(ctx.Request.Context(), middleware.UserID(ctx), at)
	a.metrics.RecordSnapshotRun(ctx.Request.Context(), "likes", err, time.Since(start))
	if err != nil {
		respondError(ctx, a.logger, err, 50083, "failed to capture like snapshot")
		return
	}
	utils.Success(ctx, gin.H{"snapshot": snap})
}
