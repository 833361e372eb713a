package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

const (
	postsCachePrefix = "cache:posts:"
	usersCachePrefix = "cache:user:public:"
	cacheTTL         = time.Hour
)

// envelope mirrors utils.JSONResponse so cached bodies replay byte for byte.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func successCached(ctx *gin.Context, key string, data interface{}) {
	utils.CacheSetJSON(key, envelope{Code: 0, Message: "success", Data: data}, cacheTTL)
	utils.Success(ctx, data)
}

func replayCached(ctx *gin.Context, key string) bool {
	b, ok := utils.CacheGetBytes(key)
	if !ok {
		return false
	}
	ctx.Data(http.StatusOK, "application/json", b)
	return true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func pageFromQuery(ctx *gin.Context) services.Page {
	page, size := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	return services.Page{Page: page, PageSize: size}
}

// parseID reads a positive numeric path parameter, answering 400 when it is not one.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// respondError maps service errors onto the response envelope. Unexpected
// errors are logged and reported with the caller's fallback code.
func respondError(ctx *gin.Context, logger *zap.Logger, err error, fallbackCode int, fallbackMessage string) {
	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "authentication required")
	case errors.Is(err, services.ErrUnknownType):
		utils.Error(ctx, http.StatusBadRequest, 40011, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, 40012, err.Error())
	case errors.Is(err, services.ErrSelfFollow):
		utils.Error(ctx, http.StatusBadRequest, 40013, err.Error())
	case errors.Is(err, services.ErrTargetNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40404, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, err.Error())
	default:
		logger.Error(fallbackMessage,
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.GetString(middleware.ContextRequestIDKey)),
			zap.Error(err),
		)
		utils.Error(ctx, http.StatusInternalServerError, fallbackCode, fallbackMessage)
	}
}
