package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/testutil"
	"github.com/cppla/aiblog/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withSecret(t *testing.T) {
	t.Helper()
	utils.SetJWTSecret("middleware-secret")
	t.Cleanup(func() { utils.SetJWTSecret("") })
}

func bearer(t *testing.T, id uint, name string) string {
	t.Helper()
	token, err := utils.GenerateToken(id, name, time.Hour)
	require.NoError(t, err)
	return token
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func code(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func whoami(c *gin.Context) {
	utils.Success(c, gin.H{"id": middleware.UserID(c), "name": c.GetString(middleware.ContextUsernameKey)})
}

func TestAuthRequired(t *testing.T) {
	withSecret(t)
	r := gin.New()
	r.GET("/me", middleware.AuthRequired(), whoami)

	w := do(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, code(t, w))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 40102, code(t, w))

	w = do(r, http.MethodGet, "/me", "garbage")
	assert.Equal(t, 40105, code(t, w))

	token := bearer(t, 7, "alice")
	w = do(r, http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"alice"`)

	utils.BlacklistToken(token, time.Now().Add(time.Hour))
	w = do(r, http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40104, code(t, w))
}

func TestOptionalAuth(t *testing.T) {
	withSecret(t)
	r := gin.New()
	r.GET("/who", middleware.OptionalAuth(), whoami)

	w := do(r, http.MethodGet, "/who", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":0`)

	w = do(r, http.MethodGet, "/who", "broken")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":0`)

	w = do(r, http.MethodGet, "/who", bearer(t, 9, "bob"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":9`)
}

func TestAdminRequired(t *testing.T) {
	withSecret(t)
	db := testutil.CreateTempDB(t)
	alice := testutil.MustCreateUser(t, db, "alice")
	root := models.User{Username: "root", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&root).Error)

	r := gin.New()
	r.GET("/admin", middleware.AuthRequired(), middleware.AdminRequired(db, []string{"Carol"}), whoami)

	w := do(r, http.MethodGet, "/admin", bearer(t, alice.ID, alice.Username))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 40302, code(t, w))

	w = do(r, http.MethodGet, "/admin", bearer(t, root.ID, root.Username))
	assert.Equal(t, http.StatusOK, w.Code)

	carol := testutil.MustCreateUser(t, db, "carol")
	w = do(r, http.MethodGet, "/admin", bearer(t, carol.ID, carol.Username))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/ping", middleware.RateLimitMiddleware(4), func(c *gin.Context) { utils.Success(c, nil) })

	// burst is half the per-minute allowance
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "").Code)
	w := do(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42901, code(t, w))

	other := gin.New()
	other.GET("/ping", middleware.RateLimitMiddleware(4), func(c *gin.Context) { utils.Success(c, nil) })
	assert.Equal(t, http.StatusOK, do(other, http.MethodGet, "/ping", "").Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/id", func(c *gin.Context) { utils.Success(c, c.GetString(middleware.ContextRequestIDKey)) })

	w := do(r, http.MethodGet, "/id", "")
	generated := w.Header().Get(middleware.RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Contains(t, w.Body.String(), generated)

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestPageViewRecorder(t *testing.T) {
	db := testutil.CreateTempDB(t)
	r := gin.New()
	r.Use(middleware.PageViewRecorder(db, nil))
	r.GET("/api/v1/posts/:id", func(c *gin.Context) {
		if c.Param("id") == "404" {
			utils.Error(c, http.StatusNotFound, 40404, "not found")
			return
		}
		utils.Success(c, nil)
	})
	r.GET("/api/v1/posts", func(c *gin.Context) { utils.Success(c, nil) })

	do(r, http.MethodGet, "/api/v1/posts/1", "")
	do(r, http.MethodGet, "/api/v1/posts/1", "")
	do(r, http.MethodGet, "/api/v1/posts/2", "")
	do(r, http.MethodGet, "/api/v1/posts/002", "")
	do(r, http.MethodGet, "/api/v1/posts/abc", "")
	do(r, http.MethodGet, "/api/v1/posts/404", "")
	do(r, http.MethodGet, "/api/v1/posts", "")

	var views []models.PageView
	require.NoError(t, db.Order("path").Find(&views).Error)
	require.Len(t, views, 2)
	assert.Equal(t, "/api/v1/posts/1", views[0].Path)
	assert.EqualValues(t, 2, views[0].Count)
	assert.Equal(t, "/api/v1/posts/2", views[1].Path)
	assert.EqualValues(t, 2, views[1].Count, "zero padded ids share the canonical path")
	assert.Equal(t, "/api/v1/posts/7", middleware.PostDetailPath(7))
}
