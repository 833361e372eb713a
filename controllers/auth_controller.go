package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

const maxBioLength = 300

// AuthController handles local accounts and public profiles.
type AuthController struct {
	db      *gorm.DB
	cfg     config.AppConfig
	follows *services.FollowService
	logger  *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB, cfg config.AppConfig, follows *services.FollowService, logger *zap.Logger) *AuthController {
	return &AuthController{db: db, cfg: cfg, follows: follows, logger: logger}
}

func (a *AuthController) tokenTTL() time.Duration {
	if a.cfg.TokenTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(a.cfg.TokenTTLHours) * time.Hour
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=64"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required,min=6,max=72"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits, '-' and '_'")
		return
	}

	var n int64
	if err := a.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&n).Error; err != nil {
		respondError(ctx, a.logger, err, 50001, "failed to check username")
		return
	}
	if n > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(ctx, a.logger, err, 50002, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
	}
	if err := a.db.Create(&user).Error; err != nil {
		respondError(ctx, a.logger, err, 50003, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, a.tokenTTL())
	if err != nil {
		respondError(ctx, a.logger, err, 50004, "failed to generate token")
		return
	}
	a.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  a.userResponse(user),
	})
}

func validUsername(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return s != ""
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, a.logger, err, 50005, "failed to load user")
			return
		}
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if user.IsBanned {
		utils.Error(ctx, http.StatusForbidden, 40303, "account is banned")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, a.tokenTTL())
	if err != nil {
		respondError(ctx, a.logger, err, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  a.userResponse(user),
	})
}

// Logout revokes the bearer token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(a.tokenTTL())
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's own account.
func (a *AuthController) Me(ctx *gin.Context) {
	var user models.User
	if err := a.db.First(&user, middleware.UserID(ctx)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		respondError(ctx, a.logger, err, 50006, "failed to load user")
		return
	}
	utils.Success(ctx, a.userResponse(user))
}

// UpdateProfile edits the caller's email and bio.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req struct {
		Email *string `json:"email"`
		Bio   *string `json:"bio"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, middleware.UserID(ctx)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(utils.StripTags(*req.Bio))
		if utf8.RuneCountInString(bio) > maxBioLength {
			utils.Error(ctx, http.StatusBadRequest, 40031, "bio must be at most 300 characters")
			return
		}
		user.Bio = bio
	}

	if err := a.db.Save(&user).Error; err != nil {
		respondError(ctx, a.logger, err, 50031, "failed to update profile")
		return
	}
	utils.InvalidateByPrefix(usersCachePrefix + strconv.Itoa(int(user.ID)))

	utils.Success(ctx, a.userResponse(user))
}

// GetUserPublic returns a public profile with follow and post counts.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	key := usersCachePrefix + strconv.Itoa(int(id))
	if replayCached(ctx, key) {
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		respondError(ctx, a.logger, err, 50050, "failed to get user")
		return
	}
	counts, err := a.follows.Counts(ctx.Request.Context(), user.ID)
	if err != nil {
		respondError(ctx, a.logger, err, 50051, "failed to count follows")
		return
	}
	var posts int64
	if err := a.db.Model(&models.Post{}).
		Where("user_id = ? AND status = ?", user.ID, models.StatusPublished).
		Count(&posts).Error; err != nil {
		respondError(ctx, a.logger, err, 50052, "failed to count posts")
		return
	}

	// follow counts change often; keep the cached copy short lived
	payload := publicUser(user)
	payload["followers"] = counts.Followers
	payload["following"] = counts.Following
	payload["post_count"] = posts
	utils.CacheSetJSON(key, envelope{Code: 0, Message: "success", Data: payload}, time.Minute)
	utils.Success(ctx, payload)
}

func publicUser(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"role":       user.Role,
		"bio":        user.Bio,
		"created_at": user.CreatedAt,
	}
}

func (a *AuthController) userResponse(user models.User) gin.H {
	m := publicUser(user)
	m["email"] = user.Email
	m["is_admin"] = user.Role == models.RoleAdmin || isAdminUsername(a.cfg.AdminUsernames, user.Username)
	return m
}

func isAdminUsername(admins []string, username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range admins {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
