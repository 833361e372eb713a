package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/aiblog/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token, needed for logout.
	ContextTokenKey = "token"
)

type authFailure struct {
	code    int
	message string
}

// authenticate validates the bearer token on the request. A nil failure with
// nil claims means no Authorization header was sent.
func authenticate(ctx *gin.Context) (*utils.Claims, string, *authFailure) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "", nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, "", &authFailure{40102, "invalid authorization header format"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, "", &authFailure{40103, "empty bearer token"}
	}

	if utils.IsTokenBlacklisted(tokenString) {
		return nil, "", &authFailure{40104, "token revoked"}
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, "", &authFailure{40105, "invalid token"}
	}
	return claims, tokenString, nil
}

func attach(ctx *gin.Context, claims *utils.Claims, token string) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextTokenKey, token)
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, token, fail := authenticate(ctx)
		if fail != nil {
			utils.Error(ctx, http.StatusUnauthorized, fail.code, fail.message)
			ctx.Abort()
			return
		}
		if claims == nil {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}
		attach(ctx, claims, token)
		ctx.Next()
	}
}

// OptionalAuth attaches the caller's identity when a valid token is sent and
// otherwise lets the request through anonymously.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, token, fail := authenticate(ctx); fail == nil && claims != nil {
			attach(ctx, claims, token)
		}
		ctx.Next()
	}
}

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(ctx *gin.Context) uint {
	if v, ok := ctx.Get(ContextUserIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
