package middleware

import (
	"context"
	"strings"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenChecker 判断签名有效的令牌是否已被注销
type TokenChecker interface {
	CheckToken(ctx context.Context, token string, claims *util.Claims) error
}

// AuthMiddleware checker 为 nil 时只校验签名和有效期
func AuthMiddleware(cfg *config.Config, checker TokenChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT解析错误", zap.Error(err), zap.String("path", c.FullPath()))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if checker != nil {
			if err := checker.CheckToken(c.Request.Context(), tokenString, claims); err != nil {
				logger.Log.Debug("revoked token rejected", zap.String("userId", claims.UserID), zap.String("path", c.FullPath()))
				util.RespondError(c, err)
				c.Abort()
				return
			}
		}

		c.Set("user", claims)
		c.Set("token", tokenString)
		c.Next()
	}
}

// RoleMiddleware 超级管理员拥有所有角色权限
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.Superadmin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type UserActivityRepo interface {
	UpdateLastSeen(userID string) error
}

func ActivityMiddleware(repo UserActivityRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims != nil {
			// 异步更新，不阻塞主流程
			go func(userID string) {
				if err := repo.UpdateLastSeen(userID); err != nil {
					logger.Log.Debug("failed to update last seen", zap.String("userId", userID), zap.Error(err))
				}
			}(claims.UserID)
		}
		c.Next()
	}
}
