package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"shopchat/pkg/auth"
)

// AdminAuthMiddleware 管理员认证中间件
// 保护后台HTTP接口，只认管理员命名空间签发的会话token
type AdminAuthMiddleware struct {
	logger kratoslog.Logger
	secret string
}

// NewAdminAuthMiddleware 创建管理员认证中间件
func NewAdminAuthMiddleware(logger kratoslog.Logger, secret string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		logger: logger,
		secret: secret,
	}
}

// GinAuth Gin认证中间件
func (am *AdminAuthMiddleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			am.logger.Log(kratoslog.LevelWarn, "msg", "Missing authorization token", "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization token"})
			c.Abort()
			return
		}

		adminID, err := auth.ParseSessionToken(token, am.secret)
		if err != nil {
			am.logger.Log(kratoslog.LevelWarn, "msg", "Invalid admin token", "error", err, "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		// 将管理员ID存储到上下文
		c.Set("adminID", adminID)
		c.Next()
	}
}

// extractBearerToken 从Authorization头提取token
func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return header
}
