package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"fintrack/auth"

	"github.com/gin-gonic/gin"
)

// ContextUsernameKey 当前用户名在 gin.Context 中的 key
const ContextUsernameKey = "username"

// JWTAuth JWT 认证中间件
// 优先读取 Authorization: Bearer；没有时回退到浏览器会话，并为其签发短期 token，
// 后续逻辑只走 token 一条路径
func JWTAuth(tokens *auth.TokenService, sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abortUnauthorized(c, "Invalid Authorization header")
			return
		}

		if token == "" && sessions != nil {
			if username, err := sessions.Username(c); err == nil {
				token, err = tokens.IssueSession(c.Request.Context(), username)
				if err != nil {
					log.Printf("[AUTH] 会话用户 %s 签发 token 失败: %v", username, err)
					abortUnauthorized(c, "Token is invalid")
					return
				}
			}
		}

		if token == "" {
			abortUnauthorized(c, "Token is missing")
			return
		}

		username, err := tokens.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortUnauthorized(c, "Token has expired")
				return
			}
			abortUnauthorized(c, "Token is invalid")
			return
		}

		c.Set(ContextUsernameKey, username)
		c.Next()
	}
}

// GetCurrentUsername 获取当前登录用户名
func GetCurrentUsername(c *gin.Context) string {
	if v, ok := c.Get(ContextUsernameKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

// bearerToken 解析 Authorization 头；未携带返回空串，格式错误返回 error
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}
