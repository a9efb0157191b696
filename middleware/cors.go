package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS 跨域中间件
// 只对白名单内的 Origin 回显并允许携带 Cookie
func CORS(allowOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && OriginAllowed(origin, allowOrigins) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// OriginAllowed 检查 origin 是否命中任一白名单 pattern
func OriginAllowed(origin string, patterns []string) bool {
	origin = strings.TrimRight(origin, "/")
	for _, p := range patterns {
		if matchOrigin(origin, strings.TrimRight(p, "/")) {
			return true
		}
	}
	return false
}

// matchOrigin 检查 origin 是否匹配 pattern
// 支持 "*"、完全相等，以及 http://localhost:* 这种端口通配
func matchOrigin(origin, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.HasSuffix(pattern, ":*") {
		return strings.EqualFold(origin, pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	if len(origin) <= len(prefix) || !strings.EqualFold(origin[:len(prefix)], prefix) {
		return false
	}
	port := origin[len(prefix):]
	for _, r := range port {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
