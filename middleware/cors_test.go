package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		origin   string
		pattern  string
		expected bool
	}{
		{"http://localhost:3000", "http://localhost:*", true},
		{"http://localhost:8100", "http://localhost:*", true},
		{"http://localhost", "http://localhost:*", false},
		{"http://localhost:abc", "http://localhost:*", false},
		{"http://localhost.evil.com:3000", "http://localhost:*", false},
		{"https://localhost:3000", "http://localhost:*", false},
		{"capacitor://localhost", "capacitor://localhost", true},
		{"https://app.example.com", "https://app.example.com", true},
		{"https://APP.example.com", "https://app.example.com", true},
		{"https://evil.example.com", "https://app.example.com", false},
		{"https://anything.test", "*", true},
	}
	for _, tt := range tests {
		got := matchOrigin(tt.origin, tt.pattern)
		assert.Equalf(t, tt.expected, got, "matchOrigin(%q, %q)", tt.origin, tt.pattern)
	}
}

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"http://localhost:*", "https://app.example.com/"}
	assert.True(t, OriginAllowed("http://localhost:5173", patterns))
	assert.True(t, OriginAllowed("https://app.example.com", patterns))
	assert.False(t, OriginAllowed("https://other.example.com", patterns))
	assert.False(t, OriginAllowed("https://app.example.com", nil))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:*"}))
	router.GET("/api/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// 允许的来源回显 Origin
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	// 不在白名单的来源不返回 CORS 头
	req2 := httptest.NewRequest("GET", "/api/health", nil)
	req2.Header.Set("Origin", "https://evil.example.com")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, 200, w2.Code)
	assert.Empty(t, w2.Header().Get("Access-Control-Allow-Origin"))

	// 预检请求返回 204
	req3 := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req3.Header.Set("Origin", "http://localhost:3000")
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusNoContent, w3.Code)
}
