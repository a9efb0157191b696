package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKeys map[string][2]string

func (k testKeys) GetKeypair(_ context.Context, username string) (string, string, error) {
	kp, ok := k[username]
	if !ok {
		return "", "", errors.New("not found")
	}
	return kp[0], kp[1], nil
}

func setupJWTRouter(t *testing.T) (*gin.Engine, testKeys, *auth.TokenService, *auth.SessionManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	priv, pub, err := auth.GenerateKeypair()
	require.NoError(t, err)
	keys := testKeys{"user42": {priv, pub}}

	tokens := auth.NewTokenService(keys, time.Hour, time.Hour)
	sessions := auth.NewSessionManager("test-secret", "fintrack_session", time.Hour, false)

	router := gin.New()
	router.Use(JWTAuth(tokens, sessions))
	router.GET("/protected", func(c *gin.Context) {
		c.String(200, "user:%s", GetCurrentUsername(c))
	})
	return router, keys, tokens, sessions
}

func TestJWTAuth(t *testing.T) {
	router, _, tokens, _ := setupJWTRouter(t)

	// 无 token
	req := httptest.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "401")
	assert.Contains(t, w.Body.String(), "Token is missing")

	// 格式错误（非 Bearer）
	req2 := httptest.NewRequest("GET", "/protected", nil)
	req2.Header.Set("Authorization", "Basic xyz")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)

	// 格式错误（仅 Bearer 无 token）
	req3 := httptest.NewRequest("GET", "/protected", nil)
	req3.Header.Set("Authorization", "Bearer ")
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)

	// 有效 token
	token, err := tokens.Issue(context.Background(), "user42")
	require.NoError(t, err)
	req4 := httptest.NewRequest("GET", "/protected", nil)
	req4.Header.Set("Authorization", "Bearer "+token)
	w4 := httptest.NewRecorder()
	router.ServeHTTP(w4, req4)
	assert.Equal(t, 200, w4.Code)
	assert.Equal(t, "user:user42", w4.Body.String())

	// 垃圾 token
	req5 := httptest.NewRequest("GET", "/protected", nil)
	req5.Header.Set("Authorization", "Bearer not.a.jwt")
	w5 := httptest.NewRecorder()
	router.ServeHTTP(w5, req5)
	assert.Equal(t, http.StatusUnauthorized, w5.Code)
	assert.Contains(t, w5.Body.String(), "Token is invalid")
}

func TestJWTAuth_ExpiredAndUnknownUser(t *testing.T) {
	router, keys, _, _ := setupJWTRouter(t)

	// 过期 token 单独提示
	expired, err := auth.SignToken(keys["user42"][0], "user42", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token has expired")

	// 未知用户与签名错误同样返回 invalid，不暴露用户是否存在
	priv, _, err := auth.GenerateKeypair()
	require.NoError(t, err)
	ghost, err := auth.SignToken(priv, "ghost", time.Hour, time.Now())
	require.NoError(t, err)
	req2 := httptest.NewRequest("GET", "/protected", nil)
	req2.Header.Set("Authorization", "Bearer "+ghost)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Contains(t, w2.Body.String(), "Token is invalid")
	assert.NotContains(t, w2.Body.String(), "not found")
}

func TestJWTAuth_SessionFallback(t *testing.T) {
	router, _, _, sessions := setupJWTRouter(t)

	// 有效会话 Cookie 时自动签发短期 token
	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sessions.Sign("user42")})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "user:user42", w.Body.String())

	// 篡改的会话 Cookie 视为未登录
	req2 := httptest.NewRequest("GET", "/protected", nil)
	req2.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: "user42.bad.sig"})
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Contains(t, w2.Body.String(), "Token is missing")

	// 会话用户已不存在
	req3 := httptest.NewRequest("GET", "/protected", nil)
	req3.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sessions.Sign("ghost")})
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestGetCurrentUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetCurrentUsername(c))

	c.Set(ContextUsernameKey, "alice")
	assert.Equal(t, "alice", GetCurrentUsername(c))
}
