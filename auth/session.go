package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionManager 浏览器会话 Cookie
// Cookie 值格式: base64url(username).过期时间戳.hmac
type SessionManager struct {
	secret     []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	now        func() time.Time
}

// NewSessionManager 创建会话管理器
// secret 为空时生成进程内随机密钥，重启后已签发的会话全部失效
func NewSessionManager(secret, cookieName string, maxAge time.Duration, secure bool) *SessionManager {
	key := []byte(secret)
	if secret == "" {
		key = randomSecret()
	}
	return &SessionManager{
		secret:     key,
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
		now:        time.Now,
	}
}

func randomSecret() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("生成会话密钥失败: %v", err))
	}
	return key
}

// CookieName Cookie 名称
func (m *SessionManager) CookieName() string {
	return m.cookieName
}

// Sign 生成签名后的会话值
func (m *SessionManager) Sign(username string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(username)) + "." +
		strconv.FormatInt(m.now().Add(m.maxAge).Unix(), 10)
	return payload + "." + m.mac(payload)
}

// Verify 校验会话值并返回用户名
func (m *SessionManager) Verify(value string) (string, error) {
	if value == "" {
		return "", errors.New("empty session value")
	}
	idx := strings.LastIndex(value, ".")
	if idx <= 0 {
		return "", errors.New("invalid session format")
	}
	payload, sig := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(m.mac(payload))) {
		return "", errors.New("invalid session signature")
	}

	parts := strings.SplitN(payload, ".", 2)
	if len(parts) != 2 {
		return "", errors.New("invalid session format")
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", errors.New("invalid session expiry")
	}
	if m.now().Unix() > exp {
		return "", errors.New("session expired")
	}
	name, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(name) == 0 {
		return "", errors.New("invalid session user")
	}
	return string(name), nil
}

// SetCookie 写入会话 Cookie
// release 模式下启用 Secure，SameSite=Lax 允许同站导航携带
func (m *SessionManager) SetCookie(c *gin.Context, username string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, m.Sign(username), int(m.maxAge.Seconds()), "/", "", m.secure, true)
}

// Username 从请求 Cookie 中读取已验证的用户名
func (m *SessionManager) Username(c *gin.Context) (string, error) {
	value, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", err
	}
	return m.Verify(value)
}

// Clear 清除会话 Cookie
func (m *SessionManager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}

func (m *SessionManager) mac(payload string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
