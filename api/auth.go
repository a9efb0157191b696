package api

import (
	"errors"
	"log"
	"net/http"

	"fintrack/auth"
	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"
	"fintrack/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg      *config.Config
	users    *repository.UserRepository
	tokens   *auth.TokenService
	sessions *auth.SessionManager
	email    *service.EmailService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, users *repository.UserRepository, tokens *auth.TokenService,
	sessions *auth.SessionManager, email *service.EmailService) *AuthHandler {
	return &AuthHandler{
		cfg:      cfg,
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		email:    email,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100" example:"alice"`
	Password string `json:"password" binding:"required,min=6,max=72" example:"password123"`
	Email    string `json:"email" binding:"omitempty,email" example:"alice@example.com"`
	Name     string `json:"name" example:"Alice"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// VerifyRequest 校验 token 请求
type VerifyRequest struct {
	Token string `json:"token"`
}

// LoginResponse 登录/注册响应
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresIn int64           `json:"expires_in"`
	User      ProfileResponse `json:"user"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建本地用户并生成该用户的 RSA 密钥对，同时写入会话 Cookie
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 201 {object} Response{data=LoginResponse} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "用户名已存在"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, h.cfg.SafeErrorMessage(err, "Invalid request body"))
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Create(ctx, repository.NewUser{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Name:     req.Name,
		Provider: models.ProviderLocal,
	})
	if err != nil {
		respondError(c, err, "Failed to register user")
		return
	}
	h.sendWelcome(user)

	resp, err := h.loginResponse(c, user)
	if err != nil {
		respondError(c, err, "Failed to create token")
		return
	}
	Created(c, "User registered successfully", resp)
}

// Login 用户登录
// @Summary 用户登录
// @Description 用户名密码登录，返回 24 小时有效的 token 并写入会话 Cookie
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, h.cfg.SafeErrorMessage(err, "Invalid request body"))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Unauthorized(c, "Invalid username or password")
			return
		}
		respondError(c, err, "")
		return
	}

	resp, err := h.loginResponse(c, user)
	if err != nil {
		respondError(c, err, "Failed to create token")
		return
	}
	SuccessWithMessage(c, "Login successful", resp)
}

// loginResponse 签发 token 并写入会话 Cookie
func (h *AuthHandler) loginResponse(c *gin.Context, user *models.User) (*LoginResponse, error) {
	token, err := h.tokens.Issue(c.Request.Context(), user.Username)
	if err != nil {
		return nil, err
	}
	h.sessions.SetCookie(c, user.Username)
	return &LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
		User:      newProfileResponse(h.cfg, user),
	}, nil
}

// sendWelcome 异步发送欢迎邮件，失败只记录日志
func (h *AuthHandler) sendWelcome(user *models.User) {
	if h.email == nil || !h.email.Enabled() || user.Email == "" {
		return
	}
	email, name := user.Email, user.Name
	go func() {
		if err := h.email.SendWelcomeEmail(email, name); err != nil {
			log.Printf("[MAIL] 发送欢迎邮件给 %s 失败: %v", email, err)
		}
	}()
}

// Token 用会话换取 24 小时 token，供移动端等无法携带 Cookie 的客户端使用
// @Summary 会话换取 token
// @Tags 认证
// @Produce json
// @Success 200 {object} Response "token"
// @Failure 401 {object} Response "未登录"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	username, err := h.sessions.Username(c)
	if err != nil {
		Unauthorized(c, "Not authenticated")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.users.GetByUsername(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "User not found")
			return
		}
		respondError(c, err, "")
		return
	}
	token, err := h.tokens.Issue(ctx, username)
	if err != nil {
		respondError(c, err, "Failed to create token")
		return
	}
	Success(c, gin.H{"token": token, "expires_in": int64(h.tokens.TTL().Seconds())})
}

// Verify 校验 token
// @Summary 校验 token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "token"
// @Success 200 {object} Response "有效"
// @Failure 400 {object} Response "缺少 token"
// @Failure 401 {object} Response "无效或过期"
// @Router /api/auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	_ = c.ShouldBindJSON(&req)
	if req.Token == "" {
		BadRequest(c, "Token is missing")
		return
	}

	username, err := h.tokens.Verify(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			Unauthorized(c, "Token has expired")
			return
		}
		Unauthorized(c, "Token is invalid")
		return
	}
	Success(c, gin.H{"valid": true, "username": username})
}

// Session 查询会话，已登录时返回资料与新 token
// @Summary 查询会话
// @Tags 认证
// @Produce json
// @Success 200 {object} Response "会话信息"
// @Failure 401 {object} Response "未登录"
// @Router /api/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	username, err := h.sessions.Username(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Response{
			Code:    http.StatusUnauthorized,
			Message: "Not authenticated",
			Data:    gin.H{"session": false},
		})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sessions.Clear(c)
			NotFound(c, "User not found")
			return
		}
		respondError(c, err, "")
		return
	}
	token, err := h.tokens.Issue(ctx, username)
	if err != nil {
		respondError(c, err, "Failed to create token")
		return
	}
	Success(c, gin.H{
		"session": true,
		"token":   token,
		"user":    newProfileResponse(h.cfg, user),
	})
}

// Logout 退出登录
// @Summary 退出登录
// @Tags 认证
// @Produce json
// @Success 200 {object} Response
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.Clear(c)
	SuccessWithMessage(c, "Logged out successfully", nil)
}

// ClearSession 清除会话及 OAuth 临时 Cookie
// @Summary 清除会话
// @Tags 认证
// @Produce json
// @Success 200 {object} Response
// @Router /api/auth/clear-session [post]
func (h *AuthHandler) ClearSession(c *gin.Context) {
	h.sessions.Clear(c)
	clearStateCookie(c, h.cfg.IsRelease())
	SuccessWithMessage(c, "Session cleared", nil)
}

// RotateKeys 重新生成当前用户的密钥对，之前签发的所有 token 立即失效
// @Summary 轮换密钥
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "新 token"
// @Failure 401 {object} Response
// @Router /api/auth/keys/rotate [post]
func (h *AuthHandler) RotateKeys(c *gin.Context) {
	ctx := c.Request.Context()
	username := middleware.GetCurrentUsername(c)
	if err := h.users.RotateKeypair(ctx, username); err != nil {
		respondError(c, err, "Failed to rotate keys")
		return
	}
	log.Printf("[AUTH] 用户 %s 已轮换密钥", username)

	token, err := h.tokens.Issue(ctx, username)
	if err != nil {
		respondError(c, err, "Failed to create token")
		return
	}
	SuccessWithMessage(c, "Keys rotated", gin.H{"token": token, "expires_in": int64(h.tokens.TTL().Seconds())})
}
