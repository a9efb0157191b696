package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"fintrack/auth"
	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"
	"fintrack/service"

	"github.com/gin-gonic/gin"
)

// OAuthHandler Google 登录处理器
type OAuthHandler struct {
	cfg      *config.Config
	google   *service.GoogleClient
	users    *repository.UserRepository
	tokens   *auth.TokenService
	sessions *auth.SessionManager
	email    *service.EmailService
}

// NewOAuthHandler 创建 Google 登录处理器
func NewOAuthHandler(cfg *config.Config, google *service.GoogleClient, users *repository.UserRepository,
	tokens *auth.TokenService, sessions *auth.SessionManager, email *service.EmailService) *OAuthHandler {
	return &OAuthHandler{
		cfg:      cfg,
		google:   google,
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		email:    email,
	}
}

// GoogleURL 生成 Google 授权地址
// @Summary 获取 Google 授权地址
// @Description target_redirect 为 web 或 mobile；web_redirect_url 必须在跨域白名单内
// @Tags 认证
// @Produce json
// @Param target_redirect query string false "web 或 mobile" default(web)
// @Param web_redirect_url query string false "web 登录完成后的跳转地址"
// @Success 200 {object} Response "auth_url 与 state"
// @Failure 400 {object} Response "跳转地址不允许"
// @Failure 503 {object} Response "未配置 Google 登录"
// @Router /api/auth/google/url [get]
func (h *OAuthHandler) GoogleURL(c *gin.Context) {
	if !h.google.Enabled() {
		Error(c, http.StatusServiceUnavailable, "Google login is not configured")
		return
	}

	webRedirect := c.DefaultQuery("web_redirect_url", h.cfg.OAuth.Google.WebRedirectURL)
	if !h.redirectAllowed(webRedirect) {
		BadRequest(c, "web_redirect_url is not allowed")
		return
	}

	state := service.NewOAuthState(c.DefaultQuery("target_redirect", service.TargetWeb), webRedirect)
	encoded := state.Encode()
	setStateCookie(c, encoded, h.cfg.IsRelease())

	Success(c, gin.H{
		"auth_url": h.google.BuildAuthURL(encoded),
		"state":    encoded,
	})
}

// redirectAllowed web 跳转地址的来源必须在跨域白名单内
func (h *OAuthHandler) redirectAllowed(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if raw == h.cfg.OAuth.Google.WebRedirectURL {
		return true
	}
	return middleware.OriginAllowed(u.Scheme+"://"+u.Host, h.cfg.CORS.AllowOrigins)
}

// Callback Google 回调：换取 token、同步本地用户、按 state 中的目标跳转
// @Summary Google 登录回调
// @Tags 认证
// @Param code query string false "授权码"
// @Param state query string false "state"
// @Param error query string false "Google 返回的错误"
// @Success 302 "跳转到 web 或 App"
// @Router /api/auth/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	rawState := c.Query("state")
	state, err := service.DecodeOAuthState(rawState)
	if err != nil {
		log.Printf("[OAUTH] state 解析失败，按 web 处理: %v", err)
		state = service.OAuthState{Target: service.TargetWeb}
	}
	if state.Target == service.TargetWeb && !h.redirectAllowed(state.WebRedirectURL) {
		state.WebRedirectURL = h.cfg.OAuth.Google.WebRedirectURL
	}

	// 有 Cookie 时必须一致；Cookie 丢失（如隐身窗口）时放行
	if stored, err := c.Cookie(oauthStateCookie); err == nil && stored != "" {
		if stored != rawState {
			log.Printf("[OAUTH] state 不一致，拒绝回调")
			h.fail(c, state, "state_mismatch")
			return
		}
	} else {
		log.Printf("[OAUTH] 未找到 state Cookie，跳过比对")
	}
	clearStateCookie(c, h.cfg.IsRelease())

	if oauthErr := c.Query("error"); oauthErr != "" {
		log.Printf("[OAUTH] Google 返回错误: %s %s", oauthErr, c.Query("error_description"))
		h.fail(c, state, "oauth_"+oauthErr)
		return
	}
	code := c.Query("code")
	if code == "" {
		h.fail(c, state, "missing_code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.google.ExchangeCode(ctx, code)
	if err != nil {
		log.Printf("[OAUTH] 换取 token 失败: %v", err)
		h.fail(c, state, "auth_failed")
		return
	}
	info, err := h.google.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		log.Printf("[OAUTH] 获取用户信息失败: %v", err)
		h.fail(c, state, "Failed to fetch user information")
		return
	}
	if !info.VerifiedEmail || info.Email == "" {
		log.Printf("[OAUTH] Google 邮箱未验证: %q", info.Email)
		h.fail(c, state, "email_not_verified")
		return
	}

	// 已有头像的用户不再下载
	var photo []byte
	existing, err := h.users.GetByUsername(ctx, info.Email)
	if err != nil || len(existing.Photo) == 0 {
		if photo, err = h.google.DownloadPhoto(ctx, info.Picture); err != nil {
			log.Printf("[OAUTH] 下载 %s 头像失败: %v", info.Email, err)
			photo = nil
		}
	}

	user, created, err := h.users.SyncOAuthUser(ctx, repository.OAuthProfile{
		Username: info.Email,
		Email:    info.Email,
		Name:     info.Name,
		Provider: models.ProviderGoogle,
		Photo:    photo,
	})
	if errors.Is(err, repository.ErrLocalAccountExists) {
		log.Printf("[OAUTH] %s 已是本地密码账户，拒绝合并", info.Email)
		h.fail(c, state, "account_exists")
		return
	}
	if err != nil {
		log.Printf("[OAUTH] 同步用户 %s 失败: %v", info.Email, err)
		h.fail(c, state, "auth_failed")
		return
	}
	if created {
		log.Printf("[OAUTH] 新建 Google 用户: %s", user.Username)
		if h.email != nil && h.email.Enabled() {
			go func(email, name string) {
				if err := h.email.SendWelcomeEmail(email, name); err != nil {
					log.Printf("[MAIL] 发送欢迎邮件给 %s 失败: %v", email, err)
				}
			}(user.Email, user.Name)
		}
	}

	h.sessions.SetCookie(c, user.Username)
	profile := newProfileResponse(h.cfg, user)

	if state.Target == service.TargetMobile {
		jwtToken, err := h.tokens.Issue(ctx, user.Username)
		if err != nil {
			log.Printf("[OAUTH] 为 %s 签发 token 失败: %v", user.Username, err)
		}
		params := url.Values{}
		params.Set("success", "true")
		params.Set("username", profile.Username)
		params.Set("email", profile.Email)
		params.Set("name", profile.Name)
		params.Set("provider", profile.Provider)
		if profile.Photo != nil {
			params.Set("photo", *profile.Photo)
		}
		params.Set("token", jwtToken)
		c.Redirect(http.StatusFound, appendQuery(h.cfg.OAuth.Google.MobileRedirectURL, params))
		return
	}

	userJSON, _ := json.Marshal(profile)
	params := url.Values{}
	params.Set("oauth_success", "true")
	params.Set("user_data", string(userJSON))
	c.Redirect(http.StatusFound, appendQuery(state.WebRedirectURL, params))
}

// fail 跳回客户端并带上 error 参数
func (h *OAuthHandler) fail(c *gin.Context, state service.OAuthState, reason string) {
	target := state.WebRedirectURL
	if state.Target == service.TargetMobile {
		target = h.cfg.OAuth.Google.MobileRedirectURL
	}
	if target == "" {
		target = h.cfg.OAuth.Google.WebRedirectURL
	}
	c.Redirect(http.StatusFound, appendQuery(target, url.Values{"error": {reason}}))
}

// appendQuery 在已有查询串后追加参数
func appendQuery(base string, params url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}
