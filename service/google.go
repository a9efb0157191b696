package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/config"

	"github.com/google/uuid"
)

// Google OAuth 端点
const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// 头像下载上限
const maxPhotoDownload = 5 << 20

// OAuth 回调后的跳转目标
const (
	TargetWeb    = "web"
	TargetMobile = "mobile"
)

// GoogleToken token 接口返回
type GoogleToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// GoogleUserInfo 用户信息接口返回
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleClient Google 授权码登录
type GoogleClient struct {
	cfg         config.GoogleOAuthConfig
	http        *http.Client
	tokenURL    string
	userInfoURL string
}

// NewGoogleClient 创建 Google 登录客户端
func NewGoogleClient(cfg config.GoogleOAuthConfig) *GoogleClient {
	return &GoogleClient{
		cfg:         cfg,
		http:        &http.Client{Timeout: 10 * time.Second},
		tokenURL:    googleTokenURL,
		userInfoURL: googleUserInfoURL,
	}
}

// SetEndpoints 替换 token 与用户信息接口地址，测试中指向 httptest 服务器
func (g *GoogleClient) SetEndpoints(tokenURL, userInfoURL string) {
	g.tokenURL = tokenURL
	g.userInfoURL = userInfoURL
}

// Enabled 是否已配置
func (g *GoogleClient) Enabled() bool {
	return g.cfg.Enabled && g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

// BuildAuthURL 构建授权页面 URL
func (g *GoogleClient) BuildAuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", g.cfg.ClientID)
	params.Set("redirect_uri", g.cfg.RedirectURL)
	params.Set("response_type", "code")
	params.Set("scope", "openid profile email")
	params.Set("state", state)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	return googleAuthURL + "?" + params.Encode()
}

// ExchangeCode 用授权码换取 access_token
// token 接口要求 application/x-www-form-urlencoded
func (g *GoogleClient) ExchangeCode(ctx context.Context, code string) (*GoogleToken, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, err := g.do(req)
	if err != nil {
		return nil, err
	}

	var token GoogleToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if token.AccessToken == "" {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(data, &errResp)
		msg := errResp.ErrorDescription
		if msg == "" {
			msg = errResp.Error
		}
		if msg == "" {
			msg = string(data)
		}
		return nil, fmt.Errorf("Google 返回错误: %s", msg)
	}
	return &token, nil
}

// GetUserInfo 用 access_token 获取用户信息，email 作为本地用户名必须存在
func (g *GoogleClient) GetUserInfo(ctx context.Context, accessToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	data, err := g.do(req)
	if err != nil {
		return nil, err
	}

	var info GoogleUserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("Google 返回的用户信息中无 email")
	}
	return &info, nil
}

// DownloadPhoto 下载头像，失败时由调用方决定是否忽略
func (g *GoogleClient) DownloadPhoto(ctx context.Context, photoURL string) ([]byte, error) {
	if photoURL == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载头像失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载头像失败: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoDownload))
}

func (g *GoogleClient) do(req *http.Request) ([]byte, error) {
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 Google 服务器失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("Google 服务器错误: HTTP %d", resp.StatusCode)
	}
	return data, nil
}

// OAuthState 随授权请求往返的 state 内容
type OAuthState struct {
	Nonce          string `json:"nonce"`
	Target         string `json:"target"`
	WebRedirectURL string `json:"web_redirect_url,omitempty"`
}

// NewOAuthState 生成带随机 nonce 的 state，未知 target 按 web 处理
func NewOAuthState(target, webRedirectURL string) OAuthState {
	if target != TargetMobile {
		target = TargetWeb
	}
	return OAuthState{
		Nonce:          uuid.NewString(),
		Target:         target,
		WebRedirectURL: webRedirectURL,
	}
}

// Encode 编码为 base64url JSON
func (s OAuthState) Encode() string {
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeOAuthState 解析 state，兼容带填充的 base64url
func DecodeOAuthState(encoded string) (OAuthState, error) {
	var s OAuthState
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return s, fmt.Errorf("state 解码失败: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("state 解析失败: %w", err)
	}
	if s.Target != TargetMobile {
		s.Target = TargetWeb
	}
	return s, nil
}
