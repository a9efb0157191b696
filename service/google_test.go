package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"fintrack/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogleClient() *GoogleClient {
	return NewGoogleClient(config.GoogleOAuthConfig{
		Enabled:      true,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:5000/api/auth/callback",
	})
}

// withEndpoints 把 Google 端点指向测试服务器
func withEndpoints(g *GoogleClient, srv *httptest.Server) *GoogleClient {
	g.SetEndpoints(srv.URL+"/token", srv.URL+"/userinfo")
	return g
}

func TestBuildAuthURL(t *testing.T) {
	g := newTestGoogleClient()
	u := g.BuildAuthURL("abc")
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", parsed.Host)
	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:5000/api/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "abc", q.Get("state"))
}

func TestEnabled(t *testing.T) {
	assert.True(t, newTestGoogleClient().Enabled())
	assert.False(t, NewGoogleClient(config.GoogleOAuthConfig{Enabled: true}).Enabled())
}

func TestExchangeCodeAndUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = r.ParseForm()
			if r.PostForm.Get("code") != "good" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
				return
			}
			assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
			_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer at-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"1","email":"g@example.com","name":"G","picture":"` + "http://" + r.Host + `/photo"}`))
		case "/photo":
			_, _ = w.Write([]byte{0xFF, 0xD8})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	g := withEndpoints(newTestGoogleClient(), srv)

	_, err := g.ExchangeCode(ctx, "bad")
	assert.ErrorContains(t, err, "Bad Request")

	token, err := g.ExchangeCode(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)

	info, err := g.GetUserInfo(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "g@example.com", info.Email)

	_, err = g.GetUserInfo(ctx, "wrong")
	assert.Error(t, err)

	photo, err := g.DownloadPhoto(ctx, info.Picture)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, photo)

	_, err = g.DownloadPhoto(ctx, srv.URL+"/missing")
	assert.Error(t, err)
}

func TestOAuthStateRoundTrip(t *testing.T) {
	s := NewOAuthState(TargetMobile, "")
	assert.NotEmpty(t, s.Nonce)

	decoded, err := DecodeOAuthState(s.Encode())
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	// 未知 target 按 web 处理
	assert.Equal(t, TargetWeb, NewOAuthState("desktop", "http://localhost:3000").Target)

	_, err = DecodeOAuthState("%%%")
	assert.Error(t, err)
}
