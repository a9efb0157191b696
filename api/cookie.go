package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// oauthStateCookie 发起 Google 登录时保存 state，回调时比对
const oauthStateCookie = "fintrack_oauth_state"

const oauthStateTTL = 10 * time.Minute

// getCookieOptions 根据运行模式返回 Cookie 的安全选项
// release 模式下启用 Secure，SameSite=Lax 允许 Google 回调这类顶层导航携带
func getCookieOptions(release bool) (secure bool, sameSite http.SameSite) {
	return release, http.SameSiteLaxMode
}

func setStateCookie(c *gin.Context, state string, release bool) {
	secure, sameSite := getCookieOptions(release)
	c.SetSameSite(sameSite)
	c.SetCookie(oauthStateCookie, state, int(oauthStateTTL.Seconds()), "/", "", secure, true)
}

func clearStateCookie(c *gin.Context, release bool) {
	secure, sameSite := getCookieOptions(release)
	c.SetSameSite(sameSite)
	c.SetCookie(oauthStateCookie, "", -1, "/", "", secure, true)
}
