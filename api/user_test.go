package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserRouter(t *testing.T) (*gin.Engine, *repository.UserRepository) {
	t.Helper()
	cfg := testConfig(t)
	cfg.Upload.MaxPhotoBytes = 64
	users := repository.NewUserRepository(setupTestDB(t, cfg).User)
	mustCreateUser(t, users, "alice")

	h := NewUserHandler(cfg, users)
	router := gin.New()
	router.GET("/api/users/:username/photo", h.GetPhoto)
	authorized := router.Group("/api/users/profile", setUsernameMiddleware("alice"))
	authorized.GET("", h.GetProfile)
	authorized.PUT("", h.UpdateProfile)
	authorized.POST("/photo", h.UploadPhoto)
	return router, users
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadPhoto_JSONBase64(t *testing.T) {
	router, _ := setupUserRouter(t)

	w := serve(router, httptest.NewRequest("GET", "/api/users/alice/photo", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Photo not found", decodeResponse(t, w)["message"])

	body := `{"photo":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngHeader) + `"}`
	req := httptest.NewRequest("POST", "/api/users/profile/photo", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w = serve(router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Photo uploaded successfully", decodeResponse(t, w)["message"])

	w = serve(router, httptest.NewRequest("GET", "/api/users/alice/photo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, pngHeader, w.Body.Bytes())

	// 资料中给出头像地址
	w = serve(router, httptest.NewRequest("GET", "/api/users/profile", nil))
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "http://localhost:8080/api/users/alice/photo", data["photo"])
}

func TestUploadPhoto_Multipart(t *testing.T) {
	router, _ := setupUserRouter(t)

	newUpload := func(content []byte) *http.Request {
		buf := new(bytes.Buffer)
		mw := multipart.NewWriter(buf)
		part, err := mw.CreateFormFile("photo", "me.png")
		require.NoError(t, err)
		_, _ = part.Write(content)
		require.NoError(t, mw.Close())
		req := httptest.NewRequest("POST", "/api/users/profile/photo", buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	w := serve(router, newUpload(pngHeader))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(router, newUpload(bytes.Repeat([]byte{1}, 65)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Photo is too large", decodeResponse(t, w)["message"])

	req := httptest.NewRequest("POST", "/api/users/profile/photo", bytes.NewBufferString(`{"photo":"***"}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadPhoto_JSONBodyLimit(t *testing.T) {
	router, users := setupUserRouter(t)

	huge := strings.Repeat("A", 200<<10)
	req := httptest.NewRequest("POST", "/api/users/profile/photo", bytes.NewBufferString(`{"photo":"`+huge+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Photo is too large", decodeResponse(t, w)["message"])

	user, err := users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, user.Photo)
}

func TestUpdateProfile_MergesPreferences(t *testing.T) {
	router, _ := setupUserRouter(t)

	req := httptest.NewRequest("PUT", "/api/users/profile", bytes.NewBufferString(`{"name":"Alice A","preferences":{"theme":"dark"}}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Alice A", data["name"])
	prefs := data["preferences"].(map[string]interface{})
	assert.Equal(t, "dark", prefs["theme"])
	assert.Equal(t, "en", prefs["language"])
}
