package api

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户资料处理器
type UserHandler struct {
	cfg   *config.Config
	users *repository.UserRepository
}

// NewUserHandler 创建用户资料处理器
func NewUserHandler(cfg *config.Config, users *repository.UserRepository) *UserHandler {
	return &UserHandler{cfg: cfg, users: users}
}

// ProfileResponse 用户资料
type ProfileResponse struct {
	ID          uint                   `json:"id"`
	Username    string                 `json:"username"`
	Name        string                 `json:"name"`
	Email       string                 `json:"email"`
	Provider    string                 `json:"provider"`
	Photo       *string                `json:"photo"`
	Preferences map[string]interface{} `json:"preferences"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// UpdateProfileRequest 更新资料请求，未出现的字段保持不变
type UpdateProfileRequest struct {
	Name        *string                `json:"name" example:"Alice"`
	Email       *string                `json:"email" binding:"omitempty,email" example:"alice@example.com"`
	Preferences map[string]interface{} `json:"preferences"`
}

// PhotoUploadRequest JSON 方式上传头像
type PhotoUploadRequest struct {
	Photo string `json:"photo" binding:"required"` // base64
}

// newProfileResponse 构造资料响应，有头像时给出头像地址
func newProfileResponse(cfg *config.Config, u *models.User) ProfileResponse {
	resp := ProfileResponse{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Provider:    u.Provider,
		Preferences: repository.DecodePreferences(u.Preferences),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if len(u.Photo) > 0 {
		photo := photoURL(cfg, u.Username)
		resp.Photo = &photo
	}
	return resp
}

func photoURL(cfg *config.Config, username string) string {
	return cfg.PublicBaseURL() + "/api/users/" + url.PathEscape(username) + "/photo"
}

// GetProfile 获取当前用户资料
// @Summary 获取当前用户资料
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=ProfileResponse}
// @Failure 401 {object} Response
// @Failure 404 {object} Response
// @Router /api/users/profile [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.users.GetByUsername(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, newProfileResponse(h.cfg, user))
}

// UpdateProfile 更新当前用户资料，偏好与已有值合并
// @Summary 更新当前用户资料
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "资料"
// @Success 200 {object} Response{data=ProfileResponse}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Router /api/users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, h.cfg.SafeErrorMessage(err, "Invalid request body"))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetCurrentUsername(c), repository.ProfileUpdate{
		Name:        req.Name,
		Email:       req.Email,
		Preferences: req.Preferences,
	})
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, newProfileResponse(h.cfg, user))
}

// ProfileTimestamp 资料的创建与修改时间，客户端据此判断缓存是否过期
// @Summary 获取资料时间戳
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /api/users/profile/timestamp [get]
func (h *UserHandler) ProfileTimestamp(c *gin.Context) {
	user, err := h.users.GetByUsername(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, gin.H{
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	})
}

// UploadPhoto 上传头像，支持 JSON base64 与 multipart 字段 photo
// @Summary 上传头像
// @Tags 用户
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param photo formData file false "头像文件"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /api/users/profile/photo [post]
func (h *UserHandler) UploadPhoto(c *gin.Context) {
	maxBytes := h.cfg.Upload.MaxPhotoBytes
	isJSON := strings.HasPrefix(c.ContentType(), "application/json")

	// base64 膨胀 4/3，另留出 JSON 或 multipart 的包装开销
	bodyLimit := maxBytes + photoBodySlack
	if isJSON {
		bodyLimit = (maxBytes+2)/3*4 + photoBodySlack
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)

	var photo []byte
	if isJSON {
		var req PhotoUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if isBodyTooLarge(err) {
				BadRequest(c, "Photo is too large")
				return
			}
			BadRequest(c, "No photo data provided")
			return
		}
		decoded, err := decodeBase64Photo(req.Photo)
		if err != nil {
			BadRequest(c, "Invalid photo data")
			return
		}
		photo = decoded
	} else {
		file, err := c.FormFile("photo")
		if isBodyTooLarge(err) {
			BadRequest(c, "Photo is too large")
			return
		}
		if err != nil {
			BadRequest(c, "No photo file provided")
			return
		}
		if file.Size > maxBytes {
			BadRequest(c, "Photo is too large")
			return
		}
		f, err := file.Open()
		if err != nil {
			BadRequest(c, "Failed to process photo")
			return
		}
		defer f.Close()
		photo, err = io.ReadAll(io.LimitReader(f, maxBytes+1))
		if err != nil {
			BadRequest(c, "Failed to process photo")
			return
		}
	}

	if len(photo) == 0 {
		BadRequest(c, "Failed to process photo")
		return
	}
	if int64(len(photo)) > maxBytes {
		BadRequest(c, "Photo is too large")
		return
	}

	username := middleware.GetCurrentUsername(c)
	if err := h.users.UpdatePhoto(c.Request.Context(), username, photo); err != nil {
		respondError(c, err, "Failed to upload photo")
		return
	}
	SuccessWithMessage(c, "Photo uploaded successfully", gin.H{"photo": photoURL(h.cfg, username)})
}

const photoBodySlack = 64 << 10

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// decodeBase64Photo 兼容 data URL 前缀
func decodeBase64Photo(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty photo")
	}
	return base64.StdEncoding.DecodeString(s)
}

// GetPhoto 按用户名返回头像原始字节，无需认证
// @Summary 获取用户头像
// @Tags 用户
// @Produce image/jpeg
// @Param username path string true "用户名"
// @Success 200 {file} file "头像"
// @Failure 404 {object} Response
// @Router /api/users/{username}/photo [get]
func (h *UserHandler) GetPhoto(c *gin.Context) {
	photo, err := h.users.GetPhoto(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Photo not found")
			return
		}
		respondError(c, err, "")
		return
	}

	contentType := http.DetectContentType(photo)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, contentType, photo)
}
