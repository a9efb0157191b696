package api

import (
	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// TagHandler 标签及交易标签处理器
type TagHandler struct {
	cfg     *config.Config
	finance *repository.FinanceRepository
}

// NewTagHandler 创建标签处理器
func NewTagHandler(cfg *config.Config, finance *repository.FinanceRepository) *TagHandler {
	return &TagHandler{cfg: cfg, finance: finance}
}

// TagRequest 创建标签请求
type TagRequest struct {
	Name string `json:"name" binding:"required" example:"travel"`
}

// EntryTagRequest 给交易打标签请求
type EntryTagRequest struct {
	TagID uint `json:"tag_id" binding:"required" example:"1"`
}

// List 列出标签
// @Summary 列出标签
// @Tags 标签
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Tag}
// @Router /api/tags [get]
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.finance.ListTags(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch tags")
		return
	}
	Success(c, tags)
}

// Create 创建标签
// @Summary 创建标签
// @Tags 标签
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TagRequest true "标签"
// @Success 201 {object} Response{data=IDResponse}
// @Failure 400 {object} Response
// @Failure 409 {object} Response "同名标签已存在"
// @Router /api/tags [post]
func (h *TagHandler) Create(c *gin.Context) {
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Tag name is required")
		return
	}
	tag := models.Tag{UserID: middleware.GetCurrentUsername(c), Name: req.Name}
	if err := h.finance.CreateTag(c.Request.Context(), &tag); err != nil {
		respondError(c, err, "Failed to create tag")
		return
	}
	Created(c, "Tag created successfully", IDResponse{ID: tag.ID})
}

// ListEntryTags 列出交易的标签
// @Summary 交易的标签
// @Tags 标签
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response{data=[]models.Tag}
// @Failure 404 {object} Response
// @Router /api/entries/{id}/tags [get]
func (h *TagHandler) ListEntryTags(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	tags, err := h.finance.ListEntryTags(c.Request.Context(), middleware.GetCurrentUsername(c), entryID)
	if err != nil {
		respondError(c, err, "Failed to fetch entry tags")
		return
	}
	Success(c, tags)
}

// AddEntryTag 给交易打标签，重复添加不报错
// @Summary 添加交易标签
// @Tags 标签
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param request body EntryTagRequest true "标签"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response "交易或标签不存在"
// @Router /api/entries/{id}/tags [post]
func (h *TagHandler) AddEntryTag(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req EntryTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "tag_id is required")
		return
	}
	if err := h.finance.AddEntryTag(c.Request.Context(), middleware.GetCurrentUsername(c), entryID, req.TagID); err != nil {
		respondError(c, err, "Failed to add tag to entry")
		return
	}
	Created(c, "Tag added to entry successfully", nil)
}

// RemoveEntryTag 移除交易标签
// @Summary 移除交易标签
// @Tags 标签
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param tag_id path int true "标签ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/entries/{id}/tags/{tag_id} [delete]
func (h *TagHandler) RemoveEntryTag(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	tagID, ok := parseID(c, "tag_id")
	if !ok {
		return
	}
	if err := h.finance.RemoveEntryTag(c.Request.Context(), middleware.GetCurrentUsername(c), entryID, tagID); err != nil {
		respondError(c, err, "Failed to remove tag from entry")
		return
	}
	SuccessWithMessage(c, "Tag removed from entry successfully", nil)
}
