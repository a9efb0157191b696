package api

import (
	"strconv"
	"strings"

	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// 搜索单页上限
const maxSearchLimit = 1000

// EntryHandler 交易记录处理器
type EntryHandler struct {
	cfg     *config.Config
	finance *repository.FinanceRepository
}

// NewEntryHandler 创建交易记录处理器
func NewEntryHandler(cfg *config.Config, finance *repository.FinanceRepository) *EntryHandler {
	return &EntryHandler{cfg: cfg, finance: finance}
}

// EntryRequest 创建交易请求；date 与 timestamp 至少给一个时按给出的推导另一个，都不给取当前时间
type EntryRequest struct {
	FromAccountID *uint    `json:"from_account_id" example:"1"`
	ToAccountID   *uint    `json:"to_account_id"`
	Amount        *float64 `json:"amount" binding:"required" example:"20"`
	Currency      string   `json:"currency" binding:"required" example:"USD"`
	Category      string   `json:"category" example:"Food"`
	Description   string   `json:"description" example:"Lunch"`
	Notes         string   `json:"notes"`
	EntryType     string   `json:"entry_type" example:"expense"`
	RecurringID   *uint    `json:"recurring_id"`
	AttachmentURL string   `json:"attachment_url"`
	Location      string   `json:"location"`
	Date          string   `json:"date" example:"2024-01-15"`
	Timestamp     string   `json:"timestamp" example:"2024-01-15T12:30:00Z"`
}

// UpdateEntryRequest 更新交易请求，未出现的字段保持不变
type UpdateEntryRequest struct {
	FromAccountID *uint    `json:"from_account_id"`
	ToAccountID   *uint    `json:"to_account_id"`
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
	Category      *string  `json:"category"`
	Description   *string  `json:"description"`
	Notes         *string  `json:"notes"`
	EntryType     *string  `json:"entry_type"`
	RecurringID   *uint    `json:"recurring_id"`
	AttachmentURL *string  `json:"attachment_url"`
	Location      *string  `json:"location"`
	Date          *string  `json:"date"`
	Timestamp     *string  `json:"timestamp"`
}

// BulkEntryRequest 批量创建请求
type BulkEntryRequest struct {
	Entries []EntryRequest `json:"entries" binding:"required,min=1,dive"`
}

// toModel 转换为模型，timestamp 无法解析时返回 false
func (r EntryRequest) toModel(username string) (models.Entry, bool) {
	e := models.Entry{
		UserID:        username,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        *r.Amount,
		Currency:      r.Currency,
		Category:      r.Category,
		Description:   r.Description,
		Notes:         r.Notes,
		EntryType:     r.EntryType,
		RecurringID:   r.RecurringID,
		AttachmentURL: r.AttachmentURL,
		Location:      r.Location,
		Date:          r.Date,
	}
	if r.Timestamp != "" {
		ts, _, err := parseFlexibleTime(r.Timestamp)
		if err != nil {
			return e, false
		}
		e.Timestamp = ts
	}
	return e, true
}

// List 列出全部交易
// @Summary 列出交易
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Entry}
// @Router /api/entries [get]
func (h *EntryHandler) List(c *gin.Context) {
	entries, err := h.finance.ListEntries(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch entries")
		return
	}
	Success(c, entries)
}

// Create 创建交易
// @Summary 创建交易
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EntryRequest true "交易"
// @Success 201 {object} Response{data=IDResponse}
// @Failure 400 {object} Response
// @Router /api/entries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Amount and currency are required")
		return
	}
	entry, ok := req.toModel(middleware.GetCurrentUsername(c))
	if !ok {
		BadRequest(c, "Invalid timestamp")
		return
	}
	if err := h.finance.CreateEntry(c.Request.Context(), &entry); err != nil {
		respondError(c, err, "Failed to create entry")
		return
	}
	Created(c, "Entry created successfully", IDResponse{ID: entry.ID})
}

// BulkCreate 批量创建交易，任一条失败则全部不写入
// @Summary 批量创建交易
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkEntryRequest true "交易列表"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Router /api/entries/bulk [post]
func (h *EntryHandler) BulkCreate(c *gin.Context) {
	var req BulkEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "entries must be a non-empty list, each with amount and currency")
		return
	}

	username := middleware.GetCurrentUsername(c)
	entries := make([]models.Entry, 0, len(req.Entries))
	for i, r := range req.Entries {
		e, ok := r.toModel(username)
		if !ok {
			BadRequest(c, "Invalid timestamp in entry "+strconv.Itoa(i))
			return
		}
		entries = append(entries, e)
	}

	ids, err := h.finance.BulkCreateEntries(c.Request.Context(), username, entries)
	if err != nil {
		respondError(c, err, "Failed to create entries")
		return
	}
	Created(c, "Entries created successfully", gin.H{"ids": ids, "count": len(ids)})
}

// Get 获取单条交易
// @Summary 获取交易
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response{data=models.Entry}
// @Failure 404 {object} Response
// @Router /api/entries/{id} [get]
func (h *EntryHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.finance.GetEntry(c.Request.Context(), middleware.GetCurrentUsername(c), id)
	if err != nil {
		respondError(c, err, "Failed to fetch entry")
		return
	}
	Success(c, entry)
}

// Update 更新交易
// @Summary 更新交易
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param request body UpdateEntryRequest true "交易"
// @Success 200 {object} Response{data=models.Entry}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/entries/{id} [put]
func (h *EntryHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, h.cfg.SafeErrorMessage(err, "Invalid request body"))
		return
	}

	update := repository.EntryUpdate{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Category:      req.Category,
		Description:   req.Description,
		Notes:         req.Notes,
		EntryType:     req.EntryType,
		RecurringID:   req.RecurringID,
		AttachmentURL: req.AttachmentURL,
		Location:      req.Location,
		Date:          req.Date,
	}
	if req.Timestamp != nil {
		ts, _, err := parseFlexibleTime(*req.Timestamp)
		if err != nil {
			BadRequest(c, "Invalid timestamp")
			return
		}
		update.Timestamp = &ts
	}

	entry, err := h.finance.UpdateEntry(c.Request.Context(), middleware.GetCurrentUsername(c), id, update)
	if err != nil {
		respondError(c, err, "Failed to update entry")
		return
	}
	SuccessWithMessage(c, "Entry updated successfully", entry)
}

// Delete 删除交易
// @Summary 删除交易
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/entries/{id} [delete]
func (h *EntryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.finance.DeleteEntry(c.Request.Context(), middleware.GetCurrentUsername(c), id); err != nil {
		respondError(c, err, "Failed to delete entry")
		return
	}
	SuccessWithMessage(c, "Entry deleted successfully", nil)
}

// Search 搜索交易
// @Summary 搜索交易
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param category query string false "分类子串"
// @Param entry_type query string false "交易类型"
// @Param q query string false "描述/备注子串"
// @Param amount_min query number false "最小金额（绝对值）"
// @Param amount_max query number false "最大金额（绝对值）"
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Param account_id query int false "来源或目标账户"
// @Param limit query int false "条数"
// @Param offset query int false "偏移"
// @Success 200 {object} Response{data=[]models.EntryDetail}
// @Failure 400 {object} Response
// @Router /api/entries/search [get]
func (h *EntryHandler) Search(c *gin.Context) {
	filter, msg := parseSearchFilter(c)
	if msg != "" {
		BadRequest(c, msg)
		return
	}
	results, err := h.finance.SearchEntries(c.Request.Context(), middleware.GetCurrentUsername(c), filter)
	if err != nil {
		respondError(c, err, "Failed to search entries")
		return
	}
	Success(c, results)
}

// parseSearchFilter 解析搜索参数，返回的 msg 非空表示参数错误
func parseSearchFilter(c *gin.Context) (repository.SearchFilter, string) {
	f := repository.SearchFilter{
		Category:  strings.TrimSpace(c.Query("category")),
		EntryType: strings.TrimSpace(c.Query("entry_type")),
		Text:      firstQuery(c, "q", "text", "description"),
		DateFrom:  firstQuery(c, "start_date", "date_from"),
		DateTo:    firstQuery(c, "end_date", "date_to"),
	}

	for _, p := range []struct {
		name string
		dst  **float64
	}{{"amount_min", &f.AmountMin}, {"amount_max", &f.AmountMax}} {
		if raw := c.Query(p.name); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return f, p.name + " must be a number"
			}
			*p.dst = &v
		}
	}
	if f.DateFrom != "" && !validDate(f.DateFrom) {
		return f, "start_date must be YYYY-MM-DD"
	}
	if f.DateTo != "" && !validDate(f.DateTo) {
		return f, "end_date must be YYYY-MM-DD"
	}
	if raw := c.Query("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return f, "account_id must be an integer"
		}
		aid := uint(id)
		f.AccountID = &aid
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, "limit must be a non-negative integer"
		}
		if n > maxSearchLimit {
			n = maxSearchLimit
		}
		f.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, "offset must be a non-negative integer"
		}
		f.Offset = n
	}
	return f, ""
}

// firstQuery 依次取第一个非空的查询参数
func firstQuery(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			return v
		}
	}
	return ""
}

// Categories 列出用过的分类及使用次数
// @Summary 交易分类
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]repository.CategoryUsage}
// @Router /api/entries/categories [get]
func (h *EntryHandler) Categories(c *gin.Context) {
	categories, err := h.finance.ListCategories(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch categories")
		return
	}
	Success(c, categories)
}

// DateLimits 交易的最早与最晚日期
// @Summary 交易日期范围
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=repository.DateLimits}
// @Router /api/entries/date-limits [get]
func (h *EntryHandler) DateLimits(c *gin.Context) {
	limits, err := h.finance.EntryDateLimits(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch date limits")
		return
	}
	Success(c, limits)
}
