package api

import (
	"strconv"
	"time"

	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// AccountHandler 资金账户处理器
type AccountHandler struct {
	cfg     *config.Config
	finance *repository.FinanceRepository
}

// NewAccountHandler 创建资金账户处理器
func NewAccountHandler(cfg *config.Config, finance *repository.FinanceRepository) *AccountHandler {
	return &AccountHandler{cfg: cfg, finance: finance}
}

// AccountRequest 创建账户请求
type AccountRequest struct {
	Name        string `json:"name" binding:"required" example:"Checking"`
	Type        string `json:"type" example:"checking"`
	Currency    string `json:"currency" example:"USD"`
	Institution string `json:"institution" example:"Chase"`
	Metadata    string `json:"metadata"`
}

// UpdateAccountRequest 更新账户请求，未出现的字段保持不变
type UpdateAccountRequest struct {
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	Currency    *string `json:"currency"`
	Institution *string `json:"institution"`
	Metadata    *string `json:"metadata"`
}

// List 列出账户及余额
// @Summary 列出账户
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.AccountWithBalance}
// @Failure 401 {object} Response
// @Router /api/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.finance.ListAccounts(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch accounts")
		return
	}
	Success(c, accounts)
}

// Create 创建账户
// @Summary 创建账户
// @Tags 账户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AccountRequest true "账户"
// @Success 201 {object} Response{data=IDResponse}
// @Failure 400 {object} Response
// @Router /api/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Account name is required")
		return
	}

	account := models.Account{
		UserID:      middleware.GetCurrentUsername(c),
		Name:        req.Name,
		Type:        req.Type,
		Currency:    req.Currency,
		Institution: req.Institution,
		Metadata:    req.Metadata,
	}
	if err := h.finance.CreateAccount(c.Request.Context(), &account); err != nil {
		respondError(c, err, "Failed to create account")
		return
	}
	Created(c, "Account created successfully", IDResponse{ID: account.ID})
}

// Get 获取单个账户
// @Summary 获取账户
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Success 200 {object} Response{data=models.Account}
// @Failure 404 {object} Response
// @Router /api/accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	account, err := h.finance.GetAccount(c.Request.Context(), middleware.GetCurrentUsername(c), id)
	if err != nil {
		respondError(c, err, "Failed to fetch account")
		return
	}
	Success(c, account)
}

// Update 更新账户
// @Summary 更新账户
// @Tags 账户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Param request body UpdateAccountRequest true "账户"
// @Success 200 {object} Response{data=models.Account}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/accounts/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, h.cfg.SafeErrorMessage(err, "Invalid request body"))
		return
	}

	account, err := h.finance.UpdateAccount(c.Request.Context(), middleware.GetCurrentUsername(c), id, repository.AccountUpdate{
		Name:        req.Name,
		Type:        req.Type,
		Currency:    req.Currency,
		Institution: req.Institution,
		Metadata:    req.Metadata,
	})
	if err != nil {
		respondError(c, err, "Failed to update account")
		return
	}
	SuccessWithMessage(c, "Account updated successfully", account)
}

// Delete 删除账户，仍有交易引用时返回 409
// @Summary 删除账户
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response "仍有交易引用"
// @Router /api/accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.finance.DeleteAccount(c.Request.Context(), middleware.GetCurrentUsername(c), id); err != nil {
		respondError(c, err, "Failed to delete account")
		return
	}
	SuccessWithMessage(c, "Account deleted successfully", nil)
}

// Balance 查询账户余额，end_date 可为日期或时间，纯日期包含当天
// @Summary 账户余额
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Param end_date query string false "截止时间 (2024-01-31 或 RFC3339)"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/accounts/{id}/balance [get]
func (h *AccountHandler) Balance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var until *time.Time
	if raw := c.Query("end_date"); raw != "" {
		t, err := parseEndTime(raw)
		if err != nil {
			BadRequest(c, "Invalid end_date")
			return
		}
		until = &t
	}

	balance, err := h.finance.AccountBalance(c.Request.Context(), middleware.GetCurrentUsername(c), id, until)
	if err != nil {
		respondError(c, err, "Failed to calculate balance")
		return
	}
	data := gin.H{"account_id": id, "balance": balance}
	if until != nil {
		data["end_date"] = until.Format(time.RFC3339)
	}
	Success(c, data)
}

// BalanceHistory 按天返回余额历史
// @Summary 余额历史
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Param id path int true "账户ID"
// @Param days query int false "天数 1-365" default(30)
// @Success 200 {object} Response{data=[]repository.BalancePoint}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/accounts/{id}/balance/history [get]
func (h *AccountHandler) BalanceHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	days := repository.DefaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(c, "days must be an integer")
			return
		}
		days = n
	}

	history, err := h.finance.BalanceHistory(c.Request.Context(), middleware.GetCurrentUsername(c), id, days)
	if err != nil {
		respondError(c, err, "Failed to calculate balance history")
		return
	}
	Success(c, gin.H{"account_id": id, "days": days, "history": history})
}
