package api

import (
	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// HoldingsHandler 投资与预算处理器
type HoldingsHandler struct {
	cfg     *config.Config
	finance *repository.FinanceRepository
}

// NewHoldingsHandler 创建投资与预算处理器
func NewHoldingsHandler(cfg *config.Config, finance *repository.FinanceRepository) *HoldingsHandler {
	return &HoldingsHandler{cfg: cfg, finance: finance}
}

// InvestmentRequest 新增投资请求
type InvestmentRequest struct {
	AccountID *uint   `json:"account_id"`
	AssetType string  `json:"asset_type" example:"stock"`
	Symbol    string  `json:"symbol" example:"AAPL"`
	Quantity  float64 `json:"quantity" example:"10"`
	Value     float64 `json:"value" example:"1895.5"`
	Currency  string  `json:"currency" example:"USD"`
	Timestamp string  `json:"timestamp"`
}

// BudgetRequest 新增预算请求
type BudgetRequest struct {
	Name        string   `json:"name" example:"Groceries"`
	Category    string   `json:"category" example:"Food"`
	AccountID   *uint    `json:"account_id"`
	Amount      *float64 `json:"amount" binding:"required" example:"400"`
	Period      string   `json:"period" example:"monthly"`
	StartDate   string   `json:"start_date" example:"2024-01-01"`
	EndDate     string   `json:"end_date"`
	GoalType    string   `json:"goal_type"`
	Description string   `json:"description"`
}

// ListInvestments 列出投资持仓
// @Summary 列出投资
// @Tags 投资与预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Investment}
// @Router /api/investments [get]
func (h *HoldingsHandler) ListInvestments(c *gin.Context) {
	investments, err := h.finance.ListInvestments(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch investments")
		return
	}
	Success(c, investments)
}

// CreateInvestment 新增投资持仓
// @Summary 新增投资
// @Tags 投资与预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InvestmentRequest true "投资"
// @Success 201 {object} Response{data=IDResponse}
// @Failure 400 {object} Response
// @Router /api/investments [post]
func (h *HoldingsHandler) CreateInvestment(c *gin.Context) {
	var req InvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, h.cfg.SafeErrorMessage(err, "Invalid request body"))
		return
	}

	inv := models.Investment{
		UserID:    middleware.GetCurrentUsername(c),
		AccountID: req.AccountID,
		AssetType: req.AssetType,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		Value:     req.Value,
		Currency:  req.Currency,
	}
	if req.Timestamp != "" {
		ts, _, err := parseFlexibleTime(req.Timestamp)
		if err != nil {
			BadRequest(c, "Invalid timestamp")
			return
		}
		inv.Timestamp = ts
	}
	if err := h.finance.CreateInvestment(c.Request.Context(), &inv); err != nil {
		respondError(c, err, "Failed to create investment")
		return
	}
	Created(c, "Investment created successfully", IDResponse{ID: inv.ID})
}

// ListBudgets 列出预算
// @Summary 列出预算
// @Tags 投资与预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Budget}
// @Router /api/budgets [get]
func (h *HoldingsHandler) ListBudgets(c *gin.Context) {
	budgets, err := h.finance.ListBudgets(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch budgets")
		return
	}
	Success(c, budgets)
}

// CreateBudget 新增预算
// @Summary 新增预算
// @Tags 投资与预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetRequest true "预算"
// @Success 201 {object} Response{data=IDResponse}
// @Failure 400 {object} Response
// @Router /api/budgets [post]
func (h *HoldingsHandler) CreateBudget(c *gin.Context) {
	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Budget amount is required")
		return
	}
	for _, d := range []string{req.StartDate, req.EndDate} {
		if d != "" && !validDate(d) {
			BadRequest(c, "start_date and end_date must be YYYY-MM-DD")
			return
		}
	}

	budget := models.Budget{
		UserID:      middleware.GetCurrentUsername(c),
		Name:        req.Name,
		Category:    req.Category,
		AccountID:   req.AccountID,
		Amount:      *req.Amount,
		Period:      req.Period,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		GoalType:    req.GoalType,
		Description: req.Description,
	}
	if err := h.finance.CreateBudget(c.Request.Context(), &budget); err != nil {
		respondError(c, err, "Failed to create budget")
		return
	}
	Created(c, "Budget created successfully", IDResponse{ID: budget.ID})
}
