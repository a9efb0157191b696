package api

import (
	"time"

	"fintrack/config"
	"fintrack/middleware"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler 统计与缓存失效处理器
type AnalyticsHandler struct {
	cfg     *config.Config
	finance *repository.FinanceRepository
}

// NewAnalyticsHandler 创建统计处理器
func NewAnalyticsHandler(cfg *config.Config, finance *repository.FinanceRepository) *AnalyticsHandler {
	return &AnalyticsHandler{cfg: cfg, finance: finance}
}

// SpendingByCategory 按分类统计支出（expense 与 bill）
// @Summary 分类支出统计
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Success 200 {object} Response{data=repository.SpendingReport}
// @Failure 400 {object} Response
// @Router /api/analytics/spending-by-category [get]
func (h *AnalyticsHandler) SpendingByCategory(c *gin.Context) {
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if (startDate != "" && !validDate(startDate)) || (endDate != "" && !validDate(endDate)) {
		BadRequest(c, "start_date and end_date must be YYYY-MM-DD")
		return
	}

	report, err := h.finance.SpendingByCategory(c.Request.Context(), middleware.GetCurrentUsername(c), startDate, endDate)
	if err != nil {
		respondError(c, err, "Failed to calculate spending")
		return
	}
	Success(c, report)
}

// LastUpdated 返回财务数据最后修改时间，从未修改过时为 null
// @Summary 财务数据最后修改时间
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /api/finance/last-updated [get]
func (h *AnalyticsHandler) LastUpdated(c *gin.Context) {
	ts, err := h.finance.LastUpdated(c.Request.Context(), middleware.GetCurrentUsername(c))
	if err != nil {
		respondError(c, err, "Failed to fetch last updated time")
		return
	}
	var value *string
	if ts != nil {
		s := ts.UTC().Format(time.RFC3339)
		value = &s
	}
	Success(c, gin.H{"last_updated": value})
}
