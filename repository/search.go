package repository

import (
	"context"
	"strings"

	"fintrack/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SearchFilter 交易搜索条件，零值字段不参与过滤。
// Category 为分类子串；Text 在描述、备注和分类中做子串匹配；DateFrom / DateTo 为 YYYY-MM-DD 闭区间
type SearchFilter struct {
	Category  string
	EntryType string
	Text      string
	AmountMin *float64
	AmountMax *float64
	DateFrom  string
	DateTo    string
	AccountID *uint
	Limit     int
	Offset    int
}

// CategoryUsage 分类及其使用次数
type CategoryUsage struct {
	Name       string `json:"name"`
	UsageCount int64  `json:"usage_count"`
}

// DateLimits 用户交易的最早和最晚日期
type DateLimits struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// CategorySpending 单个分类的支出统计
type CategorySpending struct {
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Count         int64   `json:"count"`
	AverageAmount float64 `json:"average_amount"`
	Percentage    float64 `json:"percentage"`
}

// SpendingReport 分类支出报表
type SpendingReport struct {
	Categories        []CategorySpending `json:"categories"`
	TotalSpending     float64            `json:"total_spending"`
	TotalTransactions int64              `json:"total_transactions"`
}

// SearchEntries 按条件搜索交易，附带来源/目标账户名称
func (r *FinanceRepository) SearchEntries(ctx context.Context, username string, f SearchFilter) ([]models.EntryDetail, error) {
	query := r.db.WithContext(ctx).Table("entries AS e").
		Select("e.*, fa.name AS from_account_name, ta.name AS to_account_name").
		Joins("LEFT JOIN accounts AS fa ON fa.id = e.from_account_id AND fa.user_id = e.user_id").
		Joins("LEFT JOIN accounts AS ta ON ta.id = e.to_account_id AND ta.user_id = e.user_id").
		Where("e.user_id = ?", username)
	query = applySearchFilter(query, f)
	query = query.Order("e.timestamp DESC").Order("e.id DESC")
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
		if f.Offset > 0 {
			query = query.Offset(f.Offset)
		}
	}

	results := []models.EntryDetail{}
	if err := query.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func applySearchFilter(query *gorm.DB, f SearchFilter) *gorm.DB {
	if f.Category != "" {
		query = query.Where("e.category LIKE ? ESCAPE '!'", containsPattern(f.Category))
	}
	if f.EntryType != "" {
		query = query.Where("e.entry_type = ?", f.EntryType)
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		p := containsPattern(text)
		query = query.Where(
			"(e.description LIKE ? ESCAPE '!' OR e.notes LIKE ? ESCAPE '!' OR e.category LIKE ? ESCAPE '!')",
			p, p, p,
		)
	}
	// 金额按绝对值比较
	if f.AmountMin != nil {
		query = query.Where("ABS(e.amount) >= ?", *f.AmountMin)
	}
	if f.AmountMax != nil {
		query = query.Where("ABS(e.amount) <= ?", *f.AmountMax)
	}
	if f.DateFrom != "" {
		query = query.Where("e.date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		query = query.Where("e.date <= ?", f.DateTo)
	}
	if f.AccountID != nil {
		query = query.Where("(e.from_account_id = ? OR e.to_account_id = ?)", *f.AccountID, *f.AccountID)
	}
	return query
}

// ListCategories 列出用过的分类，按使用次数降序
func (r *FinanceRepository) ListCategories(ctx context.Context, username string) ([]CategoryUsage, error) {
	categories := []CategoryUsage{}
	err := r.db.WithContext(ctx).Model(&models.Entry{}).
		Select("category AS name, COUNT(*) AS usage_count").
		Where("user_id = ? AND category IS NOT NULL AND category <> ''", username).
		Group("category").
		Order("usage_count DESC").Order("category").
		Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// EntryDateLimits 查询交易日期范围，没有交易时两端均为 nil
func (r *FinanceRepository) EntryDateLimits(ctx context.Context, username string) (*DateLimits, error) {
	var row struct {
		StartDate *string
		EndDate   *string
	}
	err := r.db.WithContext(ctx).Model(&models.Entry{}).
		Select("MIN(date) AS start_date, MAX(date) AS end_date").
		Where("user_id = ?", username).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &DateLimits{StartDate: row.StartDate, EndDate: row.EndDate}, nil
}

// SpendingByCategory 统计日期区间内 expense 与 bill 类交易的分类支出
func (r *FinanceRepository) SpendingByCategory(ctx context.Context, username, dateFrom, dateTo string) (*SpendingReport, error) {
	query := r.db.WithContext(ctx).Model(&models.Entry{}).
		Select("COALESCE(NULLIF(category, ''), 'Uncategorized') AS category, SUM(ABS(amount)) AS amount, COUNT(*) AS count").
		Where("user_id = ?", username).
		Where("entry_type IN ?", models.SpendingTypes())
	if dateFrom != "" {
		query = query.Where("date >= ?", dateFrom)
	}
	if dateTo != "" {
		query = query.Where("date <= ?", dateTo)
	}

	var rows []struct {
		Category string
		Amount   float64
		Count    int64
	}
	if err := query.Group("COALESCE(NULLIF(category, ''), 'Uncategorized')").
		Order("amount DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	var count int64
	for _, row := range rows {
		total = total.Add(decimal.NewFromFloat(row.Amount))
		count += row.Count
	}

	report := &SpendingReport{
		Categories:        make([]CategorySpending, 0, len(rows)),
		TotalSpending:     total.Round(2).InexactFloat64(),
		TotalTransactions: count,
	}
	for _, row := range rows {
		amount := decimal.NewFromFloat(row.Amount)
		item := CategorySpending{
			Category: row.Category,
			Amount:   round2(row.Amount),
			Count:    row.Count,
		}
		if row.Count > 0 {
			item.AverageAmount = amount.Div(decimal.NewFromInt(row.Count)).Round(2).InexactFloat64()
		}
		if total.IsPositive() {
			item.Percentage = amount.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
		report.Categories = append(report.Categories, item)
	}
	return report, nil
}
