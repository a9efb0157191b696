package repository

import (
	"context"
	"fmt"
	"time"

	"fintrack/models"

	"github.com/shopspring/decimal"
)

// 余额历史的天数范围
const (
	MinHistoryDays     = 1
	MaxHistoryDays     = 365
	DefaultHistoryDays = 30
)

// BalancePoint 某一时刻的余额
type BalancePoint struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// AccountBalance 计算账户余额，until 不为空时只统计该时刻及之前的交易
func (r *FinanceRepository) AccountBalance(ctx context.Context, username string, accountID uint, until *time.Time) (float64, error) {
	if _, err := r.GetAccount(ctx, username, accountID); err != nil {
		return 0, err
	}
	return r.balance(ctx, username, accountID, until)
}

// BalanceHistory 按天回放余额，从 days 天前到现在，按时间正序返回 days+1 个点
func (r *FinanceRepository) BalanceHistory(ctx context.Context, username string, accountID uint, days int) ([]BalancePoint, error) {
	if days < MinHistoryDays || days > MaxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between %d and %d", ErrInvalidArgument, MinHistoryDays, MaxHistoryDays)
	}
	if _, err := r.GetAccount(ctx, username, accountID); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	points := make([]BalancePoint, 0, days+1)
	for i := days; i >= 0; i-- {
		at := now.AddDate(0, 0, -i)
		balance, err := r.balance(ctx, username, accountID, &at)
		if err != nil {
			return nil, err
		}
		points = append(points, BalancePoint{Date: at.Format(models.DateLayout), Balance: balance})
	}
	return points, nil
}

// balance 转入绝对值之和减去转出绝对值之和
func (r *FinanceRepository) balance(ctx context.Context, username string, accountID uint, until *time.Time) (float64, error) {
	incoming, err := r.sumFlow(ctx, username, "to_account_id", accountID, until)
	if err != nil {
		return 0, err
	}
	outgoing, err := r.sumFlow(ctx, username, "from_account_id", accountID, until)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromFloat(incoming).Sub(decimal.NewFromFloat(outgoing)).Round(2).InexactFloat64(), nil
}

// sumFlow column 只会是 to_account_id 或 from_account_id
func (r *FinanceRepository) sumFlow(ctx context.Context, username, column string, accountID uint, until *time.Time) (float64, error) {
	query := r.db.WithContext(ctx).Model(&models.Entry{}).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Where("user_id = ?", username).
		Where(column+" = ?", accountID)
	if until != nil {
		query = query.Where("timestamp <= ?", normalizeTime(*until))
	}

	var total float64
	if err := query.Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
