package repository

import (
	"context"

	"fintrack/models"
)

// ListInvestments 列出用户的投资持仓
func (r *FinanceRepository) ListInvestments(ctx context.Context, username string) ([]models.Investment, error) {
	investments := []models.Investment{}
	err := r.db.WithContext(ctx).Where("user_id = ?", username).
		Order("timestamp DESC").Order("id DESC").
		Find(&investments).Error
	return investments, err
}

// CreateInvestment 新增投资持仓，未指定时间时取当前时间；account_id 须属于该用户
func (r *FinanceRepository) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	inv.ID = 0
	if err := r.checkAccounts(ctx, inv.UserID, inv.AccountID); err != nil {
		return err
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = r.now()
	}
	inv.Timestamp = normalizeTime(inv.Timestamp)
	return r.db.WithContext(ctx).Create(inv).Error
}

// ListBudgets 列出用户的预算
func (r *FinanceRepository) ListBudgets(ctx context.Context, username string) ([]models.Budget, error) {
	budgets := []models.Budget{}
	err := r.db.WithContext(ctx).Where("user_id = ?", username).Order("id").Find(&budgets).Error
	return budgets, err
}

// CreateBudget 新增预算
func (r *FinanceRepository) CreateBudget(ctx context.Context, budget *models.Budget) error {
	budget.ID = 0
	if err := r.checkAccounts(ctx, budget.UserID, budget.AccountID); err != nil {
		return err
	}
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = normalizeTime(r.now())
	}
	return r.db.WithContext(ctx).Create(budget).Error
}
