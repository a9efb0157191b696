package repository

import (
	"context"

	"fintrack/models"
)

// AccountUpdate 账户更新，nil 字段保持不变
type AccountUpdate struct {
	Name        *string
	Type        *string
	Currency    *string
	Institution *string
	Metadata    *string
}

// columns 按固定列名生成更新内容
func (u AccountUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Type != nil {
		cols["type"] = *u.Type
	}
	if u.Currency != nil {
		cols["currency"] = *u.Currency
	}
	if u.Institution != nil {
		cols["institution"] = *u.Institution
	}
	if u.Metadata != nil {
		cols["metadata"] = *u.Metadata
	}
	return cols
}

// ListAccounts 列出用户全部账户及当前余额
func (r *FinanceRepository) ListAccounts(ctx context.Context, username string) ([]models.AccountWithBalance, error) {
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Where("user_id = ?", username).Order("id").Find(&accounts).Error; err != nil {
		return nil, err
	}

	result := make([]models.AccountWithBalance, 0, len(accounts))
	for _, a := range accounts {
		balance, err := r.balance(ctx, username, a.ID, nil)
		if err != nil {
			return nil, err
		}
		result = append(result, models.AccountWithBalance{Account: a, Balance: balance})
	}
	return result, nil
}

// CreateAccount 创建账户
func (r *FinanceRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	account.ID = 0
	if account.CreatedAt.IsZero() {
		account.CreatedAt = normalizeTime(r.now())
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return err
	}
	r.touch(ctx, account.UserID)
	return nil
}

// checkAccounts 确认引用的账户都属于该用户，nil 跳过
func (r *FinanceRepository) checkAccounts(ctx context.Context, username string, ids ...*uint) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, err := r.GetAccount(ctx, username, *id); err != nil {
			return err
		}
	}
	return nil
}

// GetAccount 查询单个账户，不属于该用户时返回 ErrNotFound
func (r *FinanceRepository) GetAccount(ctx context.Context, username string, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, username).First(&account).Error; err != nil {
		return nil, notFound("Account", err)
	}
	return &account, nil
}

// UpdateAccount 更新账户
func (r *FinanceRepository) UpdateAccount(ctx context.Context, username string, id uint, in AccountUpdate) (*models.Account, error) {
	cols := in.columns()
	if len(cols) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	if _, err := r.GetAccount(ctx, username, id); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND user_id = ?", id, username).
		Updates(cols).Error; err != nil {
		return nil, err
	}
	r.touch(ctx, username)
	return r.GetAccount(ctx, username, id)
}

// DeleteAccount 删除账户，仍有交易引用时拒绝
func (r *FinanceRepository) DeleteAccount(ctx context.Context, username string, id uint) error {
	if _, err := r.GetAccount(ctx, username, id); err != nil {
		return err
	}

	var refs int64
	if err := r.db.WithContext(ctx).Model(&models.Entry{}).
		Where("user_id = ? AND (from_account_id = ? OR to_account_id = ?)", username, id, id).
		Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return &AccountInUseError{Transactions: refs}
	}

	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, username).Delete(&models.Account{}).Error; err != nil {
		return err
	}
	r.touch(ctx, username)
	return nil
}
