package repository

import (
	"context"
	"fmt"
	"time"

	"fintrack/models"

	"gorm.io/gorm"
)

// EntryUpdate 交易更新，nil 字段保持不变
type EntryUpdate struct {
	FromAccountID *uint
	ToAccountID   *uint
	Amount        *float64
	Currency      *string
	Category      *string
	Description   *string
	Notes         *string
	EntryType     *string
	RecurringID   *uint
	AttachmentURL *string
	Location      *string
	Date          *string
	Timestamp     *time.Time
}

// columns 按固定列名生成更新内容
// date 与 timestamp 只改其一时同步另一个；只改 date 时保留原有的时分秒
func (u EntryUpdate) columns(current *models.Entry) (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if u.FromAccountID != nil {
		cols["from_account_id"] = *u.FromAccountID
	}
	if u.ToAccountID != nil {
		cols["to_account_id"] = *u.ToAccountID
	}
	if u.Amount != nil {
		cols["amount"] = *u.Amount
	}
	if u.Currency != nil {
		cols["currency"] = *u.Currency
	}
	if u.Category != nil {
		cols["category"] = *u.Category
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Notes != nil {
		cols["notes"] = *u.Notes
	}
	if u.EntryType != nil {
		cols["entry_type"] = *u.EntryType
	}
	if u.RecurringID != nil {
		cols["recurring_id"] = *u.RecurringID
	}
	if u.AttachmentURL != nil {
		cols["attachment_url"] = *u.AttachmentURL
	}
	if u.Location != nil {
		cols["location"] = *u.Location
	}
	if u.Date != nil {
		d, err := time.Parse(models.DateLayout, *u.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidArgument)
		}
		cols["date"] = *u.Date
		if u.Timestamp == nil {
			old := current.Timestamp.UTC()
			cols["timestamp"] = normalizeTime(time.Date(d.Year(), d.Month(), d.Day(),
				old.Hour(), old.Minute(), old.Second(), 0, time.UTC))
		}
	}
	if u.Timestamp != nil {
		ts := normalizeTime(*u.Timestamp)
		cols["timestamp"] = ts
		if u.Date == nil {
			cols["date"] = ts.Format(models.DateLayout)
		}
	}
	return cols, nil
}

// prepareEntry 补全默认值：币种 USD、类型 expense，date 与 timestamp 互相推导
func (r *FinanceRepository) prepareEntry(e *models.Entry) error {
	e.ID = 0
	if e.Currency == "" {
		e.Currency = "USD"
	}
	if e.EntryType == "" {
		e.EntryType = models.EntryTypeExpense
	}

	switch {
	case e.Timestamp.IsZero() && e.Date != "":
		d, err := time.Parse(models.DateLayout, e.Date)
		if err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidArgument)
		}
		e.Timestamp = d
	case e.Timestamp.IsZero():
		e.Timestamp = r.now()
	}
	e.Timestamp = normalizeTime(e.Timestamp)
	if e.Date == "" {
		e.Date = e.Timestamp.Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidArgument)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = normalizeTime(r.now())
	}
	return nil
}

// ListEntries 列出用户全部交易，最新的在前
func (r *FinanceRepository) ListEntries(ctx context.Context, username string) ([]models.Entry, error) {
	var entries []models.Entry
	err := r.db.WithContext(ctx).Where("user_id = ?", username).
		Order("timestamp DESC").Order("id DESC").
		Find(&entries).Error
	return entries, err
}

// CreateEntry 创建交易
func (r *FinanceRepository) CreateEntry(ctx context.Context, entry *models.Entry) error {
	if err := r.prepareEntry(entry); err != nil {
		return err
	}
	if err := r.checkAccounts(ctx, entry.UserID, entry.FromAccountID, entry.ToAccountID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}
	r.touch(ctx, entry.UserID)
	return nil
}

// BulkCreateEntries 批量创建交易，全部成功或全部失败
func (r *FinanceRepository) BulkCreateEntries(ctx context.Context, username string, entries []models.Entry) ([]uint, error) {
	for i := range entries {
		entries[i].UserID = username
		if err := r.prepareEntry(&entries[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if err := r.checkAccounts(ctx, username, entries[i].FromAccountID, entries[i].ToAccountID); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
	if err != nil {
		return nil, err
	}
	r.touch(ctx, username)

	ids := make([]uint, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// GetEntry 查询单条交易，不属于该用户时返回 ErrNotFound
func (r *FinanceRepository) GetEntry(ctx context.Context, username string, id uint) (*models.Entry, error) {
	var entry models.Entry
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, username).First(&entry).Error; err != nil {
		return nil, notFound("Entry", err)
	}
	return &entry, nil
}

// UpdateEntry 更新交易
func (r *FinanceRepository) UpdateEntry(ctx context.Context, username string, id uint, in EntryUpdate) (*models.Entry, error) {
	current, err := r.GetEntry(ctx, username, id)
	if err != nil {
		return nil, err
	}
	cols, err := in.columns(current)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	if err := r.checkAccounts(ctx, username, in.FromAccountID, in.ToAccountID); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Entry{}).
		Where("id = ? AND user_id = ?", id, username).
		Updates(cols).Error; err != nil {
		return nil, err
	}
	r.touch(ctx, username)
	return r.GetEntry(ctx, username, id)
}

// DeleteEntry 删除交易及其标签关联
func (r *FinanceRepository) DeleteEntry(ctx context.Context, username string, id uint) error {
	if _, err := r.GetEntry(ctx, username, id); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("entry_id = ? AND user_id = ?", id, username).Delete(&models.EntryTag{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, username).Delete(&models.Entry{}).Error; err != nil {
		return err
	}
	r.touch(ctx, username)
	return nil
}
