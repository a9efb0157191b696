package models

import "time"

// 交易类型
const (
	EntryTypeIncome     = "income"
	EntryTypeExpense    = "expense"
	EntryTypeTransfer   = "transfer"
	EntryTypeInvestment = "investment"
	EntryTypeBill       = "bill"
)

// DateLayout entries.date 列的格式
const DateLayout = "2006-01-02"

// Entry 交易记录模型
// 金额按绝对值记账：余额 = 转入之和 - 转出之和
type Entry struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"index;size:191;not null"`
	FromAccountID *uint     `json:"from_account_id" gorm:"index"`
	ToAccountID   *uint     `json:"to_account_id" gorm:"index"`
	Amount        float64   `json:"amount" gorm:"not null"`
	Currency      string    `json:"currency" gorm:"size:10;default:USD"`
	Category      string    `json:"category" gorm:"size:100;index"`
	Description   string    `json:"description" gorm:"type:text"`
	Notes         string    `json:"notes" gorm:"type:text"`
	EntryType     string    `json:"entry_type" gorm:"size:20;default:expense"`
	RecurringID   *uint     `json:"recurring_id"`
	AttachmentURL string    `json:"attachment_url" gorm:"size:512"`
	Location      string    `json:"location" gorm:"size:191"`
	Date          string    `json:"date" gorm:"size:10;index"`
	Timestamp     time.Time `json:"timestamp" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 设置表名
func (Entry) TableName() string {
	return "entries"
}

// EntryDetail 带账户名称的交易记录，用于搜索结果
type EntryDetail struct {
	Entry
	FromAccountName *string `json:"from_account_name"`
	ToAccountName   *string `json:"to_account_name"`
}

// SpendingTypes 计入支出统计的交易类型
func SpendingTypes() []string {
	return []string{EntryTypeExpense, EntryTypeBill}
}
