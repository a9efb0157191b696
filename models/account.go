package models

import "time"

// Account 资金账户模型
type Account struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"index;size:191;not null"`
	Name        string    `json:"name" gorm:"size:191;not null"`
	Type        string    `json:"type" gorm:"size:50"`
	Currency    string    `json:"currency" gorm:"size:10"`
	Institution string    `json:"institution" gorm:"size:191"`
	Metadata    string    `json:"metadata" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 设置表名
func (Account) TableName() string {
	return "accounts"
}

// AccountWithBalance 带余额的账户
type AccountWithBalance struct {
	Account
	Balance float64 `json:"balance"`
}
