package models

import "time"

// Investment 投资持仓模型
type Investment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;size:191;not null"`
	AccountID *uint     `json:"account_id" gorm:"index"`
	AssetType string    `json:"asset_type" gorm:"size:50"`
	Symbol    string    `json:"symbol" gorm:"size:32"`
	Quantity  float64   `json:"quantity"`
	Value     float64   `json:"value"`
	Currency  string    `json:"currency" gorm:"size:10"`
	Timestamp time.Time `json:"timestamp"`
}

// TableName 设置表名
func (Investment) TableName() string {
	return "investments"
}
