package models

import "time"

// Budget 预算模型
type Budget struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"index;size:191;not null"`
	Name        string    `json:"name" gorm:"size:191"`
	Category    string    `json:"category" gorm:"size:100"`
	AccountID   *uint     `json:"account_id" gorm:"index"`
	Amount      float64   `json:"amount" gorm:"not null"`
	Period      string    `json:"period" gorm:"size:20"` // monthly / weekly / yearly ...
	StartDate   string    `json:"start_date" gorm:"size:10"`
	EndDate     string    `json:"end_date" gorm:"size:10"`
	GoalType    string    `json:"goal_type" gorm:"size:32"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}
