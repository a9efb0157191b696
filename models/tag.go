package models

import "time"

// Tag 标签模型，同一用户下名称唯一
type Tag struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"size:191;not null;uniqueIndex:idx_tags_user_name"`
	Name      string    `json:"name" gorm:"size:100;not null;uniqueIndex:idx_tags_user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 设置表名
func (Tag) TableName() string {
	return "tags"
}

// EntryTag 交易与标签的关联，带上 user_id 做二次隔离
type EntryTag struct {
	EntryID uint   `json:"entry_id" gorm:"primaryKey;autoIncrement:false"`
	TagID   uint   `json:"tag_id" gorm:"primaryKey;autoIncrement:false;index"`
	UserID  string `json:"user_id" gorm:"primaryKey;size:191"`
}

// TableName 设置表名
func (EntryTag) TableName() string {
	return "entry_tags"
}

// FinanceMetadata 每个用户的财务数据最后修改时间，客户端据此判断是否需要重新拉取
type FinanceMetadata struct {
	UserID      string    `json:"user_id" gorm:"primaryKey;size:191"`
	LastUpdated time.Time `json:"last_updated"`
}

// TableName 设置表名
func (FinanceMetadata) TableName() string {
	return "finance_metadata"
}
