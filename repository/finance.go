package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"fintrack/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FinanceRepository 财务库访问，所有查询都按 user_id 过滤
type FinanceRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewFinanceRepository 创建财务仓储
func NewFinanceRepository(db *gorm.DB) *FinanceRepository {
	return &FinanceRepository{db: db, now: time.Now}
}

// TouchFinanceMetadata 刷新用户的最后修改时间
func (r *FinanceRepository) TouchFinanceMetadata(ctx context.Context, username string) error {
	meta := models.FinanceMetadata{UserID: username, LastUpdated: r.now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_updated"}),
	}).Create(&meta).Error
}

// LastUpdated 查询用户的最后修改时间，从未修改过返回 nil
func (r *FinanceRepository) LastUpdated(ctx context.Context, username string) (*time.Time, error) {
	var meta models.FinanceMetadata
	err := r.db.WithContext(ctx).Where("user_id = ?", username).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta.LastUpdated, nil
}

// touch 数据写入已提交，元数据刷新失败只记录日志
func (r *FinanceRepository) touch(ctx context.Context, username string) {
	if err := r.TouchFinanceMetadata(ctx, username); err != nil {
		log.Printf("刷新用户 %s 的 finance_metadata 失败: %v", username, err)
	}
}

// normalizeTime 统一存储为秒级 UTC
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
