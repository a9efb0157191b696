package repository

import (
	"context"
	"fmt"
	"strings"

	"fintrack/models"

	"gorm.io/gorm/clause"
)

// ListTags 列出用户的标签，按名称排序
func (r *FinanceRepository) ListTags(ctx context.Context, username string) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := r.db.WithContext(ctx).Where("user_id = ?", username).Order("name").Find(&tags).Error
	return tags, err
}

// CreateTag 新建标签，同一用户下重名返回 ErrConflict
func (r *FinanceRepository) CreateTag(ctx context.Context, tag *models.Tag) error {
	tag.ID = 0
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = normalizeTime(r.now())
	}
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Tag '%s' %w for this user", tag.Name, ErrConflict)
		}
		return err
	}
	return nil
}

// getTag 查询单个标签
func (r *FinanceRepository) getTag(ctx context.Context, username string, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, username).First(&tag).Error; err != nil {
		return nil, notFound("Tag", err)
	}
	return &tag, nil
}

// AddEntryTag 给交易打标签，重复添加视为成功
func (r *FinanceRepository) AddEntryTag(ctx context.Context, username string, entryID, tagID uint) error {
	if _, err := r.GetEntry(ctx, username, entryID); err != nil {
		return err
	}
	if _, err := r.getTag(ctx, username, tagID); err != nil {
		return err
	}
	link := models.EntryTag{EntryID: entryID, TagID: tagID, UserID: username}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

// RemoveEntryTag 移除交易上的标签
func (r *FinanceRepository) RemoveEntryTag(ctx context.Context, username string, entryID, tagID uint) error {
	res := r.db.WithContext(ctx).
		Where("entry_id = ? AND tag_id = ? AND user_id = ?", entryID, tagID, username).
		Delete(&models.EntryTag{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("Tag association %w", ErrNotFound)
	}
	return nil
}

// ListEntryTags 列出交易上的全部标签
func (r *FinanceRepository) ListEntryTags(ctx context.Context, username string, entryID uint) ([]models.Tag, error) {
	if _, err := r.GetEntry(ctx, username, entryID); err != nil {
		return nil, err
	}
	tags := []models.Tag{}
	err := r.db.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.*").
		Joins("JOIN entry_tags ON entry_tags.tag_id = tags.id AND entry_tags.user_id = tags.user_id").
		Where("entry_tags.entry_id = ? AND tags.user_id = ?", entryID, username).
		Order("tags.name").
		Find(&tags).Error
	return tags, err
}
