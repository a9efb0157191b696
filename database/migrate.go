package database

import (
	"fmt"
	"log"

	"fintrack/auth"
	"fintrack/models"

	"gorm.io/gorm"
)

// Migrate 自动迁移两个库的表结构并修补历史数据
func Migrate(db *DB) error {
	if err := db.User.AutoMigrate(&models.User{}); err != nil {
		return fmt.Errorf("迁移用户库失败: %w", err)
	}
	if err := db.Data.AutoMigrate(
		&models.Account{},
		&models.Entry{},
		&models.Investment{},
		&models.Budget{},
		&models.Tag{},
		&models.EntryTag{},
		&models.FinanceMetadata{},
	); err != nil {
		return fmt.Errorf("迁移财务库失败: %w", err)
	}

	n, err := BackfillKeypairs(db.User)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("已为 %d 个历史用户补发密钥对", n)
	}

	// 兼容历史数据：老版本 entries 没有 date 列，从 timestamp 截取
	if err := db.Data.Model(&models.Entry{}).
		Where("(date IS NULL OR date = '') AND timestamp IS NOT NULL").
		Update("date", gorm.Expr("SUBSTR(timestamp, 1, 10)")).Error; err != nil {
		return fmt.Errorf("补全交易日期失败: %w", err)
	}
	return nil
}

// BackfillKeypairs 为缺少密钥对的用户生成密钥，保证每个用户都能签发 token
func BackfillKeypairs(userDB *gorm.DB) (int, error) {
	var users []models.User
	if err := userDB.Select("id", "username").
		Where("private_key IS NULL OR private_key = '' OR public_key IS NULL OR public_key = ''").
		Find(&users).Error; err != nil {
		return 0, fmt.Errorf("查询缺少密钥的用户失败: %w", err)
	}

	for _, u := range users {
		priv, pub, err := auth.GenerateKeypair()
		if err != nil {
			return 0, err
		}
		if err := userDB.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
			"private_key": priv,
			"public_key":  pub,
		}).Error; err != nil {
			return 0, fmt.Errorf("保存用户 %s 的密钥失败: %w", u.Username, err)
		}
	}
	return len(users), nil
}
