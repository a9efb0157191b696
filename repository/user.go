package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fintrack/auth"
	"fintrack/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserRepository 用户库访问
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// NewUser 创建用户所需字段
type NewUser struct {
	Username string
	Password string // 明文，为空表示第三方登录用户
	Email    string
	Name     string
	Provider string
	Photo    []byte
}

// ProfileUpdate 资料更新，nil 字段保持不变
type ProfileUpdate struct {
	Name        *string
	Email       *string
	Preferences map[string]interface{} // 与已有偏好合并
}

// OAuthProfile 第三方登录返回的用户资料
type OAuthProfile struct {
	Username string
	Email    string
	Name     string
	Provider string
	Photo    []byte
}

// Create 创建用户并生成密钥对
func (r *UserRepository) Create(ctx context.Context, in NewUser) (*models.User, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", in.Username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("User '%s' %w", in.Username, ErrConflict)
	}

	priv, pub, err := auth.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:    in.Username,
		Email:       in.Email,
		Name:        in.Name,
		Provider:    in.Provider,
		Photo:       in.Photo,
		Preferences: models.DefaultPreferences,
		PrivateKey:  priv,
		PublicKey:   pub,
	}
	if user.Provider == "" {
		user.Provider = models.ProviderLocal
	}
	if in.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("密码加密失败: %w", err)
		}
		s := string(hashed)
		user.Password = &s
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("User '%s' %w", in.Username, ErrConflict)
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername 按用户名查询
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound("User", err)
	}
	return &user, nil
}

// GetKeypair 查询用户的密钥对
func (r *UserRepository) GetKeypair(ctx context.Context, username string) (string, string, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("private_key", "public_key").
		Where("username = ?", username).First(&user).Error
	if err != nil {
		return "", "", notFound("User", err)
	}
	if !user.HasKeypair() {
		return "", "", fmt.Errorf("Keypair %w", ErrNotFound)
	}
	return user.PrivateKey, user.PublicKey, nil
}

// Authenticate 校验用户名密码，失败统一返回 ErrNotFound
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.Password == nil {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// UpdateProfile 更新资料，偏好与已有值合并
func (r *UserRepository) UpdateProfile(ctx context.Context, username string, in ProfileUpdate) (*models.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Email != nil {
		updates["email"] = *in.Email
	}
	if in.Preferences != nil {
		merged := DecodePreferences(user.Preferences)
		for k, v := range in.Preferences {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("编码偏好失败: %w", err)
		}
		updates["preferences"] = string(raw)
	}
	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}

	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetByUsername(ctx, username)
}

// UpdatePhoto 保存头像
func (r *UserRepository) UpdatePhoto(ctx context.Context, username string, photo []byte) error {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(user).Update("photo", photo).Error
}

// GetPhoto 读取头像，没有头像时返回 ErrNotFound
func (r *UserRepository) GetPhoto(ctx context.Context, username string) ([]byte, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("photo").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound("User", err)
	}
	if len(user.Photo) == 0 {
		return nil, fmt.Errorf("Photo %w", ErrNotFound)
	}
	return user.Photo, nil
}

// RotateKeypair 重新生成密钥对，之前签发的 token 全部失效
func (r *UserRepository) RotateKeypair(ctx context.Context, username string) error {
	if _, err := r.GetByUsername(ctx, username); err != nil {
		return err
	}
	priv, pub, err := auth.GenerateKeypair()
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Updates(map[string]interface{}{
		"private_key": priv,
		"public_key":  pub,
	}).Error
}

// SyncOAuthUser 第三方登录后同步用户：不存在则创建，存在则只补全空字段
// 同名用户是设置了密码的本地账户时返回 ErrLocalAccountExists；返回的 bool 表示是否新建
func (r *UserRepository) SyncOAuthUser(ctx context.Context, p OAuthProfile) (*models.User, bool, error) {
	user, err := r.GetByUsername(ctx, p.Username)
	if errors.Is(err, ErrNotFound) {
		created, err := r.Create(ctx, NewUser{
			Username: p.Username,
			Email:    p.Email,
			Name:     p.Name,
			Provider: p.Provider,
			Photo:    p.Photo,
		})
		if err != nil {
			return nil, false, err
		}
		return created, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if user.Provider == models.ProviderLocal && user.Password != nil && *user.Password != "" {
		return nil, false, ErrLocalAccountExists
	}

	updates := map[string]interface{}{"provider": p.Provider}
	if user.Email == "" && p.Email != "" {
		updates["email"] = p.Email
	}
	if user.Name == "" && p.Name != "" {
		updates["name"] = p.Name
	}
	if len(user.Photo) == 0 && len(p.Photo) > 0 {
		updates["photo"] = p.Photo
	}
	if user.Preferences == "" {
		updates["preferences"] = models.DefaultPreferences
	}
	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	user, err = r.GetByUsername(ctx, p.Username)
	return user, false, err
}

// DecodePreferences 解析偏好 JSON，非法内容视为空
func DecodePreferences(raw string) map[string]interface{} {
	prefs := map[string]interface{}{}
	if raw == "" {
		return prefs
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil || prefs == nil {
		return map[string]interface{}{}
	}
	return prefs
}
