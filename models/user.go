package models

import (
	"time"
)

const (
	// ProviderLocal 本地用户名密码注册
	ProviderLocal = "local"
	// ProviderGoogle Google 登录
	ProviderGoogle = "google"
)

// DefaultPreferences 新用户的默认偏好
const DefaultPreferences = `{"theme":"light","language":"en"}`

// User 用户模型，存放在用户库
// 每个用户都有自己的 RSA 密钥对，token 用私钥签名、公钥验签
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"uniqueIndex;size:191;not null"`
	Password    *string   `json:"-" gorm:"size:255"` // OAuth 用户为 NULL
	Email       string    `json:"email" gorm:"size:191"`
	Provider    string    `json:"provider" gorm:"size:32;default:local"`
	Name        string    `json:"name" gorm:"size:191"`
	Photo       []byte    `json:"-"`
	Preferences string    `json:"-" gorm:"type:text"`
	PrivateKey  string    `json:"-" gorm:"type:text"`
	PublicKey   string    `json:"-" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// HasKeypair 是否已生成密钥对
func (u *User) HasKeypair() bool {
	return u.PrivateKey != "" && u.PublicKey != ""
}
