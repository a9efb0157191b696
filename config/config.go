package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Session   SessionConfig   `mapstructure:"session"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Email     EmailConfig     `mapstructure:"email"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig 数据库配置
// 用户库与财务库分开存放：sqlite 下是两个文件，mysql 下是两个库
type DatabaseConfig struct {
	Driver   string      `mapstructure:"driver"`
	UserPath string      `mapstructure:"user_path"`
	DataPath string      `mapstructure:"data_path"`
	LogMode  bool        `mapstructure:"log_mode"`
	MySQL    MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	UserDBName string `mapstructure:"user_dbname"`
	DataDBName string `mapstructure:"data_dbname"`
	Charset    string `mapstructure:"charset"`
}

// JWTConfig JWT配置
// 签名密钥是每个用户自己的 RSA 私钥，这里只有过期时间
type JWTConfig struct {
	ExpireHours            int           `mapstructure:"expire_hours"`
	SessionExpireMinutes   int           `mapstructure:"session_expire_minutes"`
	ExpireTime             time.Duration `mapstructure:"-"`
	SessionTokenExpireTime time.Duration `mapstructure:"-"`
}

// SessionConfig 浏览器会话 Cookie 配置
type SessionConfig struct {
	Secret      string `mapstructure:"secret"`
	CookieName  string `mapstructure:"cookie_name"`
	MaxAgeHours int    `mapstructure:"max_age_hours"`
}

// OAuthConfig 第三方登录配置
type OAuthConfig struct {
	Google GoogleOAuthConfig `mapstructure:"google"`
}

// GoogleOAuthConfig Google 登录配置
type GoogleOAuthConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	RedirectURL       string `mapstructure:"redirect_url"`
	WebRedirectURL    string `mapstructure:"web_redirect_url"`
	MobileRedirectURL string `mapstructure:"mobile_redirect_url"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	MaxPhotoBytes int64 `mapstructure:"max_photo_bytes"`
}

// RateLimitConfig 登录限流配置
type RateLimitConfig struct {
	LoginMaxAttempts   int `mapstructure:"login_max_attempts"`
	LoginWindowSeconds int `mapstructure:"login_window_seconds"`
}

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}
	log.Println("已加载内置默认配置")

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("警告: 无法读取指定配置文件 %s: %v", configPath, err)
		} else {
			log.Printf("已合并外部配置文件: %s", configPath)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/fintrack")
		externalViper.AddConfigPath("$HOME/.fintrack")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("警告: 合并外部配置失败: %v", err)
			} else {
				log.Printf("已合并外部配置文件: %s", externalViper.ConfigFileUsed())
			}
		}
	}

	// 3. 环境变量覆盖，如 FINTRACK_DATABASE_USER_PATH
	v.SetEnvPrefix("FINTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 生产模式下必须显式配置 session.secret
func (c *Config) Validate() error {
	if c.IsRelease() && c.Session.Secret == "" {
		return errors.New("release 模式必须配置 session.secret（或环境变量 FINTRACK_SESSION_SECRET）")
	}
	return nil
}

// ApplyDefaults 补全缺省值并计算派生字段，手工构造的配置也需要调用
func (c *Config) ApplyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 24
	}
	if c.JWT.SessionExpireMinutes <= 0 {
		c.JWT.SessionExpireMinutes = 60
	}
	c.JWT.ExpireTime = time.Duration(c.JWT.ExpireHours) * time.Hour
	c.JWT.SessionTokenExpireTime = time.Duration(c.JWT.SessionExpireMinutes) * time.Minute

	if c.Session.CookieName == "" {
		c.Session.CookieName = "fintrack_session"
	}
	if c.Session.MaxAgeHours <= 0 {
		c.Session.MaxAgeHours = 24 * 7
	}
	if c.Upload.MaxPhotoBytes <= 0 {
		c.Upload.MaxPhotoBytes = 5 << 20
	}
	if c.RateLimit.LoginMaxAttempts <= 0 {
		c.RateLimit.LoginMaxAttempts = 10
	}
	if c.RateLimit.LoginWindowSeconds <= 0 {
		c.RateLimit.LoginWindowSeconds = 60
	}
}

// LoginWindow 登录限流窗口
func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.RateLimit.LoginWindowSeconds) * time.Second
}

// SessionMaxAge 会话 Cookie 有效期
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAgeHours) * time.Hour
}

// IsRelease 是否为生产模式
func (c *Config) IsRelease() bool {
	return c != nil && c.Server.Mode == "release"
}

// PublicBaseURL 对外访问地址，未配置时按端口拼出本地地址
func (c *Config) PublicBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return "http://localhost" + c.Server.Port
}

// SafeErrorMessage 生产环境下不向客户端暴露内部错误详情
// cfg 为 nil 时视为开发环境
func (c *Config) SafeErrorMessage(err error, fallback string) string {
	if err == nil || c.IsRelease() {
		return fallback
	}
	return err.Error()
}

// PrintConfig 打印当前配置（隐藏敏感信息）
func PrintConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	log.Printf("当前配置:")
	log.Printf("  服务器: %s (模式: %s)", cfg.Server.Port, cfg.Server.Mode)
	if cfg.Database.Driver == "mysql" {
		log.Printf("  数据库: mysql %s@%s:%s/{%s,%s}",
			cfg.Database.MySQL.Username,
			cfg.Database.MySQL.Host,
			cfg.Database.MySQL.Port,
			cfg.Database.MySQL.UserDBName,
			cfg.Database.MySQL.DataDBName)
	} else {
		log.Printf("  数据库: sqlite 用户库=%s 财务库=%s", cfg.Database.UserPath, cfg.Database.DataPath)
	}
	log.Printf("  Token 有效期: %v (会话兜底 %v)", cfg.JWT.ExpireTime, cfg.JWT.SessionTokenExpireTime)
	log.Printf("  Google 登录: %v", cfg.OAuth.Google.Enabled)
	log.Printf("  允许跨域来源: %v", cfg.CORS.AllowOrigins)
	log.Printf("  邮件服务: %v", cfg.Email.Enabled)
	if cfg.Session.Secret == "" {
		log.Printf("  警告: 未配置 session.secret，使用随机密钥，重启后会话失效")
	}
}
