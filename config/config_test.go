package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	cfg := &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, fallback, cfg.SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	cfg.Server.Mode = "release"
	assert.Equal(t, fallback, cfg.SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	cfg.Server.Mode = "debug"
	assert.Equal(t, "internal database error", cfg.SafeErrorMessage(testErr, fallback))

	// nil 配置视为开发环境
	var nilCfg *Config
	assert.Equal(t, "internal database error", nilCfg.SafeErrorMessage(testErr, fallback))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "./db/user.db", cfg.Database.UserPath)
	assert.Equal(t, "./db/data.db", cfg.Database.DataPath)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, time.Hour, cfg.JWT.SessionTokenExpireTime)
	assert.Equal(t, "fintrack_session", cfg.Session.CookieName)
	assert.Contains(t, cfg.CORS.AllowOrigins, "http://localhost:*")
	assert.Equal(t, "fintrack://auth/callback", cfg.OAuth.Google.MobileRedirectURL)
}

func TestLoadConfig_ExternalFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  mode: release\nsession:\n  secret: s3cret\ndatabase:\n  user_path: /tmp/u.db\njwt:\n  expire_hours: 2\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("FINTRACK_DATABASE_DATA_PATH", "/tmp/d.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// 外部文件覆盖内置默认值
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "/tmp/u.db", cfg.Database.UserPath)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)

	// 环境变量覆盖
	assert.Equal(t, "/tmp/d.db", cfg.Database.DataPath)

	// 未覆盖的项保持默认
	assert.Equal(t, "fintrack_session", cfg.Session.CookieName)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, time.Hour, cfg.JWT.SessionTokenExpireTime)
	assert.Equal(t, int64(5<<20), cfg.Upload.MaxPhotoBytes)
	assert.Equal(t, time.Minute, cfg.LoginWindow())
	assert.Equal(t, 7*24*time.Hour, cfg.SessionMaxAge())
}

func TestPublicBaseURL(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: ":5000"}}
	assert.Equal(t, "http://localhost:5000", cfg.PublicBaseURL())

	cfg.Server.BaseURL = "https://fintrack.example.com/"
	assert.Equal(t, "https://fintrack.example.com", cfg.PublicBaseURL())
}

func TestLoadConfig_ReleaseRequiresSessionSecret(t *testing.T) {
	t.Setenv("FINTRACK_SERVER_MODE", "release")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.secret")

	t.Setenv("FINTRACK_SESSION_SECRET", "from-env")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Session.Secret)
}

func TestValidate_DebugAllowsEmptySecret(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Mode: "debug"}}
	assert.NoError(t, cfg.Validate())
}
