package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"fintrack/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 两个数据库连接：用户库保存账号与密钥，财务库保存账户、交易等数据
type DB struct {
	User *gorm.DB
	Data *gorm.DB
}

// openDatabase 测试中可替换
var openDatabase = Open

// Init 打开两个数据库并完成迁移，失败时关闭已打开的连接
func Init(cfg *config.Config) (*DB, error) {
	userDB, err := openDatabase(cfg.Database, userTarget(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("连接用户库失败: %w", err)
	}
	dataDB, err := openDatabase(cfg.Database, dataTarget(cfg.Database))
	if err != nil {
		_ = (&DB{User: userDB}).Close()
		return nil, fmt.Errorf("连接财务库失败: %w", err)
	}

	db := &DB{User: userDB, Data: dataDB}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Println("数据库初始化成功")
	return db, nil
}

// Open 按驱动打开一个数据库
// sqlite 下 target 为文件路径，mysql 下为库名
func Open(cfg config.DatabaseConfig, target string) (*gorm.DB, error) {
	logMode := logger.Silent
	if cfg.LogMode {
		logMode = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=UTC",
			cfg.MySQL.Username,
			cfg.MySQL.Password,
			cfg.MySQL.Host,
			cfg.MySQL.Port,
			target,
			cfg.MySQL.Charset,
		)
		db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	case "", "sqlite":
		if dir := filepath.Dir(target); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建数据库目录失败: %w", err)
			}
		}
		// 连接参数对每个新连接都生效：WAL、NORMAL 同步、忙等待 5 秒
		db, err = gorm.Open(sqlite.Open(target+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"), gormCfg)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "mysql" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		return db, nil
	}

	// SQLite 只允许单写，连接数保持较小
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	return db, nil
}

func userTarget(cfg config.DatabaseConfig) string {
	if cfg.Driver == "mysql" {
		return cfg.MySQL.UserDBName
	}
	return cfg.UserPath
}

func dataTarget(cfg config.DatabaseConfig) string {
	if cfg.Driver == "mysql" {
		return cfg.MySQL.DataDBName
	}
	return cfg.DataPath
}

// Close 关闭两个连接，返回遇到的第一个错误
func (d *DB) Close() error {
	var first error
	for _, g := range []*gorm.DB{d.User, d.Data} {
		if g == nil {
			continue
		}
		sqlDB, err := g.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
