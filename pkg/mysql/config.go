package mysql

import (
	"fmt"
	"time"
)

// 連線池預設值
const (
	DefaultPort            = 3306
	DefaultMaxOpenConns    = 100
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultMaxRetries      = 10
	DefaultRetryInterval   = 2 * time.Second
)

// Config 定義 MySQL 連線與連線池的配置
type Config struct {
	Host     string `yaml:"host"`     // 資料庫主機地址
	Port     int    `yaml:"port"`     // 資料庫埠號 (預設 3306)
	User     string `yaml:"user"`     // 使用者名稱
	Password string `yaml:"password"` // 密碼
	DBName   string `yaml:"db_name"`  // 資料庫名稱

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // 連線最大存活時間

	// 啟動時連線重試 (docker compose 裡 MySQL 常比服務晚起來)
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`

	// GORM 設定
	LogLevel    string `yaml:"log_level"`    // Log 等級: "silent", "error", "warn", "info"
	AutoMigrate bool   `yaml:"auto_migrate"` // 啟動時建立/更新資料表
}

// WithDefaults 回傳補上預設值後的配置
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "error"
	}
	return c
}

// Validate 檢查必要欄位
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("mysql: host is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("mysql: db_name is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("mysql: max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// DSN (Data Source Name) 產生連線字串
// 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
// 時間一律以 UTC 存放，轉帳紀錄的排序才不受伺服器時區影響
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}
