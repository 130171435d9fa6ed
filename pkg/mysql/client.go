package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的 MySQL 客戶端實例 (GORM)
//
// 參數:
//
//	ctx: 上下文 (取消時停止重試)
//	cfg: Config - MySQL 連線配置
//	log: 重試過程的記錄器
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	gormConfig := &gorm.Config{
		// 寫入一律由上層明確開啟交易 (Begin/Commit)，不需要 GORM 再包一層
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel),
		// 將 driver 錯誤 (例如 1062 duplicate entry) 轉成 gorm.ErrDuplicatedKey 等
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error

	// Retry mechanism for database connection
	for i := 0; i < cfg.MaxRetries; i++ {
		db, err = gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
		if err == nil {
			// Try pinging to ensure connection is actually alive
			rawDB, dbErr := db.DB()
			if dbErr != nil {
				err = dbErr
			} else if err = rawDB.PingContext(ctx); err == nil {
				break // Connection successful
			}
		}

		if i < cfg.MaxRetries-1 {
			log.Warn("failed to connect to mysql, retrying",
				slog.Int("attempt", i+1),
				slog.Int("max_retries", cfg.MaxRetries),
				slog.Duration("retry_in", cfg.RetryInterval),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("mysql connect aborted: %w", ctx.Err())
			case <-time.After(cfg.RetryInterval):
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", cfg.MaxRetries, err)
	}

	// 取得底層 sql.DB 物件以設定連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}

	// 設定連線池參數，防止資料庫連線耗盡
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info("connected to mysql", slog.String("host", cfg.Host), slog.Int("port", cfg.Port), slog.String("db", cfg.DBName))
	return &Client{db: db}, nil
}

// NewClientFromDB 包裝一個已開啟的 *gorm.DB (測試或自訂 dialector 時使用)
func NewClientFromDB(db *gorm.DB) *Client {
	return &Client{db: db}
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) logger.Interface {
	return logger.Default.LogMode(parseLogLevel(level))
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Error // 預設只記錄錯誤
	}
}
