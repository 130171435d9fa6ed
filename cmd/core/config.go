package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-ledger-service/pkg/mysql"
)

const (
	defaultConfigPath      = "config/config.yaml"
	configPathEnv          = "LEDGER_CONFIG"
	defaultGRPCAddr        = ":50051"
	defaultShutdownTimeout = 10 * time.Second

	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Ledger LedgerConfig `yaml:"ledger"`
	Log    LogConfig    `yaml:"log"`
	MySQL  mysql.Config `yaml:"mysql"`
}

type ServerConfig struct {
	GRPCAddr        string        `yaml:"grpc_addr"`
	HTTPAddr        string        `yaml:"http_addr"` // 空字串表示不啟動 REST
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LedgerConfig struct {
	Store       string `yaml:"store"`        // memory | mysql
	WALPath     string `yaml:"wal_path"`     // 只用於 memory，空字串表示不寫 WAL
	LockStripes int    `yaml:"lock_stripes"` // 行程內帳戶鎖的分段數
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// configPath 設定檔路徑，可用 LEDGER_CONFIG 覆寫
func configPath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}
	return defaultConfigPath
}

// loadConfig 讀取 YAML 設定並補上預設值
func loadConfig(path string) (Config, error) {
	cfgData, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = defaultGRPCAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Ledger.Store == "" {
		c.Ledger.Store = StoreMemory
	}
	c.Ledger.Store = strings.ToLower(c.Ledger.Store)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	// 補全 MySQL 預設配置 (如果 yaml 沒寫)
	if c.Ledger.Store == StoreMySQL {
		c.MySQL = c.MySQL.WithDefaults()
	}
}

func (c *Config) validate() error {
	switch c.Ledger.Store {
	case StoreMemory:
	case StoreMySQL:
		if err := c.MySQL.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown ledger.store %q (want %q or %q)", c.Ledger.Store, StoreMemory, StoreMySQL)
	}
	if c.Ledger.LockStripes < 0 {
		return fmt.Errorf("ledger.lock_stripes must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q: %w", s, err)
	}
	return level, nil
}

// newLogger 依設定建立 slog Logger
func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "ledger"))
}
