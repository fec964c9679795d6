package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-point/pkg/mysql"
)

const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"
)

type Server struct {
	Addr string `yaml:"addr" env:"SERVER_ADDR"`
	// Reflection: 註冊 gRPC reflection 方便 grpcurl 測試
	Reflection bool `yaml:"reflection" env:"SERVER_REFLECTION"`
}

type Storage struct {
	// Driver: "memory" 或 "mysql"
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
	// WALPath: memory 模式的 WAL 檔案，空字串表示不落地
	WALPath string `yaml:"wal_path" env:"STORAGE_WAL_PATH"`
	// WALNoSync: 關閉每筆寫入後的 fsync，只在關閉時刷入
	WALNoSync bool `yaml:"wal_no_sync" env:"STORAGE_WAL_NO_SYNC"`
	// AutoMigrate: mysql 模式啟動時建立資料表
	AutoMigrate bool `yaml:"auto_migrate" env:"STORAGE_AUTO_MIGRATE"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type Config struct {
	Server  Server       `yaml:"server"`
	Storage Storage      `yaml:"storage"`
	MySQL   mysql.Config `yaml:"mysql"`
	Log     Log          `yaml:"log"`
}

// Load 載入設定
// 順序: YAML 檔 -> .env -> 環境變數 -> 預設值
// path 不存在時只使用環境變數與預設值
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	// .env 不存在時忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":50051"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	// 補全 MySQL 預設配置 (如果 yaml 沒寫)
	c.MySQL.SetDefaults()
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageMySQL:
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}
