package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Tracing TracingConfig `mapstructure:"tracing"`
	MockAPI MockAPIConfig `mapstructure:"mock_api"`
	CORS    CORSConfig    `mapstructure:"cors"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	Practice bool `mapstructure:"-"` // 练习模式（允许看答案）
}

type ServerConfig struct {
	Mode string // debug / release
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	TimeoutSeconds time.Duration `mapstructure:"timeout_seconds"`
}

type StorageConfig struct {
	LocalPath string `mapstructure:"local_path"` // 本地续答记录 sqlite 文件目录
}

type SessionConfig struct {
	NamespacePrefix string  `mapstructure:"namespace_prefix"`
	SaveRate        float64 `mapstructure:"save_rate"`  // 后台保存限速（次/秒）
	SaveBurst       int     `mapstructure:"save_burst"` // 突发额度
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type MockAPIConfig struct {
	Port       string        `mapstructure:"port"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("SCHOOL_EXAM")
	viper.AutomaticEnv()

	// API
	viper.BindEnv("api.base_url", "API_BASE_URL")
	viper.BindEnv("api.token", "API_TOKEN")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	viper.BindEnv("storage.local_path", "STORAGE_LOCAL_PATH")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Mock API
	viper.BindEnv("mock_api.port", "MOCK_API_PORT")
	viper.BindEnv("mock_api.jwt_secret", "MOCK_API_JWT_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.API.TimeoutSeconds = cfg.API.TimeoutSeconds * time.Second
	cfg.MockAPI.ExpireTime = cfg.MockAPI.ExpireTime * time.Hour

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required")
	}
	if cfg.Session.NamespacePrefix == "" {
		cfg.Session.NamespacePrefix = "exam_session"
	}
	if cfg.Session.SaveRate <= 0 {
		cfg.Session.SaveRate = 5
	}
	if cfg.Session.SaveBurst <= 0 {
		cfg.Session.SaveBurst = 10
	}

	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "data"
	}
	if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
		os.MkdirAll(cfg.Storage.LocalPath, 0755)
	}

	return &cfg, nil
}

// DatabasePath 续答记录库文件位置
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.LocalPath, "sessions.db")
}
