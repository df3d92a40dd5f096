// Package config 提供自成交风控服务配置管理
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// 环境变量覆盖项
const (
	EnvServerPort      = "RISK_SERVER_PORT"
	EnvSelfTradeEnable = "SELF_TRADE_ENABLE"
	EnvTimeWindowMs    = "SELF_TRADE_TIME_WINDOW_MS"
)

// Config 风控服务配置
type Config struct {
	Service   ServiceConfig   `yaml:"service" json:"service"`
	SelfTrade SelfTradeConfig `yaml:"self_trade" json:"self_trade"`
	Nacos     NacosConfig     `yaml:"nacos" json:"nacos"`
	Postgres  PostgresConfig  `yaml:"postgres" json:"postgres"`
	Audit     AuditConfig     `yaml:"audit" json:"audit"`
	Kafka     KafkaConfig     `yaml:"kafka" json:"kafka"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	GRPCPort int    `yaml:"grpc_port" json:"grpc_port"`
	Env      string `yaml:"env" json:"env"`
}

// SelfTradeConfig 自成交检查配置
type SelfTradeConfig struct {
	Enabled      bool  `yaml:"enabled" json:"enabled"`
	TimeWindowMs int64 `yaml:"time_window_ms" json:"time_window_ms"`
}

// NacosConfig Nacos 配置
type NacosConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ServerAddr string `yaml:"server_addr" json:"server_addr"`
	Namespace  string `yaml:"namespace" json:"namespace"`
	Group      string `yaml:"group" json:"group"`
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"password"`
	LogDir     string `yaml:"log_dir" json:"log_dir"`
	CacheDir   string `yaml:"cache_dir" json:"cache_dir"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	Database               string `yaml:"database" json:"database"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	SSLMode                string `yaml:"ssl_mode" json:"ssl_mode"`
	MaxConnections         int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// DSN 返回 PostgreSQL 连接串
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// AuditConfig 审计日志配置
type AuditConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	AutoMigrate bool `yaml:"auto_migrate" json:"auto_migrate"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Brokers  []string `yaml:"brokers" json:"brokers"`
	ClientID string   `yaml:"client_id" json:"client_id"`
	Topic    string   `yaml:"topic" json:"topic"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "risk-service",
			HTTPPort: 9002,
			GRPCPort: 50056,
			Env:      "dev",
		},
		SelfTrade: SelfTradeConfig{
			Enabled:      true,
			TimeWindowMs: 60000,
		},
		Nacos: NacosConfig{
			ServerAddr: "127.0.0.1:8848",
			Namespace:  "public",
			Group:      "EIDOS_GROUP",
			LogDir:     "/tmp/nacos/log",
			CacheDir:   "/tmp/nacos/cache",
		},
		Postgres: PostgresConfig{
			Host:                   "127.0.0.1",
			Port:                   5432,
			Database:               "eidos_risk",
			User:                   "eidos",
			SSLMode:                "disable",
			MaxConnections:         20,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 60,
		},
		Audit: AuditConfig{
			AutoMigrate: true,
		},
		Kafka: KafkaConfig{
			ClientID: "eidos-selftrade",
			Topic:    "risk-alerts",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 加载配置: 默认值, 配置文件 (可缺省), 环境变量覆盖
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			content := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// 配置文件缺省时使用默认值
		default:
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides 环境变量覆盖
func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvServerPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvServerPort, v, err)
		}
		cfg.Service.HTTPPort = port
	}

	if v, ok := os.LookupEnv(EnvSelfTradeEnable); ok {
		// 只有 true (不区分大小写) 视为开启, 空值视为关闭
		cfg.SelfTrade.Enabled = strings.EqualFold(v, "true")
	}

	if v, ok := os.LookupEnv(EnvTimeWindowMs); ok && v != "" {
		window, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTimeWindowMs, v, err)
		}
		cfg.SelfTrade.TimeWindowMs = window
	}
	return nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	result := s
	offset := 0
	for {
		start := strings.Index(result[offset:], "${")
		if start == -1 {
			break
		}
		start += offset
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := result[start+2 : end]
		parts := strings.SplitN(expr, ":", 2)
		defaultVal := ""
		if len(parts) > 1 {
			defaultVal = parts[1]
		}

		value := os.Getenv(parts[0])
		if value == "" {
			value = defaultVal
		}

		result = result[:start] + value + result[end+1:]
		offset = start + len(value)
	}
	return result
}

// setDefaults 补齐被配置文件清空的字段
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "risk-service"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "risk-alerts"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = cfg.Service.Name
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Service.HTTPPort <= 0 || c.Service.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.Service.HTTPPort)
	}
	if c.Service.GRPCPort < 0 || c.Service.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.Service.GRPCPort)
	}
	if c.SelfTrade.TimeWindowMs < 0 {
		return fmt.Errorf("self_trade.time_window_ms must not be negative, got %d", c.SelfTrade.TimeWindowMs)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
