// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Solver   SolverConfig   `yaml:"solver"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Enabled         bool          `yaml:"enabled"` // 未启用时运行历史只留在内存
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SolverConfig 求解端配置
//
// 探活超时与求解超时相互独立：前者在 UI 可见路径上须保持秒级，
// 后者因优化任务可能长达数小时而单独设置。
type SolverConfig struct {
	LocalURL      string `yaml:"local_url"`
	ServerlessURL string `yaml:"serverless_url"`

	ProbeTimeout        time.Duration `yaml:"probe_timeout"`         // 常规健康检查
	InstallProbeTimeout time.Duration `yaml:"install_probe_timeout"` // 安装/启动验证用的较长探活
	SolveTimeout        time.Duration `yaml:"solve_timeout"`         // 求解请求上限（小时级）

	ActivationAttempts int           `yaml:"activation_attempts"` // 本地端唤醒探活次数
	ActivationBackoff  time.Duration `yaml:"activation_backoff"`  // 两次探活之间的固定间隔

	LocalInstalled bool `yaml:"local_installed"` // 本地端文件已就位，失败时才执行唤醒序列
}

// DefaultsConfig 人员约束的业务默认值
//
// 来源上是硬编码的业务常量，这里保留为可配置项。
type DefaultsConfig struct {
	MaxTotal           int `yaml:"max_total"`
	MaxConsecutiveDays int `yaml:"max_consecutive_days"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "zhipai"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7030),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "zhipai"),
			User:            getEnv("DB_USER", "zhipai"),
			Password:        getEnv("DB_PASSWORD", "zhipai123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Enabled:         getEnvBool("DB_ENABLED", false),
		},
		Solver: SolverConfig{
			LocalURL:            getEnv("SOLVER_LOCAL_URL", "http://localhost:8000"),
			ServerlessURL:       getEnv("SOLVER_SERVERLESS_URL", ""),
			ProbeTimeout:        getEnvDuration("SOLVER_PROBE_TIMEOUT", 2*time.Second),
			InstallProbeTimeout: getEnvDuration("SOLVER_INSTALL_PROBE_TIMEOUT", 5*time.Second),
			SolveTimeout:        getEnvDuration("SOLVER_SOLVE_TIMEOUT", 4*time.Hour),
			ActivationAttempts:  getEnvInt("SOLVER_ACTIVATION_ATTEMPTS", 3),
			ActivationBackoff:   getEnvDuration("SOLVER_ACTIVATION_BACKOFF", 2*time.Second),
			LocalInstalled:      getEnvBool("SOLVER_LOCAL_INSTALLED", false),
		},
		Defaults: DefaultsConfig{
			MaxTotal:           getEnvInt("PROVIDER_DEFAULT_MAX_TOTAL", 4),
			MaxConsecutiveDays: getEnvInt("PROVIDER_DEFAULT_MAX_CONSECUTIVE_DAYS", 5),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
