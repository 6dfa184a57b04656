// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（对象存储密钥、协作方令牌）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// DockerConfig 验证沙盒配置
type DockerConfig struct {
	Image            string `yaml:"image"`             // 默认基础镜像
	MemoryLimitMB    int    `yaml:"memory_limit_mb"`   // 容器内存上限
	KeepaliveSeconds int    `yaml:"keepalive_seconds"` // 容器保活上限
}

// GeneratorConfig 生成协作方配置
type GeneratorConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RepositoryConfig 脚本仓库配置
type RepositoryConfig struct {
	Root    string `yaml:"root"`
	Author  string `yaml:"author"`
	Version string `yaml:"version"`
}

// MinIOConfig 对象存储镜像配置（可选）
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RedisConfig 运行锁配置（可选）
type RedisConfig struct {
	URL            string `yaml:"url"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// DatabaseConfig 尝试历史库配置
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Docker     DockerConfig     `yaml:"docker"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Repository RepositoryConfig `yaml:"repository"`
	Database   DatabaseConfig   `yaml:"database"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Redis      RedisConfig      `yaml:"redis"`
	Metrics    struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Config 运行时配置
type Config struct {
	Env         Environment
	Docker      DockerConfig
	Generator   GeneratorConfig
	Repository  RepositoryConfig
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Redis       RedisConfig
	MetricsAddr string
	MaxAttempts int
}

// Load 加载配置
func Load() *Config {
	// .env 缺失不是错误，本地开发才依赖它
	_ = godotenv.Load()

	env := Environment(getEnv("APP_ENV", string(EnvDevelopment)))

	cfg := defaults(env)

	if yc, err := loadYAML(env); err == nil {
		applyYAML(cfg, yc)
	}

	applyEnvOverrides(cfg)

	return cfg
}

// defaults 各字段默认值
func defaults(env Environment) *Config {
	return &Config{
		Env: env,
		Docker: DockerConfig{
			Image:            "alpine:latest",
			MemoryLimitMB:    512,
			KeepaliveSeconds: 300,
		},
		Generator: GeneratorConfig{
			TimeoutSeconds: 120,
		},
		Repository: RepositoryConfig{
			Root:    "setup",
			Author:  "Blueprint Forge",
			Version: "1.0.0",
		},
		Database: DatabaseConfig{
			URL: "file:blueprints.db?cache=shared&mode=rwc",
		},
		Redis: RedisConfig{
			LockTTLSeconds: 900,
		},
		MaxAttempts: 3,
	}
}

func loadYAML(env Environment) (*YAMLConfig, error) {
	path := filepath.Join("configs", fmt.Sprintf("%s.yaml", env))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var yc YAMLConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &yc, nil
}

func applyYAML(cfg *Config, yc *YAMLConfig) {
	if yc.Docker.Image != "" {
		cfg.Docker.Image = yc.Docker.Image
	}
	if yc.Docker.MemoryLimitMB > 0 {
		cfg.Docker.MemoryLimitMB = yc.Docker.MemoryLimitMB
	}
	if yc.Docker.KeepaliveSeconds > 0 {
		cfg.Docker.KeepaliveSeconds = yc.Docker.KeepaliveSeconds
	}
	if yc.Generator.Endpoint != "" {
		cfg.Generator.Endpoint = yc.Generator.Endpoint
	}
	if yc.Generator.Token != "" {
		cfg.Generator.Token = yc.Generator.Token
	}
	if yc.Generator.TimeoutSeconds > 0 {
		cfg.Generator.TimeoutSeconds = yc.Generator.TimeoutSeconds
	}
	if yc.Repository.Root != "" {
		cfg.Repository.Root = yc.Repository.Root
	}
	if yc.Repository.Author != "" {
		cfg.Repository.Author = yc.Repository.Author
	}
	if yc.Repository.Version != "" {
		cfg.Repository.Version = yc.Repository.Version
	}
	if yc.Database.URL != "" {
		cfg.Database.URL = yc.Database.URL
	}
	if yc.MinIO.Endpoint != "" {
		cfg.MinIO = yc.MinIO
	}
	if yc.Redis.URL != "" {
		cfg.Redis.URL = yc.Redis.URL
	}
	if yc.Redis.LockTTLSeconds > 0 {
		cfg.Redis.LockTTLSeconds = yc.Redis.LockTTLSeconds
	}
	if yc.Metrics.Addr != "" {
		cfg.MetricsAddr = yc.Metrics.Addr
	}
}

// applyEnvOverrides 环境变量优先级最高
func applyEnvOverrides(cfg *Config) {
	cfg.Docker.Image = getEnv("VALIDATION_IMAGE", cfg.Docker.Image)
	cfg.Docker.MemoryLimitMB = getEnvInt("VALIDATION_MEMORY_MB", cfg.Docker.MemoryLimitMB)
	cfg.Docker.KeepaliveSeconds = getEnvInt("VALIDATION_KEEPALIVE_SECONDS", cfg.Docker.KeepaliveSeconds)
	cfg.Generator.Endpoint = getEnv("GENERATOR_ENDPOINT", cfg.Generator.Endpoint)
	cfg.Generator.Token = getEnv("GENERATOR_TOKEN", cfg.Generator.Token)
	cfg.Repository.Root = getEnv("BLUEPRINT_ROOT", cfg.Repository.Root)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.Bucket = getEnv("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.MaxAttempts = getEnvInt("MAX_ATTEMPTS", cfg.MaxAttempts)
}

// MemoryLimitBytes 内存上限（字节）
func (c *Config) MemoryLimitBytes() int64 {
	return int64(c.Docker.MemoryLimitMB) * 1024 * 1024
}

// Keepalive 容器保活时长
func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.Docker.KeepaliveSeconds) * time.Second
}

// GeneratorTimeout 协作方调用超时
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// LockTTL 运行锁过期时长
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

// String 摘要（不含敏感字段）
func (c *Config) String() string {
	return fmt.Sprintf("env=%s image=%s mem=%dMB keepalive=%ds root=%s attempts=%d",
		c.Env, c.Docker.Image, c.Docker.MemoryLimitMB, c.Docker.KeepaliveSeconds,
		c.Repository.Root, c.MaxAttempts)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
