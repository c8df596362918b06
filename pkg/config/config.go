package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// MQConfig holds RabbitMQ settings.
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig holds HTTP server settings. Port is the operator API;
// WorkerPort is the worker's internal health/metrics/status port.
type ServerConfig struct {
	Port       string `yaml:"port"`
	WorkerPort string `yaml:"worker_port"`
}

// AuthConfig holds operator API auth settings. OperatorTokenHash is the
// bcrypt hash of the shared operator token; JWTSecret signs session tokens.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	OperatorTokenHash string `yaml:"operator_token_hash"`
}

// MailboxConfig holds the mailbox provider endpoint.
type MailboxConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AIConfig holds the AI service endpoint.
type AIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	ClassifyTimeout time.Duration `yaml:"classify_timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
}

// SyncConfig tunes the mailbox sync workflow.
type SyncConfig struct {
	PageSize        int           `yaml:"page_size"`
	BatchSize       int           `yaml:"batch_size"`
	BatchDelay      time.Duration `yaml:"batch_delay"`
	Interval        time.Duration `yaml:"interval"`
	LeaseTTL        time.Duration `yaml:"lease_ttl"`
	PoisonThreshold int64         `yaml:"poison_threshold"`
}

// RetryConfig tunes the activity retry policy defaults.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	MQ      MQConfig      `yaml:"mq"`
	Redis   RedisConfig   `yaml:"redis"`
	Auth    AuthConfig    `yaml:"auth"`
	Mailbox MailboxConfig `yaml:"mailbox"`
	AI      AIConfig      `yaml:"ai"`
	Sync    SyncConfig    `yaml:"sync"`
	Retry   RetryConfig   `yaml:"retry"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Server.WorkerPort == "" {
		c.Server.WorkerPort = ":8081"
	}
	if c.Mailbox.Timeout == 0 {
		c.Mailbox.Timeout = 30 * time.Second
	}
	if c.AI.ClassifyTimeout == 0 {
		c.AI.ClassifyTimeout = 30 * time.Second
	}
	if c.AI.GenerateTimeout == 0 {
		c.AI.GenerateTimeout = 60 * time.Second
	}
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = 50
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 5
	}
	if c.Sync.BatchDelay == 0 {
		c.Sync.BatchDelay = 500 * time.Millisecond
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 5 * time.Minute
	}
	if c.Sync.LeaseTTL == 0 {
		c.Sync.LeaseTTL = 2 * time.Minute
	}
	if c.Sync.PoisonThreshold == 0 {
		c.Sync.PoisonThreshold = 3
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 10 * time.Second
	}
}

// OverrideDBFromEnv overrides DB settings from environment variables.
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv overrides MQ settings from environment variables.
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv overrides Redis settings from environment variables.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideAuthFromEnv overrides auth settings from environment variables.
func OverrideAuthFromEnv(cfg *AuthConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if hash := os.Getenv("OPERATOR_TOKEN_HASH"); hash != "" {
		cfg.OperatorTokenHash = hash
	}
}

// OverrideServerFromEnv overrides server settings from environment variables.
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if port := os.Getenv("WORKER_PORT"); port != "" {
		cfg.WorkerPort = port
	}
}

// OverrideMailboxFromEnv overrides mailbox provider settings from environment variables.
func OverrideMailboxFromEnv(cfg *MailboxConfig) {
	if url := os.Getenv("MAILBOX_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
}

// OverrideAIFromEnv overrides AI service settings from environment variables.
func OverrideAIFromEnv(cfg *AIConfig) {
	if url := os.Getenv("AI_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
}
