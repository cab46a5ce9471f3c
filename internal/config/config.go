package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

const (
	DefaultLoanDays   = 14
	DefaultFinePerDay = 1.0
	DefaultPageSize   = 25
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	// engine options
	LoanDays   int     `yaml:"loanDays"`
	FinePerDay float64 `yaml:"finePerDay"`
	PageSize   int     `yaml:"pageSize"`

	// sessions
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	SessionSecret     string `yaml:"sessionSecret"`
	SessionTTLMinutes int    `yaml:"sessionTtlMinutes"`

	// attachments
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	// circulation events
	AMQPURL string `yaml:"amqpURL"`

	// seeded credentials
	DefaultAdminUsername string `yaml:"defaultAdminUsername"`
	DefaultAdminPassword string `yaml:"defaultAdminPassword"`
}

// SessionTTL returns the configured session lifetime.
func (c FileConfig) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load reads config from path (defaults to config.yaml) and applies
// LIBCIRC_* environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("LIBCIRC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_LOAN_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoanDays = n
		}
	}
	if v := os.Getenv("LIBCIRC_FINE_PER_DAY"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.FinePerDay = f
		}
	}
	if v := os.Getenv("LIBCIRC_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("LIBCIRC_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LIBCIRC_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("LIBCIRC_SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.SessionTTLMinutes = n
		}
	}
	if v := os.Getenv("LIBCIRC_MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("LIBCIRC_MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("LIBCIRC_MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("LIBCIRC_AMQP_URL"); v != "" {
		cfg.AMQPURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_DEFAULT_ADMIN_USERNAME"); v != "" {
		cfg.DefaultAdminUsername = strings.TrimSpace(v)
	}
	if v := os.Getenv("LIBCIRC_DEFAULT_ADMIN_PASSWORD"); v != "" {
		cfg.DefaultAdminPassword = v
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LoanDays <= 0 {
		cfg.LoanDays = DefaultLoanDays
	}
	if cfg.FinePerDay <= 0 {
		cfg.FinePerDay = DefaultFinePerDay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.DefaultAdminUsername == "" {
		cfg.DefaultAdminUsername = "admin"
	}
	if cfg.DefaultAdminPassword == "" {
		cfg.DefaultAdminPassword = "admin"
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or LIBCIRC_DATABASE_URL)")
	}
	if cfg.RedisAddr != "" && strings.TrimSpace(cfg.SessionSecret) == "" {
		return errors.New("config: sessionSecret is required when redisAddr is set")
	}
	return nil
}
