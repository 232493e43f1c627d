package config

import (
	"fmt"
	"strings"
	"time"

	"shopify-improvement-core/internal/infrastructure/encryption"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDevelopment = "development"
	AppEnvProduction  = "production"

	// DefaultMasterSecret is used when ENCRYPTION_KEY is unset. Refused in production.
	DefaultMasterSecret = encryption.DefaultMasterSecret
)

// Storage drivers
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

// Enhancer modes
const (
	EnhancerHTTP     = "http"
	EnhancerSimulate = "simulate"
)

type Config struct {
	App         AppConfig
	Storage     StorageConfig
	Shopify     ShopifyConfig
	Improvement ImprovementConfig
}

type AppConfig struct {
	Env           string `envconfig:"APP_ENV" default:"development"`
	Port          string `envconfig:"PORT" default:"8080"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"json"`
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProduction) || strings.EqualFold(a.Env, "prod")
}

// MasterSecret returns the configured secret or the documented default
func (a AppConfig) MasterSecret() string {
	if a.EncryptionKey == "" {
		return DefaultMasterSecret
	}
	return a.EncryptionKey
}

type StorageConfig struct {
	Driver        string `envconfig:"STORAGE_DRIVER" default:"file"`
	DataDir       string `envconfig:"DATA_DIR" default:"data"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MongoURI      string `envconfig:"MONGODB_URI"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"shopify_improvement"`
	RedisURL      string `envconfig:"REDIS_URL"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"improvement"`
}

type ShopifyConfig struct {
	APIKey    string `envconfig:"SHOPIFY_API_KEY"`
	APISecret string `envconfig:"SHOPIFY_API_SECRET"`
}

type ImprovementConfig struct {
	APIURL             string        `envconfig:"IMPROVEMENT_API_URL"`
	EnhancerMode       string        `envconfig:"ENHANCER_MODE" default:"http"`
	EnhancementTimeout time.Duration `envconfig:"ENHANCEMENT_TIMEOUT" default:"30s"`
	CatalogTimeout     time.Duration `envconfig:"CATALOG_TIMEOUT" default:"15s"`
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.App.IsProd() && c.App.MasterSecret() == DefaultMasterSecret {
		return fmt.Errorf("ENCRYPTION_KEY must be set in production")
	}

	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file storage driver")
		}
	case DriverSQLite, DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s storage driver", c.Storage.Driver)
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo storage driver")
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Improvement.EnhancerMode {
	case EnhancerHTTP, EnhancerSimulate:
	default:
		return fmt.Errorf("unknown ENHANCER_MODE %q", c.Improvement.EnhancerMode)
	}

	if c.Improvement.EnhancementTimeout <= 0 || c.Improvement.CatalogTimeout <= 0 {
		return fmt.Errorf("ENHANCEMENT_TIMEOUT and CATALOG_TIMEOUT must be positive")
	}
	return nil
}
