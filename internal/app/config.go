package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds runtime configuration for the storage core.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// DBPath is the SQLite database file, created on first open.
	DBPath string `envconfig:"STOCKPOINT_DB_PATH" default:"stockpoint.db"`

	// RedisAddr enables the secondary cache and the background worker when
	// non-empty. The storage core runs fully without it.
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`

	// TaxRate is applied to sale subtotals, e.g. "0.15" for 15%.
	TaxRate string `envconfig:"TAX_RATE" default:"0"`

	ProductCacheTTL   time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`
	SalesCacheTTL     time.Duration `envconfig:"SALES_CACHE_TTL" default:"2m"`
	InventoryCacheTTL time.Duration `envconfig:"INVENTORY_CACHE_TTL" default:"10m"`

	// AllowNegativeStock disables the non-negative floor on sale decrements,
	// matching the behaviour of systems that accept overselling.
	AllowNegativeStock bool `envconfig:"ALLOW_NEGATIVE_STOCK" default:"false"`

	// VoidedRetentionDays bounds how long voided sales are kept before the
	// cleanup job purges them.
	VoidedRetentionDays int `envconfig:"VOIDED_RETENTION_DAYS" default:"90"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.DBPath == "" {
		return nil, errors.New("database path must be provided")
	}
	if _, err := decimal.NewFromString(cfg.TaxRate); err != nil {
		return nil, errors.New("tax rate must be a decimal number")
	}
	if cfg.VoidedRetentionDays < 0 {
		return nil, errors.New("voided retention days must be >= 0")
	}
	return &cfg, nil
}

// Tax returns the configured tax rate as a decimal.
func (c *Config) Tax() decimal.Decimal {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
