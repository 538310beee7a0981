package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	LogLevel  string
	Database  DatabaseConfig
	Redis     RedisConfig
	Odoo      OdooConfig
	Opname    OpnameConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// RedisConfig holds the per-session lock backend. An empty Address keeps
// locks in-process.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// OdooConfig points the inventory collaborator at an Odoo instance. An empty
// URL uses the local inventory_units table.
type OdooConfig struct {
	URL      string
	Database string
	Username string
	Password string
	// SyncInterval is how often stock.lot is mirrored into inventory_units.
	SyncInterval time.Duration
	// UnregisteredProductID is the product new lots from unregistered scans
	// are filed under.
	UnregisteredProductID int64
}

// Enabled reports whether Odoo is configured.
func (c OdooConfig) Enabled() bool {
	return c.URL != "" && c.Database != ""
}

// OpnameConfig tunes session locking.
type OpnameConfig struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("OPNAME_LOCK_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("OPNAME_LOCK_TTL: %w", err)
	}
	lockWait, err := time.ParseDuration(getEnv("OPNAME_LOCK_WAIT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("OPNAME_LOCK_WAIT: %w", err)
	}

	odooInterval, err := time.ParseDuration(getEnv("ODOO_SYNC_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("ODOO_SYNC_INTERVAL: %w", err)
	}
	odooProduct, err := strconv.ParseInt(getEnv("ODOO_UNREGISTERED_PRODUCT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ODOO_UNREGISTERED_PRODUCT_ID: %w", err)
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "ivalora_rms"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Odoo: OdooConfig{
			URL:      os.Getenv("ODOO_URL"),
			Database: os.Getenv("ODOO_DB"),
			Username: os.Getenv("ODOO_USERNAME"),
			Password: os.Getenv("ODOO_PASSWORD"),

			SyncInterval:          odooInterval,
			UnregisteredProductID: odooProduct,
		},
		Opname: OpnameConfig{
			LockTTL:  lockTTL,
			LockWait: lockWait,
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
