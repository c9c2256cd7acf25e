// Package config provides configuration management for the estate sync service.
// It loads configuration from environment variables and .env files.
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
	Server    ServerConfig
	Chain     ChainConfig
	Contract  ContractConfig
	Wallet    WalletConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// ChainConfig holds RPC endpoint configuration for the ledger chain
type ChainConfig struct {
	ChainID      int64
	RPCPrimary   string
	RPCSecondary string
	// RPCRequestsPerSecond throttles outbound RPC calls (0 disables)
	RPCRequestsPerSecond int
}

// ContractConfig holds the property ledger contract configuration
type ContractConfig struct {
	// Address is the deployed property ledger contract address (hex)
	Address string
}

// WalletConfig holds keystore-backed wallet configuration
type WalletConfig struct {
	// KeystoreDir is the directory holding encrypted key files.
	// Empty means no wallet capability is available.
	KeystoreDir string
	// Passphrase unlocks the active account for signing
	Passphrase string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds property-detail cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// SyncConfig holds refresh worker configuration
type SyncConfig struct {
	// RefreshInterval is the period between background re-fetches
	RefreshInterval time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond per client, with Burst headroom
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Chain: ChainConfig{
			ChainID:              int64(getEnvAsInt("CHAIN_ID", 1)),
			RPCPrimary:           getEnv("RPC_PRIMARY", ""),
			RPCSecondary:         getEnv("RPC_SECONDARY", ""),
			RPCRequestsPerSecond: getEnvAsInt("RPC_REQUESTS_PER_SECOND", 25),
		},
		Contract: ContractConfig{
			Address: getEnv("LEDGER_CONTRACT_ADDRESS", ""),
		},
		Wallet: WalletConfig{
			KeystoreDir: getEnv("KEYSTORE_DIR", ""),
			Passphrase:  getEnv("KEYSTORE_PASSPHRASE", ""),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "estate_sync"),
				User:           getEnv("POSTGRES_USER", "estate"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 30*time.Second),
		},
		Sync: SyncConfig{
			RefreshInterval: getEnvAsDuration("SYNC_REFRESH_INTERVAL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for required values
func (c *Config) Validate() error {
	if c.Chain.RPCPrimary == "" {
		return fmt.Errorf("RPC_PRIMARY is required")
	}
	if c.Contract.Address == "" {
		return fmt.Errorf("LEDGER_CONTRACT_ADDRESS is required")
	}
	if c.Sync.RefreshInterval < 5*time.Second {
		return fmt.Errorf("SYNC_REFRESH_INTERVAL must be at least 5s, got %v", c.Sync.RefreshInterval)
	}
	return nil
}

// PostgresURL builds a connection URL for migrations
func (c *PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
