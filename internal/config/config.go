package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	DispatcherPool  = "pool"
	DispatcherRedis = "redis"
)

type Config struct {
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	RunMigrations bool   `mapstructure:"RUN_MIGRATIONS"`

	ProcessingInterval time.Duration `mapstructure:"PROCESSING_INTERVAL"`
	TransferTTL        time.Duration `mapstructure:"TRANSFER_TTL"`
	ClaimGrace         time.Duration `mapstructure:"CLAIM_GRACE"`

	Dispatcher      string `mapstructure:"DISPATCHER"`
	WorkerCount     int    `mapstructure:"WORKER_COUNT"`
	WorkerQueueSize int    `mapstructure:"WORKER_QUEUE_SIZE"`
	RedisAddress    string `mapstructure:"REDIS_ADDRESS"`

	ExchangeRates string `mapstructure:"EXCHANGE_RATES"`
}

var defaults = map[string]interface{}{
	"DB_HOST":             "localhost",
	"DB_PORT":             "5432",
	"DB_USER":             "postgres",
	"DB_PASSWORD":         "postgres",
	"DB_NAME":             "transfers",
	"DB_SSLMODE":          "disable",
	"SERVER_PORT":         "8080",
	"STORE_DRIVER":        StoreDriverPostgres,
	"RUN_MIGRATIONS":      true,
	"PROCESSING_INTERVAL": 5 * time.Second,
	"TRANSFER_TTL":        10 * time.Minute,
	"CLAIM_GRACE":         time.Minute,
	"DISPATCHER":          DispatcherPool,
	"WORKER_COUNT":        8,
	"WORKER_QUEUE_SIZE":   64,
	"REDIS_ADDRESS":       "localhost:6379",
	"EXCHANGE_RATES":      "USD:1,EUR:0.92,GBP:0.79",
}

// Load reads configuration from defaults, the optional file named by
// CONFIG_FILE, and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if _, err := strconv.ParseUint(c.ServerPort, 10, 16); err != nil {
		return fmt.Errorf("invalid SERVER_PORT %q", c.ServerPort)
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBHost == "" || c.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the %s store", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q, want %s or %s", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	switch c.Dispatcher {
	case DispatcherPool:
	case DispatcherRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required for the %s dispatcher", DispatcherRedis)
		}
	default:
		return fmt.Errorf("invalid DISPATCHER %q, want %s or %s", c.Dispatcher, DispatcherPool, DispatcherRedis)
	}

	if c.ProcessingInterval < time.Second {
		return fmt.Errorf("PROCESSING_INTERVAL must be at least 1s, got %s", c.ProcessingInterval)
	}
	if c.TransferTTL <= 0 {
		return fmt.Errorf("TRANSFER_TTL must be positive, got %s", c.TransferTTL)
	}
	if c.ClaimGrace < 0 {
		return fmt.Errorf("CLAIM_GRACE must not be negative, got %s", c.ClaimGrace)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.WorkerQueueSize <= 0 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be positive, got %d", c.WorkerQueueSize)
	}
	return nil
}

// GetDBConnectionString returns a postgres:// URL accepted by both lib/pq
// and the migration driver.
func (c *Config) GetDBConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}
