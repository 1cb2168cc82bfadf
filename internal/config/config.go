package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ChainModeREST   = "rest"
	ChainModeMemory = "memory"

	RedisOff = "off"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppPort string

	DBDriver    string
	MySQLHost   string
	MySQLPort   string
	MySQLDB     string
	MySQLUser   string
	MySQLPass   string
	PostgresDSN string
	SQLitePath  string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs        int
	NotificationTTLSecs int

	ChainMode     string
	ChainURL      string
	WalletURL     string
	ModuleAddress string
	ModuleName    string

	TxWaitTimeout  time.Duration
	TxPollInterval time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ReconcileSpec  string
	ReconcileGrace time.Duration

	LogLevel  string
	LogFormat string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// Load reads an optional .env file, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:     getenv("APP_PORT", "8080"),
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", DriverMySQL)),
		MySQLHost:   getenv("MYSQL_HOST", "mysql"),
		MySQLPort:   getenv("MYSQL_PORT", "3306"),
		MySQLDB:     getenv("MYSQL_DB", "lending"),
		MySQLUser:   getenv("MYSQL_USER", "lending"),
		MySQLPass:   getenv("MYSQL_PASS", "lending"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SQLitePath:  getenv("SQLITE_PATH", "lending.db"),

		RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:   getint("REDIS_DB", 0),

		IdempTTLSecs:        getint("IDEMPOTENCY_TTL_SECONDS", 300),
		NotificationTTLSecs: getint("NOTIFICATION_TTL_SECONDS", 600),

		ChainMode:     strings.ToLower(getenv("CHAIN_MODE", ChainModeREST)),
		ChainURL:      getenv("CHAIN_URL", "https://fullnode.testnet.aptoslabs.com"),
		WalletURL:     getenv("WALLET_URL", "http://wallet:8090"),
		ModuleAddress: getenv("MODULE_ADDRESS", "0x1"),
		ModuleName:    getenv("MODULE_NAME", "real_estate_lending"),

		TxWaitTimeout:  time.Duration(getint("TX_WAIT_TIMEOUT_SECONDS", 120)) * time.Second,
		TxPollInterval: time.Duration(getint("TX_POLL_INTERVAL_MS", 1000)) * time.Millisecond,

		RateLimitRPS:   getint("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getint("RATE_LIMIT_BURST", 40),

		ReconcileSpec:  getenv("RECONCILE_SPEC", "@every 1m"),
		ReconcileGrace: time.Duration(getint("RECONCILE_GRACE_SECONDS", 120)) * time.Second,

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}
	return c
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.ChainMode {
	case ChainModeMemory:
	case ChainModeREST:
		if _, err := url.ParseRequestURI(c.ChainURL); err != nil {
			return fmt.Errorf("invalid CHAIN_URL %q: %w", c.ChainURL, err)
		}
		if _, err := url.ParseRequestURI(c.WalletURL); err != nil {
			return fmt.Errorf("invalid WALLET_URL %q: %w", c.WalletURL, err)
		}
	default:
		return fmt.Errorf("unsupported CHAIN_MODE %q", c.ChainMode)
	}

	if !strings.HasPrefix(c.ModuleAddress, "0x") || c.ModuleName == "" {
		return errors.New("MODULE_ADDRESS must be 0x-prefixed and MODULE_NAME set")
	}
	if c.TxWaitTimeout <= 0 || c.TxPollInterval <= 0 {
		return errors.New("TX_WAIT_TIMEOUT_SECONDS and TX_POLL_INTERVAL_MS must be positive")
	}
	if c.ReconcileGrace < 0 {
		return errors.New("RECONCILE_GRACE_SECONDS must not be negative")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case DriverPostgres:
		return c.PostgresDSN
	case DriverSQLite:
		return c.SQLitePath
	default:
		return c.MySQLDSN()
	}
}

// RedisEnabled is false when REDIS_ADDR=off; guards and the feed then
// live in process memory and idempotency is skipped.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != RedisOff }

// InFlightTTL bounds markers held while a transaction is awaited. It
// outlives the wait so a crashed request cannot wedge an account forever.
func (c *Config) InFlightTTL() time.Duration { return c.TxWaitTimeout + time.Minute }

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempTTLSecs) * time.Second
}

func (c *Config) NotificationTTL() time.Duration {
	return time.Duration(c.NotificationTTLSecs) * time.Second
}
