package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration loaded from the environment
type Config struct {
	// Storage
	DBDriver  string
	DBConnStr string
	DBPath    string

	// Transport
	GRPCAddr string
	OpsAddr  string
	APIToken string
	// TriggerRatePerMin bounds manual ExecuteDueNow calls
	TriggerRatePerMin int

	// Scheduling
	ScheduleCron     string
	ReminderCron     string
	ScheduleTimezone string
	RunWorkers       int
	RunTimeout       time.Duration
	MirrorCredits    bool

	// Audit mirror; disabled when ImmudbAddress is empty
	ImmudbAddress  string
	ImmudbPort     int
	ImmudbUser     string
	ImmudbPassword string
	ImmudbDatabase string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file, relying on environment", "error", err)
	}

	cfg := &Config{
		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:   getEnv("DB_PATH", "./data/standing_orders.db"),

		GRPCAddr:          getEnv("GRPC_ADDR", ":8080"),
		OpsAddr:           getEnv("OPS_ADDR", ":9090"),
		APIToken:          getEnv("API_TOKEN", ""),
		TriggerRatePerMin: getEnvAsInt("TRIGGER_RATE_PER_MIN", 6),

		ScheduleCron:     getEnv("SCHEDULE_CRON", "0 8 * * *"),
		ReminderCron:     getEnv("REMINDER_CRON", "0 7 * * *"),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", "UTC"),
		RunWorkers:       getEnvAsInt("RUN_WORKERS", 4),
		RunTimeout:       getEnvAsDuration("RUN_TIMEOUT", 30*time.Minute),
		MirrorCredits:    getEnvAsBool("LEDGER_MIRROR_CREDITS", true),

		ImmudbAddress:  getEnv("IMMUDB_ADDRESS", ""),
		ImmudbPort:     getEnvAsInt("IMMUDB_PORT", 3322),
		ImmudbUser:     getEnv("IMMUDB_USER", "immudb"),
		ImmudbPassword: getEnv("IMMUDB_PASSWORD", "immudb"),
		ImmudbDatabase: getEnv("IMMUDB_DATABASE", "defaultdb"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	cfg.DBConnStr = getEnv("DB_CONN_STR", "")
	if cfg.DBConnStr == "" && cfg.DBDriver == "postgres" {
		cfg.DBConnStr = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
			getEnv("DB_NAME", "standing_orders"),
		)
	}

	return cfg
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q: must be postgres or sqlite", c.DBDriver)
	}

	if c.RunWorkers <= 0 {
		return fmt.Errorf("RUN_WORKERS must be positive, got %d", c.RunWorkers)
	}

	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive, got %s", c.RunTimeout)
	}

	if c.TriggerRatePerMin <= 0 {
		return fmt.Errorf("TRIGGER_RATE_PER_MIN must be positive, got %d", c.TriggerRatePerMin)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if strings.TrimSpace(c.ScheduleCron) == "" {
		return errors.New("SCHEDULE_CRON cannot be empty")
	}

	return nil
}

// Location returns the time zone in which calendar dates are evaluated
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	return loc, nil
}

// DSN returns the data source for the configured driver
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DBConnStr
	}
	return c.DBPath
}

// getEnv retrieves a non-empty environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	slog.Warn("invalid integer value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a fallback
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	slog.Warn("invalid boolean value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	slog.Warn("invalid duration value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}
