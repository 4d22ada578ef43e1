package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the paper-trading service.
type Config struct {
	Port     int
	LogLevel string
	// LogFormat selects the zap encoder: "json" or "console".
	LogFormat string

	DBDriver string
	DBDSN    string

	StartingBalance decimal.Decimal
	Currency        string

	TickInterval      time.Duration
	SettlementTimeout time.Duration
	SettlementRetries int

	JWTSecret    string
	AuthDisabled bool
	CORSOrigins  []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

var defaults = map[string]any{
	"PORT":               "8080",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "json",
	"DB_DRIVER":          "sqlite",
	"DB_DSN":             "file:papertrade.db?_busy_timeout=5000",
	"STARTING_BALANCE":   "100000",
	"CURRENCY":           "USD",
	"TICK_INTERVAL":      "3s",
	"SETTLEMENT_TIMEOUT": "5s",
	"SETTLEMENT_RETRIES": "3",
	"JWT_SECRET":         "",
	"AUTH_DISABLED":      "false",
	"CORS_ORIGINS":       "http://localhost:3000,http://localhost:3001",
	"READ_TIMEOUT":       "5s",
	"WRITE_TIMEOUT":      "10s",
	"IDLE_TIMEOUT":       "60s",
	"SHUTDOWN_TIMEOUT":   "10s",
}

// Load reads configuration from an optional .env file (or the file named by
// ENV_FILE) and environment variables, applies defaults, and validates
// values. It returns an error for any invalid value.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	port, err := getInt(v, "PORT")
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range", port)
	}

	logLevel := v.GetString("LOG_LEVEL")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	logFormat := v.GetString("LOG_FORMAT")
	if logFormat != "json" && logFormat != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q, must be one of: json, console", logFormat)
	}

	dbDriver := v.GetString("DB_DRIVER")
	if dbDriver != "sqlite" && dbDriver != "postgres" {
		return nil, fmt.Errorf("invalid DB_DRIVER: %q, must be one of: sqlite, postgres", dbDriver)
	}
	dbDSN := v.GetString("DB_DSN")
	if dbDSN == "" {
		return nil, fmt.Errorf("invalid DB_DSN: must not be empty")
	}

	startingBalance, err := decimal.NewFromString(v.GetString("STARTING_BALANCE"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}
	if startingBalance.IsNegative() || !startingBalance.Equal(startingBalance.Round(2)) {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %s, must be >= 0 with at most 2 decimal places", startingBalance)
	}

	currency := strings.ToUpper(v.GetString("CURRENCY"))
	if !isValidCurrency(currency) {
		return nil, fmt.Errorf("invalid CURRENCY: %q, must be one of: USD, EUR, GBP, INR", currency)
	}

	tickInterval, err := getPositiveDuration(v, "TICK_INTERVAL")
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}

	settlementTimeout, err := getPositiveDuration(v, "SETTLEMENT_TIMEOUT")
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_TIMEOUT: %w", err)
	}

	settlementRetries, err := getInt(v, "SETTLEMENT_RETRIES")
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_RETRIES: %w", err)
	}
	if settlementRetries < 1 {
		return nil, fmt.Errorf("invalid SETTLEMENT_RETRIES: %d, must be >= 1", settlementRetries)
	}

	authDisabled, err := strconv.ParseBool(v.GetString("AUTH_DISABLED"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_DISABLED: %w", err)
	}
	jwtSecret := v.GetString("JWT_SECRET")
	if jwtSecret == "" && !authDisabled {
		return nil, fmt.Errorf("invalid JWT_SECRET: required unless AUTH_DISABLED=true")
	}

	corsOrigins := splitList(v.GetString("CORS_ORIGINS"))

	readTimeout, err := getDuration(v, "READ_TIMEOUT")
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration(v, "WRITE_TIMEOUT")
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration(v, "IDLE_TIMEOUT")
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:              port,
		LogLevel:          logLevel,
		LogFormat:         logFormat,
		DBDriver:          dbDriver,
		DBDSN:             dbDSN,
		StartingBalance:   startingBalance,
		Currency:          currency,
		TickInterval:      tickInterval,
		SettlementTimeout: settlementTimeout,
		SettlementRetries: settlementRetries,
		JWTSecret:         jwtSecret,
		AuthDisabled:      authDisabled,
		CORSOrigins:       corsOrigins,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ShutdownTimeout:   shutdownTimeout,
	}, nil
}

// loadDotEnv populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("invalid ENV_FILE: %w", err)
}

func getInt(v *viper.Viper, key string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(v.GetString(key)))
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	return time.ParseDuration(strings.TrimSpace(v.GetString(key)))
}

func getPositiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := getDuration(v, key)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", d)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidCurrency(c string) bool {
	switch c {
	case "USD", "EUR", "GBP", "INR":
		return true
	}
	return false
}
