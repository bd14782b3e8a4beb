// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage engine names accepted by STORAGE_ENGINE.
const (
	EngineSQLite = "sqlite"
	EngineBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Server      ServerConfig
	Storage     StorageConfig
	Circulation CirculationConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	RateLimitRPS   float64       // Per-client requests per second on mutating routes (default: 10)
	RateLimitBurst int           // Per-client burst size (default: 20)
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	Engine   string // "sqlite" or "badger" (default: sqlite)
	DataPath string // Directory holding the database files
}

// CirculationConfig holds the borrow/return policy knobs.
type CirculationConfig struct {
	// FinePerDay is the fine charged per late day, in currency units.
	FinePerDay int64
	// MaxBorrowDays is the upper bound on a requested loan duration.
	MaxBorrowDays int
	// MinBorrowDays is the lower bound on a requested loan duration.
	MinBorrowDays int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Directory for database files")
	storageEngine := flag.String("storage-engine", "", "Storage engine (sqlite or badger)")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	finePerDay := flag.String("fine-per-day", "", "Fine per late day in currency units (default: 5000)")
	maxBorrowDays := flag.String("max-borrow-days", "", "Maximum loan duration in days (default: 30)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			RateLimitRPS:   getFloatConfigValue("", "RATE_LIMIT_RPS", 10),
			RateLimitBurst: getIntConfigValue("", "RATE_LIMIT_BURST", 20),
		},
		Storage: StorageConfig{
			Engine:   getConfigValue(*storageEngine, "STORAGE_ENGINE", EngineSQLite),
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Circulation: CirculationConfig{
			FinePerDay:    int64(getIntConfigValue(*finePerDay, "FINE_PER_DAY", 5000)),
			MaxBorrowDays: getIntConfigValue(*maxBorrowDays, "MAX_BORROW_DAYS", 30),
			MinBorrowDays: getIntConfigValue("", "MIN_BORROW_DAYS", 1),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand and default the data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.Engine != EngineSQLite && c.Storage.Engine != EngineBadger {
		return fmt.Errorf("invalid storage engine: %s (must be sqlite or badger)", c.Storage.Engine)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Circulation.FinePerDay < 0 {
		return fmt.Errorf("fine per day cannot be negative: %d", c.Circulation.FinePerDay)
	}

	if c.Circulation.MinBorrowDays < 1 {
		return fmt.Errorf("minimum borrow days must be at least 1: %d", c.Circulation.MinBorrowDays)
	}

	if c.Circulation.MaxBorrowDays < c.Circulation.MinBorrowDays {
		return fmt.Errorf("maximum borrow days %d cannot be below minimum %d",
			c.Circulation.MaxBorrowDays, c.Circulation.MinBorrowDays)
	}

	return nil
}

// expandDataPath expands ~ in the data path and defaults to ./data.
func (c *Config) expandDataPath() error {
	path := c.Storage.DataPath
	if path == "" {
		path = "data"
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve data path: %w", err)
	}

	c.Storage.DataPath = abs
	return nil
}

// loadEnvFile reads KEY=VALUE pairs from a file into the process environment.
// Existing environment variables are not overwritten.
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// getConfigValue returns the first non-empty value among flag, environment variable, and default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue is getConfigValue for integers; unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

// getFloatConfigValue is getConfigValue for floats; unparseable values fall back to the default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
