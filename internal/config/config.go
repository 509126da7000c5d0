package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DB              DBConfig
	LogLevel        string
	LogFormat       string
	BcryptCost      int
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
	AuthRateLimit   int
	AuthRateWindow  time.Duration
}

type DBConfig struct {
	Driver string
	DSN    string
}

// DefaultEnvFiles are read, in order, before the environment is consulted.
// Values already present in the environment are never overridden.
var DefaultEnvFiles = []string{".env.local", ".env"}

func Load() (Config, error) {
	return LoadFiles(DefaultEnvFiles...)
}

// LoadFiles reads the given dotenv files (missing files are skipped) and
// then builds the config from the environment.
func LoadFiles(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port: getEnv("TASKTREK_PORT", "8080"),
		DB: DBConfig{
			Driver: getEnv("TASKTREK_DB_DRIVER", "sqlite"),
			DSN:    getEnv("TASKTREK_DB_DSN", "tasktrek.db"),
		},
		LogLevel:       getEnv("TASKTREK_LOG_LEVEL", "info"),
		LogFormat:      getEnv("TASKTREK_LOG_FORMAT", "text"),
		AuthRateWindow: time.Minute,
	}

	// A hosted Postgres URL takes precedence.
	if url := getEnv("DATABASE_URL", ""); url != "" {
		cfg.DB.Driver = "postgres"
		cfg.DB.DSN = url
	}

	var err error
	if cfg.BcryptCost, err = getEnvInt("TASKTREK_BCRYPT_COST", 0); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateLimit, err = getEnvInt("TASKTREK_AUTH_RATE_LIMIT", 10); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = getEnvDuration("TASKTREK_STORE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("TASKTREK_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("TASKTREK_PORT must not be empty")
	}
	if c.DB.Driver != "sqlite" && c.DB.Driver != "postgres" {
		return fmt.Errorf("TASKTREK_DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("TASKTREK_DB_DSN must not be empty")
	}
	// 0 selects bcrypt's default cost.
	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return fmt.Errorf("TASKTREK_BCRYPT_COST must be between 4 and 31")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("TASKTREK_STORE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("TASKTREK_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.AuthRateLimit <= 0 {
		return fmt.Errorf("TASKTREK_AUTH_RATE_LIMIT must be > 0")
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
