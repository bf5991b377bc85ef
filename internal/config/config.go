package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	ServerPort      string
	LogLevel        string
	ShutdownTimeout time.Duration

	StorageBackend string
	DataFile       string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	AuthUsername     string
	AuthPasswordHash string
}

// Load reads configuration from the environment. Values in a .env file in
// the working directory are applied first when the file exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ShutdownTimeout:  30 * time.Second,
		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
		DataFile:         getEnv("DATA_FILE", "accounts.json"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBName:           getEnv("DB_NAME", "account_ledger"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		AuthUsername:     os.Getenv("AUTH_USERNAME"),
		AuthPasswordHash: os.Getenv("AUTH_PASSWORD_HASH"),
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendFile:
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE must be set for the %s backend", BackendFile)
		}
	case BackendPostgres:
		if c.DBHost == "" || c.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME must be set for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if (c.AuthUsername == "") != (c.AuthPasswordHash == "") {
		return fmt.Errorf("AUTH_USERNAME and AUTH_PASSWORD_HASH must be set together")
	}
	return nil
}

// AuthEnabled reports whether requests must carry credentials.
func (c *Config) AuthEnabled() bool {
	return c.AuthUsername != ""
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
