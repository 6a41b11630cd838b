package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/harryweb/internal/storage"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend API
	APIBaseURL string
	APITimeout time.Duration

	// Session
	SessionSecret string

	// Storage
	StorageDriver storage.Driver
	StoragePath   string
	StorageKey    string
	StorageSecret string
	DatabaseURL   string

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort      string
	BaseURL         string
	ShutdownTimeout time.Duration

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.StorageDriver = storage.Driver(strings.ToLower(getEnvString("STORAGE_DRIVER", string(storage.DriverFile))))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageDriver == storage.DriverPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StorageDriver {
	case storage.DriverMemory, storage.DriverFile, storage.DriverSQLite, storage.DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q", cfg.StorageDriver)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.StoragePath = getEnvString("STORAGE_PATH", defaultStoragePath(cfg.StorageDriver))
	cfg.StorageKey = getEnvString("STORAGE_KEY", "blog_storage")
	cfg.StorageSecret = os.Getenv("STORAGE_SECRET")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// defaultStoragePath はドライバごとの保存先の既定値。
func defaultStoragePath(driver storage.Driver) string {
	if driver == storage.DriverSQLite {
		return "./data/harryweb_storage.db"
	}
	return "./data/harryweb_storage.json"
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
