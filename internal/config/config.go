package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	// CronToken authorizes scheduled-endpoint callers (bearer token).
	CronToken string
	// EncryptionKey is the hex-encoded 32-byte key for connector credentials.
	EncryptionKey     string
	ConfigCacheTTL    int // seconds
	ReconcileInterval int // seconds
	StaleRunThreshold int // seconds
	ShutdownTimeout   int // seconds
	SyncRowLimit      int // 0 = unlimited
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cronToken := os.Getenv("CRON_TOKEN")
	if cronToken == "" {
		fmt.Println("Warning: CRON_TOKEN not set, scheduled endpoints will reject all callers")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		fmt.Println("Warning: ENCRYPTION_KEY not set, encrypted source credentials cannot be read")
	}

	return &Config{
		DatabaseURL:       dbURL,
		Port:              envOrDefault("PORT", "8080"),
		CronToken:         cronToken,
		EncryptionKey:     encryptionKey,
		ConfigCacheTTL:    envIntOrDefault("CONFIG_CACHE_TTL", 300),
		ReconcileInterval: envIntOrDefault("RECONCILE_INTERVAL", 3600),
		StaleRunThreshold: envIntOrDefault("STALE_RUN_THRESHOLD", 1800),
		ShutdownTimeout:   envIntOrDefault("SHUTDOWN_TIMEOUT", 30),
		SyncRowLimit:      envIntOrDefault("SYNC_ROW_LIMIT", 0),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: %s=%q is not a number, using default %d\n", key, v, fallback)
		return fallback
	}
	return n
}
