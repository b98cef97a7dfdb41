package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the service needs. It is built once in
// main and passed into constructors; nothing reads the environment after
// startup.
type Config struct {
	Env  string
	Addr string

	// Postgres DSN. Empty means the API starts without persistence, which is
	// only useful for readiness probing and tests.
	DatabaseDSN string

	// Redis address for the cache layer. Empty falls back to the in-process
	// cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenSecret    string
	TokenIssuer    string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RevokeOnRotate bool

	BcryptCost int

	RateBurst  int
	RatePerSec int

	CacheTTL time.Duration
}

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultCacheTTL   = 30 * time.Second
)

// Load builds Config from the environment. A .env file in the working
// directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:            strEnv("APP_ENV", "dev"),
		Addr:           strEnv("APP_ADDR", ":8080"),
		DatabaseDSN:    os.Getenv("PG_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        intEnv("REDIS_DB", 0),
		TokenSecret:    os.Getenv("AUTH_SECRET"),
		TokenIssuer:    strEnv("AUTH_ISSUER", "pressline"),
		AccessTTL:      durEnv("AUTH_ACCESS_TTL", defaultAccessTTL),
		RefreshTTL:     durEnv("AUTH_REFRESH_TTL", defaultRefreshTTL),
		RevokeOnRotate: boolEnv("AUTH_REVOKE_ON_ROTATE", false),
		BcryptCost:     intEnv("AUTH_BCRYPT_COST", 0),
		RateBurst:      intEnv("RATE_BURST", 20),
		RatePerSec:     intEnv("RATE_PER_SEC", 10),
		CacheTTL:       durEnv("CACHE_TTL", defaultCacheTTL),
	}

	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return Config{}, fmt.Errorf("config: AUTH_SECRET is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return Config{}, fmt.Errorf("config: token TTLs must be positive")
	}
	return cfg, nil
}

func strEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	default:
		return def
	}
}

func durEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
