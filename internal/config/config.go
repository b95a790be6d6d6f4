package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	NegativeTotalClamp  = "clamp"
	NegativeTotalReject = "reject"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	AppEnv                string
	LogLevel              string
	LogEncoding           string
	DatabaseURL           string
	DBMaxOpenConns        int
	DBMaxIdleConns        int
	MigrationsAuto        bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	NegativeTotalPolicy   string
	SweepIntervalSeconds  int
	SweepPageSize         int
}

func Load() Config {
	policy := strings.ToLower(getEnv("SALE_NEGATIVE_TOTAL_POLICY", NegativeTotalClamp))
	if policy != NegativeTotalReject {
		policy = NegativeTotalClamp
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		AppEnv:                getEnv("APP_ENV", "production"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogEncoding:           getEnv("LOG_ENCODING", "json"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:        getEnvInt("DB_MAX_OPEN_CONNS", 30, 1),
		DBMaxIdleConns:        getEnvInt("DB_MAX_IDLE_CONNS", 8, 0),
		MigrationsAuto:        getEnvBool("MIGRATIONS_AUTO", false),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0, 0),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		NegativeTotalPolicy:   policy,
		SweepIntervalSeconds:  getEnvInt("SWEEP_INTERVAL_SECONDS", 60, 0),
		SweepPageSize:         getEnvInt("SWEEP_PAGE_SIZE", 200, 1),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getEnvInt falls back when the value is missing, malformed or below floor.
func getEnvInt(key string, fallback int, floor int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || val < floor {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return val
}
