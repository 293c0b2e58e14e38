package config

import (
	"os"
	"strconv"
)

// PostgresConfig holds connection settings for Postgres-backed stores and
// outbound Postgres pools.
type PostgresConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// RedisConfig holds connection settings for Redis-backed stores.
type RedisConfig struct {
	URL string
}

// S3Config holds object storage settings for S3-compatible blob containers
// (MinIO, AWS S3, etc.).
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// RuntimeConfig is the centralized environment-derived configuration for the
// runtime. It supplies backend credentials so that secrets never need to
// appear in an application's runtime-config.toml. Real environment variables
// take precedence; a .env file can be auto-loaded by importing
// _ "github.com/joho/godotenv/autoload" in the entry point.
type RuntimeConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
}

// Load reads configuration from environment variables.
func Load() *RuntimeConfig {
	return &RuntimeConfig{
		Postgres: PostgresConfig{
			Host:               getEnv("SPIN_PG_HOST", ""),
			Port:               getEnv("SPIN_PG_PORT", "5432"),
			User:               getEnv("SPIN_PG_USER", ""),
			Password:           getEnv("SPIN_PG_PASSWORD", ""),
			Name:               getEnv("SPIN_PG_DATABASE", ""),
			SSLMode:            getEnv("SPIN_PG_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("SPIN_PG_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("SPIN_PG_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("SPIN_PG_CONN_MAX_LIFETIME_SEC", 300),
		},
		Redis: RedisConfig{
			URL: getEnv("SPIN_REDIS_URL", ""),
		},
		S3: S3Config{
			Endpoint:  getEnv("SPIN_S3_ENDPOINT", ""),
			AccessKey: getEnv("SPIN_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("SPIN_S3_SECRET_KEY", ""),
			UseSSL:    getEnvBool("SPIN_S3_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
