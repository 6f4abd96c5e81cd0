package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

type Config struct {
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Store    StoreConfig
	Server   ServerConfig
	Auth     AuthConfig
	Throttle ThrottleConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

type StoreConfig struct {
	Driver string `validate:"oneof=memory postgres sqlite redis"`
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret              string
	AccessTokenExpiry      time.Duration
	LoginRequestsPerMinute int `validate:"gt=0"`
}

// ThrottleConfig holds the failed-login throttling settings
type ThrottleConfig struct {
	BlockDuration     time.Duration `validate:"gt=0"`
	MaxFailedAttempts int           `validate:"gt=0"`
	ResetWindow       time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads the full API configuration. JWT_SECRET is required.
func Load() (*Config, error) {
	cfg, err := LoadStore()
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, cfg.Server.Env); err != nil {
		return nil, err
	}
	cfg.Auth.JWTSecret = jwtSecret

	return cfg, nil
}

// LoadStore reads everything except auth secrets. Used by tooling that only
// needs to reach the attempt record store.
func LoadStore() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "ipthrottle"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "ipthrottle.db"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 50),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "ipthrottle:attempt:"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			AccessTokenExpiry:      getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			LoginRequestsPerMinute: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 20),
		},
		Throttle: ThrottleConfig{
			BlockDuration:     getEnvAsDuration("THROTTLE_BLOCK_DURATION", 15*time.Minute),
			MaxFailedAttempts: getEnvAsInt("THROTTLE_MAX_FAILED_ATTEMPTS", 5),
			ResetWindow:       getEnvAsDuration("THROTTLE_RESET_WINDOW", 5*time.Minute),
		},
	}

	if err := validate.Struct(cfg.Store); err != nil {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: %w", cfg.Store.Driver, err)
	}
	if err := validate.Struct(cfg.Throttle); err != nil {
		return nil, fmt.Errorf("invalid throttle configuration: %w", err)
	}
	if err := validate.Struct(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}

	if cfg.Store.Driver == StorePostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
