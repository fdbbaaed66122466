package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
	Catalog      CatalogConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN runs the service on
// in-memory storage.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr keeps load
// counters in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LoadKey  string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// BootstrapEmail and BootstrapPassword seed an admin when no operator
	// with that email exists.
	BootstrapEmail    string
	BootstrapPassword string
}

// NotificationConfig tunes per-session delivery.
type NotificationConfig struct {
	SendBuffer          int
	WriteTimeoutSeconds int
	PingIntervalSeconds int
	PongWaitSeconds     int
}

// KafkaConfig enables event export when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CatalogConfig locates the category catalog file.
type CatalogConfig struct {
	File           string
	RefreshSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "query-triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			LoadKey:  getEnv("REDIS_LOAD_KEY", "triage:recipient_load"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24*7),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapEmail:        os.Getenv("AUTH_BOOTSTRAP_EMAIL"),
			BootstrapPassword:     os.Getenv("AUTH_BOOTSTRAP_PASSWORD"),
		},
		Notification: NotificationConfig{
			SendBuffer:          getEnvAsInt("NOTIFY_SEND_BUFFER", 64),
			WriteTimeoutSeconds: getEnvAsInt("NOTIFY_WRITE_TIMEOUT_SECONDS", 10),
			PingIntervalSeconds: getEnvAsInt("NOTIFY_PING_INTERVAL_SECONDS", 25),
			PongWaitSeconds:     getEnvAsInt("NOTIFY_PONG_WAIT_SECONDS", 60),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "query-events"),
		},
		Catalog: CatalogConfig{
			File:           os.Getenv("CATEGORIES_FILE"),
			RefreshSeconds: getEnvAsInt("CATEGORIES_REFRESH_SECONDS", 0),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if n := cfg.Notification; n.PingInterval() > 0 && n.PongWait() > 0 && n.PongWait() <= n.PingInterval() {
		return nil, fmt.Errorf("NOTIFY_PONG_WAIT_SECONDS must exceed NOTIFY_PING_INTERVAL_SECONDS")
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// WriteTimeout bounds a single push to a session.
func (n NotificationConfig) WriteTimeout() time.Duration {
	return time.Duration(n.WriteTimeoutSeconds) * time.Second
}

// PingInterval is zero when keepalive pings are disabled.
func (n NotificationConfig) PingInterval() time.Duration {
	if n.PingIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(n.PingIntervalSeconds) * time.Second
}

// PongWait is how long a session may stay silent before it is dropped. Zero
// disables the read deadline.
func (n NotificationConfig) PongWait() time.Duration {
	if n.PongWaitSeconds <= 0 {
		return 0
	}
	return time.Duration(n.PongWaitSeconds) * time.Second
}

// RefreshInterval is zero when periodic reload is disabled.
func (c CatalogConfig) RefreshInterval() time.Duration {
	if c.RefreshSeconds <= 0 || c.File == "" {
		return 0
	}
	return time.Duration(c.RefreshSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
