package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete set of settings this worker process needs at
// startup. Everything here is read once from the environment; there is no
// dynamic reconfiguration after Load returns.
type Config struct {
	App           AppConfig
	Logging       LoggingConfig
	RabbitMQ      RabbitMQConfig
	MinIO         MinIOConfig
	Vaults        VaultsConfig
	SchemaCache   SchemaCacheConfig
	DebugStorage  DebugStorageConfig
	Metrics       MetricsConfig
	Feedback      FeedbackConfig
}

// AppConfig identifies which (provider, service) pipeline this process
// instance serves.
type AppConfig struct {
	Service  string
	Provider string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

type RabbitMQConfig struct {
	Endpoint          string // amqp://... resolved by service discovery
	Exchange          string
	ConnectionTimeout time.Duration
	HeartbeatInterval time.Duration
	PrefetchCount     int
	ConnectRetries    int
	ConnectBackoff    time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type VaultsConfig struct {
	ConfigVaultURL string
	SchemaVaultURL string
	MaxCalls       int
	Period         time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
}

type SchemaCacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LocalCapacity int
	TTL           time.Duration
}

type DebugStorageConfig struct {
	Enabled bool
	Dir     string
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// FeedbackConfig controls the artificial delay the Event Controller waits
// before publishing a ServiceFeedback, carried over from the original
// system's fixed 5-second pre-publish sleep. Defaults to 0 (disabled);
// the original's pacing was a stopgap against downstream consumers that
// couldn't keep up, not a correctness requirement.
type FeedbackConfig struct {
	PrePublishDelay time.Duration
}

// Load reads configuration from a .env file (if present) and the process
// environment. Env vars always win over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	service := getEnv("SERVICE_NAME", "")
	provider := getEnv("PROVIDER", "")
	if service == "" {
		return nil, fmt.Errorf("SERVICE_NAME must be set")
	}
	if provider == "" {
		return nil, fmt.Errorf("PROVIDER must be set")
	}

	cfg := &Config{
		App: AppConfig{
			Service:  service,
			Provider: provider,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
		},
		RabbitMQ: RabbitMQConfig{
			Exchange:          "services",
			ConnectionTimeout: getEnvAsDuration("RABBITMQ_CONNECT_TIMEOUT", 100*time.Second),
			HeartbeatInterval: getEnvAsDuration("RABBITMQ_HEARTBEAT", 60*time.Second),
			PrefetchCount:     getEnvAsInt("RABBITMQ_PREFETCH", 1),
			ConnectRetries:    getEnvAsInt("RABBITMQ_CONNECT_RETRIES", 5),
			ConnectBackoff:    getEnvAsDuration("RABBITMQ_CONNECT_BACKOFF", 2*time.Second),
		},
		MinIO: MinIOConfig{
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Vaults: VaultsConfig{
			MaxCalls:       getEnvAsInt("VAULT_MAX_CALLS", 100),
			Period:         getEnvAsDuration("VAULT_PERIOD", 60*time.Second),
			RequestTimeout: getEnvAsDuration("VAULT_REQUEST_TIMEOUT", 10*time.Second),
			MaxRetries:     getEnvAsInt("VAULT_MAX_RETRIES", 5),
		},
		SchemaCache: SchemaCacheConfig{
			RedisAddr:     getEnv("SCHEMA_CACHE_REDIS_ADDR", ""),
			RedisPassword: getEnv("SCHEMA_CACHE_REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("SCHEMA_CACHE_REDIS_DB", 0),
			LocalCapacity: getEnvAsInt("SCHEMA_CACHE_LOCAL_CAPACITY", 256),
			TTL:           getEnvAsDuration("SCHEMA_CACHE_TTL", 5*time.Minute),
		},
		DebugStorage: DebugStorageConfig{
			Enabled: getEnvAsBool("DEBUG_STORAGE_ENABLED", false),
			Dir:     getEnv("DEBUG_STORAGE_DIR", "/app/tests/debug/storage"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("ENABLE_METRICS", true),
			Addr:    getEnv("METRICS_ADDR", ":9090"),
		},
		Feedback: FeedbackConfig{
			PrePublishDelay: getEnvAsDuration("FEEDBACK_PRE_PUBLISH_DELAY", 0),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
