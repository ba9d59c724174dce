package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Secret manager kinds
const (
	SecretManagerNone  = ""
	SecretManagerLocal = "local"
	SecretManagerAWS   = "aws"
	SecretManagerVault = "vault"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Secrets   SecretsConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

// ServerConfig holds listener and URL configuration
type ServerConfig struct {
	HTTPPort    int
	GRPCPort    int
	MetricsPort int
	Host        string
	Environment string
	// FrontendURL receives learners after the gateway callback
	FrontendURL string
	// PublicBaseURL is where the gateway reaches this service
	PublicBaseURL   string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// GatewayConfig holds payment gateway configuration
type GatewayConfig struct {
	BaseURL     string
	SecretKey   string
	WebhookHash string
	Timeout     time.Duration
	MaxRetries  int
	// ReferencePrefix starts every transaction reference
	ReferencePrefix string
	DefaultCurrency string
	// SecretKeyPath and WebhookHashPath locate the secrets in the secret manager
	SecretKeyPath   string
	WebhookHashPath string
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// RedisConfig holds the distributed lock store configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// KafkaConfig holds event publishing configuration
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

// SecretsConfig selects and configures the secret manager
type SecretsConfig struct {
	Manager string

	LocalBasePath string

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	VaultAddress   string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	VaultAuth      string

	CacheTTL time.Duration
}

// RateLimitConfig bounds requests per client IP on public routes
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string
}

// LoadFromEnv loads configuration from environment variables. A .env file
// in the working directory, when present, is read first and never
// overrides variables already set.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load()
}

func load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:        getEnvAsInt("HTTP_PORT", 8080),
			GRPCPort:        getEnvAsInt("GRPC_PORT", 50051),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "production"),
			FrontendURL:     strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
			PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: loadDatabase(),
		Gateway: GatewayConfig{
			BaseURL:         strings.TrimRight(getEnv("GATEWAY_BASE_URL", "https://api.flutterwave.com/v3"), "/"),
			SecretKey:       getEnv("GATEWAY_SECRET_KEY", ""),
			WebhookHash:     getEnv("GATEWAY_WEBHOOK_HASH", ""),
			Timeout:         getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			MaxRetries:      getEnvAsInt("GATEWAY_MAX_RETRIES", 2),
			ReferencePrefix: getEnv("GATEWAY_REFERENCE_PREFIX", "IGA"),
			DefaultCurrency: strings.ToUpper(getEnv("GATEWAY_DEFAULT_CURRENCY", "RWF")),
			SecretKeyPath:   getEnv("GATEWAY_SECRET_KEY_PATH", "course-payments/gateway/secret-key"),
			WebhookHashPath: getEnv("GATEWAY_WEBHOOK_HASH_PATH", "course-payments/gateway/webhook-hash"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "course-platform"),
			TokenTTL:  getEnvAsDuration("JWT_TOKEN_TTL", time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("REDIS_LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:  getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:  getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:    getEnv("KAFKA_TOPIC", "course-payments.events"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "course-payments"),
		},
		Secrets: SecretsConfig{
			Manager:        strings.ToLower(getEnv("SECRET_MANAGER", SecretManagerNone)),
			LocalBasePath:  getEnv("LOCAL_SECRETS_BASE_PATH", "./secrets"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", "http://localhost:8200"),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultAuth:      getEnv("VAULT_AUTH_METHOD", "token"),
			CacheTTL:       getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseFromEnv loads only the database section, for tools such as
// the migrator that never touch the gateway
func LoadDatabaseFromEnv() (DatabaseConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return DatabaseConfig{}, fmt.Errorf("load .env: %w", err)
	}
	db := loadDatabase()
	if db.Password == "" {
		return DatabaseConfig{}, fmt.Errorf("DB_PASSWORD is required")
	}
	return db, nil
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Database: getEnv("DB_NAME", "course_payments"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
	}
}

// Validate checks required fields. The gateway secrets may be left empty
// when a secret manager will resolve them at startup.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Auth.JWTSecret) < 48 {
		return fmt.Errorf("JWT_SECRET must be at least 48 characters")
	}

	switch c.Secrets.Manager {
	case SecretManagerNone:
		if c.Gateway.SecretKey == "" {
			return fmt.Errorf("GATEWAY_SECRET_KEY is required")
		}
		if c.Gateway.WebhookHash == "" {
			return fmt.Errorf("GATEWAY_WEBHOOK_HASH is required")
		}
	case SecretManagerLocal, SecretManagerAWS, SecretManagerVault:
	default:
		return fmt.Errorf("unsupported SECRET_MANAGER %q", c.Secrets.Manager)
	}

	if len(c.Gateway.DefaultCurrency) != 3 {
		return fmt.Errorf("GATEWAY_DEFAULT_CURRENCY must be a 3-letter code")
	}
	if c.Gateway.ReferencePrefix == "" {
		return fmt.Errorf("GATEWAY_REFERENCE_PREFIX is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// ConnectionString returns the PostgreSQL connection URL
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
