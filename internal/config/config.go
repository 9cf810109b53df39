package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultSecret = "change-me"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" env-default:"8000"`
	Env             string        `env:"APP_ENV" env-default:"dev" env-description:"dev or prod"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
	TrustedOrigins  []string      `env:"TRUSTED_ORIGINS" env-default:"http://localhost:3000" env-separator:","`

	// BaseURL is the public URL used in confirmation links
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:8000"`
}

type DatabaseConfig struct {
	Host         string `env:"DB_HOST" env-default:"localhost"`
	Port         string `env:"DB_PORT" env-default:"5432"`
	User         string `env:"DB_USER" env-default:"postgres"`
	Password     string `env:"DB_PASSWORD" env-default:"postgres"`
	DBName       string `env:"DB_NAME" env-default:"contacts"`
	SSLMode      string `env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	AutoMigrate  bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type AuthConfig struct {
	Secret string `env:"SECRET_KEY" env-default:"change-me" env-description:"token signing secret; 32 bytes for v4.local"`

	// Algorithm is one of HS256, HS384, HS512 or v4.local
	Algorithm string `env:"TOKEN_ALGORITHM" env-default:"HS256"`

	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	ConfirmationTokenTTL time.Duration `env:"CONFIRMATION_TOKEN_TTL" env-default:"24h"`
}

// RateLimitConfig selects the counter store.
// The memory backend only bounds a single process; any deployment running
// more than one API process must use the redis backend.
type RateLimitConfig struct {
	Backend            string        `env:"RATE_LIMIT_BACKEND" env-default:"redis" env-description:"redis or memory"`
	ContactsListLimit  int           `env:"RATE_LIMIT_CONTACTS_LIST" env-default:"10"`
	ContactsListWindow time.Duration `env:"RATE_LIMIT_CONTACTS_WINDOW" env-default:"60s"`
}

type EmailConfig struct {
	SMTPHost     string `env:"MAIL_SERVER"`
	SMTPPort     string `env:"MAIL_PORT" env-default:"587"`
	SMTPUser     string `env:"MAIL_USERNAME"`
	SMTPPassword string `env:"MAIL_PASSWORD"`
	From         string `env:"MAIL_FROM"`
	FromName     string `env:"MAIL_FROM_NAME" env-default:"Contacts API"`
	QueueSize    int    `env:"MAIL_QUEUE_SIZE" env-default:"100"`
	Workers      int    `env:"MAIL_WORKERS" env-default:"2"`
}

type StorageConfig struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" env-default:"us-east-1"`
	Bucket    string `env:"S3_BUCKET" env-default:"avatars"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`

	// PublicURL prefixes object keys to build avatar URLs
	PublicURL string `env:"S3_PUBLIC_URL"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("SECRET_KEY is required")
	}
	if !c.Server.IsDevelopment() && c.Auth.Secret == defaultSecret {
		return errors.New("SECRET_KEY must be set in production")
	}

	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	case "v4.local":
		if len(c.Auth.Secret) != 32 {
			return fmt.Errorf("SECRET_KEY must be exactly 32 bytes for v4.local, got %d", len(c.Auth.Secret))
		}
	default:
		return fmt.Errorf("unsupported TOKEN_ALGORITHM %q", c.Auth.Algorithm)
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 || c.Auth.ConfirmationTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}

	switch c.RateLimit.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}
	if c.RateLimit.ContactsListLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT_CONTACTS_LIST must be positive, got %d", c.RateLimit.ContactsListLimit)
	}
	if c.RateLimit.ContactsListWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_CONTACTS_WINDOW must be positive, got %s", c.RateLimit.ContactsListWindow)
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// Enabled reports whether an S3 bucket is configured for avatar uploads
func (c *StorageConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != ""
}
