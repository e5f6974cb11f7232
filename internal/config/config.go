package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	FirebaseStorageBucket            string `mapstructure:"FIREBASE_STORAGE_BUCKET"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`

	// AdminSource selects how admin status is resolved: "claim" or "marker".
	AdminSource       string        `mapstructure:"ADMIN_SOURCE"`
	DownstreamTimeout time.Duration `mapstructure:"DOWNSTREAM_TIMEOUT"`

	// An empty RedisAddr keeps carts in memory and disables the product cache.
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	CartTTL         time.Duration `mapstructure:"CART_TTL"`
	ProductCacheTTL time.Duration `mapstructure:"PRODUCT_CACHE_TTL"`

	// An empty RabbitMQURL disables user events.
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	EventsQueue string `mapstructure:"EVENTS_QUEUE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
}

var keys = []string{
	"PORT", "GIN_MODE",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"FIREBASE_STORAGE_BUCKET", "CLIENT_URL",
	"ADMIN_SOURCE", "DOWNSTREAM_TIMEOUT",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CART_TTL", "PRODUCT_CACHE_TTL",
	"RABBITMQ_URL", "EVENTS_QUEUE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "MAIL_FROM",
}

// LoadConfig loads configuration from the environment. Outside release mode a
// .env file in the working directory is merged first when one exists.
func LoadConfig() (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("ADMIN_SOURCE", "claim")
	v.SetDefault("DOWNSTREAM_TIMEOUT", "10s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CART_TTL", "720h")
	v.SetDefault("PRODUCT_CACHE_TTL", "5m")
	v.SetDefault("EVENTS_QUEUE", "user-events")
	v.SetDefault("SMTP_PORT", 587)

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	switch strings.ToLower(c.AdminSource) {
	case "claim", "marker":
	default:
		return fmt.Errorf("ADMIN_SOURCE must be claim or marker, got %q", c.AdminSource)
	}
	if c.DownstreamTimeout <= 0 {
		return errors.New("DOWNSTREAM_TIMEOUT must be positive")
	}
	if c.CartTTL <= 0 || c.ProductCacheTTL <= 0 {
		return errors.New("CART_TTL and PRODUCT_CACHE_TTL must be positive")
	}
	return nil
}
