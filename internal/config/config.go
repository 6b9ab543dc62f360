// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverFirebase = "firebase"
	StorageDriverOSS      = "oss"
)

type Config struct {
	Env     string `mapstructure:"env"`
	Port    string `mapstructure:"port"`
	AppURL  string `mapstructure:"app_url"`
	LogJSON bool   `mapstructure:"log_json"`

	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`

	MidtransServerKey    string `mapstructure:"midtrans_server_key"`
	MidtransClientKey    string `mapstructure:"midtrans_client_key"`
	MidtransIsProduction bool   `mapstructure:"midtrans_is_production"`
	PaymentCurrency      string `mapstructure:"payment_currency"`
	// PaymentLockTTL bounds how long one initiation holds the (request, stage) lock
	PaymentLockTTL time.Duration `mapstructure:"payment_lock_ttl"`
	// SessionMaxAge is how old an active checkout may get before the expiry task checks it
	SessionMaxAge time.Duration `mapstructure:"session_max_age"`

	FirebaseCredentialsPath string `mapstructure:"firebase_credentials_path"`
	FirebaseAPIKey          string `mapstructure:"firebase_api_key"`
	FirebaseAuthDomain      string `mapstructure:"firebase_auth_domain"`
	FirebaseProjectID       string `mapstructure:"firebase_project_id"`

	StorageDriver      string `mapstructure:"storage_driver"`
	StorageBucket      string `mapstructure:"storage_bucket"`
	OSSEndpoint        string `mapstructure:"oss_endpoint"`
	OSSAccessKeyID     string `mapstructure:"oss_access_key_id"`
	OSSAccessKeySecret string `mapstructure:"oss_access_key_secret"`
	OSSPublicBaseURL   string `mapstructure:"oss_public_base_url"`

	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  string `mapstructure:"smtp_port"`
	SMTPUser  string `mapstructure:"smtp_user"`
	SMTPPass  string `mapstructure:"smtp_pass"`
	EmailFrom string `mapstructure:"email_from"`

	WahaBaseURL string `mapstructure:"waha_base_url"`
	WahaAPIKey  string `mapstructure:"waha_api_key"`
	WahaSession string `mapstructure:"waha_session"`

	TrackingRateLimit  int           `mapstructure:"tracking_rate_limit"`
	TrackingRateWindow time.Duration `mapstructure:"tracking_rate_window"`
	PricingCacheTTL    time.Duration `mapstructure:"pricing_cache_ttl"`

	WorkerInterval time.Duration `mapstructure:"worker_interval"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("app_url", "http://localhost:8080")
	v.SetDefault("log_json", false)

	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "redis://localhost:6379/0")

	v.SetDefault("midtrans_server_key", "")
	v.SetDefault("midtrans_client_key", "")
	v.SetDefault("midtrans_is_production", false)
	v.SetDefault("payment_currency", "IDR")
	v.SetDefault("payment_lock_ttl", 30*time.Second)
	v.SetDefault("session_max_age", 24*time.Hour)

	v.SetDefault("firebase_credentials_path", "firebase-credentials.json")
	v.SetDefault("firebase_api_key", "")
	v.SetDefault("firebase_auth_domain", "")
	v.SetDefault("firebase_project_id", "")

	v.SetDefault("storage_driver", StorageDriverFirebase)
	v.SetDefault("storage_bucket", "")
	v.SetDefault("oss_endpoint", "")
	v.SetDefault("oss_access_key_id", "")
	v.SetDefault("oss_access_key_secret", "")
	v.SetDefault("oss_public_base_url", "")

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", "587")
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_pass", "")
	v.SetDefault("email_from", "")

	v.SetDefault("waha_base_url", "http://localhost:3000")
	v.SetDefault("waha_api_key", "")
	v.SetDefault("waha_session", "default")

	v.SetDefault("tracking_rate_limit", 30)
	v.SetDefault("tracking_rate_window", time.Minute)
	v.SetDefault("pricing_cache_ttl", 10*time.Minute)

	v.SetDefault("worker_interval", 10*time.Second)
}

// Load reads .env (if present) and then the process environment. Environment
// variables use the upper-cased field key, e.g. DATABASE_URL.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether cookies and gateways should run in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RequireDatabase fails fast when DATABASE_URL is missing
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return nil
}
