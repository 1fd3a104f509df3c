package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig points at MongoDB. An empty URI runs the service on the
// in-memory store, which is only meant for local development.
type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether cover image storage is configured.
func (c S3Config) Enabled() bool {
	return c.BucketName != ""
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// SchedulerConfig controls session generation and the cleanup sweep.
type SchedulerConfig struct {
	// WindowWeeks is how far ahead sessions are offered for booking.
	WindowWeeks int `mapstructure:"window_weeks"`
	// Timezone is the wall-clock zone class templates are written in.
	Timezone string `mapstructure:"timezone"`
	// CleanupCron is a robfig/cron spec for the daily sweep.
	CleanupCron string `mapstructure:"cleanup_cron"`
	// PendingTTL is how long an unpaid reservation holds its seat.
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
}

// Location resolves Timezone. Validate must have passed.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type PaymentConfig struct {
	CheckoutBaseURL string `mapstructure:"checkout_base_url"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
	Currency        string `mapstructure:"currency"`
}

// AdminConfig seeds the first admin account at startup when Email is set.
type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded into the environment first.
func LoadConfig(path string) (config Config, err error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, scheduler.window_weeks -> SCHEDULER_WINDOW_WEEKS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "fitness_booking")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("scheduler.window_weeks", 4)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.cleanup_cron", "@daily")
	v.SetDefault("scheduler.pending_ttl", "30m")
	v.SetDefault("payment.checkout_base_url", "http://localhost:8080/checkout")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.currency", "USD")
	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

// Validate rejects configurations the scheduler cannot run with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.Scheduler.WindowWeeks <= 0 {
		return fmt.Errorf("scheduler.window_weeks must be positive, got %d", c.Scheduler.WindowWeeks)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Scheduler.PendingTTL <= 0 {
		return errors.New("scheduler.pending_ttl must be positive")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin.password must be set when admin.email is")
	}
	return nil
}
