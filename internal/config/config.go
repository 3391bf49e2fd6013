// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxWebhookBytes int64         `yaml:"max_webhook_bytes"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type DatabaseConfig struct {
	URL         string `yaml:"url" env:"DATABASE_URL"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL             string        `yaml:"url" env:"REDIS_URL"`
	Password        string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB              int           `yaml:"db"`
	PlanTTL         time.Duration `yaml:"plan_ttl"`
	SubscriptionTTL time.Duration `yaml:"subscription_ttl"`
}

type RazorpayConfig struct {
	KeyID         string `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret     string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string `yaml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET"`
	// TotalCount is the number of billing cycles a Razorpay subscription is created for.
	TotalCount int `yaml:"total_count"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

type BillingConfig struct {
	TrialPlanSlug string         `yaml:"trial_plan_slug"`
	SuccessURL    string         `yaml:"success_url" env:"BILLING_SUCCESS_URL"`
	CancelURL     string         `yaml:"cancel_url" env:"BILLING_CANCEL_URL"`
	Razorpay      RazorpayConfig `yaml:"razorpay"`
	Stripe        StripeConfig   `yaml:"stripe"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" env:"JWT_SECRET"`
	CronSecret string `yaml:"cron_secret" env:"CRON_SECRET"`
	// RateLimit is the number of action API calls a user may make per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type PostmarkConfig struct {
	ServerToken  string `yaml:"server_token" env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `yaml:"account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
	From         string `yaml:"from" env:"POSTMARK_FROM"`
	Stream       string `yaml:"stream"`
}

type NotifyConfig struct {
	Postmark    PostmarkConfig `yaml:"postmark"`
	Workers     int            `yaml:"workers"`
	QueueSize   int            `yaml:"queue_size"`
	SendTimeout time.Duration  `yaml:"send_timeout"`
}

type SchedulerConfig struct {
	TrialSweepInterval time.Duration `yaml:"trial_sweep_interval"`
	TrialSweepBatch    int           `yaml:"trial_sweep_batch"`
	ReminderInterval   time.Duration `yaml:"reminder_interval"`
	ReminderAhead      time.Duration `yaml:"reminder_ahead"`
	StatsInterval      time.Duration `yaml:"stats_interval"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Billing   BillingConfig   `yaml:"billing"`
	Auth      AuthConfig      `yaml:"auth"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is fine), loads an optional
// .env, then applies environment overrides and defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// the .env file is optional
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)

	// Minimal validation. Webhook secrets are checked per request.
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = orDuration(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDuration(cfg.HTTP.WriteTimeout, 15*time.Second)
	cfg.HTTP.RequestTimeout = orDuration(cfg.HTTP.RequestTimeout, 10*time.Second)
	if cfg.HTTP.MaxWebhookBytes <= 0 {
		cfg.HTTP.MaxWebhookBytes = 1 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.PlanTTL = orDuration(cfg.Redis.PlanTTL, 5*time.Minute)
	cfg.Redis.SubscriptionTTL = orDuration(cfg.Redis.SubscriptionTTL, 30*time.Second)
	if cfg.Billing.TrialPlanSlug == "" {
		cfg.Billing.TrialPlanSlug = "pro"
	}
	if cfg.Billing.Razorpay.TotalCount <= 0 {
		cfg.Billing.Razorpay.TotalCount = 120
	}
	if cfg.Auth.RateLimit <= 0 {
		cfg.Auth.RateLimit = 60
	}
	cfg.Auth.RateWindow = orDuration(cfg.Auth.RateWindow, time.Minute)
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 256
	}
	cfg.Notify.SendTimeout = orDuration(cfg.Notify.SendTimeout, 10*time.Second)
	if cfg.Notify.Postmark.Stream == "" {
		cfg.Notify.Postmark.Stream = "outbound"
	}
	cfg.Scheduler.TrialSweepInterval = orDuration(cfg.Scheduler.TrialSweepInterval, time.Hour)
	if cfg.Scheduler.TrialSweepBatch <= 0 {
		cfg.Scheduler.TrialSweepBatch = 500
	}
	cfg.Scheduler.ReminderInterval = orDuration(cfg.Scheduler.ReminderInterval, 24*time.Hour)
	cfg.Scheduler.ReminderAhead = orDuration(cfg.Scheduler.ReminderAhead, 3*24*time.Hour)
	cfg.Scheduler.StatsInterval = orDuration(cfg.Scheduler.StatsInterval, time.Minute)
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
