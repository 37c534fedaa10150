package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Email         EmailConfig         `yaml:"email"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Commission    CommissionConfig    `yaml:"commission"`
	Reminders     RemindersConfig     `yaml:"reminders"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Booking       BookingConfig       `yaml:"booking"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	GroupID            string   `yaml:"group_id"`
}

type EmailConfig struct {
	From     string `yaml:"from"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DispatchConfig configures outbound automation events. WebhookURL and BaseURL
// are alternatives: a fixed WebhookURL takes precedence, BaseURL uses the
// per-event path convention <base>/webhook/<event>. Leaving both empty
// disables dispatch without being an error.
type DispatchConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Environment string `yaml:"environment"`
	Retries     int    `yaml:"retries"`
	BackoffMs   int    `yaml:"backoff_ms"`
}

func (d DispatchConfig) Backoff() time.Duration {
	return time.Duration(d.BackoffMs) * time.Millisecond
}

type CommissionConfig struct {
	HealerCommissionPercent float64 `yaml:"healer_commission_percent"`
	SeekerFeePercent        float64 `yaml:"seeker_fee_percent"`
	ProcessingFeePercent    float64 `yaml:"processing_fee_percent"`
	ProcessingFeeFixed      int64   `yaml:"processing_fee_fixed"`
}

type RemindersConfig struct {
	Windows             string `yaml:"windows"`
	WindowWidthMinutes  int    `yaml:"window_width_minutes"`
	Enabled             *bool  `yaml:"enabled"`
	PollIntervalMinutes int    `yaml:"poll_interval_minutes"`
	DefaultTimezone     string `yaml:"default_timezone"`
}

// IsEnabled treats an absent flag as enabled.
func (r RemindersConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type NotificationsConfig struct {
	IntervalHours int `yaml:"interval_hours"`
}

type BookingConfig struct {
	PaymentLockTTLSeconds   int `yaml:"payment_lock_ttl_seconds"`
	ProfilesCacheTTLSeconds int `yaml:"profiles_cache_ttl_seconds"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Dispatch.Environment == "" {
		cfg.Dispatch.Environment = "development"
	}
	if cfg.Dispatch.Retries == 0 {
		cfg.Dispatch.Retries = 3
	}
	if cfg.Dispatch.BackoffMs == 0 {
		cfg.Dispatch.BackoffMs = 400
	}
	if cfg.Commission.HealerCommissionPercent == 0 {
		cfg.Commission.HealerCommissionPercent = 10
	}
	if cfg.Commission.SeekerFeePercent == 0 {
		cfg.Commission.SeekerFeePercent = 5
	}
	if cfg.Commission.ProcessingFeePercent == 0 {
		cfg.Commission.ProcessingFeePercent = 2.9
	}
	if cfg.Commission.ProcessingFeeFixed == 0 {
		cfg.Commission.ProcessingFeeFixed = 30
	}
	if cfg.Reminders.Windows == "" {
		cfg.Reminders.Windows = "24h,1h"
	}
	if cfg.Reminders.WindowWidthMinutes == 0 {
		cfg.Reminders.WindowWidthMinutes = 10
	}
	if cfg.Reminders.PollIntervalMinutes == 0 {
		cfg.Reminders.PollIntervalMinutes = 10
	}
	if cfg.Reminders.DefaultTimezone == "" {
		cfg.Reminders.DefaultTimezone = "UTC"
	}
	if cfg.Notifications.IntervalHours == 0 {
		cfg.Notifications.IntervalHours = 6
	}
	if cfg.Booking.PaymentLockTTLSeconds == 0 {
		cfg.Booking.PaymentLockTTLSeconds = 60
	}
	if cfg.Booking.ProfilesCacheTTLSeconds == 0 {
		cfg.Booking.ProfilesCacheTTLSeconds = 300
	}
}

func (cfg *Config) validate() error {
	if cfg.Dispatch.Retries < 0 {
		return fmt.Errorf("dispatch.retries must not be negative, got %d", cfg.Dispatch.Retries)
	}
	if cfg.Dispatch.BackoffMs < 0 {
		return fmt.Errorf("dispatch.backoff_ms must not be negative, got %d", cfg.Dispatch.BackoffMs)
	}
	if cfg.Commission.HealerCommissionPercent < 0 || cfg.Commission.SeekerFeePercent < 0 ||
		cfg.Commission.ProcessingFeePercent < 0 || cfg.Commission.ProcessingFeeFixed < 0 {
		return fmt.Errorf("commission percentages and fees must not be negative")
	}
	if cfg.Reminders.WindowWidthMinutes <= 0 {
		return fmt.Errorf("reminders.window_width_minutes must be positive, got %d", cfg.Reminders.WindowWidthMinutes)
	}
	if cfg.Reminders.PollIntervalMinutes <= 0 {
		return fmt.Errorf("reminders.poll_interval_minutes must be positive, got %d", cfg.Reminders.PollIntervalMinutes)
	}
	if cfg.Notifications.IntervalHours <= 0 {
		return fmt.Errorf("notifications.interval_hours must be positive, got %d", cfg.Notifications.IntervalHours)
	}
	return nil
}
