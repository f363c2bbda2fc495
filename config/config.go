package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Worker   WorkerConfig   `yaml:"worker"`
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
	Brokers      []string `yaml:"brokers"`
	TicketsTopic string   `yaml:"tickets_topic"`
	GroupID      string   `yaml:"group_id"`
}

type PricingConfig struct {
	IncreaseWindowMinutes   int     `yaml:"increase_window_minutes"`
	ResetWindowMinutes      int     `yaml:"reset_window_minutes"`
	AttemptsThreshold       int     `yaml:"attempts_threshold"`
	IncreasePercentage      float64 `yaml:"increase_percentage"`
	AttemptRetentionMinutes int     `yaml:"attempt_retention_minutes"`
	FlightsCacheTTLSeconds  int     `yaml:"flights_cache_ttl_seconds"`
}

func (p PricingConfig) IncreaseWindow() time.Duration {
	return time.Duration(p.IncreaseWindowMinutes) * time.Minute
}

func (p PricingConfig) ResetWindow() time.Duration {
	return time.Duration(p.ResetWindowMinutes) * time.Minute
}

func (p PricingConfig) AttemptRetention() time.Duration {
	return time.Duration(p.AttemptRetentionMinutes) * time.Minute
}

type WalletConfig struct {
	DefaultBalanceCents int64 `yaml:"default_balance_cents"`
}

type WorkerConfig struct {
	ReapSweepMinutes int    `yaml:"reap_sweep_minutes"`
	TicketsDir       string `yaml:"tickets_dir"`
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

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pricing.IncreaseWindowMinutes == 0 {
		c.Pricing.IncreaseWindowMinutes = 5
	}
	if c.Pricing.ResetWindowMinutes == 0 {
		c.Pricing.ResetWindowMinutes = 10
	}
	if c.Pricing.AttemptsThreshold == 0 {
		c.Pricing.AttemptsThreshold = 3
	}
	if c.Pricing.IncreasePercentage == 0 {
		c.Pricing.IncreasePercentage = 0.10
	}
	if c.Pricing.AttemptRetentionMinutes == 0 {
		c.Pricing.AttemptRetentionMinutes = 15
	}
	if c.Wallet.DefaultBalanceCents == 0 {
		c.Wallet.DefaultBalanceCents = 5_000_000
	}
	if c.Worker.ReapSweepMinutes == 0 {
		c.Worker.ReapSweepMinutes = 5
	}
	if c.Worker.TicketsDir == "" {
		c.Worker.TicketsDir = "tickets"
	}
}
