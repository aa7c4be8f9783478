package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from a YAML file with
// environment overrides for secrets.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	DocuSign struct {
		BaseURL           string  `yaml:"base_url"`
		OAuthBaseURL      string  `yaml:"oauth_base_url"`
		AccountID         string  `yaml:"account_id"`
		IntegrationKey    string  `yaml:"integration_key"`
		UserID            string  `yaml:"user_id"`
		PrivateKeyPath    string  `yaml:"private_key_path"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"docusign"`

	Webhook struct {
		Addr   string `yaml:"addr"`
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`

	Poller struct {
		// Schedule is a cron expression; defaults to every five minutes.
		Schedule string `yaml:"schedule"`
	} `yaml:"poller"`

	Storage struct {
		Root    string `yaml:"root"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"storage"`

	Rules struct {
		DefaultFeePercentage float64 `yaml:"default_fee_percentage"`
		DefaultGuaranteeDays int     `yaml:"default_guarantee_days"`
	} `yaml:"rules"`
}

// Load reads the YAML config and applies defaults and env overrides.
// DATABASE_URL and WEBHOOK_SECRET always win over file values so secrets stay
// out of the config file.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}

	if cfg.Webhook.Addr == "" {
		cfg.Webhook.Addr = ":8080"
	}
	if cfg.Poller.Schedule == "" {
		cfg.Poller.Schedule = "@every 5m"
	}
	if cfg.Rules.DefaultFeePercentage == 0 {
		cfg.Rules.DefaultFeePercentage = 30.0
	}
	if cfg.Rules.DefaultGuaranteeDays == 0 {
		cfg.Rules.DefaultGuaranteeDays = 30
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("config: database url required")
	}
	return cfg, nil
}
