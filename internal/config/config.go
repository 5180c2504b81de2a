// Package config provides YAML-based configuration loading for the fleet bot.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultHighIncrementThreshold is the kilometer jump above which a reading
// is accepted with a warning instead of silently.
const DefaultHighIncrementThreshold = 1000

// Config is the top-level configuration, loaded from config.yaml.
type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	DB         DBConfig         `yaml:"db"`
	Validation ValidationConfig `yaml:"validation"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Slack      SlackConfig      `yaml:"slack"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Tenants    []TenantConfig   `yaml:"tenants"`
}

// DiscordConfig holds chat platform credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"` // default channel when a tenant has none
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// ValidationConfig tunes the kilometer validator.
type ValidationConfig struct {
	HighIncrementThreshold float64 `yaml:"high_increment_threshold"`
}

// RemindersConfig holds 5-field cron expressions for capture reminders.
// Empty expressions disable the corresponding reminder.
type RemindersConfig struct {
	ShiftStartCron string `yaml:"shift_start_cron"`
	ShiftEndCron   string `yaml:"shift_end_cron"`
}

// SlackConfig enables ops notifications when a webhook URL is set.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// DashboardConfig holds settings for the read-only HTTP dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// TenantConfig seeds a tenant and its fleet.
type TenantConfig struct {
	Name      string       `yaml:"name"`
	ChannelID string       `yaml:"channel_id"`
	Units     []UnitConfig `yaml:"units"`
}

// UnitConfig seeds a single vehicle.
type UnitConfig struct {
	UnitNumber   string `yaml:"unit_number"`
	OperatorName string `yaml:"operator_name"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" {
		c.DB.Database = "cargas_gas"
	}
	if c.Validation.HighIncrementThreshold <= 0 {
		c.Validation.HighIncrementThreshold = DefaultHighIncrementThreshold
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Discord.BotToken == "" {
		errs = append(errs, "discord.bot_token is required")
	}
	for i, t := range c.Tenants {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("tenants[%d].name is required", i))
		}
		for j, u := range t.Units {
			if u.UnitNumber == "" {
				errs = append(errs, fmt.Sprintf("tenants[%d].units[%d].unit_number is required", i, j))
			}
			if u.OperatorName == "" {
				errs = append(errs, fmt.Sprintf("tenants[%d].units[%d].operator_name is required", i, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
