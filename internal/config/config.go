// Package config provides YAML-based configuration loading for Bearcourt.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Bearcourt configuration, loaded from bearcourt.yaml.
type Config struct {
	Port     int            `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Lock     LockConfig     `yaml:"lock"`
}

// DatabaseConfig holds connection settings for the arbitration store.
// Driver is "mysql" for deployments or "sqlite" for local use; sqlite takes
// Path, mysql takes Host/Port/Database/User.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// AIConfig holds settings for the OpenAI-compatible backend. The API key is
// never stored in YAML; it comes from the OPENAI_API_KEY environment
// variable (see FromEnv).
type AIConfig struct {
	APIKey      string  `yaml:"-"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	DailyLimit  int     `yaml:"daily_limit"`
	MaxRetries  int     `yaml:"max_retries"`
}

// LockConfig controls the per-case generation lock.
type LockConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TTL returns the lock TTL as a duration.
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
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
	cfg.FromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv pulls secrets from the environment.
func (c *Config) FromEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.AI.APIKey = key
	}
	if pw := os.Getenv("BEARCOURT_DB_PASSWORD"); pw != "" {
		c.Database.Password = pw
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "bearcourt.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "bearcourt"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-3.5-turbo"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 2000
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.7
	}
	if c.AI.DailyLimit == 0 {
		c.AI.DailyLimit = 1000
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.Lock.TTLSeconds == 0 {
		c.Lock.TTLSeconds = 120
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite or mysql)", c.Database.Driver))
	}
	if c.AI.DailyLimit < 0 {
		errs = append(errs, "ai.daily_limit must not be negative")
	}
	if c.AI.MaxRetries < 1 {
		errs = append(errs, "ai.max_retries must be at least 1")
	}
	if c.Lock.TTLSeconds < 1 {
		errs = append(errs, "lock.ttl_seconds must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
