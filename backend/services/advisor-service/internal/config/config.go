package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "smartcharge/backend/libs/config"
	"smartcharge/backend/services/advisor-service/internal/models"
)

const defaultPort = "8085"

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"ADVISOR_HTTP_PORT"`
}

// GeminiConfig selects the model endpoint. A nil Temperature leaves the model default.
type GeminiConfig struct {
	APIKey      string        `yaml:"apiKey" env:"GEMINI_API_KEY"`
	Model       string        `yaml:"model" env:"ADVISOR_GEMINI_MODEL"`
	BaseURL     string        `yaml:"baseURL" env:"ADVISOR_GEMINI_BASE_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"ADVISOR_GEMINI_TIMEOUT"`
	Temperature *float32      `yaml:"temperature" env:"ADVISOR_GEMINI_TEMPERATURE"`
}

// DatabaseConfig points at the charging record store. Empty DSN disables it.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"ADVISOR_POSTGRES_DSN"`
	MaxOpenConns int    `yaml:"maxOpenConns" env:"ADVISOR_POSTGRES_MAX_OPEN"`
	MaxIdleConns int    `yaml:"maxIdleConns" env:"ADVISOR_POSTGRES_MAX_IDLE"`
}

// RedisConfig points at the grid snapshot store. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADVISOR_REDIS_ADDR"`
	Password string `yaml:"password" env:"ADVISOR_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"ADVISOR_REDIS_DB"`
	TTL      int    `yaml:"ttlSeconds" env:"ADVISOR_REDIS_TTL"`
}

// AdvisorConfig tunes recommendation input assembly.
type AdvisorConfig struct {
	RecentSessions   int      `yaml:"recentSessions" env:"ADVISOR_RECENT_SESSIONS"`
	DefaultPrice     string   `yaml:"defaultPrice" env:"ADVISOR_DEFAULT_PRICE"`
	DefaultAvailable string   `yaml:"defaultAvailability" env:"ADVISOR_DEFAULT_AVAILABILITY"`
	Constraints      []string `yaml:"constraints" env:"ADVISOR_DEFAULT_CONSTRAINTS"`
}

// Config defines advisor service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	JWT      struct {
		Secret string `yaml:"secret" env:"JWT_SECRET"`
	} `yaml:"jwt"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{Port: defaultPort},
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			Timeout: 60 * time.Second,
		},
		Database: DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5},
		Redis:    RedisConfig{TTL: 3600},
		Advisor: AdvisorConfig{
			RecentSessions:   10,
			DefaultPrice:     models.PriceTierMidPeak,
			DefaultAvailable: "normal",
		},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return errors.New("config: gemini api key required")
	}
	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("config: gemini temperature %v out of range [0,2]", *t)
	}
	if c.Advisor.RecentSessions <= 0 {
		return errors.New("config: advisor recent sessions must be positive")
	}
	if c.AuthEnabled() && len(c.JWT.Secret) < 16 {
		return errors.New("config: jwt secret must be at least 16 bytes")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// DatabaseEnabled reports whether the record store is configured.
func (c *Config) DatabaseEnabled() bool {
	return strings.TrimSpace(c.Database.DSN) != ""
}

// RedisEnabled reports whether the grid snapshot store is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// AuthEnabled reports whether identity-bound routes are served.
func (c *Config) AuthEnabled() bool {
	return c.JWT.Secret != ""
}

// GridSnapshotTTL returns ttl as duration; zero keeps the snapshot until replaced.
func (c *Config) GridSnapshotTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 0
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// DefaultGrid is served when no snapshot has been stored.
func (c *Config) DefaultGrid() models.GridConditions {
	return models.GridConditions{
		PriceTier:    c.Advisor.DefaultPrice,
		Availability: c.Advisor.DefaultAvailable,
		Constraints:  c.Advisor.Constraints,
	}
}
