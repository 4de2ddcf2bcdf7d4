// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the operational HTTP endpoint.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs candidate enumeration and dispatch behavior.
type CrawlerConfig struct {
	// BaseURL is a printf template with a single %d verb for the node id,
	// e.g. "https://www.mathgenealogy.org/id.php?id=%d".
	BaseURL string `mapstructure:"base_url"`
	StartID int    `mapstructure:"start_id"`
	EndID   int    `mapstructure:"end_id"`
	// IDs, when set, replaces the [StartID, EndID] range.
	IDs     []int `mapstructure:"ids"`
	DelayMs int   `mapstructure:"delay_ms"`
	// ExpandDepth is 0 or 1: neighbor refinement stops at a visited
	// node's directly-listed advisees, since refined neighbor pages
	// are not themselves ingested.
	ExpandDepth int    `mapstructure:"expand_depth"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
	MaxAttempts     int `mapstructure:"max_attempts"`
	BackoffBaseSecs int `mapstructure:"backoff_base_seconds"`
	BackoffMaxSecs  int `mapstructure:"backoff_max_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GENEALOGY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.base_url", "https://www.mathgenealogy.org/id.php?id=%d")
	v.SetDefault("crawler.start_id", 1)
	v.SetDefault("crawler.end_id", 1)
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.expand_depth", 1)
	v.SetDefault("crawler.user_agent", "genealogy-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_base_seconds", 2)
	v.SetDefault("http.backoff_max_seconds", 30)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if !strings.Contains(c.Crawler.BaseURL, "%d") {
		return fmt.Errorf("crawler.base_url must contain a %%d id placeholder")
	}
	if len(c.Crawler.IDs) == 0 && c.Crawler.EndID < c.Crawler.StartID {
		return fmt.Errorf("crawler.end_id must be >= crawler.start_id")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.ExpandDepth < 0 || c.Crawler.ExpandDepth > 1 {
		return fmt.Errorf("crawler.expand_depth must be 0 or 1")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	return nil
}

// Delay returns the politeness delay between visit dispatches.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// HTTPTimeout returns the per-request fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
