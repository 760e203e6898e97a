package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TaskConfig tunes the polling machinery shared by every provider client.
type TaskConfig struct {
	MaxRetries    uint `mapstructure:"max_retries"`
	BaseDelayMS   int  `mapstructure:"base_delay_ms"`
	MaxDelayMS    int  `mapstructure:"max_delay_ms"`
	CacheTTLSecs  int  `mapstructure:"cache_ttl_secs"`
	CacheCapacity int  `mapstructure:"cache_capacity"`
}

// BaseDelay returns the first backoff delay as a duration.
func (t TaskConfig) BaseDelay() time.Duration {
	return time.Duration(t.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff delay cap as a duration.
func (t TaskConfig) MaxDelay() time.Duration {
	return time.Duration(t.MaxDelayMS) * time.Millisecond
}

// CacheTTL returns the cache entry time-to-live as a duration.
func (t TaskConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSecs) * time.Second
}

// ServerConfig holds the command socket listen address.
type ServerConfig struct {
	Host string `mapstructure:"server_host"`
	Port int    `mapstructure:"server_port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the MongoDB connection settings. An empty URI
// disables persistence.
type DatabaseConfig struct {
	URI  string `mapstructure:"mongodb_uri"`
	Name string `mapstructure:"mongodb_database"`
}

// PollingConfig drives the scheduled aggregation cycle.
type PollingConfig struct {
	Tickers         string `mapstructure:"polling_tickers"`
	IntervalMinutes int    `mapstructure:"polling_interval_minutes"`
}

// Config holds all configuration for the news fetcher application.
type Config struct {
	// API keys for the news providers
	AlphavantageAPIKey string `mapstructure:"alphavantage_api_key"`
	MarketauxAPIKey    string `mapstructure:"marketaux_api_key"`
	FMPAPIKey          string `mapstructure:"fmp_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`
	MarketauxBaseURL    string `mapstructure:"marketaux_base_url"`
	FMPBaseURLV3        string `mapstructure:"fmp_base_url_v3"`
	FMPBaseURLV4        string `mapstructure:"fmp_base_url_v4"`

	LogLevel string `mapstructure:"log_level"`

	Task     TaskConfig     `mapstructure:",squash"`
	Server   ServerConfig   `mapstructure:",squash"`
	Database DatabaseConfig `mapstructure:",squash"`
	Polling  PollingConfig  `mapstructure:",squash"`
}

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over config file values.
//
// Expected environment variables:
//   - ALPHAVANTAGE_API_KEY
//   - MARKETAUX_API_KEY
//   - FMP_API_KEY
//   - ALPHAVANTAGE_BASE_URL (optional, defaults to production)
//   - MARKETAUX_BASE_URL (optional, defaults to production)
//   - FMP_BASE_URL_V3 / FMP_BASE_URL_V4 (optional, defaults to production)
//   - MONGODB_URI (optional, persistence is disabled when unset)
//   - MONGODB_DATABASE (optional)
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("")
	v.AutomaticEnv()

	// Defaults for base URLs
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("marketaux_base_url", "https://api.marketaux.com/v1")
	v.SetDefault("fmp_base_url_v3", "https://financialmodelingprep.com/api/v3")
	v.SetDefault("fmp_base_url_v4", "https://financialmodelingprep.com/api/v4")

	// Defaults for the polling machinery
	v.SetDefault("max_retries", 3)
	v.SetDefault("base_delay_ms", 100)
	v.SetDefault("max_delay_ms", 2000)
	v.SetDefault("cache_ttl_secs", 300)
	v.SetDefault("cache_capacity", 1000)

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("mongodb_database", "newsfetcher")
	v.SetDefault("polling_tickers", "AAPL,MSFT,GOOGL")
	v.SetDefault("polling_interval_minutes", 15)
	v.SetDefault("log_level", "info")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.newsfetcher")
	_ = v.ReadInConfig()

	// Bind environment variables for API keys
	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	v.BindEnv("marketaux_api_key", "MARKETAUX_API_KEY")
	v.BindEnv("fmp_api_key", "FMP_API_KEY")

	// Bind environment variables for base URLs and infrastructure
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("marketaux_base_url", "MARKETAUX_BASE_URL")
	v.BindEnv("fmp_base_url_v3", "FMP_BASE_URL_V3")
	v.BindEnv("fmp_base_url_v4", "FMP_BASE_URL_V4")
	v.BindEnv("mongodb_uri", "MONGODB_URI")
	v.BindEnv("mongodb_database", "MONGODB_DATABASE")
	v.BindEnv("server_host", "SERVER_HOST")
	v.BindEnv("server_port", "SERVER_PORT")
	v.BindEnv("log_level", "LOG_LEVEL")

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	var missing []string
	if config.AlphavantageAPIKey == "" {
		missing = append(missing, "ALPHAVANTAGE_API_KEY")
	}
	if config.MarketauxAPIKey == "" {
		missing = append(missing, "MARKETAUX_API_KEY")
	}
	if config.FMPAPIKey == "" {
		missing = append(missing, "FMP_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return config, nil
}
