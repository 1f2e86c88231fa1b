package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Platforms map[string]Platform `mapstructure:"platforms"`
	Tracking  Tracking            `mapstructure:"tracking"`
	Scheduler Scheduler           `mapstructure:"scheduler"`
	Notify    Notify              `mapstructure:"notify"`
	Logger    Logger              `mapstructure:"logger"`
	Database  Database            `mapstructure:"database"`
}

// Platform holds the per-exchange connection settings. A platform without
// both API keys is skipped entirely during refresh and reconciliation.
type Platform struct {
	ApiKey          string  `mapstructure:"apiKey"`
	SecretKey       string  `mapstructure:"secretKey"`
	BaseURL         string  `mapstructure:"base_url"`
	SymbolStyle     string  `mapstructure:"symbol_style"` // "compact", "dash" or "underscore"
	StopDistancePct float64 `mapstructure:"stop_distance_pct"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
}

// HasCredentials reports whether the platform can be queried at all.
func (p Platform) HasCredentials() bool {
	return p.ApiKey != "" && p.SecretKey != ""
}

// Tracking holds the portfolio valuation settings.
type Tracking struct {
	QuoteCurrency string             `mapstructure:"quote_currency"`
	TickInterval  int                `mapstructure:"tick_interval"` // seconds
	MaxExposure   map[string]float64 `mapstructure:"max_exposure"`  // per asset, quote-currency units
	Strategies    map[string]string  `mapstructure:"strategies"`    // per asset strategy name
	Strategy      string             `mapstructure:"strategy"`      // fallback strategy name
}

// MaxExposureFor returns the configured exposure cap for an asset, clamped
// to be non-negative.
func (t Tracking) MaxExposureFor(asset string) float64 {
	exposure := t.MaxExposure[asset]
	if exposure < 0 {
		return 0
	}
	return exposure
}

// StrategyFor returns the strategy name configured for an asset, falling
// back to the global default.
func (t Tracking) StrategyFor(asset string) string {
	if name, ok := t.Strategies[asset]; ok && name != "" {
		return name
	}
	return t.Strategy
}

// Scheduler holds the refresh cadence and retry policy.
type Scheduler struct {
	Intervals  map[string]int `mapstructure:"intervals"` // per category, seconds
	Critical   []string       `mapstructure:"critical"`  // categories that escalate on failure
	MaxRetries int            `mapstructure:"max_retries"`
	RetryDelay int            `mapstructure:"retry_delay"` // seconds, grows linearly per attempt
}

// IntervalFor returns the configured staleness interval for a category.
func (s Scheduler) IntervalFor(category string) time.Duration {
	seconds, ok := s.Intervals[category]
	if !ok || seconds <= 0 {
		return time.Minute
	}
	return time.Duration(seconds) * time.Second
}

// IsCritical reports whether exhausting retries for a category should
// trigger an escalation alert.
func (s Scheduler) IsCritical(category string) bool {
	for _, c := range s.Critical {
		if c == category {
			return true
		}
	}
	return false
}

// Notify holds the escalation webhook settings.
type Notify struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("tracking.quote_currency", "USDT")
	viper.SetDefault("tracking.tick_interval", 60)
	viper.SetDefault("tracking.strategy", "balanced")
	viper.SetDefault("scheduler.max_retries", 3)
	viper.SetDefault("scheduler.retry_delay", 2)
	viper.SetDefault("database.dsn", "tracker.db")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
