package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"ttfl_tracker/ingestion/internal/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Stats provider API
	ProviderBaseURL string        `envconfig:"PROVIDER_BASE_URL" default:"https://stats.nba.com/stats"`
	ProviderAPIKey  string        `envconfig:"PROVIDER_API_KEY" default:""`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`

	// Scraped injury feed
	InjuryFeedURL     string        `envconfig:"INJURY_FEED_URL" default:"http://localhost:8090/injuries"`
	InjuryFeedTimeout time.Duration `envconfig:"INJURY_FEED_TIMEOUT" default:"30s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"ttfl"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"ttfl_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`
	AutoMigrate      bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"America/New_York"`

	// HTTP API
	HTTPPort   int    `envconfig:"HTTP_PORT" default:"8080"`
	AdminToken string `envconfig:"ADMIN_TOKEN" default:"change_me"`

	// Scheduler
	EnableScheduler        bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	NightlySyncCron        string        `envconfig:"NIGHTLY_SYNC_CRON" default:"0 10 * * *"`
	ActiveGamePollInterval time.Duration `envconfig:"ACTIVE_GAME_POLL_INTERVAL" default:"5m"`
	CacheLoadOnStartup     bool          `envconfig:"CACHE_LOAD_ON_STARTUP" default:"true"`

	// Provider call discipline
	RateLimitInterval time.Duration `envconfig:"RATE_LIMIT_INTERVAL" default:"600ms"`
	RetryAttempts     int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay    time.Duration `envconfig:"RETRY_BASE_DELAY" default:"5s"`

	// Sync
	SeasonStartDate     string `envconfig:"SEASON_START_DATE" default:""`
	FallbackRecentGames int    `envconfig:"FALLBACK_RECENT_GAMES" default:"15"`

	// Caching TTL
	CacheTTLAverages time.Duration `envconfig:"CACHE_TTL_AVERAGES" default:"10m"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.AdminToken == "change_me" && c.IsProduction() {
		return fmt.Errorf("ADMIN_TOKEN must be changed in production")
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}

	if c.FallbackRecentGames < 1 {
		return fmt.Errorf("FALLBACK_RECENT_GAMES must be at least 1")
	}

	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}

	if c.SeasonStartDate != "" {
		if _, err := time.Parse(models.DateLayout, c.SeasonStartDate); err != nil {
			return fmt.Errorf("SEASON_START_DATE must be YYYY-MM-DD: %w", err)
		}
	}

	return nil
}

// Location returns the timezone used to decide the current calendar date
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PinnedSeasonStart returns SEASON_START_DATE, or the zero time when it is
// unset so that long-running processes follow the season rollover.
func (c *Config) PinnedSeasonStart() time.Time {
	if c.SeasonStartDate == "" {
		return time.Time{}
	}
	d, err := time.Parse(models.DateLayout, c.SeasonStartDate)
	if err != nil {
		return time.Time{}
	}
	return d
}

// SeasonStart returns the first date whose games are backfilled. Without an
// explicit SEASON_START_DATE it is October 1 of the season in progress at now.
func (c *Config) SeasonStart(now time.Time) time.Time {
	if d := c.PinnedSeasonStart(); !d.IsZero() {
		return d
	}
	return models.SeasonFor(now.In(c.Location())).DefaultStart()
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
