package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	crawlerrors "sjsage522/dealwatch/pkg/errors"
)

// Publisher kinds
const (
	PublisherRedis = "redis"
	PublisherLog   = "log"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStreamPrefix    string
	RedisStreamMaxLength int
	// Destinations maps a category to its stream
	Destinations map[string]string
	Publisher    string

	// Seen cache configuration; an empty address keeps the cache in memory
	MemcacheAddr  string
	SeenRetention time.Duration

	// Scan configuration
	ScanCycleInterval time.Duration
	ScanMinDelay      time.Duration
	ScanMaxDelay      time.Duration
	ProfilesPath      string

	// Fetch configuration
	FetchMaxRetries    int
	FetchMinBackoff    time.Duration
	FetchMaxBackoff    time.Duration
	FetchTimeout       time.Duration
	FetchRatePerMinute int
	ScraperAPIKey      string
	ScraperAPICountry  string

	// Watch configuration
	WatchInterval time.Duration
	WatchDBPath   string

	// Environment
	Environment string

	parseErrs []error
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	c := &Config{}

	c.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	c.RedisDB = c.getEnvInt("REDIS_DB", 0)
	c.RedisStreamPrefix = getEnv("REDIS_STREAM_PREFIX", "deals")
	c.RedisStreamMaxLength = c.getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000)
	c.Publisher = strings.ToLower(getEnv("PUBLISHER", PublisherRedis))

	destinations, err := ParseDestinations(os.Getenv("DESTINATIONS"))
	if err != nil {
		c.parseErrs = append(c.parseErrs, err)
	}
	c.Destinations = destinations

	c.MemcacheAddr = getEnv("MEMCACHE_ADDR", "")
	c.SeenRetention = c.getEnvDuration("SEEN_RETENTION", time.Hour)

	c.ScanCycleInterval = c.getEnvDuration("SCAN_CYCLE_INTERVAL", time.Hour)
	c.ScanMinDelay = c.getEnvDuration("SCAN_MIN_DELAY", 30*time.Second)
	c.ScanMaxDelay = c.getEnvDuration("SCAN_MAX_DELAY", 120*time.Second)
	c.ProfilesPath = getEnv("PROFILES_PATH", "")

	c.FetchMaxRetries = c.getEnvInt("FETCH_MAX_RETRIES", 3)
	c.FetchMinBackoff = c.getEnvDuration("FETCH_MIN_BACKOFF", 2*time.Second)
	c.FetchMaxBackoff = c.getEnvDuration("FETCH_MAX_BACKOFF", 10*time.Second)
	c.FetchTimeout = c.getEnvDuration("FETCH_TIMEOUT", 20*time.Second)
	c.FetchRatePerMinute = c.getEnvInt("FETCH_RATE_PER_MINUTE", 20)
	c.ScraperAPIKey = getEnv("SCRAPER_API_KEY", "")
	c.ScraperAPICountry = getEnv("SCRAPER_API_COUNTRY", "")

	c.WatchInterval = c.getEnvDuration("WATCH_INTERVAL", 30*time.Minute)
	c.WatchDBPath = getEnv("WATCH_DB_PATH", "watchlist.db")

	c.Environment = getEnv("DEALWATCH_ENVIRONMENT", "development")
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	if c.Publisher != PublisherRedis && c.Publisher != PublisherLog {
		errs = append(errs, fmt.Errorf("PUBLISHER must be %q or %q, got %q", PublisherRedis, PublisherLog, c.Publisher))
	}
	if c.Publisher == PublisherRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.RedisStreamPrefix == "" {
		errs = append(errs, errors.New("REDIS_STREAM_PREFIX is required"))
	}
	if c.SeenRetention <= 0 {
		errs = append(errs, errors.New("SEEN_RETENTION must be positive"))
	}
	if c.ScanCycleInterval <= 0 {
		errs = append(errs, errors.New("SCAN_CYCLE_INTERVAL must be positive"))
	}
	if c.ScanMinDelay < 0 || c.ScanMaxDelay < c.ScanMinDelay {
		errs = append(errs, errors.New("SCAN_MIN_DELAY must be non-negative and not above SCAN_MAX_DELAY"))
	}
	if c.FetchMaxRetries < 1 {
		errs = append(errs, errors.New("FETCH_MAX_RETRIES must be at least 1"))
	}
	if c.FetchMinBackoff < 0 || c.FetchMaxBackoff < c.FetchMinBackoff {
		errs = append(errs, errors.New("FETCH_MIN_BACKOFF must be non-negative and not above FETCH_MAX_BACKOFF"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.WatchInterval <= 0 {
		errs = append(errs, errors.New("WATCH_INTERVAL must be positive"))
	}
	if c.WatchDBPath == "" {
		errs = append(errs, errors.New("WATCH_DB_PATH is required"))
	}

	if len(errs) > 0 {
		return crawlerrors.NewConfiguration("invalid configuration", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseDestinations parses "category=stream,category=stream"
func ParseDestinations(raw string) (map[string]string, error) {
	destinations := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		category, stream, ok := strings.Cut(pair, "=")
		category = strings.ToLower(strings.TrimSpace(category))
		stream = strings.TrimSpace(stream)
		if !ok || category == "" || stream == "" {
			return destinations, fmt.Errorf("DESTINATIONS: malformed entry %q", pair)
		}
		destinations[category] = stream
	}
	return destinations, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (c *Config) getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (c *Config) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
