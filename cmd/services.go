package cmd

import (
	"context"
	"fmt"
	"sort"

	"sjsage522/dealwatch/config"
	"sjsage522/dealwatch/internal/classifier"
	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/internal/fetcher"
	"sjsage522/dealwatch/internal/watchlist"
	"sjsage522/dealwatch/logger"
	"sjsage522/dealwatch/services/cache"
	"sjsage522/dealwatch/services/proxy"
	"sjsage522/dealwatch/services/publisher"
)

// services holds the shared dependencies of the scan and watch loops
type services struct {
	seen      cache.SeenCache
	sweeper   *cache.MemorySeenCache
	publisher publisher.Publisher
	fetcher   *fetcher.Fetcher
	profiles  crawler.Profiles
}

// Cleanup releases the publisher connection
func (s *services) Cleanup() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			logger.Default.Warn().Err(err).Msg("publisher close failed")
		}
	}
}

// initializeServices builds the cache, publisher, fetcher and profiles. publisherKind overrides
// the configured publisher when not empty.
func initializeServices(ctx context.Context, cfg *config.Config, publisherKind string) (*services, error) {
	s := &services{}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return nil, err
	}
	s.profiles = profiles

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheSeenCache(cfg.MemcacheAddr, cfg.SeenRetention)
		if err := mc.Ping(); err != nil {
			return nil, fmt.Errorf("connect memcache at %s: %w", cfg.MemcacheAddr, err)
		}
		s.seen = mc
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	} else {
		s.sweeper = cache.NewMemorySeenCache(cfg.SeenRetention)
		s.seen = s.sweeper
		logger.Info("Using in-memory seen cache (retention %s)", cfg.SeenRetention)
	}

	if publisherKind == "" {
		publisherKind = cfg.Publisher
	}
	router := publisher.NewRouter(cfg.RedisStreamPrefix, cfg.Destinations)
	if unknown := unknownDestinations(cfg.Destinations, classifier.NewDefault()); len(unknown) > 0 {
		logger.ForPublisher().Warn().Strs("categories", unknown).Msg("DESTINATIONS maps categories that are never produced")
	}
	switch publisherKind {
	case config.PublisherLog:
		s.publisher = publisher.NewLogPublisher(router)
	case config.PublisherRedis:
		rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, router, cfg.RedisStreamMaxLength)
		if err := rp.Ping(ctx); err != nil {
			rp.Close()
			return nil, fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr, err)
		}
		s.publisher = rp
		logger.Info("Connected to Redis at %s (DB: %d, prefix: %s)", cfg.RedisAddr, cfg.RedisDB, router.Prefix())
	default:
		return nil, fmt.Errorf("unknown publisher %q", publisherKind)
	}

	s.fetcher = fetcher.New(fetchOptions(cfg))
	return s, nil
}

func loadProfiles(cfg *config.Config) (crawler.Profiles, error) {
	if cfg.ProfilesPath == "" {
		return crawler.DefaultProfiles(), nil
	}
	profiles, err := crawler.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("load profiles from %s: %w", cfg.ProfilesPath, err)
	}
	return profiles, nil
}

func fetchOptions(cfg *config.Config) fetcher.Options {
	opts := fetcher.DefaultOptions()
	opts.MaxRetries = cfg.FetchMaxRetries
	opts.MinBackoff = cfg.FetchMinBackoff
	opts.MaxBackoff = cfg.FetchMaxBackoff
	opts.Timeout = cfg.FetchTimeout
	opts.RatePerMinute = cfg.FetchRatePerMinute
	opts.Gateway = proxy.FromKey(cfg.ScraperAPIKey, cfg.ScraperAPICountry)
	return opts
}

// unknownDestinations lists mapped categories that neither the classifier nor the watch
// scheduler emits, which usually means a typo in DESTINATIONS
func unknownDestinations(destinations map[string]string, cls *classifier.Classifier) []string {
	known := map[string]bool{classifier.Uncategorized: true, publisher.WatchDestination: true}
	for _, c := range cls.Categories() {
		known[c] = true
	}
	var unknown []string
	for category := range destinations {
		if !known[category] {
			unknown = append(unknown, category)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func openWatchlist(ctx context.Context, cfg *config.Config) (*watchlist.SQLiteStore, error) {
	store, err := watchlist.NewSQLite(ctx, cfg.WatchDBPath)
	if err != nil {
		return nil, fmt.Errorf("open watchlist %s: %w", cfg.WatchDBPath, err)
	}
	return store, nil
}
