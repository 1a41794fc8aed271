package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/internal/price"
	"sjsage522/dealwatch/internal/watchlist"
	"sjsage522/dealwatch/logger"
	"sjsage522/dealwatch/services/cache"
	"sjsage522/dealwatch/services/publisher"
)

// DefaultWatchInterval is how often watched items are checked
const DefaultWatchInterval = 30 * time.Minute

// WatchOption customizes a WatchScheduler
type WatchOption func(*WatchScheduler)

// WithHitCache suppresses repeated hits for a URL while it is in seen
func WithHitCache(seen cache.SeenCache) WatchOption {
	return func(w *WatchScheduler) { w.seen = seen }
}

// WithWatchClock sets the time source of WatchHit.CheckedAt
func WithWatchClock(now func() time.Time) WatchOption {
	return func(w *WatchScheduler) { w.now = now }
}

// TickStats summarizes one watch tick
type TickStats struct {
	Checked int
	Hits    int
	Failed  int
}

// WatchScheduler checks every watched item on a fixed interval
type WatchScheduler struct {
	store     watchlist.Store
	profiles  crawler.Profiles
	fetcher   PageFetcher
	publisher publisher.Publisher
	interval  time.Duration
	seen      cache.SeenCache
	now       func() time.Time
	log       *logger.Logger
}

// NewWatchScheduler creates a watch scheduler. profiles provide the price selectors per domain.
func NewWatchScheduler(
	store watchlist.Store,
	profiles crawler.Profiles,
	fetcher PageFetcher,
	pub publisher.Publisher,
	interval time.Duration,
	opts ...WatchOption,
) *WatchScheduler {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w := &WatchScheduler{
		store:     store,
		profiles:  profiles,
		fetcher:   fetcher,
		publisher: pub,
		interval:  interval,
		now:       time.Now,
		log:       logger.ForWatcher(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start ticks immediately and then every interval until ctx is done
func (w *WatchScheduler) Start(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("watch scheduler started")
	return runEvery(ctx, w.interval, func(ctx context.Context) { w.Tick(ctx) })
}

// Tick checks every watched item once. Failures are isolated per item.
func (w *WatchScheduler) Tick(ctx context.Context) TickStats {
	var stats TickStats

	items, err := w.store.List(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to list watched items")
		return stats
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++
		hit, err := w.check(ctx, item)
		if err != nil {
			stats.Failed++
			w.log.Warn().Err(err).Str("url", item.URL).Msg("watch check failed")
			continue
		}
		if hit {
			stats.Hits++
		}
	}

	w.log.Info().
		Int("checked", stats.Checked).
		Int("hits", stats.Hits).
		Int("failed", stats.Failed).
		Msg("watch tick finished")
	return stats
}

func (w *WatchScheduler) check(ctx context.Context, item models.WatchedItem) (hit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while checking %s: %v", item.URL, r)
		}
	}()

	profile, ok := w.profiles.ProfileFor(item.URL)
	if !ok {
		return false, fmt.Errorf("no profile for %s", item.URL)
	}

	body, err := w.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return false, err
	}

	raw, ok := crawler.ExtractPrice(body, profile)
	if !ok {
		return false, errors.New("no price found on page")
	}
	current, ok := price.ParseAmount(raw)
	if !ok {
		return false, fmt.Errorf("unparsable price %q", raw)
	}

	checkedAt := w.now()
	if rec, ok := w.store.(watchlist.CheckRecorder); ok {
		if err := rec.RecordCheck(ctx, item.URL, current, checkedAt); err != nil {
			w.log.Warn().Err(err).Str("url", item.URL).Msg("failed to record check")
		}
	}

	if current > item.TargetPrice {
		w.log.Debug().
			Str("url", item.URL).
			Float64("price", current).
			Float64("target", item.TargetPrice).
			Msg("above target")
		return false, nil
	}

	hitKey := "watch:" + item.URL
	if w.seen != nil {
		notified, err := w.seen.Has(hitKey)
		if err != nil {
			return false, err
		}
		if notified {
			return false, nil
		}
	}

	hitEvent := models.WatchHit{
		URL:          item.URL,
		Title:        crawler.ExtractTitle(body, profile),
		CurrentPrice: current,
		TargetPrice:  item.TargetPrice,
		Site:         profile.Site,
		CheckedAt:    checkedAt,
	}
	if err := w.publisher.PublishWatchHit(ctx, hitEvent); err != nil {
		return false, err
	}
	// a failed publish leaves the hit unmarked so the next tick retries it
	if w.seen != nil {
		if err := w.seen.MarkSeen(hitKey); err != nil {
			w.log.Warn().Err(err).Str("url", item.URL).Msg("failed to mark watch hit")
		}
	}
	w.log.Info().
		Str("url", item.URL).
		Float64("price", current).
		Float64("target", item.TargetPrice).
		Msg("watch hit")
	return true, nil
}
