package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/logger"
	"sjsage522/dealwatch/services/publisher"
)

// DefaultCycleInterval is how often a full scan cycle recurs
const DefaultCycleInterval = time.Hour

// ScanOptions configures a ScanScheduler
type ScanOptions struct {
	CycleInterval time.Duration
	// MinDelay and MaxDelay bound the random wait between two targets
	MinDelay time.Duration
	MaxDelay time.Duration
}

// ScanOption customizes a ScanScheduler
type ScanOption func(*ScanScheduler)

// WithScanSleep replaces the wait between targets, mainly for tests
func WithScanSleep(sleep SleepFunc) ScanOption {
	return func(s *ScanScheduler) { s.sleep = sleep }
}

// WithPassID replaces the pass identifier generator
func WithPassID(newID func() string) ScanOption {
	return func(s *ScanScheduler) { s.newPassID = newID }
}

// CycleStats summarizes one scan cycle
type CycleStats struct {
	PassID    string
	Targets   int
	Failed    int
	Deals     int
	Published int
}

// ScanScheduler scans its targets one after the other, with a random wait between targets,
// and repeats the whole cycle at a fixed interval
type ScanScheduler struct {
	targets   crawler.Profiles
	fetcher   PageFetcher
	evaluator DealEvaluator
	publisher publisher.Publisher
	interval  time.Duration
	jitter    *jitter
	sleep     SleepFunc
	newPassID func() string
	log       *logger.Logger
}

// NewScanScheduler creates a scan scheduler over targets
func NewScanScheduler(
	targets crawler.Profiles,
	fetcher PageFetcher,
	evaluator DealEvaluator,
	pub publisher.Publisher,
	opts ScanOptions,
	fns ...ScanOption,
) *ScanScheduler {
	if opts.CycleInterval <= 0 {
		opts.CycleInterval = DefaultCycleInterval
	}
	s := &ScanScheduler{
		targets:   targets,
		fetcher:   fetcher,
		evaluator: evaluator,
		publisher: pub,
		interval:  opts.CycleInterval,
		jitter:    newJitter(opts.MinDelay, opts.MaxDelay),
		sleep:     sleepContext,
		newPassID: func() string { return uuid.NewString() },
		log:       logger.ForScanner(),
	}
	for _, fn := range fns {
		fn(s)
	}
	return s
}

// Start runs a cycle immediately and then every cycle interval until ctx is done
func (s *ScanScheduler) Start(ctx context.Context) error {
	s.log.Info().
		Int("targets", len(s.targets)).
		Dur("interval", s.interval).
		Msg("scan scheduler started")
	return runEvery(ctx, s.interval, func(ctx context.Context) { s.RunCycle(ctx) })
}

// RunCycle scans every target once. A failing target is logged and the cycle moves on.
func (s *ScanScheduler) RunCycle(ctx context.Context) CycleStats {
	stats := CycleStats{PassID: s.newPassID()}
	log := s.log.WithField("pass_id", stats.PassID)
	start := time.Now()

	for i, target := range s.targets {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			delay := s.jitter.next()
			log.Debug().Dur("delay", delay).Str("next", target.Name).Msg("waiting before next target")
			if err := s.sleep(ctx, delay); err != nil {
				break
			}
		}

		stats.Targets++
		found, published, err := s.RunTarget(ctx, target, stats.PassID)
		stats.Deals += found
		stats.Published += published
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Str("profile", target.Name).Msg("target failed")
		}
	}

	if t, ok := s.publisher.(publisher.Trimmer); ok {
		if err := t.TrimStreams(ctx); err != nil {
			log.Error().Err(err).Msg("stream trimming failed")
		}
	}

	log.Info().
		Int("targets", stats.Targets).
		Int("failed", stats.Failed).
		Int("deals", stats.Deals).
		Int("published", stats.Published).
		Dur("elapsed", time.Since(start)).
		Msg("scan cycle finished")
	return stats
}

// RunTarget fetches, extracts, evaluates and publishes every page of target. Pages that fail
// are skipped; the target fails only when no page could be read.
func (s *ScanScheduler) RunTarget(ctx context.Context, target crawler.SiteProfile, passID string) (found, published int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scanning %s: %v", target.Name, r)
		}
	}()

	log := logger.ForSite(target.Site).WithFields(logger.Fields{
		"profile": target.Name,
		"pass_id": passID,
	})
	pages := target.PageURLs()
	log.Info().Int("pages", len(pages)).Msg("scan started")

	failed := 0
	for _, page := range pages {
		if ctx.Err() != nil {
			return found, published, ctx.Err()
		}

		body, err := s.fetcher.Fetch(ctx, page)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("url", page).Msg("page skipped")
			continue
		}

		candidates, err := crawler.Extract(body, target)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("url", page).Msg("page skipped")
			continue
		}

		for _, deal := range s.evaluator.Evaluate(candidates, target) {
			found++
			deal.PassID = passID
			if err := s.publisher.PublishDeal(ctx, deal); err != nil {
				log.Error().Err(err).Str("url", deal.URL).Msg("failed to publish deal")
				continue
			}
			published++
		}
	}

	log.Info().Int("deals", found).Int("failed_pages", failed).Msg("deals found")
	if len(pages) > 0 && failed == len(pages) {
		return found, published, fmt.Errorf("all %d pages of %s failed", len(pages), target.Name)
	}
	return found, published, nil
}
