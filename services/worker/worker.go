// Package worker runs the periodic scan and watch loops.
package worker

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/internal/models"
)

// PageFetcher retrieves raw page content for a URL
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DealEvaluator turns the candidates of one page into deals
type DealEvaluator interface {
	Evaluate(candidates []models.ListingCandidate, profile crawler.SiteProfile) []models.Deal
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter draws durations uniformly from [min, max]
type jitter struct {
	mu  sync.Mutex
	rnd *rand.Rand
	min time.Duration
	max time.Duration
}

func newJitter(min, max time.Duration) *jitter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	seed := uint64(time.Now().UnixNano())
	return &jitter{rnd: rand.New(rand.NewPCG(seed, seed>>21)), min: min, max: max}
}

func (j *jitter) next() time.Duration {
	span := j.max - j.min
	if span <= 0 {
		return j.min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.min + time.Duration(j.rnd.Int64N(int64(span)+1))
}

// runEvery calls fn immediately and then on every tick until ctx is done
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}
