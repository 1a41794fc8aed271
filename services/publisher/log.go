package publisher

import (
	"context"

	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/logger"
)

// LogPublisher writes notifications to the log. It is used for dry runs and one-shot scans.
type LogPublisher struct {
	router Router
	log    *logger.Logger
}

// NewLogPublisher creates a log publisher
func NewLogPublisher(router Router) *LogPublisher {
	return &LogPublisher{router: router, log: logger.ForPublisher()}
}

func (p *LogPublisher) PublishDeal(_ context.Context, deal models.Deal) error {
	ev := p.log.Info().
		Str("destination", p.router.StreamFor(deal.Category)).
		Str("title", deal.Title).
		Float64("price", deal.CurrentPrice).
		Str("url", deal.URL).
		Str("category", deal.Category)
	if deal.HasDiscount {
		ev = ev.Float64("discount", deal.DiscountPercent)
	}
	ev.Msg("deal")
	return nil
}

func (p *LogPublisher) PublishWatchHit(_ context.Context, hit models.WatchHit) error {
	p.log.Info().
		Str("destination", p.router.WatchStream()).
		Str("url", hit.URL).
		Float64("price", hit.CurrentPrice).
		Float64("target", hit.TargetPrice).
		Msg("watch hit")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
