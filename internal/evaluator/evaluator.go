// Package evaluator turns extracted listings into deals: it applies a profile's qualification
// rules, assigns a destination category and suppresses listings notified recently.
package evaluator

import (
	"math"
	"time"

	"sjsage522/dealwatch/internal/classifier"
	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/internal/price"
	"sjsage522/dealwatch/logger"
	"sjsage522/dealwatch/pkg/validate"
	"sjsage522/dealwatch/services/cache"
)

// Evaluator qualifies candidates. It holds no per-pass state and is safe for concurrent use as
// long as its SeenCache is.
type Evaluator struct {
	seen       cache.SeenCache
	classifier *classifier.Classifier
	now        func() time.Time
	log        *logger.Logger
}

// Option customizes an Evaluator
type Option func(*Evaluator)

// WithClock sets the time source used for Deal.FoundAt
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New creates an evaluator. A nil classifier uses the default rule table.
func New(seen cache.SeenCache, cls *classifier.Classifier, opts ...Option) *Evaluator {
	if cls == nil {
		cls = classifier.NewDefault()
	}
	e := &Evaluator{
		seen:       seen,
		classifier: cls,
		now:        time.Now,
		log:        logger.ForEvaluator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the deals among candidates. A candidate qualifies when any rule of the
// profile holds. Each qualifying URL is checked and marked in the seen cache once; URLs already
// marked, or repeated within candidates, produce no deal.
func (e *Evaluator) Evaluate(candidates []models.ListingCandidate, profile crawler.SiteProfile) []models.Deal {
	log := logger.ForSite(profile.Site).WithField("profile", profile.Name)
	handled := make(map[string]bool, len(candidates))
	var deals []models.Deal

	for _, c := range candidates {
		if handled[c.URL] {
			continue
		}

		deal, ok := e.qualify(c, profile)
		if !ok {
			continue
		}

		category, ok := e.categorize(c.Title, profile)
		if !ok {
			log.Info().Str("title", c.Title).Str("url", c.URL).Msg("unclassifiable title, dropped")
			continue
		}
		deal.Category = category

		if err := validate.Struct(deal); err != nil {
			log.Warn().Err(err).Str("url", c.URL).Msg("invalid deal, dropped")
			continue
		}

		handled[c.URL] = true
		fresh, err := e.seen.CheckAndMark(c.URL)
		if err != nil {
			log.Error().Err(err).Str("url", c.URL).Msg("seen cache unavailable, deal dropped")
			continue
		}
		if !fresh {
			log.Debug().Str("url", c.URL).Msg("already notified")
			continue
		}

		deals = append(deals, deal)
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("deals", len(deals)).
		Msg("evaluation finished")
	return deals
}

// qualify computes prices and discount and applies the profile rules
func (e *Evaluator) qualify(c models.ListingCandidate, profile crawler.SiteProfile) (models.Deal, bool) {
	current, ok := price.ParseAmount(c.CurrentPriceRaw)
	if !ok {
		return models.Deal{}, false
	}

	deal := models.Deal{
		Title:        c.Title,
		CurrentPrice: current,
		URL:          c.URL,
		ImageURL:     c.ImageURL,
		Site:         profile.Site,
		Flags:        c.Flags,
		FoundAt:      e.now(),
	}

	if reference, ok := price.ParseAmount(c.ReferencePriceRaw); ok {
		if d, ok := price.DiscountPercent(current, reference); ok {
			deal.ReferencePrice = reference
			deal.DiscountPercent = round2(d)
			deal.HasDiscount = true
		}
	}
	if !deal.HasDiscount {
		// Badge fallback: "-75 %" when the page shows no struck-through price
		if d, ok := price.ParsePercent(c.DiscountBadgeRaw); ok {
			deal.DiscountPercent = round2(d)
			deal.HasDiscount = true
		}
	}

	return deal, matchesAny(profile.Rules, deal)
}

// matchesAny combines rules with OR. A discount outside [0,100] never satisfies min_discount.
func matchesAny(rules []crawler.Rule, deal models.Deal) bool {
	for _, r := range rules {
		switch r.Kind {
		case crawler.RuleMinDiscount:
			if deal.HasDiscount && price.Plausible(deal.DiscountPercent) && deal.DiscountPercent >= r.Threshold {
				return true
			}
		case crawler.RuleMaxPrice:
			if deal.CurrentPrice > 0 && deal.CurrentPrice <= r.Threshold {
				return true
			}
		case crawler.RuleFlashSale:
			if deal.Flags.FlashSale {
				return true
			}
		case crawler.RuleMultiCoupon:
			if deal.Flags.MultipleCoupons {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) categorize(title string, profile crawler.SiteProfile) (string, bool) {
	if profile.Category != "" {
		return profile.Category, true
	}
	if category, ok := e.classifier.Classify(title); ok {
		return category, true
	}
	if profile.KeepUnclassified {
		return classifier.Uncategorized, true
	}
	return "", false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
