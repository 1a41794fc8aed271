package publisher

import (
	"context"
	"strings"

	"sjsage522/dealwatch/internal/models"
)

// Message field names carrying the base64 encoded JSON payload
const (
	DealField     = "b64_deal"
	WatchHitField = "b64_watch_hit"
)

// WatchDestination is the destination key of watch hits
const WatchDestination = "watch"

// Publisher is the notification sink
type Publisher interface {
	// PublishDeal sends a deal to the destination of its category
	PublishDeal(ctx context.Context, deal models.Deal) error

	// PublishWatchHit sends a watch notification
	PublishWatchHit(ctx context.Context, hit models.WatchHit) error

	// Close closes the publisher connection
	Close() error
}

// Trimmer is implemented by publishers whose destinations grow without bound
type Trimmer interface {
	TrimStreams(ctx context.Context) error
}

// Router maps categories to destination streams. Unmapped categories fall back to
// <prefix>:<category>.
type Router struct {
	prefix       string
	destinations map[string]string
}

// NewRouter creates a router over a category to stream mapping
func NewRouter(prefix string, destinations map[string]string) Router {
	if prefix == "" {
		prefix = "deals"
	}
	dest := make(map[string]string, len(destinations))
	for category, stream := range destinations {
		dest[strings.ToLower(strings.TrimSpace(category))] = strings.TrimSpace(stream)
	}
	return Router{prefix: prefix, destinations: dest}
}

// StreamFor returns the destination stream of category
func (r Router) StreamFor(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if stream, ok := r.destinations[category]; ok && stream != "" {
		return stream
	}
	return r.prefix + ":" + category
}

// WatchStream returns the destination of watch hits
func (r Router) WatchStream() string {
	if stream, ok := r.destinations[WatchDestination]; ok && stream != "" {
		return stream
	}
	return r.prefix + ":" + WatchDestination
}

// Prefix returns the fallback stream prefix
func (r Router) Prefix() string {
	return r.prefix
}
