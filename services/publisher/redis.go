package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/logger"
	crawlerrors "sjsage522/dealwatch/pkg/errors"
)

// RedisPublisher implements Publisher using Redis streams, one stream per destination
type RedisPublisher struct {
	client          *redis.Client
	router          Router
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, router Router, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		router:          router,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Ping checks that the server is reachable
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// PublishDeal publishes deal to the stream of its category.
// The JSON payload is base64 encoded before publishing.
func (p *RedisPublisher) PublishDeal(ctx context.Context, deal models.Deal) error {
	stream := p.router.StreamFor(deal.Category)
	if err := p.publish(ctx, stream, DealField, deal, map[string]interface{}{
		"category": deal.Category,
		"url":      deal.URL,
	}); err != nil {
		return err
	}
	p.log.Debug().Str("stream", stream).Str("url", deal.URL).Msg("deal published")
	return nil
}

// PublishWatchHit publishes hit to the watch stream
func (p *RedisPublisher) PublishWatchHit(ctx context.Context, hit models.WatchHit) error {
	return p.publish(ctx, p.router.WatchStream(), WatchHitField, hit, map[string]interface{}{
		"url": hit.URL,
	})
}

func (p *RedisPublisher) publish(ctx context.Context, stream, field string, payload interface{}, extra map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return crawlerrors.NewPublisher("redis", "failed to marshal payload", err)
	}

	values := map[string]interface{}{
		field: base64.StdEncoding.EncodeToString(data),
	}
	for k, v := range extra {
		values[k] = v
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Err(); err != nil {
		return crawlerrors.NewPublisher("redis", "xadd "+stream, err)
	}
	return nil
}

// TrimStreams trims all streams under the router prefix, plus the mapped destinations, to the
// configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	streams, err := p.client.Keys(ctx, p.router.Prefix()+":*").Result()
	if err != nil {
		return crawlerrors.NewPublisher("redis", "list streams", err)
	}
	for _, stream := range p.router.destinations {
		streams = append(streams, stream)
	}

	seen := make(map[string]bool, len(streams))
	for _, stream := range streams {
		if seen[stream] {
			continue
		}
		seen[stream] = true
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return crawlerrors.NewPublisher("redis", "xtrim "+stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
