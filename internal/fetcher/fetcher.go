// Package fetcher retrieves listing pages with randomized client identity, jittered retry and a
// per-host rate limit.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"sjsage522/dealwatch/logger"
	crawlerrors "sjsage522/dealwatch/pkg/errors"
	"sjsage522/dealwatch/services/proxy"
)

const (
	DefaultMaxRetries    = 3
	DefaultMinBackoff    = 2 * time.Second
	DefaultMaxBackoff    = 10 * time.Second
	DefaultTimeout       = 20 * time.Second
	DefaultRatePerMinute = 20

	maxBodySize = 8 << 20
)

// Client identity pools
var (
	DefaultUserAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	}

	DefaultReferers = []string{
		"https://www.google.fr/",
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}
)

// Options configures a Fetcher
type Options struct {
	// MaxRetries is the total number of attempts made by Fetch
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Timeout    time.Duration
	// RatePerMinute caps requests per target host; zero or less disables the limit
	RatePerMinute int
	UserAgents    []string
	Referers      []string
	Gateway       proxy.Gateway
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		MaxRetries:    DefaultMaxRetries,
		MinBackoff:    DefaultMinBackoff,
		MaxBackoff:    DefaultMaxBackoff,
		Timeout:       DefaultTimeout,
		RatePerMinute: DefaultRatePerMinute,
		UserAgents:    DefaultUserAgents,
		Referers:      DefaultReferers,
		Gateway:       proxy.Direct{},
	}
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithRand replaces the random source used for identity and jitter
func WithRand(r *rand.Rand) Option {
	return func(f *Fetcher) { f.rnd = r }
}

// Fetcher is the page fetcher. It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	opts    Options
	gateway proxy.Gateway
	sleep   func(ctx context.Context, d time.Duration) error
	log     *logger.Logger

	mu       sync.Mutex
	rnd      *rand.Rand
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher. Unset options fall back to their defaults.
func New(opts Options, fns ...Option) *Fetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinBackoff < 0 {
		opts.MinBackoff = 0
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}
	if len(opts.Referers) == 0 {
		opts.Referers = DefaultReferers
	}
	if opts.Gateway == nil {
		opts.Gateway = proxy.Direct{}
	}

	now := uint64(time.Now().UnixNano())
	f := &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		gateway:  opts.Gateway,
		sleep:    sleepContext,
		log:      logger.ForFetcher(),
		rnd:      rand.New(rand.NewPCG(now, now>>17)),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, fn := range fns {
		fn(f)
	}
	return f
}

// Fetch retrieves url with the configured number of attempts
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.FetchWithRetries(ctx, rawURL, f.opts.MaxRetries)
}

// FetchWithRetries makes up to maxRetries attempts, waiting a random delay within
// [MinBackoff, MaxBackoff] between them. A malformed url is rejected without any request.
// On exhaustion the body is nil and the last attempt error is returned.
func (f *Fetcher) FetchWithRetries(ctx context.Context, rawURL string, maxRetries int) ([]byte, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	attempts := 0
	for attempts < maxRetries {
		attempts++
		body, err := f.attempt(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if !crawlerrors.IsRetryable(err) || attempts == maxRetries {
			break
		}

		delay := f.backoff()
		f.log.Debug().
			Str("url", rawURL).
			Int("attempt", attempts).
			Dur("delay", delay).
			Err(err).
			Msg("fetch attempt failed, retrying")
		if err := f.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	f.log.Debug().
		Str("url", rawURL).
		Int("attempts", attempts).
		Err(lastErr).
		Msg("fetch failed after retries")
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", rawURL, attempts, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, target *url.URL) ([]byte, error) {
	host := target.Hostname()
	if lim := f.limiterFor(host); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.gateway.Rewrite(target.String()), nil)
	if err != nil {
		return nil, crawlerrors.NewValidation(host, fmt.Sprintf("failed to create request: %v", err))
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, crawlerrors.NewNetwork(host, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430 {
		return nil, crawlerrors.NewRateLimit(host, resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, crawlerrors.NewNetwork(host, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, crawlerrors.NewNetwork(host, "failed to read response body", err)
	}

	body, err = toUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, crawlerrors.NewParsing(host, "failed to convert body to UTF-8", err)
	}

	if kind, blocked := DetectBlock(body); blocked {
		return nil, crawlerrors.NewBlocked(host, kind)
	}
	return body, nil
}

// setHeaders presents a browser identity drawn at random on every attempt
func (f *Fetcher) setHeaders(req *http.Request) {
	f.mu.Lock()
	ua := f.opts.UserAgents[f.rnd.IntN(len(f.opts.UserAgents))]
	referer := f.opts.Referers[f.rnd.IntN(len(f.opts.Referers))]
	f.mu.Unlock()

	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", referer)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
}

// backoff draws a delay uniformly from [MinBackoff, MaxBackoff]
func (f *Fetcher) backoff() time.Duration {
	span := f.opts.MaxBackoff - f.opts.MinBackoff
	if span <= 0 {
		return f.opts.MinBackoff
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts.MinBackoff + time.Duration(f.rnd.Int64N(int64(span)+1))
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	if f.opts.RatePerMinute <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(f.opts.RatePerMinute)), 1)
		f.limiters[host] = lim
	}
	return lim
}

func validateURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, crawlerrors.NewValidation("fetcher", "empty url")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, crawlerrors.NewValidation("fetcher", fmt.Sprintf("malformed url %q: %v", rawURL, err))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, crawlerrors.NewValidation("fetcher", fmt.Sprintf("malformed url %q", rawURL))
	}
	return u, nil
}

// toUTF8 converts body using the charset from the Content-Type header or the document itself.
// A guessed charset never overrides a body that is already valid UTF-8.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, certain := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") || (!certain && utf8.Valid(body)) {
		return body, nil
	}
	return encoding.NewDecoder().Bytes(body)
}

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
