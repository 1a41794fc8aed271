package fetcher

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealwatch/logger"
	crawlerrors "sjsage522/dealwatch/pkg/errors"
	"sjsage522/dealwatch/services/proxy"
)

// sleepRecorder replaces the backoff wait and records requested delays
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RatePerMinute = 0
	opts.Timeout = 2 * time.Second
	return opts
}

func newTestFetcher(opts Options, rec *sleepRecorder) *Fetcher {
	return New(opts, WithSleep(rec.Sleep), WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "fr-FR")
		assert.NotEmpty(t, r.Header.Get("Referer"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>Bonjour</body></html>"))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	f := newTestFetcher(testOptions(), rec)

	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Bonjour")
	assert.Empty(t, rec.Delays())
}

func TestFetch_AlwaysFailingExhaustsAttempts(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	opts := testOptions()
	opts.MinBackoff = 2 * time.Second
	opts.MaxBackoff = 10 * time.Second
	rec := &sleepRecorder{}
	f := newTestFetcher(opts, rec)

	body, err := f.FetchWithRetries(context.Background(), server.URL, 4)
	assert.Nil(t, body)
	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrorTypeNetwork, crawlerrors.TypeOf(err))
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))

	delays := rec.Delays()
	require.Len(t, delays, 3, "no wait after the last attempt")
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
}

func TestFetch_ExhaustionLeavesWarningToCaller(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	defer logger.InitWithWriter(io.Discard)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	assert.Contains(t, buf.String(), "fetch failed after retries")
	assert.NotContains(t, buf.String(), `"level":"warn"`)
}

func TestFetch_RecoversAfterTransientFailure(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})

	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetch_RotatesUserAgentPerAttempt(t *testing.T) {
	var mu sync.Mutex
	agents := make(map[string]bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents[r.Header.Get("User-Agent")] = true
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})
	_, err := f.FetchWithRetries(context.Background(), server.URL, 40)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, len(agents), 1, "identity should change between attempts")
	for ua := range agents {
		assert.Contains(t, DefaultUserAgents, ua)
	}
}

func TestFetch_InvalidURLMakesNoRequest(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	f := newTestFetcher(testOptions(), rec)

	for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/file", "/relative/path", "http://"} {
		body, err := f.Fetch(context.Background(), raw)
		assert.Nil(t, body, raw)
		assert.Equal(t, crawlerrors.ErrorTypeValidation, crawlerrors.TypeOf(err), raw)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
	assert.Empty(t, rec.Delays())
}

func TestFetch_RateLimitedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})
	_, err := f.FetchWithRetries(context.Background(), server.URL, 2)
	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrorTypeRateLimit, crawlerrors.TypeOf(err))
	assert.Contains(t, err.Error(), "retry after 30")
}

func TestFetch_CaptchaPageIsRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Write([]byte(`<html><head><title>Robot Check</title></head><form action="/errors/validateCaptcha"></form></html>`))
			return
		}
		w.Write([]byte("<html><div class=\"s-result-item\"></div></html>"))
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "s-result-item")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetch_ConvertsCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html><body>\xc9lectrom\xe9nager 12,34 EUR</body></html>"))
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Électroménager 12,34 EUR")
}

func TestFetch_KeepsUndeclaredUTF8(t *testing.T) {
	page := "<html><body>" + strings.Repeat(" ", 1100) + "<h2>Réfrigérateur 49,99 €</h2></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	f := newTestFetcher(testOptions(), &sleepRecorder{})
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Réfrigérateur 49,99 €")
}

func TestToUTF8_UndeclaredLatin1(t *testing.T) {
	body, err := toUTF8([]byte("<html><body>"+strings.Repeat(" ", 1100)+"R\xe9frig\xe9rateur</body></html>"), "text/html")
	require.NoError(t, err)
	assert.Contains(t, string(body), "Réfrigérateur")
}

func TestFetch_ContextCancelledStopsRetrying(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := New(testOptions(), WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := f.FetchWithRetries(ctx, server.URL, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetch_ThroughGateway(t *testing.T) {
	target := "https://www.amazon.fr/s?k=console&page=1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		assert.Equal(t, target, r.URL.Query().Get("url"))
		w.Write([]byte("<html>proxied</html>"))
	}))
	defer server.Close()

	opts := testOptions()
	opts.Gateway = proxy.NewScraperAPI("key", server.URL+"/")
	f := newTestFetcher(opts, &sleepRecorder{})

	body, err := f.Fetch(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "<html>proxied</html>", string(body))
}

func TestBackoffWithinWindow(t *testing.T) {
	opts := testOptions()
	opts.MinBackoff = 30 * time.Second
	opts.MaxBackoff = 120 * time.Second
	f := newTestFetcher(opts, &sleepRecorder{})

	distinct := make(map[time.Duration]bool)
	for i := 0; i < 200; i++ {
		d := f.backoff()
		assert.GreaterOrEqual(t, d, 30*time.Second)
		assert.LessOrEqual(t, d, 120*time.Second)
		distinct[d] = true
	}
	assert.Greater(t, len(distinct), 1)
}

func TestLimiterPerHost(t *testing.T) {
	opts := testOptions()
	opts.RatePerMinute = 6
	f := New(opts)

	a := f.limiterFor("www.amazon.fr")
	require.NotNil(t, a)
	assert.Same(t, a, f.limiterFor("www.amazon.fr"))
	assert.NotSame(t, a, f.limiterFor("www.fnac.com"))
	assert.InDelta(t, 0.1, float64(a.Limit()), 1e-9)

	opts.RatePerMinute = 0
	assert.Nil(t, New(opts).limiterFor("www.amazon.fr"))
}

func TestValidateURL(t *testing.T) {
	u, err := validateURL("  https://www.cdiscount.com/search/10/tv.html  ")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "www.cdiscount.com", u.Host)
	assert.Equal(t, "/search/10/tv.html", u.Path)
}

func TestDetectBlock(t *testing.T) {
	kind, blocked := DetectBlock([]byte(`<script src="https://ct.captcha-delivery.com/c.js"></script>`))
	assert.True(t, blocked)
	assert.Equal(t, "captcha", kind)

	kind, blocked = DetectBlock([]byte("<html><head><title>Just a moment...</title></head></html>"))
	assert.True(t, blocked)
	assert.Equal(t, "challenge", kind)

	_, blocked = DetectBlock([]byte(`<div class="s-main-slot"><div class="s-result-item">Console</div></div>`))
	assert.False(t, blocked)
}
