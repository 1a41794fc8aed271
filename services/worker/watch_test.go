package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/internal/watchlist"
	"sjsage522/dealwatch/services/cache"
)

var watchNow = time.Date(2024, 11, 29, 10, 0, 0, 0, time.UTC)

func watchProfiles() crawler.Profiles {
	return crawler.Profiles{{
		Name:       "shop",
		Site:       "shop.test",
		URL:        "https://shop.test/deals",
		BaseURL:    "https://shop.test",
		Domains:    []string{"shop.test"},
		Selectors:  testSelectors,
		WatchPrice: []string{"#price", ".fallback-price"},
		WatchTitle: "h1",
		Rules:      []crawler.Rule{{Kind: crawler.RuleFlashSale}},
	}}
}

func productPage(title, price string) []byte {
	return []byte(`<html><body><h1>` + title + `</h1><span id="price">` + price + `</span></body></html>`)
}

func newTestWatchScheduler(store watchlist.Store, f PageFetcher, pub *MockPublisher, opts ...WatchOption) *WatchScheduler {
	opts = append([]WatchOption{WithWatchClock(func() time.Time { return watchNow })}, opts...)
	return NewWatchScheduler(store, watchProfiles(), f, pub, time.Minute, opts...)
}

func addItems(t *testing.T, store watchlist.Editor, items ...models.WatchedItem) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, store.Add(context.Background(), item))
	}
}

func TestWatchScheduler_TargetPrice(t *testing.T) {
	store := watchlist.NewMemoryStore()
	addItems(t, store,
		models.WatchedItem{URL: "https://shop.test/p/below", TargetPrice: 20, CreatedAt: watchNow},
		models.WatchedItem{URL: "https://shop.test/p/above", TargetPrice: 20, CreatedAt: watchNow.Add(time.Second)},
		models.WatchedItem{URL: "https://shop.test/p/equal", TargetPrice: 20, CreatedAt: watchNow.Add(2 * time.Second)},
	)

	fetcher := NewMockFetcher()
	fetcher.pages["https://shop.test/p/below"] = productPage("Casque Bluetooth", "19,99 €")
	fetcher.pages["https://shop.test/p/above"] = productPage("Casque Bluetooth", "20,01 €")
	fetcher.pages["https://shop.test/p/equal"] = productPage("Casque Bluetooth", "20,00 €")

	pub := &MockPublisher{}
	w := newTestWatchScheduler(store, fetcher, pub)

	stats := w.Tick(context.Background())
	assert.Equal(t, TickStats{Checked: 3, Hits: 2}, stats)

	hits := pub.Hits()
	require.Len(t, hits, 2)
	assert.Equal(t, "https://shop.test/p/below", hits[0].URL)
	assert.Equal(t, 19.99, hits[0].CurrentPrice)
	assert.Equal(t, 20.0, hits[0].TargetPrice)
	assert.Equal(t, "Casque Bluetooth", hits[0].Title)
	assert.Equal(t, "shop.test", hits[0].Site)
	assert.Equal(t, watchNow, hits[0].CheckedAt)
	assert.Equal(t, "https://shop.test/p/equal", hits[1].URL)

	// without a hit cache every tick notifies again
	w.Tick(context.Background())
	assert.Len(t, pub.Hits(), 4)
}

func TestWatchScheduler_FailuresAreIsolated(t *testing.T) {
	store := watchlist.NewMemoryStore()
	addItems(t, store,
		models.WatchedItem{URL: "https://shop.test/p/down", TargetPrice: 50, CreatedAt: watchNow},
		models.WatchedItem{URL: "https://unknown.example/p/1", TargetPrice: 50, CreatedAt: watchNow.Add(time.Second)},
		models.WatchedItem{URL: "https://shop.test/p/noprice", TargetPrice: 50, CreatedAt: watchNow.Add(2 * time.Second)},
		models.WatchedItem{URL: "https://shop.test/p/panic", TargetPrice: 50, CreatedAt: watchNow.Add(3 * time.Second)},
		models.WatchedItem{URL: "https://shop.test/p/ok", TargetPrice: 50, CreatedAt: watchNow.Add(4 * time.Second)},
	)

	fetcher := NewMockFetcher()
	fetcher.errs["https://shop.test/p/down"] = errors.New("fetch failed after retries")
	fetcher.pages["https://shop.test/p/noprice"] = []byte("<html><body>Rupture de stock</body></html>")
	fetcher.panics["https://shop.test/p/panic"] = true
	fetcher.pages["https://shop.test/p/ok"] = []byte(`<html><body><span class="fallback-price">45 €</span></body></html>`)

	pub := &MockPublisher{}
	w := newTestWatchScheduler(store, fetcher, pub)

	stats := w.Tick(context.Background())
	assert.Equal(t, TickStats{Checked: 5, Hits: 1, Failed: 4}, stats)
	require.Len(t, pub.Hits(), 1)
	assert.Equal(t, "https://shop.test/p/ok", pub.Hits()[0].URL)
	assert.NotContains(t, fetcher.Calls(), "https://unknown.example/p/1", "no profile means no request")
}

func TestWatchScheduler_HitCacheSuppressesRepeats(t *testing.T) {
	store := watchlist.NewMemoryStore()
	addItems(t, store, models.WatchedItem{URL: "https://shop.test/p/below", TargetPrice: 20})

	fetcher := NewMockFetcher()
	fetcher.pages["https://shop.test/p/below"] = productPage("Poêle 28 cm", "15 €")

	now := watchNow
	seen := cache.NewMemorySeenCache(time.Hour, cache.WithClock(func() time.Time { return now }))
	pub := &MockPublisher{}
	w := newTestWatchScheduler(store, fetcher, pub, WithHitCache(seen))

	assert.Equal(t, 1, w.Tick(context.Background()).Hits)
	assert.Equal(t, 0, w.Tick(context.Background()).Hits)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, w.Tick(context.Background()).Hits)
	assert.Len(t, pub.Hits(), 2)
}

func TestWatchScheduler_FailedPublishIsRetried(t *testing.T) {
	store := watchlist.NewMemoryStore()
	addItems(t, store, models.WatchedItem{URL: "https://shop.test/p/below", TargetPrice: 20})

	fetcher := NewMockFetcher()
	fetcher.pages["https://shop.test/p/below"] = productPage("Poêle 28 cm", "15 €")

	seen := cache.NewMemorySeenCache(time.Hour)
	pub := &MockPublisher{err: errors.New("redis: connection refused")}
	w := newTestWatchScheduler(store, fetcher, pub, WithHitCache(seen))

	assert.Equal(t, TickStats{Checked: 1, Failed: 1}, w.Tick(context.Background()))

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	assert.Equal(t, 1, w.Tick(context.Background()).Hits)
	assert.Equal(t, 0, w.Tick(context.Background()).Hits)
	assert.Len(t, pub.Hits(), 1)
}

func TestWatchScheduler_RecordsChecks(t *testing.T) {
	ctx := context.Background()
	store, err := watchlist.NewSQLite(ctx, t.TempDir()+"/watchlist.db")
	require.NoError(t, err)
	defer store.Close()
	addItems(t, store, models.WatchedItem{URL: "https://shop.test/p/1", TargetPrice: 10})

	fetcher := NewMockFetcher()
	fetcher.pages["https://shop.test/p/1"] = productPage("Lessive", "12,50 €")

	w := newTestWatchScheduler(store, fetcher, &MockPublisher{})
	assert.Equal(t, TickStats{Checked: 1}, w.Tick(ctx))

	price, at, ok, err := store.LastCheck(ctx, "https://shop.test/p/1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12.5, price)
	assert.True(t, watchNow.Equal(at))
}

// failingStore cannot list its items
type failingStore struct{}

func (failingStore) List(context.Context) ([]models.WatchedItem, error) {
	return nil, errors.New("database is locked")
}

func TestWatchScheduler_StoreFailure(t *testing.T) {
	w := newTestWatchScheduler(failingStore{}, NewMockFetcher(), &MockPublisher{})
	assert.Equal(t, TickStats{}, w.Tick(context.Background()))
}
