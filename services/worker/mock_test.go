package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/services/publisher"
)

// MockFetcher serves canned pages by URL
type MockFetcher struct {
	mu     sync.Mutex
	pages  map[string][]byte
	errs   map[string]error
	panics map[string]bool
	calls  []string
}

// Ensure MockFetcher implements PageFetcher
var _ PageFetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages:  make(map[string][]byte),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
}

func (m *MockFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if m.panics[url] {
		panic("unexpected markup")
	}
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if page, ok := m.pages[url]; ok {
		return page, nil
	}
	return nil, errors.New("fetch failed after retries")
}

func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockPublisher records published notifications
type MockPublisher struct {
	mu      sync.Mutex
	deals   []models.Deal
	hits    []models.WatchHit
	err     error
	trimmed int
}

// Ensure MockPublisher implements publisher.Publisher and publisher.Trimmer
var (
	_ publisher.Publisher = (*MockPublisher)(nil)
	_ publisher.Trimmer   = (*MockPublisher)(nil)
)

func (m *MockPublisher) PublishDeal(_ context.Context, deal models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deals = append(m.deals, deal)
	return nil
}

func (m *MockPublisher) PublishWatchHit(_ context.Context, hit models.WatchHit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.hits = append(m.hits, hit)
	return nil
}

func (m *MockPublisher) TrimStreams(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) Deals() []models.Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Deal(nil), m.deals...)
}

func (m *MockPublisher) Hits() []models.WatchHit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WatchHit(nil), m.hits...)
}

// sleepRecorder records requested waits without sleeping
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
