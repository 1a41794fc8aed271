// Package watchlist stores user watch requests: a product URL and the price at or below which
// the user wants to be notified.
package watchlist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sjsage522/dealwatch/internal/models"
	crawlerrors "sjsage522/dealwatch/pkg/errors"
	"sjsage522/dealwatch/pkg/validate"
)

// Store is the read side used by the watch scheduler
type Store interface {
	List(ctx context.Context) ([]models.WatchedItem, error)
}

// Editor is the write side used by the command layer
type Editor interface {
	Store
	Add(ctx context.Context, item models.WatchedItem) error
	Remove(ctx context.Context, url string) (bool, error)
}

// CheckRecorder is implemented by stores that keep the last observed price
type CheckRecorder interface {
	RecordCheck(ctx context.Context, url string, price float64, checkedAt time.Time) error
}

// Validate rejects malformed watch requests before they are stored
func Validate(item models.WatchedItem) error {
	if err := validate.Struct(item); err != nil {
		return crawlerrors.NewValidation("watchlist", err.Error())
	}
	if !strings.HasPrefix(item.URL, "http://") && !strings.HasPrefix(item.URL, "https://") {
		return crawlerrors.NewValidation("watchlist", fmt.Sprintf("url %q must be http or https", item.URL))
	}
	return nil
}

// MemoryStore is an in-process Editor
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.WatchedItem
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]models.WatchedItem), now: time.Now}
}

// Add inserts item or replaces the target price of an existing URL
func (s *MemoryStore) Add(_ context.Context, item models.WatchedItem) error {
	item.URL = strings.TrimSpace(item.URL)
	if err := Validate(item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[item.URL]; ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	s.items[item.URL] = item
	return nil
}

// Remove deletes url and reports whether it was watched
func (s *MemoryStore) Remove(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url = strings.TrimSpace(url)
	_, ok := s.items[url]
	delete(s.items, url)
	return ok, nil
}

// List returns a snapshot ordered by creation time
func (s *MemoryStore) List(_ context.Context) ([]models.WatchedItem, error) {
	s.mu.RLock()
	items := make([]models.WatchedItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].URL < items[j].URL
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
