package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	crawlerrors "sjsage522/dealwatch/pkg/errors"
)

// MemcacheSeenCache implements SeenCache using memcache, so several workers share one
// retention window. Expiry is delegated to the item TTL.
type MemcacheSeenCache struct {
	client    *memcache.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewMemcacheSeenCache creates a new memcache-backed seen cache
func NewMemcacheSeenCache(serverAddr string, retention time.Duration) *MemcacheSeenCache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemcacheSeenCache{
		client:    memcache.New(serverAddr),
		prefix:    "seen:",
		retention: retention,
		now:       time.Now,
	}
}

// memcache keys are limited to 250 bytes without spaces, URLs are not
func (m *MemcacheSeenCache) key(url string) string {
	sum := sha1.Sum([]byte(url))
	return m.prefix + hex.EncodeToString(sum[:])
}

func (m *MemcacheSeenCache) item(url string) *memcache.Item {
	return &memcache.Item{
		Key:        m.key(url),
		Value:      []byte(strconv.FormatInt(m.now().Unix(), 10)),
		Expiration: int32(m.retention.Seconds()),
	}
}

// Has reports whether key was marked within the retention window
func (m *MemcacheSeenCache) Has(key string) (bool, error) {
	_, err := m.client.Get(m.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, crawlerrors.NewCache("memcache", "get "+key, err)
	}
	return true, nil
}

// MarkSeen records key, restarting its retention window
func (m *MemcacheSeenCache) MarkSeen(key string) error {
	if err := m.client.Set(m.item(key)); err != nil {
		return crawlerrors.NewCache("memcache", "set "+key, err)
	}
	return nil
}

// CheckAndMark relies on memcache add, which only stores absent keys
func (m *MemcacheSeenCache) CheckAndMark(key string) (bool, error) {
	err := m.client.Add(m.item(key))
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, crawlerrors.NewCache("memcache", "add "+key, err)
	}
	return true, nil
}

// Ping checks that the server is reachable
func (m *MemcacheSeenCache) Ping() error {
	return m.client.Ping()
}
