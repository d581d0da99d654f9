package pricecache

import (
	"maps"
	"slices"
	"sync"
	"time"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
)

// DefaultTTL is how long fetched prices are trusted.
const DefaultTTL = 24 * time.Hour

// Entry is a cached price list with the moment it was fetched.
type Entry struct {
	Prices    []basket.StorePrice `json:"prices"`
	Timestamp int64               `json:"timestamp"` // unix millis
}

// Recorder observes cache lookups.
type Recorder interface {
	CacheHit()
	CacheMiss()
}

// Cache maps normalized (item, location) pairs to price lists. Entries are
// never evicted; an expired entry is simply treated as a miss.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	ttl      time.Duration
	now      func() time.Time
	recorder Recorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRecorder reports hits and misses.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the cache key for an item at a location.
func Key(itemName, location string) string {
	return catalog.NormalizeName(itemName) + "_" + catalog.NormalizeName(location)
}

// Get returns cached prices when the entry is younger than the TTL.
func (c *Cache) Get(itemName, location string) ([]basket.StorePrice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(itemName, location)]
	if ok && c.now().Sub(time.UnixMilli(entry.Timestamp)) < c.ttl {
		c.hit()
		return slices.Clone(entry.Prices), true
	}
	c.miss()
	return nil, false
}

// Put stores prices stamped with the current time, replacing any prior entry.
func (c *Cache) Put(itemName, location string, prices []basket.StorePrice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[Key(itemName, location)] = Entry{
		Prices:    slices.Clone(prices),
		Timestamp: c.now().UnixMilli(),
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot copies the entries for persistence.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.entries)
}

// Restore replaces the entries with previously persisted ones.
func (c *Cache) Restore(entries map[string]Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry, len(entries))
	maps.Copy(c.entries, entries)
}

func (c *Cache) hit() {
	if c.recorder != nil {
		c.recorder.CacheHit()
	}
}

func (c *Cache) miss() {
	if c.recorder != nil {
		c.recorder.CacheMiss()
	}
}
