// Package resultcache holds previously computed record sequences in a
// bounded, time-boxed, identity-aware store. The loader is its only
// writer; snapshots are deep-cloned on the way in and on the way out so
// no caller ever aliases cached state.
package resultcache

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rosterkit/rosterkit/internal/build"
	"github.com/rosterkit/rosterkit/pkg/record"
)

const (
	// DefaultMaxEntries bounds the number of cached result sets.
	DefaultMaxEntries = 64

	// DefaultMaxAge is how long an entry stays fresh. Entries past it
	// are treated as absent and evicted on read.
	DefaultMaxAge = 5 * time.Minute
)

var (
	cacheHitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "result_cache_hit_count",
		Help:      "The total number of result cache reads that were served from a fresh entry.",
	})

	cacheMissCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "result_cache_miss_count",
		Help:      "The total number of result cache reads that found no fresh entry.",
	})

	cacheEvictionCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "result_cache_eviction_count",
		Help:      "The total number of entries evicted for capacity or staleness.",
	})
)

// Entry is one cached result set.
type Entry struct {
	Key       Key
	Records   []record.Record
	CreatedAt time.Time
	Size      int
}

// Cache is a bounded in-memory store of record sequence snapshots with
// lazy TTL expiry and deterministic oldest-insertion-first eviction. All
// methods are safe for concurrent use; mutation is serialized by a
// single mutex.
type Cache struct {
	mu         sync.Mutex
	entries    *linkedhashmap.Map // Key -> *Entry, insertion ordered
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// Opt configures a Cache.
type Opt func(*Cache)

// WithMaxEntries bounds the entry count. Inserting at capacity evicts
// the oldest insertion first.
func WithMaxEntries(n int) Opt {
	return func(c *Cache) {
		c.maxEntries = n
	}
}

// WithMaxAge sets the freshness window for entries.
func WithMaxAge(d time.Duration) Opt {
	return func(c *Cache) {
		c.maxAge = d
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Opt {
	return func(c *Cache) {
		c.now = now
	}
}

// New constructs an empty cache with the default bounds.
func New(opts ...Opt) *Cache {
	c := &Cache{
		entries:    linkedhashmap.New(),
		maxEntries: DefaultMaxEntries,
		maxAge:     DefaultMaxAge,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxEntries < 1 {
		c.maxEntries = 1
	}
	return c
}

// Get returns a deep-cloned snapshot of the records stored under key.
// An entry older than the max age counts as absent and is evicted.
func (c *Cache) Get(key Key) ([]record.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, found := c.entries.Get(key)
	if !found {
		cacheMissCounter.Inc()
		return nil, false
	}
	entry := v.(*Entry)
	if c.now().Sub(entry.CreatedAt) > c.maxAge {
		c.entries.Remove(key)
		cacheEvictionCounter.Inc()
		cacheMissCounter.Inc()
		return nil, false
	}
	cacheHitCounter.Inc()
	return record.CloneAll(entry.Records), true
}

// Put stores a deep-cloned snapshot of recs under key. Re-putting an
// existing key refreshes its insertion position and timestamp. At
// capacity the oldest insertion is evicted first.
func (c *Cache) Put(key Key, recs []record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries.Get(key); exists {
		c.entries.Remove(key)
	} else if c.entries.Size() >= c.maxEntries {
		oldest := c.entries.Keys()[0]
		c.entries.Remove(oldest)
		cacheEvictionCounter.Inc()
	}

	c.entries.Put(key, &Entry{
		Key:       key,
		Records:   record.CloneAll(recs),
		CreatedAt: c.now(),
		Size:      len(recs),
	})
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}

// Len reports the current entry count, counting stale entries that have
// not been read (and therefore lazily evicted) yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Size()
}
