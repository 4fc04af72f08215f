// Package quotecache provides a TTL-keyed store for computed quote
// snapshots, shared across scan jobs. Reads are snapshot-consistent and
// writes are last-writer-wins per key, which is safe because snapshots
// are deterministic functions of market data.
package quotecache

import (
	"container/list"
	"sync"
	"time"

	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/models"
)

type entry struct {
	key      string
	snapshot *models.QuoteSnapshot
	expires  time.Time
	elem     *list.Element
}

// Cache is a size-capped TTL cache keyed by (symbol, timeframe). When the
// cap is exceeded the oldest-inserted entry is evicted.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	insertions *list.List // oldest at front, holds keys
	maxEntries int
	now        func() time.Time
}

// New creates a cache with the given size cap.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{
		entries:    make(map[string]*entry),
		insertions: list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func key(symbol string, tf models.Timeframe) string {
	return symbol + "|" + string(tf)
}

// TTLFor returns the cache TTL for a timeframe's bucket.
func TTLFor(tf models.Timeframe) time.Duration {
	switch tf.Bucket() {
	case models.BucketIntraday:
		return common.TTLIntraday
	case models.BucketWeekly:
		return common.TTLWeekly
	default:
		return common.TTLDaily
	}
}

// Get returns an unexpired snapshot, or nil. Expired entries are removed
// and never returned.
func (c *Cache) Get(symbol string, tf models.Timeframe) *models.QuoteSnapshot {
	k := key(symbol, tf)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	if c.now().After(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[k]; ok && cur == e {
			c.insertions.Remove(e.elem)
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return nil
	}

	return e.snapshot
}

// Put stores a snapshot with an explicit TTL, evicting the oldest entry
// if the cap is exceeded.
func (c *Cache) Put(snapshot *models.QuoteSnapshot, ttl time.Duration) {
	k := key(snapshot.Symbol, snapshot.Timeframe)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[k]; ok {
		c.insertions.Remove(old.elem)
	}

	e := &entry{
		key:      k,
		snapshot: snapshot,
		expires:  c.now().Add(ttl),
	}
	e.elem = c.insertions.PushBack(k)
	c.entries[k] = e

	for len(c.entries) > c.maxEntries {
		front := c.insertions.Front()
		if front == nil {
			break
		}
		oldest := front.Value.(string)
		c.insertions.Remove(front)
		delete(c.entries, oldest)
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
