// Package analytics derives trend views from history and session state,
// memoizing each expensive computation behind a short TTL.
package analytics

import (
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/clock"
)

// Kind identifies a class of derived view with its own TTL.
type Kind string

const (
	KindDischarge    Kind = "discharge"
	KindInsights     Kind = "insights"
	KindTopConsumers Kind = "top_consumers"
)

// TTLs are short so newly started hosts see data almost immediately.
var defaultTTLs = map[Kind]time.Duration{
	KindDischarge:    5 * time.Second,
	KindInsights:     10 * time.Second,
	KindTopConsumers: 5 * time.Second,
}

const fallbackTTL = 10 * time.Second

type entry struct {
	value   any
	stamped time.Time
}

// Cache memoizes derived values per (kind, key). Keys must include any
// filter context so values are never shared across filters. A cached entry
// is never served past its kind's TTL; expiry triggers a synchronous
// recompute and re-stamps the timestamp.
type Cache struct {
	clk  clock.Clock
	mu   sync.Mutex
	ttls map[Kind]time.Duration
	data map[string]entry
}

// NewCache creates a Cache with the default per-kind TTLs.
func NewCache(clk clock.Clock) *Cache {
	return &Cache{
		clk:  clk,
		ttls: defaultTTLs,
		data: make(map[string]entry),
	}
}

// TTL returns the time-to-live for a kind.
func (c *Cache) TTL(kind Kind) time.Duration {
	if ttl, ok := c.ttls[kind]; ok {
		return ttl
	}

	return fallbackTTL
}

// Get returns the cached value for (kind, key) if it is younger than the
// kind's TTL, otherwise computes, stores and returns a fresh value. Compute
// failures are returned without disturbing any previously cached value.
func (c *Cache) Get(kind Kind, key string, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullKey := string(kind) + "/" + key
	now := c.clk.Now()

	if e, ok := c.data[fullKey]; ok && now.Sub(e.stamped) < c.TTL(kind) {
		return e.value, nil
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}

	c.data[fullKey] = entry{value: value, stamped: now}

	return value, nil
}

// Invalidate drops all cached entries.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]entry)
}
