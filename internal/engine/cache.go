package engine

import (
	"sync"
	"time"

	"marketfeed/internal/market"
)

// cacheKey identifies one resolved answer. Interval carries the canonical
// interval for candle queries and the ranking direction for movers.
type cacheKey struct {
	Op       string
	Class    market.AssetClass
	Symbol   string
	Interval string
	Limit    int
}

// entry stores one resolved value with expiry. Entries are never mutated in
// place; a refresh overwrites the whole entry.
type entry struct {
	expiresAt time.Time
	value     any
}

// responseCache memoizes resolved answers for a TTL. Staleness is detected on
// read; there is no sweeper. Only accepted resolutions write, so a losing race
// branch can never publish here.
type responseCache struct {
	ttl      time.Duration
	maxItems int
	now      func() time.Time

	mu    sync.RWMutex
	items map[cacheKey]entry
}

func newResponseCache(ttl time.Duration, maxItems int, now func() time.Time) *responseCache {
	if now == nil {
		now = time.Now
	}
	return &responseCache{
		ttl:      ttl,
		maxItems: maxItems,
		now:      now,
		items:    make(map[cacheKey]entry),
	}
}

func (c *responseCache) get(key cacheKey) (any, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *responseCache) put(key cacheKey, value any) {
	if c == nil || c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	c.items[key] = entry{expiresAt: now.Add(c.ttl), value: value}
	// best-effort cap: drop expired first, then arbitrary keys
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
			if len(c.items) <= c.maxItems {
				break
			}
		}
		for k := range c.items {
			if len(c.items) <= c.maxItems {
				break
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}
