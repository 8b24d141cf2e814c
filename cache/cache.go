// Package cache is the per-process TTL store for scan results, keyed by
// normalized URL. It exists so repeated scans of the same site inside
// the TTL window cost no network work.
package cache

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"compliance-scanner/compliance"
)

type entry struct {
	result    *compliance.ScanResult
	createdAt time.Time
}

// ResultCache is safe for concurrent use by the batch workers. Capacity
// is bounded: when full, the least-recently-inserted entry is evicted.
// Insertion volume, not access skew, drives pressure in this workload,
// so no LRU recency tracking.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[string]entry
	order    []string
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

func New(ttl time.Duration, maxItems int) *ResultCache {
	if maxItems <= 0 {
		maxItems = 256
	}
	return &ResultCache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Get returns the cached result for a URL. Expiry is lazy: an entry
// past its TTL is evicted here and reported as a miss.
func (c *ResultCache) Get(rawURL string) (*compliance.ScanResult, bool) {
	key := normalizeKey(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		c.remove(key)
		return nil, false
	}
	return e.result, true
}

// Set stores a result, overwriting any stale entry for the same URL and
// evicting the oldest insertion on overflow.
func (c *ResultCache) Set(rawURL string, result *compliance.ScanResult) {
	key := normalizeKey(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.remove(key)
	}
	if len(c.entries) >= c.maxItems && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[key] = entry{result: result, createdAt: c.now()}
	c.order = append(c.order, key)
}

// Stats reports item count and TTL for operational visibility. Expired
// entries are swept first so the count reflects live items.
func (c *ResultCache) Stats() compliance.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			c.remove(key)
		}
	}

	return compliance.CacheStats{Items: len(c.entries), TTL: c.ttl}
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.order = nil
}

// remove must be called with the mutex held.
func (c *ResultCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// normalizeKey lowercases the scheme and host so key comparison is
// case-insensitive on the parts of a URL that are case-insensitive.
func normalizeKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
