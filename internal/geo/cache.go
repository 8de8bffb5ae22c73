package geo

import (
	"strings"
	"sync"
	"time"
)

// geocodeCache remembers resolved places so repeated lookups of the same
// location stay within the geocoder's usage policy.
type geocodeCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	coords    Coordinates
	timestamp time.Time
}

func newGeocodeCache(ttl time.Duration) *geocodeCache {
	return &geocodeCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *geocodeCache) get(query string) (Coordinates, bool) {
	c.mu.RLock()
	entry, exists := c.entries[cacheKey(query)]
	c.mu.RUnlock()

	if !exists || c.now().Sub(entry.timestamp) >= c.ttl {
		return Coordinates{}, false
	}
	return entry.coords, true
}

func (c *geocodeCache) put(query string, coords Coordinates) {
	c.mu.Lock()
	c.entries[cacheKey(query)] = cacheEntry{
		coords:    coords,
		timestamp: c.now(),
	}
	c.mu.Unlock()
}

// cacheKey folds case and surrounding whitespace.
func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
