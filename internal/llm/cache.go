package llm

import (
	"sync"
	"time"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

// cacheEntry represents a cached extraction result.
type cacheEntry struct {
	expiry     time.Time
	extraction model.Extraction
}

// extractionCache provides thread-safe caching of extraction results, keyed
// by message fingerprint so a replayed message reuses its earlier answer.
type extractionCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// newExtractionCache creates a new cache with the specified TTL.
func newExtractionCache(ttl time.Duration) *extractionCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &extractionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves an extraction from the cache if it exists and hasn't expired.
func (c *extractionCache) get(key string) (model.Extraction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return model.Extraction{}, false
	}

	if time.Now().After(entry.expiry) {
		return model.Extraction{}, false
	}

	return entry.extraction, true
}

// set stores an extraction in the cache.
func (c *extractionCache) set(key string, extraction model.Extraction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		extraction: extraction,
		expiry:     time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *extractionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (c *extractionCache) Close() {
	close(c.stopCh)
}
