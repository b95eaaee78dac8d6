package memorystore

import (
	"sync"
	"time"

	"marketdash/internal/market"
)

// DefaultListingTTL is how long a fetched listing stays fresh.
const DefaultListingTTL = 24 * time.Hour

// ListingCache holds the most recent listing fetch. Writers replace the
// whole slice; the last writer wins.
type ListingCache struct {
	mu        sync.RWMutex
	data      []market.Listing
	fetchedAt time.Time
	ttl       time.Duration
}

func NewListingCache(ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &ListingCache{ttl: ttl}
}

// Get returns the cached listings if they are fresh at now.
func (c *ListingCache) Get(now time.Time) ([]market.Listing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || now.Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.data, true
}

// Set replaces the cached listings. The slice must not be modified afterwards.
func (c *ListingCache) Set(data []market.Listing, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.fetchedAt = at
}

// Snapshot returns whatever is cached regardless of age.
func (c *ListingCache) Snapshot() ([]market.Listing, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.fetchedAt
}

func (c *ListingCache) TTL() time.Duration {
	return c.ttl
}
