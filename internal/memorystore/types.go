package memorystore

import (
	"time"

	"marketdash/internal/market"
)

// Entry is the last live result stored for a symbol. It backs the cached tier.
type Entry struct {
	Series   market.Series `json:"series"`   // bars, oldest first
	Quote    market.Quote  `json:"quote"`    // quote derived from the same fetch
	Name     string        `json:"name"`     // display name from the chart meta
	Currency string        `json:"currency"` // ISO currency code (e.g., "INR")
	StoredAt time.Time     `json:"storedAt"` // when the live fetch completed
}

// Fresh reports whether the entry is younger than ttl at now.
// A non-positive ttl never expires.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	if len(e.Series) == 0 {
		return false
	}
	return ttl <= 0 || now.Sub(e.StoredAt) < ttl
}
