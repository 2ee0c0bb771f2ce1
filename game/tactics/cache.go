package tactics

import (
	"time"

	"github.com/kasuganosora/allyai/game/ally"
)

// DefaultTTL is how long a computed layout stays valid.
const DefaultTTL = 500 * time.Millisecond

// Cache holds the last computed position map. The map is replaced whole on
// recompute and never mutated in place, so a returned map stays a consistent
// snapshot for its reader.
// Not safe for concurrent use.
type Cache struct {
	TTL time.Duration

	positions  map[ally.ID]Position
	computedAt float64
	valid      bool
}

// NewCache returns a cache with the given TTL (DefaultTTL when <= 0).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{TTL: ttl}
}

// Get returns the cached map while it is fresh, otherwise it calls compute
// and stores the result. now is in simulated seconds.
func (c *Cache) Get(now float64, compute func() map[ally.ID]Position) map[ally.ID]Position {
	if c.Fresh(now) {
		return c.positions
	}
	c.positions = compute()
	c.computedAt = now
	c.valid = true
	return c.positions
}

// Invalidate forces the next Get to recompute.
func (c *Cache) Invalidate() {
	c.valid = false
}

// Snapshot returns the current map, possibly nil before the first Get.
func (c *Cache) Snapshot() map[ally.ID]Position {
	return c.positions
}

// Fresh reports whether the map would be served without recomputing at now.
func (c *Cache) Fresh(now float64) bool {
	return c.valid && now-c.computedAt < c.TTL.Seconds() && now >= c.computedAt
}
