package tactics

import (
	"testing"
	"time"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/stretchr/testify/assert"
)

func TestCache_ServesWithinTTL(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, DefaultTTL, c.TTL)

	calls := 0
	compute := func() map[ally.ID]Position {
		calls++
		return map[ally.ID]Position{ally.ID(calls): {Priority: float64(calls)}}
	}

	first := c.Get(0, compute)
	assert.Equal(t, 1, calls)
	c.Get(0.4, compute)
	assert.Equal(t, 1, calls)

	second := c.Get(0.5, compute)
	assert.Equal(t, 2, calls)
	// The earlier map is replaced, never mutated.
	assert.Len(t, first, 1)
	assert.Contains(t, first, ally.ID(1))
	assert.Contains(t, second, ally.ID(2))
	assert.Equal(t, second, c.Snapshot())
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Second)
	calls := 0
	compute := func() map[ally.ID]Position { calls++; return map[ally.ID]Position{} }

	assert.Nil(t, c.Snapshot())
	c.Get(1, compute)
	c.Invalidate()
	assert.False(t, c.Fresh(1))
	c.Get(1, compute)
	assert.Equal(t, 2, calls)
}

func TestCache_ClockRewindRecomputes(t *testing.T) {
	c := NewCache(time.Second)
	calls := 0
	compute := func() map[ally.ID]Position { calls++; return nil }
	c.Get(10, compute)
	c.Get(2, compute)
	assert.Equal(t, 2, calls)
}
