package ai

import (
	"testing"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func nop() *zap.Logger {
	l, _ := zap.NewDevelopment()
	return l
}

func TestTreeCache_MemoizesPerCompanion(t *testing.T) {
	tc := NewTreeCache(nop())
	a := companion(ally.SlotSword, strategy.Balanced)
	b := companion(ally.SlotSword, strategy.Balanced)

	ta := tc.GetOrBuildTree(a)
	assert.Same(t, ta, tc.GetOrBuildTree(a))
	assert.NotSame(t, ta, tc.GetOrBuildTree(b))
	assert.Equal(t, 2, tc.Len())
	assert.ElementsMatch(t, []ally.ID{a.ID, b.ID}, tc.IDs())
}

func TestTreeCache_InvalidateRebuilds(t *testing.T) {
	tc := NewTreeCache(nil)
	c := companion(ally.SlotSword, strategy.Balanced)

	before := tc.GetOrBuildTree(c)
	tc.InvalidateTree(c.ID)
	assert.Equal(t, 0, tc.Len())
	after := tc.GetOrBuildTree(c)
	assert.NotSame(t, before, after)

	// Unknown ids are ignored.
	tc.InvalidateTree(ally.ID(-5))
	assert.Equal(t, 1, tc.Len())
}

func TestTreeCache_ClearAll(t *testing.T) {
	tc := NewTreeCache(nop())
	for i := 0; i < 3; i++ {
		tc.GetOrBuildTree(companion(ally.SlotFireball, strategy.Support))
	}
	assert.Equal(t, 3, tc.Len())
	tc.ClearAll()
	assert.Equal(t, 0, tc.Len())
}
