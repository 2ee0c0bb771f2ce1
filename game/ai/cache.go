package ai

import (
	"github.com/kasuganosora/allyai/game/ally"
	"go.uber.org/zap"
)

// TreeCache memoizes one behavior tree per companion, keyed by its stable ID.
// Not safe for concurrent use; invalidate between ticks.
type TreeCache struct {
	trees  map[ally.ID]Node
	logger *zap.Logger
}

// NewTreeCache creates an empty cache. A nil logger is replaced by a no-op.
func NewTreeCache(logger *zap.Logger) *TreeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeCache{trees: make(map[ally.ID]Node), logger: logger}
}

// GetOrBuildTree returns the companion's tree, building it on first use.
func (tc *TreeCache) GetOrBuildTree(c *ally.Companion) Node {
	if t, ok := tc.trees[c.ID]; ok {
		return t
	}
	t := BuildTree(c)
	tc.trees[c.ID] = t
	tc.logger.Debug("behavior tree built",
		zap.Int64("ally_id", int64(c.ID)),
		zap.String("name", c.Name),
		zap.Int("slot", c.AbilitySlot))
	return t
}

// InvalidateTree drops the cached tree for id.
func (tc *TreeCache) InvalidateTree(id ally.ID) {
	if _, ok := tc.trees[id]; ok {
		delete(tc.trees, id)
		tc.logger.Debug("behavior tree invalidated", zap.Int64("ally_id", int64(id)))
	}
}

// ClearAll drops every cached tree.
func (tc *TreeCache) ClearAll() {
	n := len(tc.trees)
	tc.trees = make(map[ally.ID]Node)
	tc.logger.Debug("behavior trees cleared", zap.Int("count", n))
}

// Len returns the number of cached trees.
func (tc *TreeCache) Len() int { return len(tc.trees) }

// IDs lists the companions that currently have a cached tree.
func (tc *TreeCache) IDs() []ally.ID {
	out := make([]ally.ID, 0, len(tc.trees))
	for id := range tc.trees {
		out = append(out, id)
	}
	return out
}
