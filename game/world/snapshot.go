package world

import (
	"math"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
)

// Unit is the read-only view of the player or the primary enemy.
type Unit struct {
	Position  geom.Vec3 `json:"position"`
	Facing    float64   `json:"facing"`
	Health    float64   `json:"health"`
	MaxHealth float64   `json:"max_health"`
	Alive     bool      `json:"alive"`
}

// HealthFraction returns Health/MaxHealth, 0 for a dead or absent unit.
func (u Unit) HealthFraction() float64 {
	if !u.Alive || u.MaxHealth <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, u.Health/u.MaxHealth))
}

// Snapshot is the world state one decision pass reads.
type Snapshot struct {
	Player  Unit
	Enemy   Unit
	Allies  []*ally.Companion
	Terrain Terrain // may be nil
	Time    float64 // simulated seconds
}

// Living returns the allies that are still alive, in input order.
func (s *Snapshot) Living() []*ally.Companion {
	out := make([]*ally.Companion, 0, len(s.Allies))
	for _, c := range s.Allies {
		if c != nil && c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the ally with id, or nil.
func (s *Snapshot) Find(id ally.ID) *ally.Companion {
	for _, c := range s.Allies {
		if c != nil && c.ID == id {
			return c
		}
	}
	return nil
}
