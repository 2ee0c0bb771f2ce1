package arena

import (
	"github.com/kasuganosora/allyai/game/ai"
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
)

// TryUseAbility implements ai.AbilityResolver. Accepted uses are queued and
// applied after the decision pass. Called with a.mu held by Step.
func (a *Arena) TryUseAbility(c *ally.Companion, slot int, ctx *ai.DecisionContext) bool {
	if !c.Alive() || c.AbilityCooldown > 0 {
		return false
	}
	ab := a.catalog.Ability(slot)
	switch ab.Kind {
	case ally.AbilityHeal:
		if c.Health >= c.MaxHealth {
			return false
		}
	default:
		if !a.enemy.Alive {
			return false
		}
		if geom.HorizontalDist(c.Position, a.enemy.Position) > ab.Range {
			return false
		}
	}
	a.pending = append(a.pending, effect{source: c.ID, kind: ab.Kind, power: ab.Power})
	return true
}

// Cooldown implements ai.AbilityResolver.
func (a *Arena) Cooldown(c *ally.Companion, _ int) float64 {
	return c.AbilityCooldown
}

// Ability implements ai.AbilityCatalog.
func (a *Arena) Ability(slot int) ally.Ability {
	return a.catalog.Ability(slot)
}
