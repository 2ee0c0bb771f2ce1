package ai

import (
	"math"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/kasuganosora/allyai/game/tactics"
	"github.com/kasuganosora/allyai/game/world"
)

// AbilityResolver applies ability effects on behalf of action leaves.
// Implemented by the host world; declared here to keep the AI layer free of
// combat math.
type AbilityResolver interface {
	// TryUseAbility attempts to fire the ability in slot. It returns false when
	// the resolver rejects the use (out of range, no target, on cooldown).
	TryUseAbility(c *ally.Companion, slot int, ctx *DecisionContext) bool
	// Cooldown returns the seconds remaining before slot is usable again.
	Cooldown(c *ally.Companion, slot int) float64
}

// AbilityCatalog is optionally implemented by a resolver that knows the
// ability definitions. Without it the default catalog is used.
type AbilityCatalog interface {
	Ability(slot int) ally.Ability
}

// DecisionContext is passed to every behavior tree node during one
// companion's evaluation. It is built fresh per evaluation and not retained.
type DecisionContext struct {
	Companion *ally.Companion
	World     *world.Snapshot
	Abilities AbilityResolver // may be nil
	Strategy  strategy.Profile
	Role      tactics.Role
	Slot      *tactics.Position // nil when no tactical slot is assigned
	Ability   ally.Ability      // definition of the equipped ability

	DistToPlayer     float64
	DistToEnemy      float64
	DistToSlot       float64
	PlayerAlive      bool
	EnemyAlive       bool
	HealthFrac       float64
	PlayerHealthFrac float64
	EnemyHealthFrac  float64
}

// NewDecisionContext precomputes the facts conditions read. Distances to
// absent units are +Inf.
func NewDecisionContext(c *ally.Companion, snap *world.Snapshot, slot *tactics.Position, profile strategy.Profile, resolver AbilityResolver) *DecisionContext {
	ctx := &DecisionContext{
		Companion:    c,
		World:        snap,
		Abilities:    resolver,
		Strategy:     profile,
		Role:         tactics.RoleOf(c.AbilitySlot),
		Slot:         slot,
		HealthFrac:   c.HealthFraction(),
		DistToPlayer: math.Inf(1),
		DistToEnemy:  math.Inf(1),
		DistToSlot:   math.Inf(1),
	}
	if cat, ok := resolver.(AbilityCatalog); ok {
		ctx.Ability = cat.Ability(c.AbilitySlot)
	} else {
		ctx.Ability = ally.DefaultCatalog().Ability(c.AbilitySlot)
	}
	if snap != nil {
		ctx.PlayerAlive = snap.Player.Alive
		ctx.EnemyAlive = snap.Enemy.Alive
		ctx.PlayerHealthFrac = snap.Player.HealthFraction()
		ctx.EnemyHealthFrac = snap.Enemy.HealthFraction()
		if snap.Player.Alive {
			ctx.DistToPlayer = geom.HorizontalDist(c.Position, snap.Player.Position)
		}
		if snap.Enemy.Alive {
			ctx.DistToEnemy = geom.HorizontalDist(c.Position, snap.Enemy.Position)
		}
	}
	if slot != nil {
		ctx.DistToSlot = geom.HorizontalDist(c.Position, slot.Target)
	}
	return ctx
}

// cooldown returns the remaining cooldown of the equipped ability.
func (ctx *DecisionContext) cooldown() float64 {
	if ctx.Abilities != nil {
		return ctx.Abilities.Cooldown(ctx.Companion, ctx.Companion.AbilitySlot)
	}
	return ctx.Companion.AbilityCooldown
}

// attackWindow reports whether the enemy is inside the role's attack range.
func (ctx *DecisionContext) attackWindow() bool {
	if !ctx.EnemyAlive {
		return false
	}
	switch ctx.Role {
	case tactics.RoleMelee:
		return ctx.DistToEnemy <= ctx.Strategy.PreferredRange+1.0
	case tactics.RoleRanged:
		if ctx.DistToEnemy > ctx.Ability.Range {
			return false
		}
		return ctx.Strategy.MeleeIfRanged || ctx.DistToEnemy >= ctx.Ability.MinRange
	default:
		return false
	}
}

// attackReach is how close a charge toward the enemy stops.
func (ctx *DecisionContext) attackReach() float64 {
	var reach float64
	switch ctx.Role {
	case tactics.RoleMelee:
		reach = ctx.Strategy.PreferredRange + 1.0
	case tactics.RoleRanged:
		reach = ctx.Ability.Range
	default:
		reach = ctx.Strategy.PreferredRange
	}
	return math.Max(0, reach-0.5)
}
