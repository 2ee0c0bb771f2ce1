package ai

import (
	"fmt"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
)

// ArrivalTolerance is how far past its stop distance a mover counts as arrived.
const ArrivalTolerance = 0.25

// guardOffset is how far toward the enemy a guard stands from the player.
const guardOffset = 1.5

// ActionKind names a behavior leaf.
type ActionKind int

const (
	ActUseAbility ActionKind = iota
	ActMoveToSlot
	ActMoveToEnemy
	ActHoldPosition
	ActFollowPlayer
	ActGuardPlayer
	ActStayNearPlayer
)

var actionNames = [...]string{
	ActUseAbility:     "use_ability",
	ActMoveToSlot:     "move_to_slot",
	ActMoveToEnemy:    "move_to_enemy",
	ActHoldPosition:   "hold_position",
	ActFollowPlayer:   "follow_player",
	ActGuardPlayer:    "guard_player",
	ActStayNearPlayer: "stay_near_player",
}

func (k ActionKind) String() string {
	if k >= 0 && int(k) < len(actionNames) {
		return actionNames[k]
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is a behavior leaf and the only node with side effects. Slot is the
// ability slot used by ActUseAbility.
type Action struct {
	Kind ActionKind
	Slot int
}

// Do builds an action leaf.
func Do(kind ActionKind) *Action {
	return &Action{Kind: kind}
}

// UseAbility builds an ability-use leaf for slot.
func UseAbility(slot int) *Action {
	return &Action{Kind: ActUseAbility, Slot: slot}
}

// Tick runs the action. Panics on an unknown kind.
func (an *Action) Tick(ctx *DecisionContext) Status {
	c := ctx.Companion
	switch an.Kind {
	case ActUseAbility:
		return an.useAbility(ctx)

	case ActMoveToSlot:
		if ctx.Slot == nil {
			return StatusFailure
		}
		c.Intent = ally.Intent{Mode: ally.MoveTo, Destination: ctx.Slot.Target}
		c.LastAction = an.Kind.String()
		return arrived(ctx.DistToSlot, 0)

	case ActMoveToEnemy:
		if !ctx.EnemyAlive {
			return StatusFailure
		}
		stop := ctx.attackReach()
		c.Intent = ally.Intent{Mode: ally.MoveTo, Destination: ctx.World.Enemy.Position, StopDistance: stop}
		c.Facing = geom.Heading(c.Position, ctx.World.Enemy.Position)
		c.LastAction = an.Kind.String()
		return arrived(ctx.DistToEnemy, stop)

	case ActHoldPosition:
		c.Intent = ally.Intent{Mode: ally.MoveHold, Destination: c.Position}
		if ctx.EnemyAlive {
			c.Facing = geom.Heading(c.Position, ctx.World.Enemy.Position)
		} else if ctx.Slot != nil {
			c.Facing = ctx.Slot.Facing
		}
		c.LastAction = an.Kind.String()
		return StatusSuccess

	case ActFollowPlayer:
		c.Intent = ally.Intent{Mode: ally.MoveFollow, StopDistance: ctx.Strategy.FollowDistance}
		if ctx.World != nil {
			c.Intent.Destination = ctx.World.Player.Position
		}
		c.LastAction = an.Kind.String()
		return StatusSuccess

	case ActStayNearPlayer:
		if !ctx.PlayerAlive {
			return StatusFailure
		}
		stop := ctx.Strategy.FollowDistance
		c.Intent = ally.Intent{Mode: ally.MoveFollow, Destination: ctx.World.Player.Position, StopDistance: stop}
		c.LastAction = an.Kind.String()
		return arrived(ctx.DistToPlayer, stop)

	case ActGuardPlayer:
		if !ctx.PlayerAlive {
			return StatusFailure
		}
		player := ctx.World.Player
		dest := player.Position
		if ctx.EnemyAlive {
			dest = dest.Add(geom.Dir(geom.Heading(player.Position, ctx.World.Enemy.Position)).Scale(guardOffset))
			c.Facing = geom.Heading(c.Position, ctx.World.Enemy.Position)
		} else {
			dest = dest.Sub(geom.Dir(player.Facing).Scale(guardOffset))
		}
		c.Intent = ally.Intent{Mode: ally.MoveTo, Destination: dest}
		c.LastAction = an.Kind.String()
		return arrived(geom.HorizontalDist(c.Position, dest), 0)

	default:
		panic(fmt.Sprintf("ai: unknown action %v", an.Kind))
	}
}

// useAbility asks the resolver to fire the ability. Heals target the
// companion itself; everything else targets the primary enemy.
func (an *Action) useAbility(ctx *DecisionContext) Status {
	c := ctx.Companion
	heal := ctx.Ability.Kind == ally.AbilityHeal
	if !heal && !ctx.EnemyAlive {
		return StatusFailure
	}
	if ctx.Abilities == nil || !ctx.Abilities.TryUseAbility(c, an.Slot, ctx) {
		return StatusFailure
	}
	c.StampCooldown()
	if !heal {
		c.Facing = geom.Heading(c.Position, ctx.World.Enemy.Position)
		c.Intent = ally.Intent{Mode: ally.MoveHold, Destination: c.Position}
	}
	if ctx.World != nil {
		c.LastAbilityAt = ctx.World.Time
	}
	c.LastAction = an.Kind.String() + ":" + ctx.Ability.Name
	return StatusSuccess
}

// arrived maps a remaining distance to Running or Success.
func arrived(dist, stop float64) Status {
	if dist > stop+ArrivalTolerance {
		return StatusRunning
	}
	return StatusSuccess
}
