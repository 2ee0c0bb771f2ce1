package ai

import (
	"fmt"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
)

// ConditionKind names a predicate leaf. Thresholds that come from the
// strategy profile are read at evaluation time, so a strategy switch needs
// no rebuild; Arg is either an absolute value or an offset on that field.
type ConditionKind int

const (
	CondHasCommand           ConditionKind = iota // Arg: ally.Command
	CondHealthBelowHeal                           // health < heal threshold + Arg
	CondHasSelfHeal                               // equipped ability is a heal
	CondAbilityReady                              // cooldown elapsed
	CondDefenseWeightAtLeast                      // defense weight >= Arg
	CondEnemyAlive
	CondEnemyWithinPreferred // enemy <= preferred range + Arg
	CondEnemyBeyondPreferred // enemy > preferred range + Arg
	CondEnemyWithinEngage
	CondEnemyWithinAbilityRange
	CondOutsideMinRange // enemy >= min range, or melee-if-ranged
	CondAboveRetreat    // health above retreat threshold, or no retreat
	CondProtectsPlayer
	CondPlayerAlive
	CondPlayerHealthBelow // player health < Arg
	CondEnemyNearPlayer   // enemy within engage distance of the player
	CondCanChase
	CondHasSlot
	CondSlotFartherThan // distance to slot > Arg
	CondInAttackWindow
)

var conditionNames = [...]string{
	CondHasCommand:              "has_command",
	CondHealthBelowHeal:         "health_below_heal",
	CondHasSelfHeal:             "has_self_heal",
	CondAbilityReady:            "ability_ready",
	CondDefenseWeightAtLeast:    "defense_weight_at_least",
	CondEnemyAlive:              "enemy_alive",
	CondEnemyWithinPreferred:    "enemy_within_preferred",
	CondEnemyBeyondPreferred:    "enemy_beyond_preferred",
	CondEnemyWithinEngage:       "enemy_within_engage",
	CondEnemyWithinAbilityRange: "enemy_within_ability_range",
	CondOutsideMinRange:         "outside_min_range",
	CondAboveRetreat:            "above_retreat",
	CondProtectsPlayer:          "protects_player",
	CondPlayerAlive:             "player_alive",
	CondPlayerHealthBelow:       "player_health_below",
	CondEnemyNearPlayer:         "enemy_near_player",
	CondCanChase:                "can_chase",
	CondHasSlot:                 "has_slot",
	CondSlotFartherThan:         "slot_farther_than",
	CondInAttackWindow:          "in_attack_window",
}

func (k ConditionKind) String() string {
	if k >= 0 && int(k) < len(conditionNames) {
		return conditionNames[k]
	}
	return fmt.Sprintf("condition(%d)", int(k))
}

// Condition is a predicate leaf. It never returns Running.
type Condition struct {
	Kind ConditionKind
	Arg  float64
}

// When builds a condition leaf.
func When(kind ConditionKind, arg float64) *Condition {
	return &Condition{Kind: kind, Arg: arg}
}

// Is builds a condition leaf that takes no argument.
func Is(kind ConditionKind) *Condition {
	return &Condition{Kind: kind}
}

func (cn *Condition) Tick(ctx *DecisionContext) Status {
	if cn.Check(ctx) {
		return StatusSuccess
	}
	return StatusFailure
}

// Check evaluates the predicate. Panics on an unknown kind.
func (cn *Condition) Check(ctx *DecisionContext) bool {
	p := &ctx.Strategy
	switch cn.Kind {
	case CondHasCommand:
		return ctx.Companion.Command == ally.Command(cn.Arg)
	case CondHealthBelowHeal:
		return ctx.HealthFrac < p.HealThreshold+cn.Arg
	case CondHasSelfHeal:
		return ctx.Ability.Kind == ally.AbilityHeal
	case CondAbilityReady:
		return ctx.cooldown() <= 0
	case CondDefenseWeightAtLeast:
		return p.DefenseWeight >= cn.Arg
	case CondEnemyAlive:
		return ctx.EnemyAlive
	case CondEnemyWithinPreferred:
		return ctx.EnemyAlive && ctx.DistToEnemy <= p.PreferredRange+cn.Arg
	case CondEnemyBeyondPreferred:
		return ctx.EnemyAlive && ctx.DistToEnemy > p.PreferredRange+cn.Arg
	case CondEnemyWithinEngage:
		return ctx.EnemyAlive && ctx.DistToEnemy <= p.EngageDistance
	case CondEnemyWithinAbilityRange:
		return ctx.EnemyAlive && ctx.DistToEnemy <= ctx.Ability.Range
	case CondOutsideMinRange:
		return p.MeleeIfRanged || ctx.DistToEnemy >= ctx.Ability.MinRange
	case CondAboveRetreat:
		return !p.HasRetreat() || ctx.HealthFrac > p.RetreatThreshold
	case CondProtectsPlayer:
		return p.ProtectsPlayer
	case CondPlayerAlive:
		return ctx.PlayerAlive
	case CondPlayerHealthBelow:
		return ctx.PlayerAlive && ctx.PlayerHealthFrac < cn.Arg
	case CondEnemyNearPlayer:
		if !ctx.EnemyAlive || !ctx.PlayerAlive || ctx.World == nil {
			return false
		}
		return geom.HorizontalDist(ctx.World.Enemy.Position, ctx.World.Player.Position) <= p.EngageDistance
	case CondCanChase:
		if !p.WillChase || !ctx.EnemyAlive {
			return false
		}
		return ctx.DistToEnemy <= p.EngageDistance || ctx.EnemyHealthFrac <= p.ChaseThreshold
	case CondHasSlot:
		return ctx.Slot != nil
	case CondSlotFartherThan:
		return ctx.Slot != nil && ctx.DistToSlot > cn.Arg
	case CondInAttackWindow:
		return ctx.attackWindow()
	default:
		panic(fmt.Sprintf("ai: unknown condition %v", cn.Kind))
	}
}
