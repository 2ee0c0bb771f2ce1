package ai

import (
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/tactics"
)

const (
	selfHealDefenseFloor  = 0.3
	supportHealMargin     = 0.2
	meleeWindowMargin     = 1.0
	approachEnemyMargin   = 2.0
	slotArrivalSlack      = 1.5
	protectPlayerHealthAt = 0.35
)

// BuildTree builds the companion's policy tree. The shape depends only on
// the equipped ability slot; rebuild after a loadout change.
//
//	Selector
//	  command       explicit player order
//	  self-preserve heal when low, unless the strategy opts out
//	  combat        role-dependent attack / protect / approach
//	  follow        always succeeds
func BuildTree(c *ally.Companion) Node {
	slot := c.AbilitySlot
	return NewSelector(
		commandBranch(slot),
		selfPreservationBranch(slot),
		combatBranch(tactics.RoleOf(slot), slot),
		Do(ActFollowPlayer),
	)
}

func hasCommand(cmd ally.Command) *Condition {
	return When(CondHasCommand, float64(cmd))
}

// attackInWindow fires the equipped ability when the enemy is in reach.
func attackInWindow(slot int) Node {
	return NewSequence(
		Is(CondEnemyAlive),
		Is(CondInAttackWindow),
		Is(CondAbilityReady),
		UseAbility(slot),
	)
}

func commandBranch(slot int) Node {
	attack := NewSequence(
		hasCommand(ally.CommandAttack),
		Is(CondEnemyAlive),
		NewSelector(
			attackInWindow(slot),
			Do(ActMoveToEnemy),
		),
	)
	hold := NewSequence(
		hasCommand(ally.CommandHold),
		NewSelector(
			attackInWindow(slot),
			Do(ActHoldPosition),
		),
	)
	defensive := NewSequence(
		hasCommand(ally.CommandDefensive),
		NewSelector(
			NewSequence(
				Is(CondHasSelfHeal),
				When(CondHealthBelowHeal, 0),
				Is(CondAbilityReady),
				UseAbility(slot),
			),
			NewSequence(
				Is(CondEnemyNearPlayer),
				attackInWindow(slot),
			),
			Do(ActGuardPlayer),
		),
	)
	follow := NewSequence(
		hasCommand(ally.CommandFollow),
		Do(ActFollowPlayer),
	)
	return NewSelector(attack, hold, defensive, follow)
}

func selfPreservationBranch(slot int) Node {
	return NewSequence(
		When(CondHealthBelowHeal, 0),
		Is(CondHasSelfHeal),
		Is(CondAbilityReady),
		When(CondDefenseWeightAtLeast, selfHealDefenseFloor),
		UseAbility(slot),
	)
}

func combatBranch(role tactics.Role, slot int) Node {
	switch role {
	case tactics.RoleRanged:
		return NewSelector(
			NewSequence(
				Is(CondEnemyAlive),
				Is(CondEnemyWithinAbilityRange),
				Is(CondOutsideMinRange),
				Is(CondAbilityReady),
				Is(CondAboveRetreat),
				UseAbility(slot),
			),
			protectBranch(),
			approachBranch(),
		)
	case tactics.RoleSupport:
		return NewSelector(
			NewSequence(
				When(CondHealthBelowHeal, supportHealMargin),
				Is(CondAbilityReady),
				UseAbility(slot),
			),
			Do(ActStayNearPlayer),
		)
	default:
		return NewSelector(
			NewSequence(
				Is(CondEnemyAlive),
				When(CondEnemyWithinPreferred, meleeWindowMargin),
				Is(CondAbilityReady),
				Is(CondAboveRetreat),
				UseAbility(slot),
			),
			protectBranch(),
			approachBranch(),
		)
	}
}

// protectBranch steps between a hurt player and the enemy.
func protectBranch() Node {
	return NewSequence(
		Is(CondProtectsPlayer),
		Is(CondPlayerAlive),
		When(CondPlayerHealthBelow, protectPlayerHealthAt),
		Is(CondEnemyAlive),
		Do(ActGuardPlayer),
	)
}

// approachBranch prefers the tactical slot, then closes on the enemy, and
// holds at the slot once both are satisfied.
func approachBranch() Node {
	return NewSequence(
		Is(CondEnemyAlive),
		Is(CondAboveRetreat),
		Is(CondCanChase),
		NewSelector(
			NewSequence(
				Is(CondHasSlot),
				When(CondSlotFartherThan, slotArrivalSlack),
				Do(ActMoveToSlot),
			),
			NewSequence(
				When(CondEnemyBeyondPreferred, approachEnemyMargin),
				Do(ActMoveToEnemy),
			),
			NewSequence(
				Is(CondHasSlot),
				Is(CondEnemyWithinEngage),
				Do(ActHoldPosition),
			),
		),
	)
}
