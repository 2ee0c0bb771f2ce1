package ally

import (
	"sync/atomic"

	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
)

// ID is the stable handle assigned to a companion at creation. Per-companion
// caches key on it rather than on the pointer.
type ID int64

// idCounter generates unique companion IDs.
var idCounter int64

func nextID() ID {
	return ID(atomic.AddInt64(&idCounter, 1))
}

// Intent is the movement request an action leaves for the movement layer.
type Intent struct {
	Mode         MoveMode  `json:"mode"`
	Destination  geom.Vec3 `json:"destination"`
	StopDistance float64   `json:"stop_distance"`
}

// Companion is the runtime state of one allied unit. The world owns it; the
// AI core reads it and writes only Facing, Intent, cooldown and LastAction.
type Companion struct {
	ID       ID
	Name     string
	Position geom.Vec3
	Facing   float64

	Health    float64
	MaxHealth float64

	AbilitySlot        int
	AbilityCooldown    float64 // seconds remaining
	AbilityCooldownMax float64

	Strategy strategy.Type
	Command  Command

	Intent        Intent
	LastAction    string
	LastAbilityAt float64
}

// New creates a companion with full health and the ability in slot.
func New(name string, slot int, maxHealth float64, st strategy.Type, catalog Catalog) *Companion {
	c := &Companion{
		ID:        nextID(),
		Name:      name,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		Strategy:  st,
	}
	c.SetLoadout(slot, catalog)
	return c
}

// Alive reports whether the companion has health left.
func (c *Companion) Alive() bool { return c.Health > 0 }

// HealthFraction returns Health/MaxHealth in [0, 1].
func (c *Companion) HealthFraction() float64 {
	if c.MaxHealth <= 0 {
		return 0
	}
	f := c.Health / c.MaxHealth
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// SetLoadout swaps the companion's ability. Callers must invalidate the
// companion's cached behavior tree afterwards.
func (c *Companion) SetLoadout(slot int, catalog Catalog) {
	c.AbilitySlot = slot
	c.AbilityCooldownMax = catalog.Ability(slot).Cooldown
	c.AbilityCooldown = 0
}

// TickCooldown advances the ability cooldown by dt seconds.
func (c *Companion) TickCooldown(dt float64) {
	if c.AbilityCooldown <= 0 {
		return
	}
	c.AbilityCooldown -= dt
	if c.AbilityCooldown < 0 {
		c.AbilityCooldown = 0
	}
}

// StampCooldown puts the ability on its full cooldown.
func (c *Companion) StampCooldown() {
	c.AbilityCooldown = c.AbilityCooldownMax
}

// ToggleCommand issues cmd, or clears the order when cmd is already active.
func (c *Companion) ToggleCommand(cmd Command) Command {
	if c.Command == cmd {
		c.Command = CommandNone
	} else {
		c.Command = cmd
	}
	return c.Command
}

// Heal restores health, capped at MaxHealth.
func (c *Companion) Heal(amount float64) {
	c.Health += amount
	if c.Health > c.MaxHealth {
		c.Health = c.MaxHealth
	}
}

// TakeDamage applies damage. Returns true if health reached 0.
func (c *Companion) TakeDamage(dmg float64) bool {
	c.Health -= dmg
	if c.Health < 0 {
		c.Health = 0
	}
	return c.Health == 0
}
