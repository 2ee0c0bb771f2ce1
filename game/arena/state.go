package arena

import (
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/tactics"
	"github.com/kasuganosora/allyai/game/world"
)

// AllyState is the API read-out of one companion.
type AllyState struct {
	ID         ally.ID           `json:"id"`
	Name       string            `json:"name"`
	Position   geom.Vec3         `json:"position"`
	Facing     float64           `json:"facing"`
	Health     float64           `json:"health"`
	MaxHealth  float64           `json:"max_health"`
	Alive      bool              `json:"alive"`
	Slot       int               `json:"slot"`
	Ability    string            `json:"ability"`
	Cooldown   float64           `json:"cooldown"`
	Strategy   string            `json:"strategy"`
	Command    string            `json:"command"`
	Intent     ally.Intent       `json:"intent"`
	LastAction string            `json:"last_action"`
	Tactical   *tactics.Position `json:"tactical,omitempty"`
}

// State is the API read-out of the whole arena.
type State struct {
	Session   string      `json:"session"`
	Time      float64     `json:"time"`
	Formation string      `json:"formation"`
	Kills     int         `json:"kills"`
	Player    world.Unit  `json:"player"`
	Enemy     world.Unit  `json:"enemy"`
	Allies    []AllyState `json:"allies"`
}

// State returns a consistent copy of the arena.
func (a *Arena) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := a.director.Positions()
	profiles := a.director.Profiles()
	st := State{
		Session:   a.director.SessionID(),
		Time:      a.time,
		Formation: a.director.Formation().String(),
		Kills:     a.kills,
		Player:    a.player,
		Enemy:     a.enemy,
		Allies:    make([]AllyState, 0, len(a.allies)),
	}
	for _, c := range a.allies {
		as := AllyState{
			ID:         c.ID,
			Name:       c.Name,
			Position:   c.Position,
			Facing:     c.Facing,
			Health:     c.Health,
			MaxHealth:  c.MaxHealth,
			Alive:      c.Alive(),
			Slot:       c.AbilitySlot,
			Ability:    a.catalog.Ability(c.AbilitySlot).Name,
			Cooldown:   c.AbilityCooldown,
			Strategy:   profiles.Get(c.Strategy).Name,
			Command:    c.Command.String(),
			Intent:     c.Intent,
			LastAction: c.LastAction,
		}
		if p, ok := positions[c.ID]; ok {
			as.Tactical = &p
		}
		st.Allies = append(st.Allies, as)
	}
	return st
}
