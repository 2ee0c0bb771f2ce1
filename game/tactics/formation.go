package tactics

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
)

// Formation is the roster-wide layout pattern.
type Formation int

const (
	Scattered Formation = iota
	Wedge
	Line
	Surround
	Protect
)

func (f Formation) String() string {
	switch f {
	case Scattered:
		return "scattered"
	case Wedge:
		return "wedge"
	case Line:
		return "line"
	case Surround:
		return "surround"
	case Protect:
		return "protect"
	default:
		return fmt.Sprintf("formation(%d)", int(f))
	}
}

// ParseFormation resolves a formation name (case-insensitive).
func ParseFormation(s string) (Formation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scattered":
		return Scattered, nil
	case "wedge":
		return Wedge, nil
	case "line":
		return Line, nil
	case "surround":
		return Surround, nil
	case "protect":
		return Protect, nil
	}
	return 0, fmt.Errorf("tactics: unknown formation %q", s)
}

// Role is a companion's combat role, derived from its loadout.
type Role int

const (
	RoleMelee Role = iota
	RoleRanged
	RoleSupport
)

func (r Role) String() string {
	switch r {
	case RoleMelee:
		return "melee"
	case RoleRanged:
		return "ranged"
	case RoleSupport:
		return "support"
	default:
		return "unknown"
	}
}

// RoleOf maps an ability slot to a role. Unknown slots are melee.
func RoleOf(slot int) Role {
	switch slot {
	case ally.SlotFireball:
		return RoleRanged
	case ally.SlotHeal:
		return RoleSupport
	default:
		return RoleMelee
	}
}

// baseWeight is the role component of a position's priority.
func (r Role) baseWeight() float64 {
	switch r {
	case RoleRanged:
		return 0.8
	case RoleSupport:
		return 0.6
	default:
		return 1.0
	}
}

// Position is the tactical slot computed for one companion.
type Position struct {
	Target   geom.Vec3 `json:"target"`
	Facing   float64   `json:"facing"`
	Role     Role      `json:"role"`
	Priority float64   `json:"priority"`
}

// Anchor is the player's pose the formation is laid out around.
type Anchor struct {
	Position geom.Vec3
	Facing   float64
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	for role := RoleMelee; role <= RoleSupport; role++ {
		if role.String() == string(b) {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("tactics: unknown role %q", b)
}
