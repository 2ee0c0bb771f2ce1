package strategy

import (
	"fmt"
	"strings"
)

// Type identifies a strategy profile.
type Type int

const (
	Aggressive Type = iota
	Defensive
	Balanced
	Support
	Berserker
)

func (t Type) String() string {
	switch t {
	case Aggressive:
		return "aggressive"
	case Defensive:
		return "defensive"
	case Balanced:
		return "balanced"
	case Support:
		return "support"
	case Berserker:
		return "berserker"
	default:
		return fmt.Sprintf("custom(%d)", int(t))
	}
}

// ParseType resolves a preset name (case-insensitive).
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggressive":
		return Aggressive, nil
	case "defensive":
		return Defensive, nil
	case "balanced":
		return Balanced, nil
	case "support":
		return Support, nil
	case "berserker":
		return Berserker, nil
	}
	return 0, fmt.Errorf("strategy: unknown type %q", s)
}

// Profile bundles the weights and thresholds that parameterize a companion's
// behavior tree and its tactical placement. Distances are world units,
// thresholds are health fractions in [0, 1].
type Profile struct {
	Type Type   `json:"type"`
	Name string `json:"name"`

	AttackWeight  float64 `json:"attack_weight"`
	DefenseWeight float64 `json:"defense_weight"`
	SupportWeight float64 `json:"support_weight"`
	FollowWeight  float64 `json:"follow_weight"`

	PreferredRange float64 `json:"preferred_range"`
	FollowDistance float64 `json:"follow_distance"`
	EngageDistance float64 `json:"engage_distance"`

	HealThreshold    float64 `json:"heal_threshold"`
	RetreatThreshold float64 `json:"retreat_threshold"` // 0 = never retreats
	ChaseThreshold   float64 `json:"chase_threshold"`   // chase past engage distance at or below this enemy health

	MeleeIfRanged  bool `json:"melee_if_ranged"`
	WillChase      bool `json:"will_chase"`
	ProtectsPlayer bool `json:"protects_player"`
}

// HasRetreat reports whether the profile ever pulls back on low health.
func (p Profile) HasRetreat() bool { return p.RetreatThreshold > 0 }

var presets = [...]Profile{
	Aggressive: {
		Type: Aggressive, Name: "aggressive",
		AttackWeight: 1.5, DefenseWeight: 0.5, SupportWeight: 0.3, FollowWeight: 0.6,
		PreferredRange: 3.0, FollowDistance: 4.0, EngageDistance: 15.0,
		HealThreshold: 0.30, RetreatThreshold: 0, ChaseThreshold: 0.50,
		MeleeIfRanged: true, WillChase: true, ProtectsPlayer: false,
	},
	Defensive: {
		Type: Defensive, Name: "defensive",
		AttackWeight: 0.6, DefenseWeight: 1.5, SupportWeight: 0.8, FollowWeight: 1.2,
		PreferredRange: 6.0, FollowDistance: 2.5, EngageDistance: 8.0,
		HealThreshold: 0.50, RetreatThreshold: 0.30, ChaseThreshold: 0.20,
		MeleeIfRanged: false, WillChase: false, ProtectsPlayer: true,
	},
	Balanced: {
		Type: Balanced, Name: "balanced",
		AttackWeight: 1.0, DefenseWeight: 1.0, SupportWeight: 0.6, FollowWeight: 1.0,
		PreferredRange: 5.0, FollowDistance: 3.0, EngageDistance: 10.0,
		HealThreshold: 0.40, RetreatThreshold: 0.20, ChaseThreshold: 0.30,
		MeleeIfRanged: false, WillChase: true, ProtectsPlayer: true,
	},
	Support: {
		Type: Support, Name: "support",
		AttackWeight: 0.5, DefenseWeight: 0.8, SupportWeight: 1.5, FollowWeight: 1.3,
		PreferredRange: 8.0, FollowDistance: 2.0, EngageDistance: 12.0,
		HealThreshold: 0.60, RetreatThreshold: 0.25, ChaseThreshold: 0.10,
		MeleeIfRanged: false, WillChase: false, ProtectsPlayer: true,
	},
	Berserker: {
		Type: Berserker, Name: "berserker",
		AttackWeight: 2.0, DefenseWeight: 0.1, SupportWeight: 0.0, FollowWeight: 0.3,
		PreferredRange: 2.0, FollowDistance: 5.0, EngageDistance: 20.0,
		HealThreshold: 0.15, RetreatThreshold: 0, ChaseThreshold: 1.00,
		MeleeIfRanged: true, WillChase: true, ProtectsPlayer: false,
	},
}

// Get returns the preset for t. Unknown types fall back to Balanced.
func Get(t Type) Profile {
	if t < 0 || int(t) >= len(presets) {
		return presets[Balanced]
	}
	return presets[t]
}

// Presets returns the five built-in profiles in Type order.
func Presets() []Profile {
	out := make([]Profile, len(presets))
	copy(out, presets[:])
	return out
}
