package ally

import (
	"fmt"
	"strings"
)

// AbilityKind classifies what an ability does when it fires.
type AbilityKind int

const (
	AbilityMelee AbilityKind = iota
	AbilityRanged
	AbilityHeal
)

func (k AbilityKind) String() string {
	switch k {
	case AbilityMelee:
		return "melee"
	case AbilityRanged:
		return "ranged"
	case AbilityHeal:
		return "heal"
	default:
		return "unknown"
	}
}

func (k AbilityKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AbilityKind) UnmarshalText(b []byte) error {
	for kind := AbilityMelee; kind <= AbilityHeal; kind++ {
		if kind.String() == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("ally: unknown ability kind %q", b)
}

// ParseAbilityKind resolves an ability kind name (case-insensitive).
func ParseAbilityKind(s string) (AbilityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "melee":
		return AbilityMelee, nil
	case "ranged":
		return AbilityRanged, nil
	case "heal":
		return AbilityHeal, nil
	}
	return AbilityMelee, fmt.Errorf("ally: unknown ability kind %q", s)
}

// Loadout slots. A companion carries exactly one ability; its slot also
// decides the companion's combat role.
const (
	SlotSword    = 0
	SlotFireball = 1
	SlotHeal     = 2
)

// Ability is the static definition of a companion ability.
type Ability struct {
	Name     string      `json:"name"`
	Kind     AbilityKind `json:"kind"`
	Range    float64     `json:"range"`
	MinRange float64     `json:"min_range"`
	Cooldown float64     `json:"cooldown"` // seconds
	Power    float64     `json:"power"`
}

// Catalog maps loadout slots to ability definitions.
type Catalog map[int]Ability

// DefaultCatalog returns the stock sword / fireball / heal loadouts.
func DefaultCatalog() Catalog {
	return Catalog{
		SlotSword:    {Name: "sword", Kind: AbilityMelee, Range: 7, Cooldown: 1.5, Power: 12},
		SlotFireball: {Name: "fireball", Kind: AbilityRanged, Range: 14, MinRange: 3, Cooldown: 3, Power: 18},
		SlotHeal:     {Name: "heal", Kind: AbilityHeal, Cooldown: 8, Power: 25},
	}
}

// Ability returns the definition for slot; unknown slots resolve to the sword.
func (c Catalog) Ability(slot int) Ability {
	if a, ok := c[slot]; ok {
		return a
	}
	if a, ok := c[SlotSword]; ok {
		return a
	}
	return DefaultCatalog()[SlotSword]
}
