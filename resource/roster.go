package resource

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
	"gopkg.in/yaml.v3"
)

// ErrNoAllies is returned when a roster file defines no companions.
var ErrNoAllies = errors.New("resource: roster has no allies")

// ---- File layout ----

type abilityDef struct {
	Slot     int     `yaml:"slot"`
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"`
	Range    float64 `yaml:"range"`
	MinRange float64 `yaml:"min_range"`
	Cooldown float64 `yaml:"cooldown"`
	Power    float64 `yaml:"power"`
}

// profileDef overrides fields of a base preset; omitted fields keep the
// base value.
type profileDef struct {
	Name string `yaml:"name"`
	Base string `yaml:"base"`

	AttackWeight  *float64 `yaml:"attack_weight"`
	DefenseWeight *float64 `yaml:"defense_weight"`
	SupportWeight *float64 `yaml:"support_weight"`
	FollowWeight  *float64 `yaml:"follow_weight"`

	PreferredRange *float64 `yaml:"preferred_range"`
	FollowDistance *float64 `yaml:"follow_distance"`
	EngageDistance *float64 `yaml:"engage_distance"`

	HealThreshold    *float64 `yaml:"heal_threshold"`
	RetreatThreshold *float64 `yaml:"retreat_threshold"`
	ChaseThreshold   *float64 `yaml:"chase_threshold"`

	MeleeIfRanged  *bool `yaml:"melee_if_ranged"`
	WillChase      *bool `yaml:"will_chase"`
	ProtectsPlayer *bool `yaml:"protects_player"`
}

type allyDef struct {
	Name      string    `yaml:"name"`
	Ability   string    `yaml:"ability"` // name from the catalog; wins over slot
	Slot      int       `yaml:"slot"`
	MaxHealth float64   `yaml:"max_health"`
	Strategy  string    `yaml:"strategy"`
	Position  geom.Vec3 `yaml:"position"`
	Facing    float64   `yaml:"facing"`
}

type playerDef struct {
	Start  *geom.Vec3 `yaml:"start"`
	Facing float64    `yaml:"facing"`
}

type enemyDef struct {
	Spawn *geom.Vec3 `yaml:"spawn"`
}

type rosterFile struct {
	Abilities []abilityDef `yaml:"abilities"`
	Profiles  []profileDef `yaml:"profiles"`
	Player    playerDef    `yaml:"player"`
	Enemy     enemyDef     `yaml:"enemy"`
	Allies    []allyDef    `yaml:"allies"`
}

// ---- Roster ----

// Roster is the parsed roster file: the ability catalog, the strategy
// registry (presets plus custom profiles) and the starting party.
type Roster struct {
	Catalog  ally.Catalog
	Profiles *strategy.Registry
	Allies   []*ally.Companion

	PlayerStart  *geom.Vec3
	PlayerFacing float64
	EnemySpawn   *geom.Vec3
}

// LoadRoster reads and parses a roster YAML file. Allies that name no
// strategy get defaultStrategy, or balanced when it is empty.
func LoadRoster(path, defaultStrategy string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	r, err := ParseRoster(data, defaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("resource: %s: %w", path, err)
	}
	return r, nil
}

// ParseRoster parses roster YAML. Abilities extend or replace the default
// catalog by slot; profiles are registered on top of the presets.
func ParseRoster(data []byte, defaultStrategy string) (*Roster, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	catalog, err := buildCatalog(f.Abilities)
	if err != nil {
		return nil, err
	}
	profiles := strategy.NewRegistry()
	for _, def := range f.Profiles {
		p, err := buildProfile(def, profiles)
		if err != nil {
			return nil, err
		}
		profiles.Register(p)
	}

	fallback := strategy.Balanced
	if defaultStrategy != "" {
		p, err := profiles.Lookup(defaultStrategy)
		if err != nil {
			return nil, fmt.Errorf("default strategy: %w", err)
		}
		fallback = p.Type
	}

	if len(f.Allies) == 0 {
		return nil, ErrNoAllies
	}
	allies := make([]*ally.Companion, 0, len(f.Allies))
	for i, def := range f.Allies {
		c, err := buildAlly(def, catalog, profiles, fallback)
		if err != nil {
			return nil, fmt.Errorf("ally %d: %w", i, err)
		}
		allies = append(allies, c)
	}

	return &Roster{
		Catalog:      catalog,
		Profiles:     profiles,
		Allies:       allies,
		PlayerStart:  f.Player.Start,
		PlayerFacing: f.Player.Facing,
		EnemySpawn:   f.Enemy.Spawn,
	}, nil
}

// Apply copies the roster's arena setup into cfg.
func (r *Roster) Apply(cfg *arena.Config) {
	if r.PlayerStart != nil {
		cfg.PlayerStart = *r.PlayerStart
	}
	cfg.PlayerFacing = r.PlayerFacing
	if r.EnemySpawn != nil {
		cfg.EnemySpawn = *r.EnemySpawn
	}
}

func buildCatalog(defs []abilityDef) (ally.Catalog, error) {
	catalog := ally.DefaultCatalog()
	for _, def := range defs {
		stock, ok := catalog[def.Slot]
		if !ok {
			return nil, fmt.Errorf("ability %q: unknown slot %d", def.Name, def.Slot)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("ability in slot %d has no name", def.Slot)
		}
		// The slot decides the combat role, so its kind is fixed.
		if def.Kind != "" {
			kind, err := ally.ParseAbilityKind(def.Kind)
			if err != nil {
				return nil, fmt.Errorf("ability %q: %w", def.Name, err)
			}
			if kind != stock.Kind {
				return nil, fmt.Errorf("ability %q: slot %d holds %s abilities", def.Name, def.Slot, stock.Kind)
			}
		}
		if def.Cooldown < 0 || def.Range < 0 || (stock.Kind != ally.AbilityHeal && def.MinRange > def.Range) {
			return nil, fmt.Errorf("ability %q: invalid range or cooldown", def.Name)
		}
		catalog[def.Slot] = ally.Ability{
			Name:     strings.ToLower(def.Name),
			Kind:     stock.Kind,
			Range:    def.Range,
			MinRange: def.MinRange,
			Cooldown: def.Cooldown,
			Power:    def.Power,
		}
	}
	return catalog, nil
}

func buildProfile(def profileDef, reg *strategy.Registry) (strategy.Profile, error) {
	if strings.TrimSpace(def.Name) == "" {
		return strategy.Profile{}, errors.New("profile has no name")
	}
	base := "balanced"
	if def.Base != "" {
		base = def.Base
	}
	p, err := reg.Lookup(base)
	if err != nil {
		return strategy.Profile{}, fmt.Errorf("profile %q: %w", def.Name, err)
	}
	p.Name = def.Name

	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setB := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&p.AttackWeight, def.AttackWeight)
	setF(&p.DefenseWeight, def.DefenseWeight)
	setF(&p.SupportWeight, def.SupportWeight)
	setF(&p.FollowWeight, def.FollowWeight)
	setF(&p.PreferredRange, def.PreferredRange)
	setF(&p.FollowDistance, def.FollowDistance)
	setF(&p.EngageDistance, def.EngageDistance)
	setF(&p.HealThreshold, def.HealThreshold)
	setF(&p.RetreatThreshold, def.RetreatThreshold)
	setF(&p.ChaseThreshold, def.ChaseThreshold)
	setB(&p.MeleeIfRanged, def.MeleeIfRanged)
	setB(&p.WillChase, def.WillChase)
	setB(&p.ProtectsPlayer, def.ProtectsPlayer)

	for _, f := range []float64{p.HealThreshold, p.RetreatThreshold, p.ChaseThreshold} {
		if f < 0 || f > 1 {
			return strategy.Profile{}, fmt.Errorf("profile %q: thresholds must be within [0, 1]", def.Name)
		}
	}
	return p, nil
}

func buildAlly(def allyDef, catalog ally.Catalog, profiles *strategy.Registry, fallback strategy.Type) (*ally.Companion, error) {
	if def.Name == "" {
		return nil, errors.New("missing name")
	}
	slot := def.Slot
	if def.Ability != "" {
		s, ok := slotByName(catalog, def.Ability)
		if !ok {
			return nil, fmt.Errorf("%s: unknown ability %q", def.Name, def.Ability)
		}
		slot = s
	} else if _, ok := catalog[slot]; !ok {
		return nil, fmt.Errorf("%s: unknown ability slot %d", def.Name, slot)
	}

	st := fallback
	if def.Strategy != "" {
		p, err := profiles.Lookup(def.Strategy)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}
		st = p.Type
	}

	maxHealth := def.MaxHealth
	if maxHealth <= 0 {
		maxHealth = 100
	}
	c := ally.New(def.Name, slot, maxHealth, st, catalog)
	c.Position = def.Position
	c.Facing = geom.NormalizeDeg(def.Facing)
	return c, nil
}

func slotByName(catalog ally.Catalog, name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for slot, a := range catalog {
		if a.Name == name {
			return slot, true
		}
	}
	return 0, false
}
