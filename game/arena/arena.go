package arena

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/director"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/kasuganosora/allyai/game/tactics"
	"github.com/kasuganosora/allyai/game/world"
	"github.com/kasuganosora/allyai/plugin/hook"
	"go.uber.org/zap"
)

var (
	ErrUnknownAlly     = errors.New("arena: unknown ally")
	ErrUnknownAbility  = errors.New("arena: unknown ability slot")
	ErrUnknownStrategy = errors.New("arena: unknown strategy")
	ErrCommandRejected = errors.New("arena: command rejected")
)

// CommandEvent is the payload of hook.BeforeCommand. A hook may return a
// modified CommandEvent to rewrite the order.
type CommandEvent struct {
	Ally    ally.ID      `json:"ally"`
	Command ally.Command `json:"command"`
}

// KillEvent is the payload of hook.AfterEnemyDefeated.
type KillEvent struct {
	Killer ally.ID `json:"killer"`
	Kills  int     `json:"kills"`
	Time   float64 `json:"time"`
}

// DownEvent is the payload of hook.AfterAllyDown and hook.AfterPlayerDown.
// Ally is zero for the player.
type DownEvent struct {
	Ally ally.ID `json:"ally,omitempty"`
	Name string  `json:"name,omitempty"`
	Time float64 `json:"time"`
}

type firedEvent struct {
	name string
	data any
}

// Config holds the arena simulation parameters.
type Config struct {
	MoveSpeed       float64 // companion speed, units/s
	PlayerMaxHealth float64
	PlayerRegen     float64 // health/s
	PlayerStart     geom.Vec3
	PlayerFacing    float64

	EnemyMaxHealth float64
	EnemySpeed     float64
	EnemyDamage    float64
	EnemyReach     float64
	EnemyCooldown  float64 // seconds between strikes
	EnemySpawn     geom.Vec3
	EnemyRespawn   float64 // seconds
}

// DefaultConfig returns the stock arena parameters.
func DefaultConfig() Config {
	return Config{
		MoveSpeed:       5,
		PlayerMaxHealth: 200,
		PlayerRegen:     2,
		EnemyMaxHealth:  200,
		EnemySpeed:      2.5,
		EnemyDamage:     8,
		EnemyReach:      2,
		EnemyCooldown:   1.5,
		EnemySpawn:      geom.Vec3{X: 12},
		EnemyRespawn:    5,
	}
}

type effect struct {
	source ally.ID
	kind   ally.AbilityKind
	power  float64
}

// Arena is the headless reference world hosting the AI core. Step and every
// mutator share one mutex, so invalidation never interleaves with a pass.
type Arena struct {
	mu sync.Mutex

	cfg      Config
	director *director.Director
	catalog  ally.Catalog
	terrain  world.Terrain
	hooks    *hook.Center
	logger   *zap.Logger

	player  world.Unit
	enemy   world.Unit
	allies  []*ally.Companion
	spawns  map[ally.ID]geom.Vec3
	pending []effect

	time          float64
	enemyCooldown float64
	respawnAt     float64
	kills         int
	lastDecisions map[ally.ID]director.Decision
	fired         []firedEvent
}

// New builds an arena around roster. The arena is the director's ability
// resolver; opts.Resolver and opts.Catalog are overwritten.
func New(cfg Config, roster []*ally.Companion, opts director.Options, logger *zap.Logger) *Arena {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = ally.DefaultCatalog()
	}
	a := &Arena{
		cfg:           cfg,
		catalog:       catalog,
		terrain:       opts.Terrain,
		logger:        logger,
		spawns:        make(map[ally.ID]geom.Vec3),
		lastDecisions: make(map[ally.ID]director.Decision),
	}
	opts.Resolver = a
	opts.Catalog = catalog
	if opts.Logger == nil {
		opts.Logger = logger
	}
	a.director = director.New(opts)
	for _, c := range roster {
		a.spawns[c.ID] = c.Position
		a.allies = append(a.allies, c)
	}
	a.resetUnits()
	return a
}

func (a *Arena) resetUnits() {
	a.player = world.Unit{
		Position:  a.ground(a.cfg.PlayerStart),
		Facing:    a.cfg.PlayerFacing,
		Health:    a.cfg.PlayerMaxHealth,
		MaxHealth: a.cfg.PlayerMaxHealth,
		Alive:     true,
	}
	a.spawnEnemy()
	for _, c := range a.allies {
		c.Position = a.ground(a.spawns[c.ID])
		c.Health = c.MaxHealth
		c.AbilityCooldown = 0
		c.Command = ally.CommandNone
		c.Intent = ally.Intent{}
		c.LastAction = ""
	}
	a.pending = a.pending[:0]
	a.enemyCooldown = 0
}

func (a *Arena) spawnEnemy() {
	a.enemy = world.Unit{
		Position:  a.ground(a.cfg.EnemySpawn),
		Facing:    geom.Heading(a.cfg.EnemySpawn, a.cfg.PlayerStart),
		Health:    a.cfg.EnemyMaxHealth,
		MaxHealth: a.cfg.EnemyMaxHealth,
		Alive:     true,
	}
}

func (a *Arena) ground(p geom.Vec3) geom.Vec3 {
	if a.terrain != nil {
		p.Y = a.terrain.Height(p.X, p.Z)
	}
	return p
}

// SetHooks installs the hook center. Call it before the first Step.
func (a *Arena) SetHooks(h *hook.Center) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = h
}

// Step advances the simulation by dt seconds and runs one decision pass.
// Hooks for what happened during the step run after the arena is unlocked.
func (a *Arena) Step(dt float64) []director.Decision {
	a.mu.Lock()
	decisions := a.step(dt)
	fired, hooks := a.fired, a.hooks
	a.fired = nil
	a.mu.Unlock()

	for _, ev := range fired {
		_, _ = hooks.Trigger(context.Background(), ev.name, ev.data)
	}
	return decisions
}

func (a *Arena) fire(name string, data any) {
	if a.hooks.Has(name) {
		a.fired = append(a.fired, firedEvent{name: name, data: data})
	}
}

func (a *Arena) step(dt float64) []director.Decision {
	a.time += dt
	for _, c := range a.allies {
		c.TickCooldown(dt)
	}
	if a.enemyCooldown > 0 {
		a.enemyCooldown = math.Max(0, a.enemyCooldown-dt)
	}
	if !a.enemy.Alive && a.time >= a.respawnAt {
		a.spawnEnemy()
		a.logger.Info("enemy respawned", zap.Float64("time", a.time))
	}
	if a.player.Alive && a.player.Health < a.player.MaxHealth {
		a.player.Health = math.Min(a.player.MaxHealth, a.player.Health+a.cfg.PlayerRegen*dt)
	}

	snap := &world.Snapshot{
		Player:  a.player,
		Enemy:   a.enemy,
		Allies:  append([]*ally.Companion(nil), a.allies...),
		Terrain: a.terrain,
		Time:    a.time,
	}
	decisions := a.director.Tick(snap)
	for _, d := range decisions {
		a.lastDecisions[d.CompanionID] = d
	}

	a.applyEffects()
	a.moveAllies(dt)
	a.stepEnemy(dt)
	return decisions
}

func (a *Arena) applyEffects() {
	for _, e := range a.pending {
		switch e.kind {
		case ally.AbilityHeal:
			if c := a.find(e.source); c != nil && c.Alive() {
				c.Heal(e.power)
			}
		default:
			if !a.enemy.Alive {
				continue
			}
			a.enemy.Health = math.Max(0, a.enemy.Health-e.power)
			if a.enemy.Health == 0 {
				a.enemy.Alive = false
				a.respawnAt = a.time + a.cfg.EnemyRespawn
				a.kills++
				a.logger.Info("enemy defeated",
					zap.Int64("ally_id", int64(e.source)),
					zap.Int("kills", a.kills),
					zap.Float64("time", a.time))
				a.fire(hook.AfterEnemyDefeated, KillEvent{Killer: e.source, Kills: a.kills, Time: a.time})
			}
		}
	}
	a.pending = a.pending[:0]
}

func (a *Arena) moveAllies(dt float64) {
	step := a.cfg.MoveSpeed * dt
	for _, c := range a.allies {
		if !c.Alive() {
			continue
		}
		switch c.Intent.Mode {
		case ally.MoveTo, ally.MoveFollow:
			next := geom.MoveToward(c.Position, c.Intent.Destination, step, c.Intent.StopDistance)
			if next != c.Position {
				c.Facing = geom.Heading(c.Position, next)
			}
			c.Position = a.ground(next)
		}
	}
}

// stepEnemy walks the enemy toward the nearest living target and strikes
// on its own cooldown.
func (a *Arena) stepEnemy(dt float64) {
	if !a.enemy.Alive {
		return
	}
	var (
		target    *geom.Vec3
		victim    *ally.Companion
		hitPlayer bool
		best      = math.Inf(1)
	)
	if a.player.Alive {
		best = geom.HorizontalDist(a.enemy.Position, a.player.Position)
		target, hitPlayer = &a.player.Position, true
	}
	for _, c := range a.allies {
		if !c.Alive() {
			continue
		}
		if d := geom.HorizontalDist(a.enemy.Position, c.Position); d < best {
			best, target, victim, hitPlayer = d, &c.Position, c, false
		}
	}
	if target == nil {
		return
	}
	a.enemy.Facing = geom.Heading(a.enemy.Position, *target)
	if best > a.cfg.EnemyReach {
		next := geom.MoveToward(a.enemy.Position, *target, a.cfg.EnemySpeed*dt, a.cfg.EnemyReach*0.8)
		a.enemy.Position = a.ground(next)
		return
	}
	if a.enemyCooldown > 0 {
		return
	}
	a.enemyCooldown = a.cfg.EnemyCooldown
	switch {
	case hitPlayer:
		a.player.Health = math.Max(0, a.player.Health-a.cfg.EnemyDamage)
		if a.player.Health == 0 {
			a.player.Alive = false
			a.logger.Warn("player down", zap.Float64("time", a.time))
			a.fire(hook.AfterPlayerDown, DownEvent{Time: a.time})
		}
	case victim != nil:
		if victim.TakeDamage(a.cfg.EnemyDamage) {
			a.logger.Info("ally down", zap.Int64("ally_id", int64(victim.ID)), zap.String("name", victim.Name))
			a.fire(hook.AfterAllyDown, DownEvent{Ally: victim.ID, Name: victim.Name, Time: a.time})
		}
	}
}

func (a *Arena) find(id ally.ID) *ally.Companion {
	for _, c := range a.allies {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (a *Arena) mustFind(id ally.ID) (*ally.Companion, error) {
	if c := a.find(id); c != nil {
		return c, nil
	}
	return nil, ErrUnknownAlly
}

// SetFormation switches the roster formation.
func (a *Arena) SetFormation(f tactics.Formation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.director.SetFormation(f)
}

// Command toggles an order on one ally and returns the active order.
// hook.BeforeCommand runs first and may rewrite or veto the order.
func (a *Arena) Command(id ally.ID, cmd ally.Command) (ally.Command, error) {
	a.mu.Lock()
	hooks := a.hooks
	a.mu.Unlock()
	if hooks.Has(hook.BeforeCommand) {
		out, err := hooks.Trigger(context.Background(), hook.BeforeCommand, CommandEvent{Ally: id, Command: cmd})
		if errors.Is(err, hook.ErrInterrupt) {
			return ally.CommandNone, ErrCommandRejected
		}
		if ev, ok := out.(CommandEvent); ok {
			cmd = ev.Command
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.mustFind(id)
	if err != nil {
		return ally.CommandNone, err
	}
	return a.director.IssueCommand(c, cmd), nil
}

// SetStrategy switches one ally's strategy profile.
func (a *Arena) SetStrategy(id ally.ID, t strategy.Type) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.mustFind(id)
	if err != nil {
		return err
	}
	a.director.SetStrategy(c, t)
	return nil
}

// SetLoadout swaps one ally's ability.
func (a *Arena) SetLoadout(id ally.ID, slot int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.catalog[slot]; !ok {
		return ErrUnknownAbility
	}
	c, err := a.mustFind(id)
	if err != nil {
		return err
	}
	a.director.SetLoadout(c, slot)
	return nil
}

// AddAlly joins a companion to the roster at its current position.
func (a *Arena) AddAlly(c *ally.Companion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spawns[c.ID] = c.Position
	c.Position = a.ground(c.Position)
	a.allies = append(a.allies, c)
}

// RemoveAlly drops a companion from the roster.
func (a *Arena) RemoveAlly(id ally.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, c := range a.allies {
		if c.ID == id {
			a.allies = append(a.allies[:i], a.allies[i+1:]...)
			delete(a.spawns, id)
			delete(a.lastDecisions, id)
			return nil
		}
	}
	return ErrUnknownAlly
}

// Reset restores every unit and starts a new director session.
func (a *Arena) Reset() string {
	a.mu.Lock()
	a.time = 0
	a.kills = 0
	a.respawnAt = 0
	a.lastDecisions = make(map[ally.ID]director.Decision)
	a.fired = nil
	a.resetUnits()
	a.director.Reset()
	session, hooks := a.director.SessionID(), a.hooks
	a.mu.Unlock()

	_, _ = hooks.Trigger(context.Background(), hook.AfterReset, session)
	return session
}

// MovePlayer places the player. The formation follows on the next recompute.
func (a *Arena) MovePlayer(pos geom.Vec3, facing float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.player.Position = a.ground(pos)
	a.player.Facing = geom.NormalizeDeg(facing)
}

// LastDecision returns the latest decision made for id.
func (a *Arena) LastDecision(id ally.ID) (director.Decision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.lastDecisions[id]
	return d, ok
}

// Kills returns how many times the enemy has been defeated.
func (a *Arena) Kills() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kills
}

// SessionID returns the director session id.
func (a *Arena) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.director.SessionID()
}

// AllyIDs lists roster ids in ascending order.
func (a *Arena) AllyIDs() []ally.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ally.ID, 0, len(a.allies))
	for _, c := range a.allies {
		out = append(out, c.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strategy resolves a profile name, custom profiles included.
func (a *Arena) Strategy(name string) (strategy.Type, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.director.Profiles().Lookup(name)
	if err != nil {
		return 0, ErrUnknownStrategy
	}
	return p.Type, nil
}

// Strategies lists every registered profile in type order.
func (a *Arena) Strategies() []strategy.Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	reg := a.director.Profiles()
	types := reg.Types()
	out := make([]strategy.Profile, 0, len(types))
	for _, t := range types {
		out = append(out, reg.Get(t))
	}
	return out
}

// Catalog returns a copy of the ability catalog.
func (a *Arena) Catalog() ally.Catalog {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(ally.Catalog, len(a.catalog))
	for slot, ab := range a.catalog {
		out[slot] = ab
	}
	return out
}
