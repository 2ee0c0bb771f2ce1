package director

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/allyai/game/ai"
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/kasuganosora/allyai/game/tactics"
	"github.com/kasuganosora/allyai/game/world"
	"go.uber.org/zap"
)

// Decision is the outcome of one companion's evaluation in a pass.
type Decision struct {
	SessionID   string      `json:"session_id"`
	CompanionID ally.ID     `json:"companion_id"`
	Name        string      `json:"name"`
	Tick        int64       `json:"tick"`
	Time        float64     `json:"time"`
	Outcome     string      `json:"outcome"`
	Action      string      `json:"action"`
	Role        string      `json:"role"`
	Strategy    string      `json:"strategy"`
	Command     string      `json:"command"`
	Formation   string      `json:"formation"`
	Health      float64     `json:"health"`
	Intent      ally.Intent `json:"intent"`
}

// Recorder receives every decision a pass produces.
type Recorder interface {
	Record(d Decision)
}

// Options configures a Director.
type Options struct {
	Profiles    *strategy.Registry // nil uses the presets
	Resolver    ai.AbilityResolver
	Catalog     ally.Catalog // nil uses ally.DefaultCatalog
	Terrain     world.Terrain
	Formation   tactics.Formation
	PositionTTL time.Duration
	Recorder    Recorder
	Logger      *zap.Logger
}

// Director owns the per-session AI state: the tree cache, the position
// cache, the active formation and the session id. It holds no locks; the
// caller serializes Tick and the mutators.
type Director struct {
	profiles  *strategy.Registry
	resolver  ai.AbilityResolver
	catalog   ally.Catalog
	solver    *tactics.Solver
	trees     *ai.TreeCache
	positions *tactics.Cache
	formation tactics.Formation
	recorder  Recorder
	logger    *zap.Logger

	session string
	tick    int64
	roster  map[ally.ID]struct{}
}

// New creates a Director with a fresh session.
func New(opts Options) *Director {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	profiles := opts.Profiles
	if profiles == nil {
		profiles = strategy.NewRegistry()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = ally.DefaultCatalog()
	}
	return &Director{
		profiles:  profiles,
		resolver:  opts.Resolver,
		catalog:   catalog,
		solver:    &tactics.Solver{Profiles: profiles, Terrain: opts.Terrain},
		trees:     ai.NewTreeCache(logger),
		positions: tactics.NewCache(opts.PositionTTL),
		formation: opts.Formation,
		recorder:  opts.Recorder,
		logger:    logger,
		session:   uuid.New().String(),
	}
}

// Tick runs one evaluation pass over the living companions in snap.
func (d *Director) Tick(snap *world.Snapshot) []Decision {
	d.tick++
	living := snap.Living()
	sort.Slice(living, func(i, j int) bool { return living[i].ID < living[j].ID })
	d.syncRoster(living)

	player := PlayerAnchor(snap.Player)
	positions := d.positions.Get(snap.Time, func() map[ally.ID]tactics.Position {
		return d.solver.ComputePositions(living, d.formation, player, snap.Enemy.Position, snap.Enemy.Alive)
	})

	decisions := make([]Decision, 0, len(living))
	for _, c := range living {
		var slot *tactics.Position
		if p, ok := positions[c.ID]; ok {
			slot = &p
		}
		profile := d.profiles.Get(c.Strategy)
		ctx := ai.NewDecisionContext(c, snap, slot, profile, d.resolver)
		tree := d.trees.GetOrBuildTree(c)

		c.LastAction = ""
		status := ai.Evaluate(tree, ctx)

		dec := Decision{
			SessionID:   d.session,
			CompanionID: c.ID,
			Name:        c.Name,
			Tick:        d.tick,
			Time:        snap.Time,
			Outcome:     status.String(),
			Action:      c.LastAction,
			Role:        ctx.Role.String(),
			Strategy:    profile.Name,
			Command:     c.Command.String(),
			Formation:   d.formation.String(),
			Health:      c.HealthFraction(),
			Intent:      c.Intent,
		}
		decisions = append(decisions, dec)
		if d.recorder != nil {
			d.recorder.Record(dec)
		}
	}
	return decisions
}

// syncRoster invalidates positions and drops departed trees when the set
// of living companions changed since the last pass.
func (d *Director) syncRoster(living []*ally.Companion) {
	current := make(map[ally.ID]struct{}, len(living))
	for _, c := range living {
		current[c.ID] = struct{}{}
	}
	changed := len(current) != len(d.roster)
	for id := range d.roster {
		if _, ok := current[id]; !ok {
			d.trees.InvalidateTree(id)
			changed = true
		}
	}
	d.roster = current
	if changed {
		d.positions.Invalidate()
		d.logger.Debug("roster changed", zap.Int("living", len(current)), zap.Int64("tick", d.tick))
	}
}

// SetFormation switches the roster formation and invalidates positions.
func (d *Director) SetFormation(f tactics.Formation) {
	if f == d.formation {
		return
	}
	d.logger.Info("formation changed",
		zap.String("from", d.formation.String()),
		zap.String("to", f.String()))
	d.formation = f
	d.positions.Invalidate()
}

// Formation returns the active formation.
func (d *Director) Formation() tactics.Formation { return d.formation }

// SetLoadout swaps a companion's ability and drops its tree so the next
// pass rebuilds it for the new role.
func (d *Director) SetLoadout(c *ally.Companion, slot int) {
	c.SetLoadout(slot, d.catalog)
	d.trees.InvalidateTree(c.ID)
	d.positions.Invalidate()
	d.logger.Info("loadout changed",
		zap.Int64("ally_id", int64(c.ID)),
		zap.String("ability", d.catalog.Ability(slot).Name))
}

// SetStrategy switches a companion's strategy profile. Conditions read the
// profile at evaluation time, so only positions need recomputing.
func (d *Director) SetStrategy(c *ally.Companion, t strategy.Type) {
	c.Strategy = t
	d.positions.Invalidate()
}

// IssueCommand toggles a player order on c and returns the active order.
func (d *Director) IssueCommand(c *ally.Companion, cmd ally.Command) ally.Command {
	active := c.ToggleCommand(cmd)
	d.logger.Debug("command issued",
		zap.Int64("ally_id", int64(c.ID)),
		zap.String("command", cmd.String()),
		zap.String("active", active.String()))
	return active
}

// Positions returns the current position map. Callers must not mutate it.
func (d *Director) Positions() map[ally.ID]tactics.Position {
	return d.positions.Snapshot()
}

// Position returns the tactical slot of one companion.
func (d *Director) Position(id ally.ID) (tactics.Position, bool) {
	p, ok := d.positions.Snapshot()[id]
	return p, ok
}

// Reset drops every cached tree and position and starts a new session.
func (d *Director) Reset() {
	d.trees.ClearAll()
	d.positions.Invalidate()
	d.roster = nil
	d.tick = 0
	d.session = uuid.New().String()
	d.logger.Info("director reset", zap.String("session", d.session))
}

// SessionID identifies the current session.
func (d *Director) SessionID() string { return d.session }

// TreeCount returns the number of cached behavior trees.
func (d *Director) TreeCount() int { return d.trees.Len() }

// Profiles returns the strategy registry in use.
func (d *Director) Profiles() *strategy.Registry { return d.profiles }

// Catalog returns the ability catalog in use.
func (d *Director) Catalog() ally.Catalog { return d.catalog }

// PlayerAnchor builds the solver anchor for a player unit.
func PlayerAnchor(u world.Unit) tactics.Anchor {
	return tactics.Anchor{Position: u.Position, Facing: geom.NormalizeDeg(u.Facing)}
}
