package tactics

import (
	"encoding/json"
	"testing"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/kasuganosora/allyai/game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	origin = Anchor{Position: geom.Vec3{}, Facing: 0}
	enemy  = geom.Vec3{X: 10}
)

func newSolver() *Solver {
	return &Solver{Profiles: strategy.NewRegistry()}
}

func roster(slots ...int) []*ally.Companion {
	out := make([]*ally.Companion, len(slots))
	for i, s := range slots {
		out[i] = ally.New("c", s, 100, strategy.Balanced, ally.DefaultCatalog())
	}
	return out
}

func TestScattered_MeleeSpreadAroundEnemy(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotSword, ally.SlotSword)
	pos := newSolver().ComputePositions(cs, Scattered, origin, enemy, true)
	require.Len(t, pos, 3)

	pref := strategy.Get(strategy.Balanced).PreferredRange
	targets := make([]geom.Vec3, 0, 3)
	for _, c := range cs {
		p, ok := pos[c.ID]
		require.True(t, ok)
		assert.InDelta(t, pref, geom.HorizontalDist(p.Target, enemy), 0.5)
		assert.Equal(t, RoleMelee, p.Role)
		targets = append(targets, p.Target)
	}
	for i := range targets {
		for j := i + 1; j < len(targets); j++ {
			assert.Greater(t, geom.HorizontalDist(targets[i], targets[j]), 1.5)
		}
	}
}

func TestScattered_RangedAndSupportBehindPlayer(t *testing.T) {
	cs := roster(ally.SlotFireball, ally.SlotHeal)
	pos := newSolver().ComputePositions(cs, Scattered, origin, enemy, true)

	r := pos[cs[0].ID]
	assert.Equal(t, RoleRanged, r.Role)
	assert.InDelta(t, -4, r.Target.X, 1e-9)
	assert.InDelta(t, 0, r.Target.Z, 1e-9)
	assert.InDelta(t, 0, r.Facing, 1e-9)

	s := pos[cs[1].ID]
	assert.Equal(t, RoleSupport, s.Role)
	assert.InDelta(t, -2, s.Target.X, 1e-9)
	assert.InDelta(t, 2, geom.HorizontalDist(s.Target, geom.Vec3{X: -2}), 1e-9)
}

func TestScattered_NoEnemyOrbitsPlayer(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotFireball)
	pos := newSolver().ComputePositions(cs, Scattered, origin, enemy, false)
	follow := strategy.Get(strategy.Balanced).FollowDistance
	for _, c := range cs {
		assert.InDelta(t, follow, geom.HorizontalDist(pos[c.ID].Target, origin.Position), 1e-9)
		assert.InDelta(t, origin.Facing, pos[c.ID].Facing, 1e-9)
	}
	// First companion sits directly behind the player.
	assert.InDelta(t, -follow, pos[cs[0].ID].Target.X, 1e-9)
}

func TestComputePositions_OneEntryPerCompanion(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotFireball, ally.SlotHeal, ally.SlotSword, 7)
	for _, f := range []Formation{Scattered, Wedge, Line, Surround, Protect} {
		pos := newSolver().ComputePositions(cs, f, origin, enemy, true)
		assert.Len(t, pos, len(cs), f.String())
		for _, c := range cs {
			_, ok := pos[c.ID]
			assert.True(t, ok, f.String())
		}
	}
}

func TestComputePositions_RoleMapping(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotFireball, ally.SlotHeal, 7)
	pos := newSolver().ComputePositions(cs, Wedge, origin, enemy, true)
	assert.Equal(t, RoleMelee, pos[cs[0].ID].Role)
	assert.Equal(t, RoleRanged, pos[cs[1].ID].Role)
	assert.Equal(t, RoleSupport, pos[cs[2].ID].Role)
	assert.Equal(t, RoleMelee, pos[cs[3].ID].Role)
}

func TestComputePositions_Idempotent(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotFireball, ally.SlotHeal, ally.SlotSword)
	s := newSolver()
	first := s.ComputePositions(cs, Scattered, origin, enemy, true)
	assert.Equal(t, first, s.ComputePositions(cs, Scattered, origin, enemy, true))

	reversed := []*ally.Companion{cs[3], cs[2], cs[1], cs[0]}
	assert.Equal(t, first, s.ComputePositions(reversed, Scattered, origin, enemy, true))
}

func TestWedge_Rows(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotSword, ally.SlotFireball)
	pos := newSolver().ComputePositions(cs, Wedge, origin, enemy, true)

	assert.InDelta(t, -2, pos[cs[0].ID].Target.X, 1e-9)
	assert.InDelta(t, 1.5, pos[cs[0].ID].Target.Z, 1e-9)
	assert.InDelta(t, -2, pos[cs[1].ID].Target.X, 1e-9)
	assert.InDelta(t, -1.5, pos[cs[1].ID].Target.Z, 1e-9)
	assert.InDelta(t, -4, pos[cs[2].ID].Target.X, 1e-9)
	assert.InDelta(t, 3, pos[cs[2].ID].Target.Z, 1e-9)
}

func TestLine_Rows(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotSword, ally.SlotFireball, ally.SlotHeal)
	pos := newSolver().ComputePositions(cs, Line, origin, enemy, true)

	assert.InDelta(t, -2, pos[cs[0].ID].Target.X, 1e-9)
	assert.InDelta(t, -2, pos[cs[1].ID].Target.X, 1e-9)
	assert.InDelta(t, 2, geom.HorizontalDist(pos[cs[0].ID].Target, pos[cs[1].ID].Target), 1e-9)
	assert.InDelta(t, -4, pos[cs[2].ID].Target.X, 1e-9)
	assert.InDelta(t, -4, pos[cs[3].ID].Target.X, 1e-9)
}

func TestSurround_SkipsSlotNearestPlayer(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotSword, ally.SlotFireball)
	pos := newSolver().ComputePositions(cs, Surround, origin, enemy, true)

	nearPlayer := enemy.Add(geom.Dir(180).Scale(surroundMeleeRadius))
	for _, c := range cs {
		p := pos[c.ID]
		assert.Greater(t, geom.HorizontalDist(p.Target, nearPlayer), 1.0)
		want := surroundOuterRadius
		if p.Role == RoleMelee {
			want = surroundMeleeRadius
		}
		assert.InDelta(t, want, geom.HorizontalDist(p.Target, enemy), 1e-9)
	}
}

func TestSurround_NoEnemyFallsBackToProtect(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotFireball, ally.SlotHeal)
	s := newSolver()
	assert.Equal(t,
		s.ComputePositions(cs, Protect, origin, enemy, false),
		s.ComputePositions(cs, Surround, origin, enemy, false))
}

func TestProtect_FacesOutward(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotSword, ally.SlotFireball, ally.SlotHeal)
	pos := newSolver().ComputePositions(cs, Protect, origin, enemy, true)
	for _, c := range cs {
		p := pos[c.ID]
		assert.InDelta(t, protectRadius, geom.HorizontalDist(p.Target, origin.Position), 1e-9)
		assert.InDelta(t, geom.Heading(origin.Position, p.Target), p.Facing, 1e-6)
	}
}

func TestComputePositions_TerrainHeight(t *testing.T) {
	cs := roster(ally.SlotSword, ally.SlotFireball)
	s := &Solver{Terrain: world.FlatTerrain{Y: 3}}
	for _, p := range s.ComputePositions(cs, Wedge, origin, enemy, true) {
		assert.Equal(t, 3.0, p.Target.Y)
	}

	raised := Anchor{Position: geom.Vec3{Y: 1}}
	for _, p := range newSolver().ComputePositions(cs, Wedge, raised, enemy, true) {
		assert.Equal(t, 1.0, p.Target.Y)
	}
}

func TestComputePositions_Priority(t *testing.T) {
	cs := roster(ally.SlotFireball)
	s := newSolver()
	pos := s.ComputePositions(cs, Protect, origin, enemy, true)
	cs[0].Position = pos[cs[0].ID].Target
	assert.InDelta(t, 0.8, s.ComputePositions(cs, Protect, origin, enemy, true)[cs[0].ID].Priority, 1e-9)

	cs[0].Position = geom.Vec3{X: 100}
	assert.InDelta(t, 1.6, s.ComputePositions(cs, Protect, origin, enemy, true)[cs[0].ID].Priority, 1e-9)
}

func TestComputePositions_UnknownFormationPanics(t *testing.T) {
	assert.Panics(t, func() {
		newSolver().ComputePositions(roster(ally.SlotSword), Formation(99), origin, enemy, true)
	})
	assert.Panics(t, func() {
		newSolver().ComputePositions(nil, Formation(99), origin, enemy, true)
	})
}

func TestParseFormation(t *testing.T) {
	for _, f := range []Formation{Scattered, Wedge, Line, Surround, Protect} {
		got, err := ParseFormation(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormation("phalanx")
	assert.Error(t, err)
}

func TestPosition_JSONRoundTrip(t *testing.T) {
	in := Position{Target: geom.Vec3{X: 3, Z: -1}, Facing: 90, Role: RoleRanged, Priority: 0.8}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"role":"ranged"`)

	var out Position
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	for _, r := range []Role{RoleMelee, RoleRanged, RoleSupport} {
		text, err := r.MarshalText()
		require.NoError(t, err)
		var back Role
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, r, back)
	}
	assert.Error(t, json.Unmarshal([]byte(`{"role":"tank"}`), &out))
}
