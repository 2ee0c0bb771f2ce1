package tactics

import (
	"fmt"
	"math"
	"sort"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/kasuganosora/allyai/game/world"
)

const (
	rangedBackOffset  = 4.0
	rangedSpacing     = 3.0
	supportBackOffset = 2.0
	supportSpacing    = 2.0

	wedgeRowDepth = 2.0
	wedgeRowWidth = 1.5

	lineMeleeRow = 2.0
	lineBackRow  = 4.0
	lineSpacing  = 2.0

	surroundMeleeRadius = 2.5
	surroundOuterRadius = 6.0

	protectRadius = 3.0

	meleeArc    = 144.0
	meleeArcOff = 20.0
)

// Solver computes per-companion tactical positions for a formation.
type Solver struct {
	Profiles *strategy.Registry
	Terrain  world.Terrain
}

type member struct {
	c    *ally.Companion
	role Role
	prof strategy.Profile
}

// ComputePositions lays out companions around the player. The result holds
// exactly one entry per companion and does not depend on input order.
// Panics on an unknown formation.
func (s *Solver) ComputePositions(companions []*ally.Companion, formation Formation, player Anchor, enemyPos geom.Vec3, enemyAlive bool) map[ally.ID]Position {
	out := make(map[ally.ID]Position, len(companions))
	if len(companions) == 0 {
		switch formation {
		case Scattered, Wedge, Line, Surround, Protect:
			return out
		}
		panic(fmt.Sprintf("tactics: unknown formation %v", formation))
	}

	melee, ranged, support := s.partition(companions)
	ordered := make([]member, 0, len(companions))
	ordered = append(ordered, melee...)
	ordered = append(ordered, ranged...)
	ordered = append(ordered, support...)

	switch formation {
	case Scattered:
		if !enemyAlive {
			s.orbit(out, ordered, player)
			break
		}
		s.scattered(out, melee, ranged, support, player, enemyPos)
	case Wedge:
		s.wedge(out, ordered, player)
	case Line:
		s.line(out, melee, append(append([]member{}, ranged...), support...), player)
	case Surround:
		if !enemyAlive {
			s.protect(out, ordered, player)
			break
		}
		s.surround(out, ordered, player, enemyPos)
	case Protect:
		s.protect(out, ordered, player)
	default:
		panic(fmt.Sprintf("tactics: unknown formation %v", formation))
	}
	return out
}

func (s *Solver) partition(companions []*ally.Companion) (melee, ranged, support []member) {
	sorted := make([]*ally.Companion, 0, len(companions))
	for _, c := range companions {
		if c != nil {
			sorted = append(sorted, c)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, c := range sorted {
		m := member{c: c, role: RoleOf(c.AbilitySlot), prof: s.Profiles.Get(c.Strategy)}
		switch m.role {
		case RoleRanged:
			ranged = append(ranged, m)
		case RoleSupport:
			support = append(support, m)
		default:
			melee = append(melee, m)
		}
	}
	return
}

func (s *Solver) scattered(out map[ally.ID]Position, melee, ranged, support []member, player Anchor, enemy geom.Vec3) {
	a := geom.Heading(player.Position, enemy)

	n := float64(len(melee))
	for i, m := range melee {
		ang := a + 180 + meleeArcOff - meleeArc/2 + meleeArc*(float64(i)+0.5)/n
		target := enemy.Add(geom.Dir(ang).Scale(m.prof.PreferredRange))
		s.place(out, m, target, enemy, player)
	}

	n = float64(len(ranged))
	back := player.Position.Sub(geom.Dir(a).Scale(rangedBackOffset))
	for i, m := range ranged {
		target := back.Add(geom.Perp(a).Scale((float64(i) - (n-1)/2) * rangedSpacing))
		s.place(out, m, target, enemy, player)
	}

	back = player.Position.Sub(geom.Dir(a).Scale(supportBackOffset))
	for i, m := range support {
		side := 1.0
		if i%2 == 1 {
			side = -1
		}
		target := back.Add(geom.Perp(a).Scale(side * supportSpacing * float64(i/2+1)))
		s.place(out, m, target, enemy, player)
	}
}

// orbit spreads companions around the player at their follow distance.
func (s *Solver) orbit(out map[ally.ID]Position, ordered []member, player Anchor) {
	n := float64(len(ordered))
	for i, m := range ordered {
		ang := player.Facing + 180 + 360*float64(i)/n
		target := player.Position.Add(geom.Dir(ang).Scale(m.prof.FollowDistance))
		s.placeFacing(out, m, target, player.Facing, player)
	}
}

func (s *Solver) wedge(out map[ally.ID]Position, ordered []member, player Anchor) {
	f := player.Facing
	for i, m := range ordered {
		row := float64(i/2 + 1)
		side := -1.0
		if i%2 == 1 {
			side = 1
		}
		target := player.Position.
			Sub(geom.Dir(f).Scale(wedgeRowDepth * row)).
			Add(geom.Perp(f).Scale(side * wedgeRowWidth * row))
		s.placeFacing(out, m, target, f, player)
	}
}

func (s *Solver) line(out map[ally.ID]Position, front, back []member, player Anchor) {
	f := player.Facing
	row := func(ms []member, depth float64) {
		n := float64(len(ms))
		center := player.Position.Sub(geom.Dir(f).Scale(depth))
		for j, m := range ms {
			target := center.Add(geom.Perp(f).Scale((float64(j) - (n-1)/2) * lineSpacing))
			s.placeFacing(out, m, target, f, player)
		}
	}
	row(front, lineMeleeRow)
	row(back, lineBackRow)
}

// surround uses n+1 angular slots and leaves the one nearest the player empty.
func (s *Solver) surround(out map[ally.ID]Position, ordered []member, player Anchor, enemy geom.Vec3) {
	a := geom.Heading(player.Position, enemy)
	step := 360 / float64(len(ordered)+1)
	for i, m := range ordered {
		r := surroundOuterRadius
		if m.role == RoleMelee {
			r = surroundMeleeRadius
		}
		target := enemy.Add(geom.Dir(a + 180 + float64(i+1)*step).Scale(r))
		s.place(out, m, target, enemy, player)
	}
}

func (s *Solver) protect(out map[ally.ID]Position, ordered []member, player Anchor) {
	n := float64(len(ordered))
	for i, m := range ordered {
		ang := player.Facing + 360*float64(i)/n
		target := player.Position.Add(geom.Dir(ang).Scale(protectRadius))
		s.placeFacing(out, m, target, geom.NormalizeDeg(ang), player)
	}
}

// place records a slot facing the point `look`.
func (s *Solver) place(out map[ally.ID]Position, m member, target, look geom.Vec3, player Anchor) {
	s.placeFacing(out, m, target, geom.Heading(target, look), player)
}

func (s *Solver) placeFacing(out map[ally.ID]Position, m member, target geom.Vec3, facing float64, player Anchor) {
	if s.Terrain != nil {
		target.Y = s.Terrain.Height(target.X, target.Z)
	} else {
		target.Y = player.Position.Y
	}
	dist := geom.HorizontalDist(m.c.Position, target)
	out[m.c.ID] = Position{
		Target:   target,
		Facing:   geom.NormalizeDeg(facing),
		Role:     m.role,
		Priority: m.role.baseWeight() * (1 + math.Min(dist/10, 1)),
	}
}
