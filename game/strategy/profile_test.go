package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Balanced(t *testing.T) {
	p := Get(Balanced)
	assert.Equal(t, Balanced, p.Type)
	assert.Equal(t, 5.0, p.PreferredRange)
	assert.Equal(t, 10.0, p.EngageDistance)
	assert.True(t, p.WillChase)
}

func TestGet_UnknownFallsBackToBalanced(t *testing.T) {
	assert.Equal(t, Balanced, Get(Type(42)).Type)
	assert.Equal(t, Balanced, Get(Type(-1)).Type)
}

func TestPresets_BerserkerOptsOutOfSelfPreservation(t *testing.T) {
	p := Get(Berserker)
	assert.Less(t, p.DefenseWeight, 0.3)
	assert.False(t, p.HasRetreat())
}

func TestPresets_ThresholdsInRange(t *testing.T) {
	for _, p := range Presets() {
		assert.GreaterOrEqual(t, p.HealThreshold, 0.0, p.Name)
		assert.LessOrEqual(t, p.HealThreshold, 1.0, p.Name)
		assert.GreaterOrEqual(t, p.RetreatThreshold, 0.0, p.Name)
		assert.Less(t, p.RetreatThreshold, p.HealThreshold+0.01, p.Name)
		assert.Greater(t, p.EngageDistance, p.PreferredRange, p.Name)
		assert.Positive(t, p.FollowDistance, p.Name)
	}
}

func TestPresets_ReturnsCopy(t *testing.T) {
	ps := Presets()
	require.Len(t, ps, 5)
	ps[0].AttackWeight = 99
	assert.NotEqual(t, 99.0, Get(Aggressive).AttackWeight)
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"aggressive": Aggressive,
		"Defensive":  Defensive,
		" BALANCED ": Balanced,
		"support":    Support,
		"berserker":  Berserker,
	}
	for in, want := range cases {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got.String(), Get(got).Name)
	}
	_, err := ParseType("reckless")
	assert.Error(t, err)
}

func TestRegistry_SeededWithPresets(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.Types(), 5)
	p, err := r.Lookup("support")
	require.NoError(t, err)
	assert.Equal(t, Support, p.Type)
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()
	base := Get(Defensive)
	base.Name = "Sentinel"
	base.PreferredRange = 7

	typ := r.Register(base)
	assert.Greater(t, typ, Berserker)

	got := r.Get(typ)
	assert.Equal(t, "sentinel", got.Name)
	assert.Equal(t, 7.0, got.PreferredRange)

	// Re-registering by name keeps the type and replaces values.
	base.PreferredRange = 9
	assert.Equal(t, typ, r.Register(base))
	assert.Equal(t, 9.0, r.Get(typ).PreferredRange)
	assert.Len(t, r.Types(), 6)
}

func TestRegistry_OverridePreset(t *testing.T) {
	r := NewRegistry()
	p := Get(Balanced)
	p.FollowDistance = 6
	assert.Equal(t, Balanced, r.Register(p))
	assert.Equal(t, 6.0, r.Get(Balanced).FollowDistance)
	// Package-level presets stay untouched.
	assert.Equal(t, 3.0, Get(Balanced).FollowDistance)
}

func TestRegistry_NilUsesPresets(t *testing.T) {
	var r *Registry
	assert.Equal(t, Aggressive, r.Get(Aggressive).Type)
}
