package world

import (
	"testing"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Living(t *testing.T) {
	a := ally.New("a", ally.SlotSword, 100, strategy.Balanced, ally.DefaultCatalog())
	b := ally.New("b", ally.SlotSword, 100, strategy.Balanced, ally.DefaultCatalog())
	b.TakeDamage(100)

	snap := &Snapshot{Allies: []*ally.Companion{a, nil, b}}
	living := snap.Living()
	require.Len(t, living, 1)
	assert.Equal(t, a.ID, living[0].ID)
	assert.Same(t, b, snap.Find(b.ID))
	assert.Nil(t, snap.Find(ally.ID(-1)))
}

func TestUnit_HealthFraction(t *testing.T) {
	assert.Equal(t, 0.5, Unit{Health: 50, MaxHealth: 100, Alive: true}.HealthFraction())
	assert.Equal(t, 0.0, Unit{Health: 50, MaxHealth: 100}.HealthFraction())
}

func TestTerrain(t *testing.T) {
	assert.Equal(t, 2.0, FlatTerrain{Y: 2}.Height(10, -4))
	r := RollingTerrain{Amplitude: 1, Wavelength: 40}
	assert.InDelta(t, 0.0, r.Height(0, 0), 1e-9)
	assert.InDelta(t, 1.0, r.Height(10, 0), 1e-9)

	tr, err := ParseTerrain("Rolling")
	require.NoError(t, err)
	assert.IsType(t, RollingTerrain{}, tr)
	tr, err = ParseTerrain("none")
	require.NoError(t, err)
	assert.Nil(t, tr)
	_, err = ParseTerrain("lava")
	assert.Error(t, err)
}
