package world

import (
	"fmt"
	"math"
	"strings"
)

// Terrain answers ground-height queries.
type Terrain interface {
	Height(x, z float64) float64
}

// FlatTerrain is level ground at height Y.
type FlatTerrain struct {
	Y float64
}

func (f FlatTerrain) Height(_, _ float64) float64 { return f.Y }

// RollingTerrain is gentle sinusoidal hills.
type RollingTerrain struct {
	Amplitude  float64
	Wavelength float64
}

func (r RollingTerrain) Height(x, z float64) float64 {
	if r.Wavelength <= 0 {
		return 0
	}
	k := 2 * math.Pi / r.Wavelength
	return r.Amplitude * math.Sin(x*k) * math.Cos(z*k)
}

// ParseTerrain builds a reference terrain by name ("flat" or "rolling").
func ParseTerrain(name string) (Terrain, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "flat":
		return FlatTerrain{}, nil
	case "rolling":
		return RollingTerrain{Amplitude: 1.5, Wavelength: 40}, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("world: unknown terrain %q", name)
}
