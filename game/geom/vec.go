package geom

import "math"

// Vec3 is a world-space point. The ground plane is XZ; Y is height.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// HorizontalDist is the distance between a and b on the ground plane.
func HorizontalDist(a, b Vec3) float64 {
	return math.Hypot(b.X-a.X, b.Z-a.Z)
}

// Heading returns the facing angle in degrees from `from` toward `to`.
// 0° points along +X, 90° along +Z.
func Heading(from, to Vec3) float64 {
	return NormalizeDeg(math.Atan2(to.Z-from.Z, to.X-from.X) * 180 / math.Pi)
}

// Dir returns the unit ground vector for a heading in degrees.
func Dir(deg float64) Vec3 {
	r := deg * math.Pi / 180
	return Vec3{X: math.Cos(r), Z: math.Sin(r)}
}

// Perp returns the unit ground vector 90° clockwise of the heading.
func Perp(deg float64) Vec3 {
	return Dir(deg - 90)
}

// NormalizeDeg wraps an angle into [0, 360).
func NormalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// MoveToward steps from `from` toward `to` by at most step on the ground
// plane, stopping `stop` units short of the target.
func MoveToward(from, to Vec3, step, stop float64) Vec3 {
	d := HorizontalDist(from, to)
	remaining := d - stop
	if remaining <= 0 || d == 0 {
		return from
	}
	if step > remaining {
		step = remaining
	}
	k := step / d
	return Vec3{X: from.X + (to.X-from.X)*k, Y: from.Y, Z: from.Z + (to.Z-from.Z)*k}
}
