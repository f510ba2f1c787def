// Package track turns route polyline windows into smooth, arc-length
// parameterized rail segments and answers t -> pose/slope queries for
// the train.
package track

import (
	"math"

	"railworld/internal/geom"
)

// cubicBezier evaluates the cubic with the usual Bernstein weights.
func cubicBezier(p0, c1, c2, p3 geom.Vec3, u float64) geom.Vec3 {
	iu := 1 - u
	b0 := iu * iu * iu
	b1 := 3 * iu * iu * u
	b2 := 3 * iu * u * u
	b3 := u * u * u
	return p0.Scale(b0).Add(c1.Scale(b1)).Add(c2.Scale(b2)).Add(p3.Scale(b3))
}

// controlPoint derives a tangent control point for current from the
// chord between its two neighbours: the control lies along that chord
// direction (reversed for the exit side) at chord length times the
// smoothing factor. Elevation is carried over from current unchanged;
// curve Y is rebuilt from the height field later.
func controlPoint(previous, current, next geom.Vec3, smoothing float64, reverse bool) geom.Vec3 {
	dx := next.X - previous.X
	dz := next.Z - previous.Z
	length := math.Hypot(dx, dz) * smoothing
	angle := math.Atan2(dz, dx)
	if reverse {
		angle += math.Pi
	}
	return geom.Vec3{
		X: current.X + math.Cos(angle)*length,
		Y: current.Y,
		Z: current.Z + math.Sin(angle)*length,
	}
}

// controlPoints computes both controls for the span start -> end in
// the local frame centered at start.
func controlPoints(prev, start, end, next geom.Vec3, smoothing float64) (geom.Vec3, geom.Vec3) {
	c1 := controlPoint(prev, start, end, smoothing, false).Sub(start)
	c2 := controlPoint(start, end, next, smoothing, true).Sub(start)
	return c1, c2
}
