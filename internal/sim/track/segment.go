package track

import (
	"math"

	"railworld/internal/geom"
)

// Sampler maps world (x, z) to elevation.
type Sampler func(x, z float64) float64

// OrientedPoint is one arc-length sample on a segment curve. T is the
// arc-length fraction in [0, 1]; Position is local to the segment
// origin; Forward is the unit travel direction.
type OrientedPoint struct {
	T        float64
	U        float64
	Position geom.Vec3
	Forward  geom.Vec3
}

// Segment is the smoothed curve between route points id and id+1,
// sampled and arc-length parameterized. Immutable once built.
type Segment struct {
	ID     int
	Origin geom.Vec3
	Points []OrientedPoint
	Length float64
}

// BuildSegment constructs the segment for the window
// (prev, start, end, next) = route points (id-1, id, id+1, id+2).
// The curve lives in the local frame of start; elevations come from
// the height field plus the track clearance, not from the bezier
// interpolation, so the rail never drifts off the ground.
func BuildSegment(id int, prev, start, end, next geom.Vec3, sample Sampler, smoothing float64, subdivisions int, clearance float64) *Segment {
	c1, c2 := controlPoints(prev, start, end, next, smoothing)
	p0 := geom.Vec3{}
	p3 := end.Sub(start)

	n := subdivisions
	pts := make([]OrientedPoint, n+1)
	for k := 0; k <= n; k++ {
		u := float64(k) / float64(n)
		local := cubicBezier(p0, c1, c2, p3, u)
		worldX := start.X + local.X
		worldZ := start.Z + local.Z
		local.Y = sample(worldX, worldZ) + clearance - start.Y
		pts[k] = OrientedPoint{U: u, Position: local}
	}

	// Cumulative distance table: T becomes the arc-length fraction so
	// uniform T steps travel uniform distance.
	total := 0.0
	dists := make([]float64, n+1)
	for k := 1; k <= n; k++ {
		total += pts[k].Position.Dist(pts[k-1].Position)
		dists[k] = total
	}
	for k := range pts {
		if total > 1e-12 {
			pts[k].T = dists[k] / total
		} else {
			pts[k].T = float64(k) / float64(n)
		}
	}

	// Forward directions from the sampled polyline; the final point
	// reuses the direction of its last chord.
	for k := 0; k < n; k++ {
		pts[k].Forward = pts[k+1].Position.Sub(pts[k].Position).Normalize()
	}
	pts[n].Forward = pts[n-1].Forward

	return &Segment{ID: id, Origin: start, Points: pts, Length: total}
}

// Map converts an arc-length fraction into the curve-native parameter.
// Stepping the input uniformly advances uniformly along the curve.
func (s *Segment) Map(frac float64) float64 {
	k, f := s.bracket(frac)
	return s.Points[k].U + (s.Points[k+1].U-s.Points[k].U)*f
}

// At interpolates the local-frame oriented point at the given
// arc-length fraction.
func (s *Segment) At(frac float64) OrientedPoint {
	k, f := s.bracket(frac)
	a, b := s.Points[k], s.Points[k+1]
	return OrientedPoint{
		T:        frac,
		U:        a.U + (b.U-a.U)*f,
		Position: a.Position.Lerp(b.Position, f),
		Forward:  a.Forward.Lerp(b.Forward, f).Normalize(),
	}
}

// bracket finds the sample pair surrounding frac and the lerp factor
// between them.
func (s *Segment) bracket(frac float64) (int, float64) {
	if frac <= 0 {
		return 0, 0
	}
	if frac >= 1 {
		return len(s.Points) - 2, 1
	}
	// Samples are few (about 20); a linear scan matches the access
	// pattern, which is dominated by slowly advancing t values.
	k := 0
	for k+2 < len(s.Points) && s.Points[k+1].T <= frac {
		k++
	}
	span := s.Points[k+1].T - s.Points[k].T
	if span < 1e-12 {
		return k, 0
	}
	return k, (frac - s.Points[k].T) / span
}

// SlopeAngle returns the slope, in radians, between two world points,
// guarding the near-zero distance case.
func SlopeAngle(p1, p2 geom.Vec3) (float64, bool) {
	d := p1.Dist(p2)
	if d < 1e-9 {
		return 0, false
	}
	sin := (p2.Y - p1.Y) / d
	sin = math.Max(-1, math.Min(1, sin))
	return math.Asin(sin), true
}
