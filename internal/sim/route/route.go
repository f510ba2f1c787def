// Package route grows the low-slope route polyline the rail track
// follows. Points are found by greedy bearing scans against the height
// field and are never retracted or modified once appended.
package route

import (
	"math"

	"railworld/internal/geom"
)

// Sampler maps world (x, z) to elevation.
type Sampler func(x, z float64) float64

// Config holds the route-growth tunables.
type Config struct {
	// NodeLength is the fixed distance between consecutive points.
	NodeLength float64
	// MaxTurnAngle bounds, in whole degrees, how far a new segment may
	// deviate from the previous segment's bearing.
	MaxTurnAngle int
	// Clearance lifts the first point above the terrain.
	Clearance float64
}

// Generator owns the polyline. Not safe for concurrent use; the world
// loop is its only caller.
type Generator struct {
	cfg    Config
	sample Sampler

	points []geom.Vec3
}

func NewGenerator(cfg Config, sample Sampler) *Generator {
	g := &Generator{cfg: cfg, sample: sample}
	g.seed()
	return g
}

// seed places point 0 at the origin and finds point 1 with a full
// circle scan at a coarse 5 degree step. Subsequent points use the
// fine 1 degree scan in Extend.
func (g *Generator) seed() {
	start := geom.Vec3{
		X: 0,
		Y: g.sample(0, 0) + g.cfg.Clearance,
		Z: 0,
	}
	next := g.nextNode(start, 0, 180, 5)
	g.points = append(g.points, start, next)
}

// Len returns the number of route points.
func (g *Generator) Len() int { return len(g.points) }

// Point returns route point i, or false when out of range.
func (g *Generator) Point(i int) (geom.Vec3, bool) {
	if i < 0 || i >= len(g.points) {
		return geom.Vec3{}, false
	}
	return g.points[i], true
}

// Points returns a copy of the polyline for observers.
func (g *Generator) Points() []geom.Vec3 {
	out := make([]geom.Vec3, len(g.points))
	copy(out, g.points)
	return out
}

// Extend appends one point if the tail of the route is still inside
// the loaded area around the viewpoint; otherwise the generator waits
// for the viewpoint to catch up. Returns the new point and whether one
// was added.
func (g *Generator) Extend(withinLoaded func(p geom.Vec2) bool) (geom.Vec3, bool) {
	last := g.points[len(g.points)-1]
	if !withinLoaded(last.XZ()) {
		return geom.Vec3{}, false
	}

	prev := g.points[len(g.points)-2]
	dir := last.XZ().Sub(prev.XZ())
	if dir.Len() < 1e-9 {
		return geom.Vec3{}, false
	}
	bearing := math.Atan2(dir.Z, dir.X) * 180 / math.Pi

	next := g.nextNode(last, bearing, g.cfg.MaxTurnAngle, 1)
	g.points = append(g.points, next)
	return next, true
}

// nextNode scans candidate bearings at whole-degree offsets around
// centerDeg at the node length and returns the candidate with the
// smallest absolute slope. Scan order is low bearing to high, and ties
// keep the earlier candidate, which keeps generation deterministic.
func (g *Generator) nextNode(from geom.Vec3, centerDeg float64, spreadDeg, stepDeg int) geom.Vec3 {
	best := geom.Vec3{}
	minSlope := math.Inf(1)
	origin := from.XZ()

	for off := -spreadDeg; off <= spreadDeg; off += stepDeg {
		rad := (centerDeg + float64(off)) * math.Pi / 180
		cand := geom.Vec2{
			X: origin.X + g.cfg.NodeLength*math.Cos(rad),
			Z: origin.Z + g.cfg.NodeLength*math.Sin(rad),
		}
		h := g.sample(cand.X, cand.Z)
		slope := absoluteSlope(cand.Dist(origin), from.Y, h)
		if slope < minSlope {
			minSlope = slope
			best = geom.Vec3{X: cand.X, Y: h, Z: cand.Z}
		}
	}
	return best
}

func absoluteSlope(dist, h1, h2 float64) float64 {
	if dist < 1e-9 {
		return math.Inf(1)
	}
	return math.Abs((h2 - h1) / dist)
}

// Restore replaces the polyline from a snapshot. The slice must hold
// at least the two seed points.
func (g *Generator) Restore(points []geom.Vec3) {
	g.points = make([]geom.Vec3, len(points))
	copy(g.points, points)
}
