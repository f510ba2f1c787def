package track

import "railworld/internal/geom"

// RouteSource is the view of the route polyline the builder needs.
type RouteSource interface {
	Len() int
	Point(i int) (geom.Vec3, bool)
}

// Builder converts newly available 4-point route windows into
// segments, one per call, strictly in id order. The per-tick cadence
// bounds the cost of track extension.
type Builder struct {
	sample       Sampler
	smoothing    float64
	subdivisions int
	clearance    float64

	lastUsedNode int
}

func NewBuilder(sample Sampler, smoothing float64, subdivisions int, clearance float64) *Builder {
	return &Builder{
		sample:       sample,
		smoothing:    smoothing,
		subdivisions: subdivisions,
		clearance:    clearance,
	}
}

// BuildNext builds the next pending segment if its 4-point window is
// available, registers it, and returns it. Returns nil when the route
// has not grown far enough yet.
func (b *Builder) BuildNext(route RouteSource, t *Track) *Segment {
	// The first window consumes route node 2 (points 0..3); each
	// later window advances by one node.
	node := b.lastUsedNode + 1
	if b.lastUsedNode == 0 {
		node = 2
	}
	if node+1 >= route.Len() {
		return nil
	}

	prev, _ := route.Point(node - 2)
	start, _ := route.Point(node - 1)
	end, _ := route.Point(node)
	next, ok := route.Point(node + 1)
	if !ok {
		return nil
	}

	seg := BuildSegment(t.MaxSegmentID()+1, prev, start, end, next,
		b.sample, b.smoothing, b.subdivisions, b.clearance)
	t.Register(seg)
	b.lastUsedNode = node
	return seg
}

// LastUsedNode reports the highest route node consumed so far, for
// snapshots.
func (b *Builder) LastUsedNode() int { return b.lastUsedNode }

// RestoreLastUsedNode resets builder progress from a snapshot.
func (b *Builder) RestoreLastUsedNode(node int) { b.lastUsedNode = node }
