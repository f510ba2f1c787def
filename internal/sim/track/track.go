package track

import (
	"fmt"
	"math"
	"sort"

	"railworld/internal/geom"
)

// Pose is a world-space position plus unit travel direction.
type Pose struct {
	Position geom.Vec3
	Forward  geom.Vec3
}

// Track aggregates the registered segments under the continuous
// parameter t: the integer part selects a segment id, the fraction is
// the arc-length position inside it. Queries outside the registered
// range report no data rather than extrapolating.
type Track struct {
	segments map[int]*Segment
	maxID    int

	sample       Sampler
	clearance    float64
	subdivisions int
}

func New(sample Sampler, clearance float64, subdivisions int) *Track {
	return &Track{
		segments:     map[int]*Segment{},
		sample:       sample,
		clearance:    clearance,
		subdivisions: subdivisions,
	}
}

// Register adds the next segment. Segments must arrive in id order
// with no gaps; anything else is a programming error.
func (t *Track) Register(seg *Segment) {
	if seg.ID != t.maxID+1 {
		panic(fmt.Sprintf("track: segment %d registered after %d", seg.ID, t.maxID))
	}
	t.segments[seg.ID] = seg
	t.maxID = seg.ID
}

// MaxSegmentID returns the highest registered id, or 0 when empty.
func (t *Track) MaxSegmentID() int { return t.maxID }

// SegmentCount returns the number of registered segments.
func (t *Track) SegmentCount() int { return len(t.segments) }

// Segment returns the registered segment with the given id.
func (t *Track) Segment(id int) (*Segment, bool) {
	s, ok := t.segments[id]
	return s, ok
}

// Segments returns all registered segments in id order.
func (t *Track) Segments() []*Segment {
	out := make([]*Segment, 0, len(t.segments))
	for _, s := range t.segments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Track) split(tp float64) (*Segment, float64, bool) {
	if tp < 0 {
		return nil, 0, false
	}
	id := int(math.Floor(tp))
	seg, ok := t.segments[id]
	if !ok {
		return nil, 0, false
	}
	return seg, tp - float64(id), ok
}

// PositionAt resolves the world pose at track parameter tp. The Y
// coordinate is re-read from the height field at the resolved (x, z)
// so the rail stays glued to the terrain between curve samples.
// Returns false when no segment covers tp.
func (t *Track) PositionAt(tp float64) (Pose, bool) {
	seg, frac, ok := t.split(tp)
	if !ok {
		return Pose{}, false
	}
	op := seg.At(frac)
	pos := seg.Origin.Add(op.Position)
	pos.Y = t.sample(pos.X, pos.Z) + t.clearance
	return Pose{Position: pos, Forward: op.Forward}, true
}

// SlopeAt returns the slope angle, in radians, of the track at tp,
// measured over one subdivision step ahead. Returns false when either
// endpoint of the step falls outside the registered segments or the
// step degenerates.
func (t *Track) SlopeAt(tp float64) (float64, bool) {
	p1, ok := t.PositionAt(tp)
	if !ok {
		return 0, false
	}
	step := 1 / float64(t.subdivisions)
	p2, ok := t.PositionAt(tp + step)
	if !ok {
		return 0, false
	}
	return SlopeAngle(p1.Position, p2.Position)
}
