package track

import (
	"math"
	"testing"

	"railworld/internal/geom"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/route"
)

func testSampler(seed int64) Sampler {
	return heightfield.New(heightfield.Settings{Amplitude: 25, Scale: 1000, Seed: seed}).At
}

// buildTestTrack grows a route and registers segments until maxID
// reaches want.
func buildTestTrack(t *testing.T, seed int64, want int) (*Track, *Builder, Sampler) {
	t.Helper()
	sample := testSampler(seed)
	gen := route.NewGenerator(route.Config{NodeLength: 50, MaxTurnAngle: 5, Clearance: 1}, route.Sampler(sample))
	tr := New(sample, 0.3, 20)
	b := NewBuilder(sample, 0.2, 20, 0.3)

	for tr.MaxSegmentID() < want {
		if seg := b.BuildNext(gen, tr); seg == nil {
			if _, ok := gen.Extend(func(geom.Vec2) bool { return true }); !ok {
				t.Fatalf("route extension stalled with %d segments", tr.MaxSegmentID())
			}
		}
	}
	return tr, b, sample
}

func TestSegmentsRegisterInOrder(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 42, 6)

	segs := tr.Segments()
	if len(segs) != 6 {
		t.Fatalf("got %d segments, want 6", len(segs))
	}
	for i, s := range segs {
		if s.ID != i+1 {
			t.Fatalf("segment %d has id %d", i, s.ID)
		}
	}
}

func TestRegisterOutOfOrderPanics(t *testing.T) {
	tr := New(testSampler(1), 0.3, 20)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-order registration")
		}
	}()
	tr.Register(&Segment{ID: 3})
}

func TestArcLengthUniformity(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 42, 4)
	seg, ok := tr.Segment(2)
	if !ok {
		t.Fatalf("segment 2 missing")
	}

	const n = 40
	var dists []float64
	prevPose, _ := tr.PositionAt(2)
	prev := prevPose.Position
	for i := 1; i <= n; i++ {
		pose, ok := tr.PositionAt(2 + float64(i)/n)
		if !ok {
			t.Fatalf("no data inside registered segment at step %d", i)
		}
		dists = append(dists, pose.Position.Dist(prev))
		prev = pose.Position
	}

	mean := seg.Length / n
	for i, d := range dists {
		// Within 25% of the mean step: the table linearizes between
		// 20 samples, so small deviation is expected.
		if math.Abs(d-mean) > 0.25*mean {
			t.Fatalf("step %d distance %v deviates from mean %v", i, d, mean)
		}
	}
}

func TestMapMonotonic(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 7, 3)
	seg, _ := tr.Segment(1)

	prev := -1.0
	for i := 0; i <= 50; i++ {
		u := seg.Map(float64(i) / 50)
		if u < prev {
			t.Fatalf("Map not monotonic at %d: %v < %v", i, u, prev)
		}
		if u < 0 || u > 1 {
			t.Fatalf("Map out of range: %v", u)
		}
		prev = u
	}
	if seg.Map(0) != 0 || seg.Map(1) != 1 {
		t.Fatalf("Map endpoints: %v, %v", seg.Map(0), seg.Map(1))
	}
}

func TestPositionGluedToHeightField(t *testing.T) {
	tr, _, sample := buildTestTrack(t, 42, 3)

	for _, tp := range []float64{1, 1.25, 1.5, 2.75, 3.0} {
		pose, ok := tr.PositionAt(tp)
		if !ok {
			t.Fatalf("no data at t=%v", tp)
		}
		want := sample(pose.Position.X, pose.Position.Z) + 0.3
		if math.Abs(pose.Position.Y-want) > 1e-9 {
			t.Fatalf("t=%v: Y=%v, want %v", tp, pose.Position.Y, want)
		}
		if math.Abs(pose.Forward.Len()-1) > 1e-9 {
			t.Fatalf("t=%v: forward not unit: %v", tp, pose.Forward)
		}
	}
}

func TestNoDataOutsideCoverage(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 42, 1)

	if _, ok := tr.PositionAt(2.3); ok {
		t.Fatalf("position query extrapolated past registered segments")
	}
	if _, ok := tr.SlopeAt(2.3); ok {
		t.Fatalf("slope query extrapolated past registered segments")
	}
	if _, ok := tr.PositionAt(0.5); ok {
		t.Fatalf("position query succeeded before first segment")
	}
	if _, ok := tr.PositionAt(-1); ok {
		t.Fatalf("position query succeeded for negative t")
	}
}

func TestSlopeNearSegmentBoundaryNeedsNext(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 42, 2)

	// Slope at the very end of segment 2 steps into segment 3, which
	// is not registered.
	if _, ok := tr.SlopeAt(2.999); ok {
		t.Fatalf("slope query near boundary should report no data")
	}
	// Inside segment coverage it must succeed.
	if _, ok := tr.SlopeAt(1.5); !ok {
		t.Fatalf("slope query failed inside coverage")
	}
}

func TestSlopeMatchesGeometry(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 42, 4)

	tp := 2.4
	angle, ok := tr.SlopeAt(tp)
	if !ok {
		t.Fatalf("no slope at t=%v", tp)
	}
	p1, _ := tr.PositionAt(tp)
	p2, _ := tr.PositionAt(tp + 1.0/20)
	d := p1.Position.Dist(p2.Position)
	want := math.Asin((p2.Position.Y - p1.Position.Y) / d)
	if math.Abs(angle-want) > 1e-12 {
		t.Fatalf("slope %v, want %v", angle, want)
	}
}

func TestSegmentEndpointsSpanRoutePoints(t *testing.T) {
	sample := testSampler(42)
	gen := route.NewGenerator(route.Config{NodeLength: 50, MaxTurnAngle: 5, Clearance: 1}, route.Sampler(sample))
	tr := New(sample, 0.3, 20)
	b := NewBuilder(sample, 0.2, 20, 0.3)
	for tr.MaxSegmentID() < 2 {
		if seg := b.BuildNext(gen, tr); seg == nil {
			gen.Extend(func(geom.Vec2) bool { return true })
		}
	}

	seg, _ := tr.Segment(1)
	start, _ := gen.Point(1)
	end, _ := gen.Point(2)
	if seg.Origin != start {
		t.Fatalf("segment 1 origin %+v, want route point 1 %+v", seg.Origin, start)
	}
	endLocal := seg.Points[len(seg.Points)-1].Position
	world := seg.Origin.Add(endLocal)
	if math.Abs(world.X-end.X) > 1e-9 || math.Abs(world.Z-end.Z) > 1e-9 {
		t.Fatalf("segment 1 end (%v,%v), want route point 2 (%v,%v)",
			world.X, world.Z, end.X, end.Z)
	}
}

func TestSweepExtruder(t *testing.T) {
	tr, _, _ := buildTestTrack(t, 42, 1)
	seg, _ := tr.Segment(1)

	mesh := SweepExtruder{}.Extrude(DefaultCrossSection(), seg.Points)
	wantVerts := len(DefaultCrossSection().Points) * len(seg.Points)
	if len(mesh.Vertices) != wantVerts {
		t.Fatalf("got %d vertices, want %d", len(mesh.Vertices), wantVerts)
	}
	if mesh.TriangleCount() == 0 {
		t.Fatalf("extruded mesh has no triangles")
	}
	for i, nrm := range mesh.Normals {
		if l := nrm.Len(); l > 1e-9 && math.Abs(l-1) > 1e-9 {
			t.Fatalf("normal %d not unit: %v", i, nrm)
		}
	}
}
