package world

import (
	"math"
	"testing"
	"time"

	"railworld/internal/geom"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/terrain"
)

func testConfig() Config {
	return Config{
		Seed:         42,
		ChunkSize:    1000,
		LoadRadius:   2,
		VertexStride: 500,
		GenWorkers:   2,
	}
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.streamer.Stop() })
	return w
}

func TestDeterminism_SameInputsSameDigests(t *testing.T) {
	a := newTestWorld(t, testConfig())
	b := newTestWorld(t, testConfig())

	for i := 0; i < 60; i++ {
		vp := geom.Vec2{X: float64(i) * 3}
		_, da := a.StepOnce(vp, nil)
		_, db := b.StepOnce(vp, nil)
		if da != db {
			t.Fatalf("digest diverged at tick %d:\n  a=%s\n  b=%s", i, da, db)
		}
	}
}

func TestRouteNodeLengthHonorsFraction(t *testing.T) {
	cfg := testConfig()
	cfg.NodeLength = 62.5
	w := newTestWorld(t, cfg)

	p0, ok0 := w.route.Point(0)
	p1, ok1 := w.route.Point(1)
	if !ok0 || !ok1 {
		t.Fatal("missing seed points")
	}
	if d := p1.XZ().Sub(p0.XZ()).Len(); math.Abs(d-62.5) > 1e-9 {
		t.Fatalf("node spacing %v, want 62.5", d)
	}
}

func TestChunkGridAroundViewpoint(t *testing.T) {
	cfg := testConfig()
	cfg.LoadRadius = 5
	cfg.GenWorkers = 4
	w := newTestWorld(t, cfg)

	w.StepOnce(geom.Vec2{}, nil)
	if got := w.streamer.LoadedCount(); got != 100 {
		t.Fatalf("loaded %d chunks after first tick, want 100", got)
	}

	deadline := time.Now().Add(10 * time.Second)
	for len(w.streamer.ReadyCoords()) < 100 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 100 chunks ready", len(w.streamer.ReadyCoords()))
		}
		time.Sleep(5 * time.Millisecond)
		w.StepOnce(geom.Vec2{}, nil)
	}

	for _, ch := range w.streamer.Chunks() {
		if ch.State != terrain.StateReady || ch.Mesh == nil {
			t.Fatalf("chunk %v not ready after drain", ch.Coord)
		}
	}
}

func TestRouteTrackAndTrainGrowth(t *testing.T) {
	w := newTestWorld(t, testConfig())

	for i := 0; i < 60; i++ {
		w.StepOnce(geom.Vec2{}, nil)
	}

	if w.route.Len() < 6 {
		t.Fatalf("route has %d points, want at least 6", w.route.Len())
	}
	if w.track.MaxSegmentID() < 4 {
		t.Fatalf("track has %d segments, want at least 4", w.track.MaxSegmentID())
	}
	if !w.trainSpawned {
		t.Fatal("train did not spawn with track covering the spawn position")
	}
	st, ok := w.train.Status()
	if !ok {
		t.Fatal("no tracked wagon after spawn")
	}
	if st.TractiveForce != w.cfg.Train.TractiveForce {
		t.Fatalf("tracked wagon tractive force %v, want %v",
			st.TractiveForce, w.cfg.Train.TractiveForce)
	}
	if len(st.Bogies) != 2 {
		t.Fatalf("tracked wagon has %d bogies, want 2", len(st.Bogies))
	}
}

func TestControlChangesWagonForces(t *testing.T) {
	w := newTestWorld(t, testConfig())
	for i := 0; i < 60; i++ {
		w.StepOnce(geom.Vec2{}, nil)
	}
	st, ok := w.train.Status()
	if !ok {
		t.Fatal("no tracked wagon")
	}

	tractive := 9000.0
	braking := 500.0
	w.StepOnce(geom.Vec2{}, []ControlInput{{
		WagonID:  st.WagonID,
		Tractive: &tractive,
		Braking:  &braking,
	}})

	st, _ = w.train.Status()
	if st.TractiveForce != 9000 || st.BrakingForce != 500 {
		t.Fatalf("forces not applied: tractive=%v braking=%v",
			st.TractiveForce, st.BrakingForce)
	}
}

func TestSnapshotRoundTripResumesIdentically(t *testing.T) {
	a := newTestWorld(t, testConfig())
	for i := 0; i < 60; i++ {
		a.StepOnce(geom.Vec2{}, nil)
	}
	if !a.trainSpawned {
		t.Fatal("train did not spawn before snapshot")
	}

	snap := a.ExportSnapshot(a.tick.Load() - 1)

	b := newTestWorld(t, testConfig())
	if err := b.ImportSnapshot(snap); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if b.tick.Load() != a.tick.Load() {
		t.Fatalf("resumed at tick %d, want %d", b.tick.Load(), a.tick.Load())
	}
	if b.track.MaxSegmentID() != a.track.MaxSegmentID() {
		t.Fatalf("rebuilt %d segments, want %d",
			b.track.MaxSegmentID(), a.track.MaxSegmentID())
	}

	for i := 0; i < 30; i++ {
		_, da := a.StepOnce(geom.Vec2{}, nil)
		_, db := b.StepOnce(geom.Vec2{}, nil)
		if da != db {
			t.Fatalf("digest diverged %d ticks after resume:\n  a=%s\n  b=%s", i, da, db)
		}
	}
}

func TestSnapshotImportRejectsUnknownVersion(t *testing.T) {
	w := newTestWorld(t, testConfig())
	snap := w.ExportSnapshot(0)
	snap.Header.Version = 99
	if err := w.ImportSnapshot(snap); err == nil {
		t.Fatal("expected error for unknown snapshot version")
	}
}

func TestNoiseSwapRegeneratesChunks(t *testing.T) {
	w := newTestWorld(t, testConfig())

	w.StepOnce(geom.Vec2{}, nil)
	before := w.streamer.LoadedCount()
	if before == 0 {
		t.Fatal("no chunks loaded before swap")
	}
	digestBefore := w.lastDigest

	resp := make(chan error, 1)
	w.stepInternal(geom.Vec2{}, nil, []NoiseSwapRequest{{
		Settings: heightfield.Settings{Amplitude: 40, Scale: 800, Seed: 7},
		Resp:     resp,
	}})
	if err := <-resp; err != nil {
		t.Fatalf("swap: %v", err)
	}

	if s := w.field.Settings(); s.Seed != 7 || s.Amplitude != 40 {
		t.Fatalf("field settings not swapped: %+v", s)
	}
	// The same tick re-queues the cleared grid under the new field.
	if got := w.streamer.LoadedCount(); got != before {
		t.Fatalf("loaded %d chunks after swap, want %d", got, before)
	}
	for _, ch := range w.streamer.Chunks() {
		if ch.State == terrain.StateReady {
			t.Fatalf("chunk %v still ready right after swap", ch.Coord)
		}
	}
	if w.lastDigest == digestBefore {
		t.Fatal("digest unchanged after noise swap")
	}
}

func TestObserverReceivesCatchUpAndFrames(t *testing.T) {
	w := newTestWorld(t, testConfig())
	for i := 0; i < 20; i++ {
		w.StepOnce(geom.Vec2{}, nil)
	}

	out := make(chan []byte, 8)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "s1", Out: out})

	select {
	case msg := <-out:
		if len(msg) == 0 {
			t.Fatal("empty catch-up frame")
		}
	default:
		t.Fatal("no catch-up frame on join")
	}

	w.StepOnce(geom.Vec2{}, nil)
	select {
	case <-out:
	default:
		t.Fatal("no frame after tick")
	}

	w.handleObserverLeave("s1")
	if len(w.observers) != 0 {
		t.Fatalf("observer not removed, %d left", len(w.observers))
	}
}
