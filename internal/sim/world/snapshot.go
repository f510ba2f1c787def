package world

import (
	"fmt"

	"railworld/internal/geom"
	"railworld/internal/persistence/snapshot"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/track"
	"railworld/internal/sim/train"
)

// Snapshot is the persisted form of the world's deterministic state.
type Snapshot = snapshot.SnapshotV1

// SnapshotRequest asks the world loop for an on-demand snapshot at the
// next tick boundary.
type SnapshotRequest struct {
	Resp chan Snapshot
}

type adminSnapshotReq = SnapshotRequest

// Admin returns the on-demand snapshot request channel.
func (w *World) Admin() chan<- SnapshotRequest { return w.admin }

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	// Runs after the step has advanced the counter, so the state
	// belongs to the previous tick value.
	last := w.tick.Load()
	if last > 0 {
		last--
	}
	for _, req := range reqs {
		if req.Resp == nil {
			continue
		}
		req.Resp <- w.ExportSnapshot(last)
	}
}

// ExportSnapshot captures everything needed to resume the run: config,
// route, builder progress, and train state. Chunks and track segments
// are re-derived on import.
func (w *World) ExportSnapshot(nowTick uint64) Snapshot {
	s := w.field.Settings()
	snap := Snapshot{
		Header: snapshot.Header{Version: 1, Tick: nowTick},

		Seed:          w.cfg.Seed,
		TickRateHz:    w.cfg.TickRateHz,
		PhysicsRateHz: w.cfg.PhysicsRateHz,

		NoiseAmplitude:  s.Amplitude,
		NoiseScale:      s.Scale,
		NoiseBaseOffset: s.BaseOffset,
		NoiseSeed:       s.Seed,
		WaterLevel:      w.cfg.WaterLevel,

		ChunkSize:    w.cfg.ChunkSize,
		LoadRadius:   w.cfg.LoadRadius,
		VertexStride: w.cfg.VertexStride,

		NodeLength:        w.cfg.NodeLength,
		MaxTurnAngle:      w.cfg.MaxTurnAngle,
		RouteClearance:    w.cfg.RouteClearance,
		TrackSmoothing:    w.cfg.TrackSmoothing,
		TrackSubdivisions: w.cfg.TrackSubdivisions,
		TrackClearance:    w.cfg.TrackClearance,

		Viewpoint:    [2]float64{w.viewpoint.X, w.viewpoint.Z},
		PhysicsAccum: w.physicsAccum,
		TrainSpawned: w.trainSpawned,

		LastUsedNode: w.builder.LastUsedNode(),
	}

	for _, p := range w.route.Points() {
		snap.RoutePoints = append(snap.RoutePoints, [3]float64{p.X, p.Y, p.Z})
	}

	st := w.train.ExportState()
	snap.Train.NextBogieID = st.NextBogieID
	snap.Train.NextWagonID = st.NextWagonID
	snap.Train.TrackedWagon = st.TrackedWagon
	for _, b := range st.Bogies {
		snap.Train.Bogies = append(snap.Train.Bogies, snapshot.BogieV1{
			ID: b.ID, T: b.T, Velocity: b.Velocity, Mass: b.Mass,
			WagonID: b.WagonID, Leading: b.Leading,
		})
	}
	for _, wg := range st.Wagons {
		snap.Train.Wagons = append(snap.Train.Wagons, snapshot.WagonV1{
			ID:                    wg.ID,
			Mass:                  wg.Mass,
			TractiveForce:         wg.TractiveForce,
			BrakingForce:          wg.BrakingForce,
			DistanceBetweenBogies: wg.DistanceBetweenBogies,
			LeadingBogie:          wg.LeadingBogie,
			TrailingBogie:         wg.TrailingBogie,
			Velocity:              wg.Velocity,
		})
	}
	return snap
}

// ImportSnapshot restores route, track, and train state. Track
// segments are rebuilt deterministically up to the recorded builder
// progress; bogie and wagon poses refresh on the first stepped tick.
func (w *World) ImportSnapshot(snap Snapshot) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}

	// The field may have been swapped at runtime; the snapshot's noise
	// settings, not the config's, are authoritative.
	w.field = heightfield.New(heightfield.Settings{
		Amplitude:  snap.NoiseAmplitude,
		Scale:      snap.NoiseScale,
		BaseOffset: snap.NoiseBaseOffset,
		Seed:       snap.NoiseSeed,
	})
	w.streamer.SetSampler(w.field.At)

	points := make([]geom.Vec3, 0, len(snap.RoutePoints))
	for _, p := range snap.RoutePoints {
		points = append(points, geom.Vec3{X: p[0], Y: p[1], Z: p[2]})
	}
	w.route.Restore(points)

	for w.builder.LastUsedNode() < snap.LastUsedNode {
		seg := w.builder.BuildNext(w.route, w.track)
		if seg == nil {
			return fmt.Errorf("track rebuild stalled at node %d of %d",
				w.builder.LastUsedNode(), snap.LastUsedNode)
		}
		w.segMeshes[seg.ID] = w.extruder.Extrude(track.DefaultCrossSection(), seg.Points)
	}

	st := train.State{
		NextBogieID:  snap.Train.NextBogieID,
		NextWagonID:  snap.Train.NextWagonID,
		TrackedWagon: snap.Train.TrackedWagon,
	}
	for _, b := range snap.Train.Bogies {
		st.Bogies = append(st.Bogies, train.Bogie{
			ID: b.ID, T: b.T, Velocity: b.Velocity, Mass: b.Mass,
			WagonID: b.WagonID, Leading: b.Leading,
		})
	}
	for _, wg := range snap.Train.Wagons {
		st.Wagons = append(st.Wagons, train.Wagon{
			ID:                    wg.ID,
			Mass:                  wg.Mass,
			TractiveForce:         wg.TractiveForce,
			BrakingForce:          wg.BrakingForce,
			DistanceBetweenBogies: wg.DistanceBetweenBogies,
			LeadingBogie:          wg.LeadingBogie,
			TrailingBogie:         wg.TrailingBogie,
			Velocity:              wg.Velocity,
		})
	}
	w.train.Restore(st)

	w.viewpoint = geom.Vec2{X: snap.Viewpoint[0], Z: snap.Viewpoint[1]}
	w.physicsAccum = snap.PhysicsAccum
	w.trainSpawned = snap.TrainSpawned

	// Observers joining after a resume catch up from live state.
	w.routePublished = w.route.Len()
	w.segsPublished = w.track.MaxSegmentID()

	w.tick.Store(snap.Header.Tick + 1)
	return nil
}
