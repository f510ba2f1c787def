package world

import (
	"railworld/internal/geom"
	"railworld/internal/protocol"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/terrain"
	"railworld/internal/sim/track"
	"railworld/internal/sim/train"
)

// stepInternal advances one tick. Phase order matters: terrain
// streaming first, then route extension, then track building, then
// physics, then observer publication. Each phase reads only state that
// earlier phases have finished writing this tick.
func (w *World) stepInternal(viewpoint geom.Vec2, controls []ControlEnvelope, swaps []NoiseSwapRequest) {
	nowTick := w.tick.Load()
	w.viewpoint = viewpoint

	// Noise swaps apply at the tick boundary. Chunks are cleared and
	// regenerate under the new field; route and track keep their
	// already generated geometry.
	var cleared []*terrain.Chunk
	for _, req := range swaps {
		w.field = heightfield.New(req.Settings)
		w.streamer.SetSampler(w.field.At)
		cleared = append(cleared, w.streamer.Reset()...)
		if req.Resp != nil {
			req.Resp <- nil
		}
	}

	// Force controls in arrival order.
	recorded := make([]ControlInput, 0, len(controls))
	for _, env := range controls {
		err := w.applyControl(env.Input)
		if err == nil {
			recorded = append(recorded, env.Input)
		}
		if env.Resp != nil {
			env.Resp <- err
		}
	}

	// Terrain streaming: poll completions, queue new coords, evict.
	stream := w.streamer.Step(viewpoint)

	// Route extension: one candidate node per tick, gated on the last
	// point still being inside the loaded area.
	w.route.Extend(w.withinLoadedArea)

	// Track building: at most one segment per tick, in id order.
	if seg := w.builder.BuildNext(w.route, w.track); seg != nil {
		w.segMeshes[seg.ID] = w.extruder.Extrude(track.DefaultCrossSection(), seg.Points)
		w.maybeSpawnTrain()
	}

	// Physics: zero or more fixed steps from accumulated tick time.
	w.physicsAccum += 1 / float64(w.cfg.TickRateHz)
	physDt := 1 / float64(w.cfg.PhysicsRateHz)
	for w.physicsAccum >= physDt {
		w.train.Step(physDt)
		w.physicsAccum -= physDt
	}

	stream.Evicted = append(cleared, stream.Evicted...)
	w.publishFrame(nowTick, stream)

	digest := w.stateDigest(nowTick)
	w.lastDigest = digest
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:        nowTick,
			Viewpoint:   [2]float64{viewpoint.X, viewpoint.Z},
			Controls:    recorded,
			Digest:      digest,
			ReadyChunks: len(w.streamer.ReadyCoords()),
		})
	}

	if w.snapshotSink != nil && nowTick != 0 && nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop the snapshot if the sink is backed up.
		}
	}

	w.tick.Add(1)
}

func (w *World) applyControl(in ControlInput) error {
	if in.Tractive != nil {
		if err := w.train.SetTractiveForce(in.WagonID, *in.Tractive); err != nil {
			return err
		}
	}
	if in.Braking != nil {
		if err := w.train.SetBrakingForce(in.WagonID, *in.Braking); err != nil {
			return err
		}
	}
	return nil
}

// withinLoadedArea reports whether a point lies inside the load radius
// of the viewpoint's chunk, the gate for route extension.
func (w *World) withinLoadedArea(p geom.Vec2) bool {
	pc := terrain.ChunkCoordAt(p, w.cfg.ChunkSize)
	vc := terrain.ChunkCoordAt(w.viewpoint, w.cfg.ChunkSize)
	dx, dz := pc.X-vc.X, pc.Z-vc.Z
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	return dx <= w.cfg.LoadRadius && dz <= w.cfg.LoadRadius
}

// maybeSpawnTrain places the wagon once the track covers both bogie
// spawn positions.
func (w *World) maybeSpawnTrain() {
	if w.trainSpawned {
		return
	}
	tc := w.cfg.Train
	trailT := tc.SpawnT - tc.BogieDistance/tc.TCoefficient
	if !w.train.CanSpawnAt(tc.SpawnT) || !w.train.CanSpawnAt(trailT) {
		return
	}
	wg := w.train.SpawnWagon(tc.SpawnT, tc.WagonMass, tc.BogieMass, tc.BogieDistance)
	wg.TractiveForce = tc.TractiveForce
	wg.BrakingForce = tc.BrakingForce
	w.trainSpawned = true
}

// publishFrame broadcasts this tick's deltas to every observer and
// advances the route publication cursor.
func (w *World) publishFrame(nowTick uint64, stream terrain.StepResult) {
	newPoints := w.route.Points()[w.routePublished:]
	w.routePublished += len(newPoints)

	// Segments registered this tick: ids above what observers have
	// already seen. BuildNext registers at most one per tick, so this
	// is 0 or 1 segments.
	var newSegs []*track.Segment
	if w.segsPublished < w.track.MaxSegmentID() {
		for id := w.segsPublished + 1; id <= w.track.MaxSegmentID(); id++ {
			if seg, ok := w.track.Segment(id); ok {
				newSegs = append(newSegs, seg)
			}
		}
		w.segsPublished = w.track.MaxSegmentID()
	}

	if len(w.observers) == 0 {
		return
	}

	base := protocol.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
	}
	for _, p := range newPoints {
		base.RoutePoints = append(base.RoutePoints, protocol.Vec3FromGeom(p))
	}
	for _, ch := range stream.Evicted {
		base.ChunksRemoved = append(base.ChunksRemoved, protocol.ChunkRef{
			ID: ch.ID, CX: ch.Coord.X, CZ: ch.Coord.Z,
		})
	}
	base.Bogies, base.Wagons = w.trainPoses()
	if st, ok := w.train.Status(); ok {
		base.TrackedWagon = wagonReport(st)
	}

	for _, oc := range w.observers {
		frame := base
		for _, ch := range stream.Ready {
			added := protocol.ChunkAdded{
				ID: ch.ID, CX: ch.Coord.X, CZ: ch.Coord.Z,
				Offset: [2]float64{ch.Offset.X, ch.Offset.Z},
			}
			if oc.withMeshes {
				added.Mesh = protocol.EncodeMesh(ch.Mesh)
			}
			frame.ChunksAdded = append(frame.ChunksAdded, added)
		}
		for _, seg := range newSegs {
			ts := protocol.TrackSegment{ID: seg.ID, Origin: protocol.Vec3FromGeom(seg.Origin)}
			if oc.withMeshes {
				ts.Mesh = protocol.EncodeMesh(w.segMeshes[seg.ID])
			}
			frame.TrackSegments = append(frame.TrackSegments, ts)
		}
		oc.send(frame)
	}
}

func (w *World) trainPoses() ([]protocol.BogiePose, []protocol.WagonPose) {
	st := w.train.ExportState()
	var bogies []protocol.BogiePose
	for _, b := range st.Bogies {
		if !b.HasPose {
			continue
		}
		bogies = append(bogies, protocol.BogiePose{
			ID:       b.ID,
			T:        b.T,
			Velocity: b.Velocity,
			Position: protocol.Vec3FromGeom(b.Pose.Position),
			Forward:  protocol.Vec3FromGeom(b.Pose.Forward),
		})
	}
	var wagons []protocol.WagonPose
	for _, wg := range st.Wagons {
		if !wg.HasPose {
			continue
		}
		wagons = append(wagons, protocol.WagonPose{
			ID:       wg.ID,
			Velocity: wg.Velocity,
			Position: protocol.Vec3FromGeom(wg.Pose.Position),
			Forward:  protocol.Vec3FromGeom(wg.Pose.Forward),
		})
	}
	return bogies, wagons
}

func wagonReport(st train.WagonStatus) *protocol.WagonReport {
	rep := &protocol.WagonReport{
		WagonID:       st.WagonID,
		Mass:          st.Mass,
		Velocity:      st.Velocity,
		TractiveForce: st.TractiveForce,
		BrakingForce:  st.BrakingForce,
	}
	for _, bs := range st.Bogies {
		rep.Bogies = append(rep.Bogies, protocol.BogieReport{
			ID:              bs.ID,
			T:               bs.T,
			Velocity:        bs.Velocity,
			SlopeAngle:      bs.SlopeAngle,
			HorizontalForce: bs.HorizontalForce,
			VerticalForce:   bs.VerticalForce,
			StaticFriction:  bs.StaticFriction,
			KineticFriction: bs.KineticFriction,
		})
	}
	return rep
}
