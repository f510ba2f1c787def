package world

import (
	"railworld/internal/protocol"
)

// StatusReport is the /v1/status payload.
type StatusReport struct {
	Tick            uint64                `json:"tick"`
	Seed            int64                 `json:"seed"`
	TickRateHz      int                   `json:"tick_rate_hz"`
	PhysicsRateHz   int                   `json:"physics_rate_hz"`
	Viewpoint       [2]float64            `json:"viewpoint"`
	LoadedChunks    int                   `json:"loaded_chunks"`
	ReadyChunks     int                   `json:"ready_chunks"`
	RoutePoints     int                   `json:"route_points"`
	TrackSegments   int                   `json:"track_segments"`
	CoveredDistance float64               `json:"covered_distance"`
	Observers       int                   `json:"observers"`
	Digest          string                `json:"digest"`
	TrackedWagon    *protocol.WagonReport `json:"tracked_wagon,omitempty"`
}

func (w *World) buildStatus() StatusReport {
	rep := StatusReport{
		Tick:          w.tick.Load(),
		Seed:          w.cfg.Seed,
		TickRateHz:    w.cfg.TickRateHz,
		PhysicsRateHz: w.cfg.PhysicsRateHz,
		Viewpoint:     [2]float64{w.viewpoint.X, w.viewpoint.Z},
		LoadedChunks:  w.streamer.LoadedCount(),
		ReadyChunks:   len(w.streamer.ReadyCoords()),
		RoutePoints:   w.route.Len(),
		TrackSegments: w.track.MaxSegmentID(),
		Observers:     len(w.observers),
		Digest:        w.lastDigest,
	}
	if n := w.track.MaxSegmentID(); n > 0 {
		rep.CoveredDistance = float64(n) * w.cfg.NodeLength
	}
	if st, ok := w.train.Status(); ok {
		rep.TrackedWagon = wagonReport(st)
	}
	return rep
}
