package world

import (
	"encoding/json"

	"railworld/internal/protocol"
	"railworld/internal/sim/terrain"
)

// ObserverJoinRequest registers a read-only observer session. The
// session receives one FRAME per tick on Out; the first frame is a
// catch-up carrying everything currently live. All observer state is
// maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID  string
	Out        chan []byte
	WithMeshes bool
}

// ObserverSubscribeRequest updates an existing observer session's
// settings.
type ObserverSubscribeRequest struct {
	SessionID  string
	WithMeshes bool
}

type observerClient struct {
	id         string
	out        chan []byte
	withMeshes bool
}

// send marshals and enqueues without blocking; a slow observer drops
// frames rather than stalling the tick.
func (oc *observerClient) send(frame protocol.FrameMsg) {
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case oc.out <- b:
	default:
	}
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	oc := &observerClient{id: req.SessionID, out: req.Out, withMeshes: req.WithMeshes}
	w.observers[req.SessionID] = oc
	oc.send(w.catchUpFrame(oc))
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	oc, ok := w.observers[req.SessionID]
	if !ok {
		return
	}
	resendMeshes := req.WithMeshes && !oc.withMeshes
	oc.withMeshes = req.WithMeshes
	if resendMeshes {
		oc.send(w.catchUpFrame(oc))
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	delete(w.observers, sessionID)
}

// catchUpFrame carries all currently live state: ready chunks, the
// full route polyline, every track segment, and the train poses.
func (w *World) catchUpFrame(oc *observerClient) protocol.FrameMsg {
	frame := protocol.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
	}
	for _, ch := range w.streamer.Chunks() {
		if ch.State != terrain.StateReady {
			continue
		}
		added := protocol.ChunkAdded{
			ID: ch.ID, CX: ch.Coord.X, CZ: ch.Coord.Z,
			Offset: [2]float64{ch.Offset.X, ch.Offset.Z},
		}
		if oc.withMeshes {
			added.Mesh = protocol.EncodeMesh(ch.Mesh)
		}
		frame.ChunksAdded = append(frame.ChunksAdded, added)
	}
	for _, p := range w.route.Points() {
		frame.RoutePoints = append(frame.RoutePoints, protocol.Vec3FromGeom(p))
	}
	for _, seg := range w.track.Segments() {
		ts := protocol.TrackSegment{ID: seg.ID, Origin: protocol.Vec3FromGeom(seg.Origin)}
		if oc.withMeshes {
			ts.Mesh = protocol.EncodeMesh(w.segMeshes[seg.ID])
		}
		frame.TrackSegments = append(frame.TrackSegments, ts)
	}
	frame.Bogies, frame.Wagons = w.trainPoses()
	if st, ok := w.train.Status(); ok {
		frame.TrackedWagon = wagonReport(st)
	}
	return frame
}
