package world

import (
	"context"
	"time"

	"railworld/internal/geom"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.streamer.Stop()

	var pendingControls []ControlEnvelope
	var pendingSwaps []NoiseSwapRequest
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case vp := <-w.viewpointCh:
			// Latest viewpoint wins; intermediate ones carry no extra
			// information for streaming.
			w.viewpoint = vp
		case env := <-w.control:
			pendingControls = append(pendingControls, env)
		case req := <-w.noiseSwap:
			pendingSwaps = append(pendingSwaps, req)
		case resp := <-w.statusReq:
			resp <- w.buildStatus()
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.stepInternal(w.viewpoint, pendingControls, pendingSwaps)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingControls = pendingControls[:0]
			pendingSwaps = pendingSwaps[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server loop. It is primarily intended for
// deterministic replays and tests.
func (w *World) StepOnce(viewpoint geom.Vec2, controls []ControlInput) (tick uint64, digest string) {
	tick = w.tick.Load()
	envs := make([]ControlEnvelope, 0, len(controls))
	for _, in := range controls {
		envs = append(envs, ControlEnvelope{Input: in})
	}
	w.stepInternal(viewpoint, envs, nil)
	return tick, w.lastDigest
}
