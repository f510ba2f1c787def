// Package observer serves the websocket observer stream and the
// bootstrap endpoint. All world interaction goes through the world's
// channels; the handlers never touch simulation state directly.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"railworld/internal/geom"
	"railworld/internal/protocol"
	"railworld/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			Tick:            s.world.CurrentTick(),
			WorldParams: protocol.WorldParams{
				TickRateHz:    cfg.TickRateHz,
				PhysicsRateHz: cfg.PhysicsRateHz,
				Seed:          cfg.Seed,
				ChunkSize:     cfg.ChunkSize,
				LoadRadius:    cfg.LoadRadius,
				VertexStride:  cfg.VertexStride,
				NodeLength:    cfg.NodeLength,
				WaterLevel:    cfg.WaterLevel,
			},
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 64)

		joinReq := world.ObserverJoinRequest{
			SessionID:  sid,
			Out:        out,
			WithMeshes: sub.WithMeshes,
		}
		select {
		case s.world.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates, viewpoint moves, controls.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.dispatch(sid, msg)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) dispatch(sid string, msg []byte) {
	var head struct {
		Type            string `json:"type"`
		ProtocolVersion string `json:"protocol_version"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return
	}
	if head.ProtocolVersion != protocol.Version {
		return
	}

	switch head.Type {
	case "SUBSCRIBE":
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			return
		}
		req := world.ObserverSubscribeRequest{
			SessionID:  sid,
			WithMeshes: sub.WithMeshes,
		}
		select {
		case s.world.ObserverSubscribe() <- req:
		default:
			// Drop updates under load; the client may resend.
		}

	case "VIEWPOINT":
		var vp protocol.ViewpointMsg
		if err := json.Unmarshal(msg, &vp); err != nil {
			return
		}
		select {
		case s.world.Viewpoint() <- geom.Vec2{X: vp.X, Z: vp.Z}:
		default:
		}

	case "CONTROL":
		var ctl protocol.ControlMsg
		if err := json.Unmarshal(msg, &ctl); err != nil {
			return
		}
		env := world.ControlEnvelope{Input: world.ControlInput{
			WagonID:  ctl.WagonID,
			Tractive: ctl.Tractive,
			Braking:  ctl.Braking,
		}}
		select {
		case s.world.Control() <- env:
		default:
			// Force controls are idempotent; a dropped one can be resent.
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
