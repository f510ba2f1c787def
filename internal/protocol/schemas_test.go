package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"railworld/internal/geom"
	"railworld/internal/protocol"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/terrain"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	roundTrip := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	subscribeSchema := compile("subscribe.schema.json")
	viewpointSchema := compile("viewpoint.schema.json")
	controlSchema := compile("control.schema.json")
	bootstrapSchema := compile("bootstrap.schema.json")
	frameSchema := compile("frame.schema.json")

	validate(subscribeSchema, roundTrip(protocol.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: protocol.Version,
		WithMeshes:      true,
	}))

	validate(viewpointSchema, roundTrip(protocol.ViewpointMsg{
		Type:            "VIEWPOINT",
		ProtocolVersion: protocol.Version,
		X:               120.5,
		Z:               -40,
	}))

	tractive := 9000.0
	validate(controlSchema, roundTrip(protocol.ControlMsg{
		Type:            "CONTROL",
		ProtocolVersion: protocol.Version,
		WagonID:         1,
		Tractive:        &tractive,
	}))

	validate(bootstrapSchema, roundTrip(protocol.BootstrapResponse{
		ProtocolVersion: protocol.Version,
		Tick:            12,
		WorldParams: protocol.WorldParams{
			TickRateHz:    30,
			PhysicsRateHz: 60,
			Seed:          1354251456,
			ChunkSize:     1000,
			LoadRadius:    5,
			VertexStride:  200,
			NodeLength:    50,
			WaterLevel:    -23,
		},
	}))

	mesh := &geom.Mesh{
		Vertices: []geom.Vec3{{}, {X: 1}, {Z: 1}},
		Normals:  []geom.Vec3{{Y: 1}, {Y: 1}, {Y: 1}},
		Indices:  []uint32{0, 1, 2},
	}
	frame := protocol.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: protocol.Version,
		Tick:            12,
		ChunksAdded: []protocol.ChunkAdded{
			{ID: 7, CX: -1, CZ: 3, Offset: [2]float64{-1500, 2500}, Mesh: protocol.EncodeMesh(mesh)},
		},
		ChunksRemoved: []protocol.ChunkRef{{ID: 2, CX: 4, CZ: 4}},
		RoutePoints:   []protocol.Vec3{{X: 50, Y: 3.2, Z: 0}},
		TrackSegments: []protocol.TrackSegment{
			{ID: 3, Origin: protocol.Vec3{X: 100, Y: 4, Z: 20}, Mesh: protocol.EncodeMesh(mesh)},
		},
		Bogies: []protocol.BogiePose{
			{ID: 1, T: 2.5, Velocity: 12.5, Position: protocol.Vec3{X: 1}, Forward: protocol.Vec3{X: 1}},
		},
		Wagons: []protocol.WagonPose{
			{ID: 1, Velocity: 12.5, Position: protocol.Vec3{X: 1, Y: 2}, Forward: protocol.Vec3{X: 1}},
		},
		TrackedWagon: &protocol.WagonReport{
			WagonID:       1,
			Mass:          28000,
			Velocity:      12.5,
			TractiveForce: 15000,
			Bogies: []protocol.BogieReport{
				{ID: 1, T: 2.5, Velocity: 12.5, SlopeAngle: 0.01, HorizontalForce: 7500, VerticalForce: -1834, StaticFriction: 733, KineticFriction: 366},
			},
		},
	}
	validate(frameSchema, roundTrip(frame))

	// A frame with no deltas is still a valid frame.
	validate(frameSchema, roundTrip(protocol.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: protocol.Version,
		Tick:            13,
	}))
}

// TestFrameSchema_StreamerChunks feeds a frame built from chunks the
// terrain streamer actually assigned, rather than hand-picked ids, so
// the schema's id bounds are checked against real output.
func TestFrameSchema_StreamerChunks(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "frame.schema.json")
	frameSchema, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile frame.schema.json: %v", err)
	}

	field := heightfield.New(heightfield.Settings{Amplitude: 25, Scale: 1000, Seed: 42})
	s := terrain.NewStreamer(terrain.Config{ChunkSize: 1000, LoadRadius: 1, VertexStride: 500, Workers: 2}, field.At)
	t.Cleanup(s.Stop)

	var ready []*terrain.Chunk
	deadline := time.Now().Add(10 * time.Second)
	for len(ready) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no chunk became ready in time")
		}
		ready = s.Step(geom.Vec2{}).Ready
		time.Sleep(time.Millisecond)
	}

	frame := protocol.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: protocol.Version,
		Tick:            1,
	}
	for _, ch := range ready {
		frame.ChunksAdded = append(frame.ChunksAdded, protocol.ChunkAdded{
			ID:     ch.ID,
			CX:     ch.Coord.X,
			CZ:     ch.Coord.Z,
			Offset: [2]float64{ch.Offset.X, ch.Offset.Z},
			Mesh:   protocol.EncodeMesh(ch.Mesh),
		})
	}
	frame.ChunksRemoved = []protocol.ChunkRef{{
		ID: ready[0].ID,
		CX: ready[0].Coord.X,
		CZ: ready[0].Coord.Z,
	}}

	b, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := frameSchema.Validate(out); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEncodeMesh(t *testing.T) {
	mesh := &geom.Mesh{
		Vertices: []geom.Vec3{{X: 1, Y: 2, Z: 3}},
		Normals:  []geom.Vec3{{Y: 1}},
		Indices:  []uint32{0},
	}
	md := protocol.EncodeMesh(mesh)
	if md.Encoding != protocol.MeshEncoding {
		t.Fatalf("encoding %q", md.Encoding)
	}
	if md.VertexCount != 1 {
		t.Fatalf("vertex count %d", md.VertexCount)
	}
	if md.Vertices == "" || md.Normals == "" || md.Indices == "" {
		t.Fatalf("empty payloads: %+v", md)
	}
	if protocol.EncodeMesh(nil) != nil {
		t.Fatalf("nil mesh should encode to nil")
	}
}
