// Package protocol defines the observer wire messages. Observers
// subscribe over a websocket and receive one FRAME per simulation tick
// carrying the world deltas since the previous frame; they may also
// steer the streaming viewpoint and send train force controls.
package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"railworld/internal/geom"
)

// Version is the observer protocol version.
const Version = "1.0"

// Client -> Server. First message on the observer connection; may be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// WithMeshes requests full mesh payloads for chunks and track
	// segments; poses-only observers leave it false.
	WithMeshes bool `json:"with_meshes,omitempty"`
}

// Client -> Server. Moves the streaming viewpoint; chunk loading and
// route extension follow it.
type ViewpointMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
}

// Client -> Server. Sets the tracked wagon's drive forces. Nil fields
// leave the current value in place.
type ControlMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	WagonID         int      `json:"wagon_id"`
	Tractive        *float64 `json:"tractive,omitempty"`
	Braking         *float64 `json:"braking,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz    int     `json:"tick_rate_hz"`
	PhysicsRateHz int     `json:"physics_rate_hz"`
	Seed          int64   `json:"seed"`
	ChunkSize     int     `json:"chunk_size"`
	LoadRadius    int     `json:"load_radius"`
	VertexStride  int     `json:"vertex_stride"`
	NodeLength    float64 `json:"node_length"`
	WaterLevel    float64 `json:"water_level"`
}

// Server -> Client. Sent every tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	ChunksAdded   []ChunkAdded   `json:"chunks_added,omitempty"`
	ChunksRemoved []ChunkRef     `json:"chunks_removed,omitempty"`
	RoutePoints   []Vec3         `json:"route_points,omitempty"`
	TrackSegments []TrackSegment `json:"track_segments,omitempty"`

	Bogies []BogiePose `json:"bogies,omitempty"`
	Wagons []WagonPose `json:"wagons,omitempty"`

	TrackedWagon *WagonReport `json:"tracked_wagon,omitempty"`
}

type ChunkRef struct {
	ID uint64 `json:"id"`
	CX int    `json:"cx"`
	CZ int    `json:"cz"`
}

type ChunkAdded struct {
	ID     uint64     `json:"id"`
	CX     int        `json:"cx"`
	CZ     int        `json:"cz"`
	Offset [2]float64 `json:"offset"`
	Mesh   *MeshData  `json:"mesh,omitempty"`
}

type TrackSegment struct {
	ID     int       `json:"id"`
	Origin Vec3      `json:"origin"`
	Mesh   *MeshData `json:"mesh,omitempty"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type BogiePose struct {
	ID       int     `json:"id"`
	T        float64 `json:"t"`
	Velocity float64 `json:"velocity"`
	Position Vec3    `json:"position"`
	Forward  Vec3    `json:"forward"`
}

type WagonPose struct {
	ID       int     `json:"id"`
	Velocity float64 `json:"velocity"`
	Position Vec3    `json:"position"`
	Forward  Vec3    `json:"forward"`
}

// WagonReport is the tracked wagon's status block.
type WagonReport struct {
	WagonID       int           `json:"wagon_id"`
	Mass          float64       `json:"mass"`
	Velocity      float64       `json:"velocity"`
	TractiveForce float64       `json:"tractive_force"`
	BrakingForce  float64       `json:"braking_force"`
	Bogies        []BogieReport `json:"bogies"`
}

type BogieReport struct {
	ID              int     `json:"id"`
	T               float64 `json:"t"`
	Velocity        float64 `json:"velocity"`
	SlopeAngle      float64 `json:"slope_angle"`
	HorizontalForce float64 `json:"horizontal_force"`
	VerticalForce   float64 `json:"vertical_force"`
	StaticFriction  float64 `json:"static_friction"`
	KineticFriction float64 `json:"kinetic_friction"`
}

// MeshData carries a triangle mesh as base64 little-endian arrays:
// vertices and normals are float32 xyz triples, indices uint32.
type MeshData struct {
	Encoding    string `json:"encoding"`
	VertexCount int    `json:"vertex_count"`
	Vertices    string `json:"vertices"`
	Normals     string `json:"normals,omitempty"`
	Indices     string `json:"indices"`
}

// MeshEncoding is the only encoding currently emitted.
const MeshEncoding = "f32le"

// EncodeMesh packs a mesh for the wire.
func EncodeMesh(m *geom.Mesh) *MeshData {
	if m == nil {
		return nil
	}
	return &MeshData{
		Encoding:    MeshEncoding,
		VertexCount: len(m.Vertices),
		Vertices:    encodeVec3s(m.Vertices),
		Normals:     encodeVec3s(m.Normals),
		Indices:     encodeUint32s(m.Indices),
	}
}

func encodeVec3s(vs []geom.Vec3) string {
	buf := make([]byte, 0, len(vs)*12)
	var tmp [4]byte
	for _, v := range vs {
		for _, f := range [3]float64{v.X, v.Y, v.Z} {
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(float32(f)))
			buf = append(buf, tmp[:]...)
		}
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func encodeUint32s(is []uint32) string {
	buf := make([]byte, 0, len(is)*4)
	var tmp [4]byte
	for _, i := range is {
		binary.LittleEndian.PutUint32(tmp[:], i)
		buf = append(buf, tmp[:]...)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Vec3FromGeom converts a simulation vector for the wire.
func Vec3FromGeom(v geom.Vec3) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }
