package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync/atomic"

	"railworld/internal/geom"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/route"
	"railworld/internal/sim/terrain"
	"railworld/internal/sim/track"
	"railworld/internal/sim/train"
)

type TrainConfig struct {
	BogieMass        float64
	WagonMass        float64
	BogieDistance    float64
	StaticFriction   float64
	KineticFriction  float64
	TractiveForce    float64
	BrakingForce     float64
	SpawnT           float64
	TCoefficient     float64
	ConstraintGain   float64
	WagonHeightShift float64
}

type Config struct {
	TickRateHz    int
	PhysicsRateHz int

	Seed           int64
	NoiseAmplitude float64
	NoiseScale     float64
	WaterLevel     float64

	ChunkSize    int
	LoadRadius   int
	VertexStride int
	GenWorkers   int

	NodeLength     float64
	MaxTurnAngle   int
	RouteClearance float64

	TrackSmoothing    float64
	TrackSubdivisions int
	TrackClearance    float64

	Train TrainConfig

	SnapshotEveryTicks int
}

func (c *Config) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.PhysicsRateHz <= 0 {
		c.PhysicsRateHz = 60
	}
	if c.Seed == 0 {
		c.Seed = heightfield.DefaultSeed
	}
	if c.NoiseAmplitude == 0 {
		c.NoiseAmplitude = 25
	}
	if c.NoiseScale == 0 {
		c.NoiseScale = 1000
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.LoadRadius <= 0 {
		c.LoadRadius = 5
	}
	if c.VertexStride <= 0 {
		c.VertexStride = 200
	}
	if c.GenWorkers <= 0 {
		c.GenWorkers = 4
	}
	if c.NodeLength <= 0 {
		c.NodeLength = 50
	}
	if c.MaxTurnAngle <= 0 {
		c.MaxTurnAngle = 5
	}
	if c.RouteClearance == 0 {
		c.RouteClearance = 1
	}
	if c.TrackSmoothing == 0 {
		c.TrackSmoothing = 0.2
	}
	if c.TrackSubdivisions <= 0 {
		c.TrackSubdivisions = 20
	}
	if c.TrackClearance == 0 {
		c.TrackClearance = 0.3
	}
	if c.Train.BogieMass == 0 {
		c.Train.BogieMass = 4700
	}
	if c.Train.WagonMass == 0 {
		c.Train.WagonMass = 28000
	}
	if c.Train.BogieDistance == 0 {
		c.Train.BogieDistance = 15
	}
	if c.Train.StaticFriction == 0 {
		c.Train.StaticFriction = 0.004
	}
	if c.Train.KineticFriction == 0 {
		c.Train.KineticFriction = 0.002
	}
	if c.Train.TractiveForce == 0 {
		c.Train.TractiveForce = 15000
	}
	if c.Train.SpawnT == 0 {
		c.Train.SpawnT = 2
	}
	if c.Train.TCoefficient == 0 {
		c.Train.TCoefficient = 100
	}
	if c.Train.ConstraintGain == 0 {
		c.Train.ConstraintGain = 0.01
	}
	if c.Train.WagonHeightShift == 0 {
		c.Train.WagonHeightShift = 1.5
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
}

// World is a single-threaded authoritative simulation. All state must
// be accessed only from the world loop goroutine; terrain workers only
// exchange self-contained jobs with it.
type World struct {
	cfg Config

	tick atomic.Uint64

	field    *heightfield.Field
	streamer *terrain.Streamer
	route    *route.Generator
	track    *track.Track
	builder  *track.Builder
	extruder track.Extruder
	train    *train.Dynamics

	viewpoint    geom.Vec2
	trainSpawned bool
	physicsAccum float64
	lastDigest   string

	// Observer delta tracking, owned by the world loop.
	routePublished int
	segsPublished  int
	segMeshes      map[int]*geom.Mesh

	viewpointCh   chan geom.Vec2
	control       chan ControlEnvelope
	noiseSwap     chan NoiseSwapRequest
	statusReq     chan chan StatusReport
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	admin         chan adminSnapshotReq
	stop          chan struct{}

	observers map[string]*observerClient

	// Optional tick logger (may be nil).
	tickLogger TickLogger

	// Optional snapshot sink (may be nil). Snapshot writing is
	// off-thread.
	snapshotSink chan<- Snapshot
}

// TickLogger records one entry per tick; implementations must not
// block the world loop.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry captures the external inputs applied at a tick plus the
// resulting state digest, enough to re-verify a run from a snapshot.
type TickLogEntry struct {
	Tick      uint64         `json:"tick"`
	Viewpoint [2]float64     `json:"viewpoint"`
	Controls  []ControlInput `json:"controls,omitempty"`
	Digest    string         `json:"digest"`

	ReadyChunks int `json:"ready_chunks"`
}

// ControlInput is a force control applied to a wagon. Nil fields leave
// the current value in place.
type ControlInput struct {
	WagonID  int      `json:"wagon_id"`
	Tractive *float64 `json:"tractive,omitempty"`
	Braking  *float64 `json:"braking,omitempty"`
}

// ControlEnvelope carries a control input from a transport goroutine
// into the world loop.
type ControlEnvelope struct {
	Input ControlInput
	Resp  chan error
}

// NoiseSwapRequest replaces the height-field settings at the next tick
// boundary. Loaded chunks are cleared and regenerate under the new
// field; the route and track are append-only and keep their existing
// geometry.
type NoiseSwapRequest struct {
	Settings heightfield.Settings
	Resp     chan error
}

func New(cfg Config) (*World, error) {
	cfg.applyDefaults()

	w := &World{
		cfg:       cfg,
		segMeshes: map[int]*geom.Mesh{},

		viewpointCh:   make(chan geom.Vec2, 16),
		control:       make(chan ControlEnvelope, 64),
		noiseSwap:     make(chan NoiseSwapRequest, 4),
		statusReq:     make(chan chan StatusReport, 16),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		admin:         make(chan adminSnapshotReq, 4),
		stop:          make(chan struct{}),

		observers: map[string]*observerClient{},
	}

	w.field = heightfield.New(heightfield.Settings{
		Amplitude: cfg.NoiseAmplitude,
		Scale:     cfg.NoiseScale,
		Seed:      cfg.Seed,
	})
	// The closure indirection lets a noise swap take effect for all
	// later route/track/train sampling without re-wiring consumers.
	sample := func(x, z float64) float64 { return w.field.At(x, z) }

	w.streamer = terrain.NewStreamer(terrain.Config{
		ChunkSize:    cfg.ChunkSize,
		LoadRadius:   cfg.LoadRadius,
		VertexStride: cfg.VertexStride,
		Workers:      cfg.GenWorkers,
	}, w.field.At)

	w.route = route.NewGenerator(route.Config{
		NodeLength:   cfg.NodeLength,
		MaxTurnAngle: cfg.MaxTurnAngle,
		Clearance:    cfg.RouteClearance,
	}, sample)

	w.track = track.New(sample, cfg.TrackClearance, cfg.TrackSubdivisions)
	w.builder = track.NewBuilder(sample, cfg.TrackSmoothing, cfg.TrackSubdivisions, cfg.TrackClearance)
	w.extruder = track.SweepExtruder{}

	w.train = train.New(train.Config{
		StaticFrictionCoeff:  cfg.Train.StaticFriction,
		KineticFrictionCoeff: cfg.Train.KineticFriction,
		TCoefficient:         cfg.Train.TCoefficient,
		ConstraintGain:       cfg.Train.ConstraintGain,
		WagonHeightShift:     cfg.Train.WagonHeightShift,
	}, w.track)

	return w, nil
}

func (w *World) Config() Config      { return w.cfg }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) TickRateHz() int     { return w.cfg.TickRateHz }

func (w *World) SetTickLogger(l TickLogger)         { w.tickLogger = l }
func (w *World) SetSnapshotSink(ch chan<- Snapshot) { w.snapshotSink = ch }

func (w *World) Viewpoint() chan<- geom.Vec2                        { return w.viewpointCh }
func (w *World) Control() chan<- ControlEnvelope                    { return w.control }
func (w *World) NoiseSwap() chan<- NoiseSwapRequest                 { return w.noiseSwap }
func (w *World) StatusRequests() chan<- chan StatusReport           { return w.statusReq }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

// stateDigest hashes the deterministic simulation state: route, track
// registration progress, and the full train state. Chunk readiness is
// excluded on purpose: worker completion timing is not part of the
// simulation semantics.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	f64 := func(v float64) { u64(math.Float64bits(v)) }

	u64(nowTick)
	u64(uint64(w.cfg.Seed))
	s := w.field.Settings()
	f64(s.Amplitude)
	f64(s.Scale)
	f64(s.BaseOffset)
	u64(uint64(s.Seed))
	f64(w.viewpoint.X)
	f64(w.viewpoint.Z)
	f64(w.physicsAccum)

	for _, p := range w.route.Points() {
		f64(p.X)
		f64(p.Y)
		f64(p.Z)
	}
	u64(uint64(w.builder.LastUsedNode()))
	u64(uint64(w.track.MaxSegmentID()))
	for _, seg := range w.track.Segments() {
		f64(seg.Length)
	}

	st := w.train.ExportState()
	u64(uint64(st.NextBogieID))
	u64(uint64(st.NextWagonID))
	u64(uint64(st.TrackedWagon))
	for _, b := range st.Bogies {
		u64(uint64(b.ID))
		u64(uint64(b.WagonID))
		f64(b.T)
		f64(b.Velocity)
		f64(b.Mass)
	}
	for _, wg := range st.Wagons {
		u64(uint64(wg.ID))
		f64(wg.Mass)
		f64(wg.TractiveForce)
		f64(wg.BrakingForce)
		f64(wg.DistanceBetweenBogies)
		f64(wg.Velocity)
	}

	return hex.EncodeToString(h.Sum(nil))
}
