// Package train simulates bogies and wagons riding the track with
// longitudinal physics: traction, braking, rolling friction, and
// gravity along the slope. All state is mutated by a single Step call
// per physics tick; the world loop owns the call cadence.
package train

import (
	"fmt"
	"math"
	"sort"

	"railworld/internal/geom"
	"railworld/internal/sim/track"
)

const gravity = -9.81

// TrackSource is the view of the track the dynamics need. Queries may
// report no data while the track is still being generated; affected
// bogies skip the tick.
type TrackSource interface {
	PositionAt(t float64) (track.Pose, bool)
	SlopeAt(t float64) (float64, bool)
	MaxSegmentID() int
}

// Config carries the physical tunables. TCoefficient converts a speed
// in world units per second into track-parameter units.
type Config struct {
	StaticFrictionCoeff  float64
	KineticFrictionCoeff float64
	TCoefficient         float64
	ConstraintGain       float64
	WagonHeightShift     float64
	StictionEpsilon      float64
}

func (c Config) withDefaults() Config {
	if c.TCoefficient == 0 {
		c.TCoefficient = 100
	}
	if c.ConstraintGain == 0 {
		c.ConstraintGain = 0.01
	}
	if c.StictionEpsilon == 0 {
		c.StictionEpsilon = 1e-3
	}
	return c
}

// Bogie is one wheeled physics unit on the track. T follows track
// parameter semantics: integer part is the segment id, fraction the
// arc-length position inside it.
type Bogie struct {
	ID       int
	T        float64
	Velocity float64
	Mass     float64

	// WagonID is 0 when the bogie runs free.
	WagonID int
	Leading bool

	// Per-tick derived state, refreshed by Step.
	Slope           float64
	SlopeKnown      bool
	HorizontalForce float64
	VerticalForce   float64
	StaticFriction  float64
	KineticFriction float64

	Pose    track.Pose
	HasPose bool
}

// Wagon couples two bogies with a rigid-rod distance target. Velocity
// is derived as the mean of the pair each tick.
type Wagon struct {
	ID   int
	Mass float64

	TractiveForce float64
	BrakingForce  float64

	DistanceBetweenBogies float64
	LeadingBogie          int
	TrailingBogie         int

	Velocity float64
	Pose     track.Pose
	HasPose  bool
}

// Dynamics owns the bogie and wagon registries and advances them at a
// fixed timestep.
type Dynamics struct {
	cfg   Config
	track TrackSource

	nextBogieID int
	nextWagonID int
	bogies      map[int]*Bogie
	wagons      map[int]*Wagon

	trackedWagon int
}

func New(cfg Config, src TrackSource) *Dynamics {
	return &Dynamics{
		cfg:    cfg.withDefaults(),
		track:  src,
		bogies: map[int]*Bogie{},
		wagons: map[int]*Wagon{},
	}
}

// CanSpawnAt reports whether the track already covers the given t,
// gating spawns until generation catches up.
func (d *Dynamics) CanSpawnAt(t float64) bool {
	_, ok := d.track.PositionAt(t)
	return ok
}

// SpawnBogie adds a free-running bogie at track parameter t.
func (d *Dynamics) SpawnBogie(t, mass, velocity float64) *Bogie {
	d.nextBogieID++
	b := &Bogie{ID: d.nextBogieID, T: t, Mass: mass, Velocity: velocity}
	d.bogies[b.ID] = b
	return b
}

// SpawnWagon adds a wagon and its bogie pair, the leading bogie at t
// and the trailing one a rod length behind along the track parameter.
func (d *Dynamics) SpawnWagon(t, wagonMass, bogieMass, rodLength float64) *Wagon {
	d.nextWagonID++
	w := &Wagon{
		ID:                    d.nextWagonID,
		Mass:                  wagonMass,
		DistanceBetweenBogies: rodLength,
	}
	lead := d.SpawnBogie(t, bogieMass, 0)
	trail := d.SpawnBogie(t-rodLength/d.cfg.TCoefficient, bogieMass, 0)
	lead.WagonID, lead.Leading = w.ID, true
	trail.WagonID, trail.Leading = w.ID, false
	w.LeadingBogie, w.TrailingBogie = lead.ID, trail.ID
	d.wagons[w.ID] = w
	if d.trackedWagon == 0 {
		d.trackedWagon = w.ID
	}
	return w
}

// Bogie returns the bogie with the given id.
func (d *Dynamics) Bogie(id int) (*Bogie, bool) {
	b, ok := d.bogies[id]
	return b, ok
}

// Wagon returns the wagon with the given id.
func (d *Dynamics) Wagon(id int) (*Wagon, bool) {
	w, ok := d.wagons[id]
	return w, ok
}

// BogieCount returns the number of live bogies.
func (d *Dynamics) BogieCount() int { return len(d.bogies) }

// WagonCount returns the number of live wagons.
func (d *Dynamics) WagonCount() int { return len(d.wagons) }

// SetTractiveForce sets a wagon's traction input.
func (d *Dynamics) SetTractiveForce(wagonID int, force float64) error {
	w, ok := d.wagons[wagonID]
	if !ok {
		return fmt.Errorf("train: unknown wagon %d", wagonID)
	}
	w.TractiveForce = force
	return nil
}

// SetBrakingForce sets a wagon's braking input.
func (d *Dynamics) SetBrakingForce(wagonID int, force float64) error {
	w, ok := d.wagons[wagonID]
	if !ok {
		return fmt.Errorf("train: unknown wagon %d", wagonID)
	}
	w.BrakingForce = force
	return nil
}

// SetTrackedWagon selects the wagon whose state feeds Status.
func (d *Dynamics) SetTrackedWagon(wagonID int) { d.trackedWagon = wagonID }

func (d *Dynamics) sortedBogies() []*Bogie {
	out := make([]*Bogie, 0, len(d.bogies))
	for _, b := range d.bogies {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Dynamics) sortedWagons() []*Wagon {
	out := make([]*Wagon, 0, len(d.wagons))
	for _, w := range d.wagons {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// carriedMass is the bogie's own mass plus half of its wagon's mass
// when attached; each bogie of a pair carries one end.
func (d *Dynamics) carriedMass(b *Bogie) float64 {
	if w, ok := d.wagons[b.WagonID]; ok {
		return b.Mass + w.Mass/2
	}
	return b.Mass
}

// Step advances every bogie and wagon by one fixed timestep. Phases
// run strictly in order over all entities: forces are fully set before
// any integration, and the pair constraints run after integration but
// before pose derivation. Bogies whose t falls outside track coverage
// keep their previous transform for the tick.
func (d *Dynamics) Step(dt float64) {
	bogies := d.sortedBogies()
	wagons := d.sortedWagons()

	// Phase 1: slope and force accumulation.
	for _, b := range bogies {
		slope, ok := d.track.SlopeAt(b.T)
		b.SlopeKnown = ok
		if !ok {
			continue
		}
		b.Slope = slope

		cm := d.carriedMass(b)
		friction := cm * math.Abs(gravity) * math.Cos(slope)
		b.StaticFriction = d.cfg.StaticFrictionCoeff * friction
		b.KineticFriction = d.cfg.KineticFrictionCoeff * friction
		b.HorizontalForce = 0
		if w, ok := d.wagons[b.WagonID]; ok {
			b.StaticFriction += w.BrakingForce / 2
			b.KineticFriction += w.BrakingForce / 2
			b.HorizontalForce = w.TractiveForce / 2
		}
		b.VerticalForce = cm * gravity * math.Sin(slope)
	}

	// Phase 2: force integration with the stiction gate, then t
	// advance.
	for _, b := range bogies {
		if !b.SlopeKnown {
			continue
		}
		v := b.Velocity
		if math.Abs(v) <= d.cfg.StictionEpsilon {
			v = 0
		}
		total := b.HorizontalForce + b.VerticalForce
		if v == 0 && math.Abs(total) <= b.StaticFriction {
			b.Velocity = 0
			continue
		}
		dir := math.Copysign(1, v)
		if v == 0 {
			dir = math.Copysign(1, total)
		}
		net := total - dir*b.KineticFriction
		b.Velocity = v + net/d.carriedMass(b)*dt
		b.T += b.Velocity * dt / d.cfg.TCoefficient
	}

	// Phase 3: wagon pair sync. Both bogies of a pair take the mean
	// velocity so independently computed forces cannot tear the rod.
	for _, w := range wagons {
		lead, lok := d.bogies[w.LeadingBogie]
		trail, tok := d.bogies[w.TrailingBogie]
		if !lok || !tok {
			continue
		}
		mean := (lead.Velocity + trail.Velocity) / 2
		lead.Velocity, trail.Velocity = mean, mean
		w.Velocity = mean
	}

	// Phase 4: rigid-rod correction on the trailing bogie. Soft
	// proportional nudge, not an exact solve.
	for _, w := range wagons {
		lead, lok := d.bogies[w.LeadingBogie]
		trail, tok := d.bogies[w.TrailingBogie]
		if !lok || !tok {
			continue
		}
		lp, ok1 := d.track.PositionAt(lead.T)
		tp, ok2 := d.track.PositionAt(trail.T)
		if !ok1 || !ok2 {
			continue
		}
		dist := lp.Position.Dist(tp.Position)
		err := math.Abs(dist - w.DistanceBetweenBogies)
		if dist < w.DistanceBetweenBogies {
			trail.T -= d.cfg.ConstraintGain * err
		} else {
			trail.T += d.cfg.ConstraintGain * err
		}
	}

	// Phase 5: pose derivation.
	for _, b := range bogies {
		if pose, ok := d.track.PositionAt(b.T); ok {
			b.Pose = pose
			b.HasPose = true
		}
	}
	for _, w := range wagons {
		lead, lok := d.bogies[w.LeadingBogie]
		trail, tok := d.bogies[w.TrailingBogie]
		if !lok || !tok || !lead.HasPose || !trail.HasPose {
			continue
		}
		mid := lead.Pose.Position.Add(trail.Pose.Position).Scale(0.5)
		mid.Y += d.cfg.WagonHeightShift
		forward := lead.Pose.Position.Sub(trail.Pose.Position).Normalize()
		w.Pose = track.Pose{Position: mid, Forward: forward}
		w.HasPose = true
	}
}

// State is the full serializable registry state, used by snapshots.
type State struct {
	NextBogieID  int
	NextWagonID  int
	TrackedWagon int
	Bogies       []Bogie
	Wagons       []Wagon
}

// ExportState copies the registries into a serializable value, bogies
// and wagons in id order.
func (d *Dynamics) ExportState() State {
	st := State{
		NextBogieID:  d.nextBogieID,
		NextWagonID:  d.nextWagonID,
		TrackedWagon: d.trackedWagon,
	}
	for _, b := range d.sortedBogies() {
		st.Bogies = append(st.Bogies, *b)
	}
	for _, w := range d.sortedWagons() {
		st.Wagons = append(st.Wagons, *w)
	}
	return st
}

// Restore replaces the registries with snapshot state.
func (d *Dynamics) Restore(st State) {
	d.nextBogieID = st.NextBogieID
	d.nextWagonID = st.NextWagonID
	d.trackedWagon = st.TrackedWagon
	d.bogies = make(map[int]*Bogie, len(st.Bogies))
	for i := range st.Bogies {
		b := st.Bogies[i]
		d.bogies[b.ID] = &b
	}
	d.wagons = make(map[int]*Wagon, len(st.Wagons))
	for i := range st.Wagons {
		w := st.Wagons[i]
		d.wagons[w.ID] = &w
	}
}

// BogieStatus is the per-bogie slice of a wagon status report.
type BogieStatus struct {
	ID              int     `json:"id"`
	T               float64 `json:"t"`
	Velocity        float64 `json:"velocity"`
	SlopeAngle      float64 `json:"slope_angle"`
	HorizontalForce float64 `json:"horizontal_force"`
	VerticalForce   float64 `json:"vertical_force"`
	StaticFriction  float64 `json:"static_friction"`
	KineticFriction float64 `json:"kinetic_friction"`
}

// WagonStatus is the tracked wagon's state for the status surfaces.
type WagonStatus struct {
	WagonID       int           `json:"wagon_id"`
	Mass          float64       `json:"mass"`
	Velocity      float64       `json:"velocity"`
	TractiveForce float64       `json:"tractive_force"`
	BrakingForce  float64       `json:"braking_force"`
	Position      geom.Vec3     `json:"position"`
	Bogies        []BogieStatus `json:"bogies"`
}

// Status reports the tracked wagon, or false when none is tracked.
func (d *Dynamics) Status() (WagonStatus, bool) {
	w, ok := d.wagons[d.trackedWagon]
	if !ok {
		return WagonStatus{}, false
	}
	st := WagonStatus{
		WagonID:       w.ID,
		Mass:          w.Mass,
		Velocity:      w.Velocity,
		TractiveForce: w.TractiveForce,
		BrakingForce:  w.BrakingForce,
		Position:      w.Pose.Position,
	}
	for _, id := range []int{w.LeadingBogie, w.TrailingBogie} {
		b, ok := d.bogies[id]
		if !ok {
			continue
		}
		st.Bogies = append(st.Bogies, BogieStatus{
			ID:              b.ID,
			T:               b.T,
			Velocity:        b.Velocity,
			SlopeAngle:      b.Slope,
			HorizontalForce: b.HorizontalForce,
			VerticalForce:   b.VerticalForce,
			StaticFriction:  b.StaticFriction,
			KineticFriction: b.KineticFriction,
		})
	}
	return st, true
}
