// Package tuning loads the simulation tunables from tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz    int `yaml:"tick_rate_hz"`
	PhysicsRateHz int `yaml:"physics_rate_hz"`

	Seed           int64   `yaml:"seed"`
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
	NoiseScale     float64 `yaml:"noise_scale"`
	WaterLevel     float64 `yaml:"water_level"`

	ChunkSize    int `yaml:"chunk_size"`
	LoadRadius   int `yaml:"load_radius"`
	VertexStride int `yaml:"vertex_stride"`
	GenWorkers   int `yaml:"gen_workers"`

	NodeLength     float64 `yaml:"node_length"`
	MaxTurnAngle   int     `yaml:"max_turn_angle"`
	RouteClearance float64 `yaml:"route_clearance"`

	TrackSmoothing    float64 `yaml:"track_smoothing"`
	TrackSubdivisions int     `yaml:"track_subdivisions"`
	TrackClearance    float64 `yaml:"track_clearance"`

	Train TrainTuning `yaml:"train"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

type TrainTuning struct {
	BogieMass        float64 `yaml:"bogie_mass"`
	WagonMass        float64 `yaml:"wagon_mass"`
	BogieDistance    float64 `yaml:"bogie_distance"`
	StaticFriction   float64 `yaml:"static_friction"`
	KineticFriction  float64 `yaml:"kinetic_friction"`
	TractiveForce    float64 `yaml:"tractive_force"`
	BrakingForce     float64 `yaml:"braking_force"`
	SpawnT           float64 `yaml:"spawn_t"`
	TCoefficient     float64 `yaml:"t_coefficient"`
	ConstraintGain   float64 `yaml:"constraint_gain"`
	WagonHeightShift float64 `yaml:"wagon_height_shift"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:    30,
		PhysicsRateHz: 60,

		Seed:           1354251456,
		NoiseAmplitude: 25,
		NoiseScale:     1000,
		WaterLevel:     -23,

		ChunkSize:    1000,
		LoadRadius:   5,
		VertexStride: 200,
		GenWorkers:   4,

		NodeLength:     50,
		MaxTurnAngle:   5,
		RouteClearance: 1,

		TrackSmoothing:    0.2,
		TrackSubdivisions: 20,
		TrackClearance:    0.3,

		Train: TrainTuning{
			BogieMass:        4700,
			WagonMass:        28000,
			BogieDistance:    15,
			StaticFriction:   0.004,
			KineticFriction:  0.002,
			TractiveForce:    15000,
			BrakingForce:     0,
			SpawnT:           2,
			TCoefficient:     100,
			ConstraintGain:   0.01,
			WagonHeightShift: 1.5,
		},

		SnapshotEveryTicks: 3000,
	}
}
