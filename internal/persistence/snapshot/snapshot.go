// Package snapshot persists the deterministic simulation state as a
// zstd-compressed gob blob with a JSON header line. Chunks are
// excluded: they are pure functions of the height field and regenerate
// on resume.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64 `json:"seed"`
	TickRateHz    int   `json:"tick_rate_hz"`
	PhysicsRateHz int   `json:"physics_rate_hz"`

	NoiseAmplitude  float64 `json:"noise_amplitude"`
	NoiseScale      float64 `json:"noise_scale"`
	NoiseBaseOffset float64 `json:"noise_base_offset"`
	NoiseSeed       int64   `json:"noise_seed"`
	WaterLevel      float64 `json:"water_level"`

	ChunkSize    int `json:"chunk_size"`
	LoadRadius   int `json:"load_radius"`
	VertexStride int `json:"vertex_stride"`

	NodeLength        float64 `json:"node_length"`
	MaxTurnAngle      int     `json:"max_turn_angle"`
	RouteClearance    float64 `json:"route_clearance"`
	TrackSmoothing    float64 `json:"track_smoothing"`
	TrackSubdivisions int     `json:"track_subdivisions"`
	TrackClearance    float64 `json:"track_clearance"`

	Viewpoint    [2]float64 `json:"viewpoint"`
	PhysicsAccum float64    `json:"physics_accum"`
	TrainSpawned bool       `json:"train_spawned"`

	RoutePoints  [][3]float64 `json:"route_points"`
	LastUsedNode int          `json:"last_used_node"`

	Train TrainV1 `json:"train"`
}

type TrainV1 struct {
	NextBogieID  int       `json:"next_bogie_id"`
	NextWagonID  int       `json:"next_wagon_id"`
	TrackedWagon int       `json:"tracked_wagon"`
	Bogies       []BogieV1 `json:"bogies"`
	Wagons       []WagonV1 `json:"wagons"`
}

type BogieV1 struct {
	ID       int     `json:"id"`
	T        float64 `json:"t"`
	Velocity float64 `json:"velocity"`
	Mass     float64 `json:"mass"`
	WagonID  int     `json:"wagon_id"`
	Leading  bool    `json:"leading"`
}

type WagonV1 struct {
	ID                    int     `json:"id"`
	Mass                  float64 `json:"mass"`
	TractiveForce         float64 `json:"tractive_force"`
	BrakingForce          float64 `json:"braking_force"`
	DistanceBetweenBogies float64 `json:"distance_between_bogies"`
	LeadingBogie          int     `json:"leading_bogie"`
	TrailingBogie         int     `json:"trailing_bogie"`
	Velocity              float64 `json:"velocity"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the snapshot in dir with the highest tick, or ""
// when none exist.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		return tickOf(names[i]) < tickOf(names[j])
	})
	return filepath.Join(dir, names[len(names)-1])
}

func tickOf(name string) uint64 {
	var tick uint64
	_, _ = fmt.Sscanf(name, "%d.snap.zst", &tick)
	return tick
}
