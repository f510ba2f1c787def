package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte(`
tick_rate_hz: 20
seed: 42
chunk_size: 1000
load_radius: 5
node_length: 90
max_turn_angle: 10
train:
  bogie_mass: 4700
  t_coefficient: 100
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 20 || tu.Seed != 42 || tu.ChunkSize != 1000 {
		t.Fatalf("unexpected tuning: %+v", tu)
	}
	if tu.NodeLength != 90 || tu.MaxTurnAngle != 10 {
		t.Fatalf("route tuning not applied: %+v", tu)
	}
	if tu.Train.BogieMass != 4700 || tu.Train.TCoefficient != 100 {
		t.Fatalf("train tuning not applied: %+v", tu.Train)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultsSane(t *testing.T) {
	d := Defaults()
	if d.TickRateHz <= 0 || d.PhysicsRateHz <= 0 {
		t.Fatalf("bad default rates: %+v", d)
	}
	if d.ChunkSize <= 0 || d.LoadRadius <= 0 || d.VertexStride <= 0 {
		t.Fatalf("bad default terrain tuning: %+v", d)
	}
	if d.Train.TCoefficient == 0 || d.Train.ConstraintGain == 0 {
		t.Fatalf("bad default train tuning: %+v", d.Train)
	}
}
