package log

import (
	"testing"

	"railworld/internal/sim/world"
)

func TestTickLogWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	l := NewTickLogger(dir)
	tractive := 9000.0
	entries := []world.TickLogEntry{
		{Tick: 0, Viewpoint: [2]float64{0, 0}, Digest: "aa", ReadyChunks: 3},
		{Tick: 1, Viewpoint: [2]float64{3, 0}, Digest: "bb", ReadyChunks: 9,
			Controls: []world.ControlInput{{WagonID: 1, Tractive: &tractive}}},
		{Tick: 2, Viewpoint: [2]float64{6, 0}, Digest: "cc", ReadyChunks: 9},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadTicks(dir)
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Tick != e.Tick || got[i].Digest != e.Digest || got[i].ReadyChunks != e.ReadyChunks {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], e)
		}
	}
	if got[1].Controls[0].Tractive == nil || *got[1].Controls[0].Tractive != 9000 {
		t.Fatalf("control not preserved: %+v", got[1].Controls)
	}
}

func TestReadTicksMissingDir(t *testing.T) {
	if _, err := ReadTicks(t.TempDir()); err == nil {
		t.Fatal("expected error for missing events dir")
	}
}
