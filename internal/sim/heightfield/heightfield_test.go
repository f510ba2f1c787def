package heightfield

import (
	"math"
	"sync"
	"testing"
)

func TestDeterminism_SameSeedSameElevation(t *testing.T) {
	f1 := New(Settings{Amplitude: 25, Scale: 1000, Seed: 42})
	f2 := New(Settings{Amplitude: 25, Scale: 1000, Seed: 42})

	coords := [][2]float64{
		{0, 0}, {1, 1}, {-500.5, 12345.25}, {90000, -90000}, {1e6, 1e6},
	}
	for _, c := range coords {
		a := f1.At(c[0], c[1])
		b := f2.At(c[0], c[1])
		if a != b {
			t.Fatalf("elevation mismatch at (%v,%v): %v vs %v", c[0], c[1], a, b)
		}
		if math.IsNaN(a) || math.IsInf(a, 0) {
			t.Fatalf("elevation not finite at (%v,%v): %v", c[0], c[1], a)
		}
		// Repeated calls must match too.
		if again := f1.At(c[0], c[1]); again != a {
			t.Fatalf("elevation changed between calls at (%v,%v)", c[0], c[1])
		}
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	f1 := New(Settings{Amplitude: 25, Scale: 1000, Seed: 1})
	f2 := New(Settings{Amplitude: 25, Scale: 1000, Seed: 2})

	same := 0
	for i := 0; i < 50; i++ {
		x := float64(i) * 173.3
		z := float64(i) * -97.1
		if f1.At(x, z) == f2.At(x, z) {
			same++
		}
	}
	if same == 50 {
		t.Fatalf("different seeds produced identical fields")
	}
}

func TestAmplitudeBound(t *testing.T) {
	f := New(Settings{Amplitude: 25, Scale: 1000, Seed: 7})
	// Octave amplitudes sum to 25*(1 + 1/2 + 1/3 + 1/4).
	bound := 25 * (1 + 0.5 + 1.0/3 + 0.25)
	for i := 0; i < 200; i++ {
		x := float64(i-100) * 311.7
		z := float64(i-100) * 119.9
		h := f.At(x, z)
		if math.Abs(h) > bound {
			t.Fatalf("elevation %v exceeds octave amplitude bound %v", h, bound)
		}
	}
}

func TestConcurrentSampling(t *testing.T) {
	f := New(DefaultSettings())
	want := f.At(123, -456)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if got := f.At(123, -456); got != want {
					errs <- nil
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	if len(errs) > 0 {
		t.Fatalf("concurrent sampling returned inconsistent elevations")
	}
}
