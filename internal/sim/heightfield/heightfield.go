// Package heightfield maps world (x, z) coordinates to terrain
// elevation. The field is a pure function of its settings: the same
// seed and coordinates always yield the same elevation, so it is safe
// to sample from any number of goroutines.
package heightfield

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

const DefaultSeed = 1354251456

// Settings holds the tunable noise parameters. A zero-valued Settings
// is not useful; use DefaultSettings as the starting point.
type Settings struct {
	// Amplitude of the first octave in world units. Later octaves use
	// amplitude/2, /3 and /4.
	Amplitude float64 `yaml:"amplitude"`
	// Scale divides the input coordinates; larger values stretch the
	// terrain features out.
	Scale float64 `yaml:"scale"`
	// BaseOffset shifts the whole field vertically.
	BaseOffset float64 `yaml:"base_offset"`
	Seed       int64   `yaml:"seed"`
}

func DefaultSettings() Settings {
	return Settings{
		Amplitude: 25,
		Scale:     1000,
		Seed:      DefaultSeed,
	}
}

// Field samples layered 2D simplex noise. Construct with New; the
// noise source is immutable after construction.
type Field struct {
	settings Settings
	noise    opensimplex.Noise
}

func New(settings Settings) *Field {
	if settings.Amplitude == 0 && settings.Scale == 0 {
		settings = DefaultSettings()
	}
	if settings.Scale == 0 {
		settings.Scale = 1000
	}
	return &Field{
		settings: settings,
		noise:    opensimplex.New(settings.Seed),
	}
}

func (f *Field) Settings() Settings { return f.settings }

// octave offsets decorrelate the layers; they are added to both input
// coordinates before scaling.
var octaveOffsets = [4]float64{0, 100, 200, 400}

// At returns the elevation at world (x, z). Four octaves with
// amplitudes A, A/2, A/3, A/4, matching octave offsets 0/100/200/400.
func (f *Field) At(x, z float64) float64 {
	s := f.settings
	h := s.BaseOffset
	for i, off := range octaveOffsets {
		amp := s.Amplitude / float64(i+1)
		h += amp * f.noise.Eval2((x+off)/s.Scale, (z+off)/s.Scale)
	}
	return h
}
