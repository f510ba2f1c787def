package track

import "railworld/internal/geom"

// CrossSection is a 2D rail profile in the plane perpendicular to the
// direction of travel: X is lateral (to the right of travel), Z is up.
// Consecutive points are connected; the loop closes back to point 0.
type CrossSection struct {
	Points []geom.Vec2
}

// DefaultCrossSection is a flat-bottomed trapezoid approximating a
// track bed.
func DefaultCrossSection() CrossSection {
	return CrossSection{Points: []geom.Vec2{
		{X: -2.0, Z: 0},
		{X: -1.4, Z: 0.5},
		{X: 1.4, Z: 0.5},
		{X: 2.0, Z: 0},
	}}
}

// Extruder sweeps a cross-section along a sampled curve and returns a
// mesh. The geometry service is deliberately minimal; callers treat
// it as an external collaborator.
type Extruder interface {
	Extrude(shape CrossSection, points []OrientedPoint) *geom.Mesh
}

// SweepExtruder is the built-in Extruder: one profile ring per curve
// sample, quads between consecutive rings.
type SweepExtruder struct{}

func (SweepExtruder) Extrude(shape CrossSection, points []OrientedPoint) *geom.Mesh {
	if len(shape.Points) < 2 || len(points) < 2 {
		return &geom.Mesh{}
	}

	up := geom.Vec3{Y: 1}
	ringSize := len(shape.Points)
	mesh := &geom.Mesh{
		Vertices: make([]geom.Vec3, 0, ringSize*len(points)),
		Indices:  make([]uint32, 0, (ringSize)*(len(points)-1)*6),
	}

	for _, op := range points {
		right := op.Forward.Cross(up).Normalize()
		if right.Len() < 1e-9 {
			// Vertical travel direction; fall back to +X.
			right = geom.Vec3{X: 1}
		}
		lift := right.Cross(op.Forward).Normalize()
		for _, p := range shape.Points {
			v := op.Position.Add(right.Scale(p.X)).Add(lift.Scale(p.Z))
			mesh.Vertices = append(mesh.Vertices, v)
		}
	}

	for ring := 0; ring+1 < len(points); ring++ {
		base := uint32(ring * ringSize)
		next := base + uint32(ringSize)
		for i := 0; i < ringSize; i++ {
			a := base + uint32(i)
			b := base + uint32((i+1)%ringSize)
			c := next + uint32(i)
			d := next + uint32((i+1)%ringSize)
			mesh.Indices = append(mesh.Indices,
				a, c, d,
				a, d, b,
			)
		}
	}

	mesh.ComputeSmoothNormals()
	return mesh
}
