// Package geom holds the small vector and mesh types shared by the
// terrain, track and train packages. Everything is float64 world units,
// y-up, right-handed.
package geom

import "math"

type Vec2 struct {
	X, Z float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Z + o.Z} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Z - o.Z} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Z) }

func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Normalize returns the unit vector, or the zero vector if v has
// (near) zero length. Callers that care must check for the zero case.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Lerp interpolates component-wise between v and o.
func (v Vec3) Lerp(o Vec3, f float64) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*f,
		v.Y + (o.Y-v.Y)*f,
		v.Z + (o.Z-v.Z)*f,
	}
}

func (v Vec3) XZ() Vec2 { return Vec2{v.X, v.Z} }
