package terrain

import (
	"math"
	"testing"

	"railworld/internal/geom"
	"railworld/internal/sim/heightfield"
)

func TestGridMeshCounts(t *testing.T) {
	hf := heightfield.New(heightfield.Settings{Amplitude: 25, Scale: 1000, Seed: 42})
	for _, n := range []int{2, 5, 8} {
		mesh := BuildGridMesh(hf.At, n, 20, geom.Vec2{})
		if got, want := len(mesh.Vertices), n*n; got != want {
			t.Fatalf("n=%d: got %d vertices, want %d", n, got, want)
		}
		if got, want := mesh.TriangleCount(), (n-1)*(n-1)*2; got != want {
			t.Fatalf("n=%d: got %d triangles, want %d", n, got, want)
		}
	}
}

func TestGridMeshNormalsUnitLength(t *testing.T) {
	hf := heightfield.New(heightfield.Settings{Amplitude: 25, Scale: 1000, Seed: 7})
	mesh := BuildGridMesh(hf.At, 7, 50, geom.Vec2{X: -500, Z: -500})
	if len(mesh.Normals) != len(mesh.Vertices) {
		t.Fatalf("normal count %d != vertex count %d", len(mesh.Normals), len(mesh.Vertices))
	}
	for i, nrm := range mesh.Normals {
		if math.Abs(nrm.Len()-1) > 1e-9 {
			t.Fatalf("normal %d not unit length: %v (len %v)", i, nrm, nrm.Len())
		}
		if nrm.Y <= 0 {
			t.Fatalf("normal %d points downward: %v", i, nrm)
		}
	}
}

func TestGridMeshWindingCCWFromAbove(t *testing.T) {
	flat := func(x, z float64) float64 { return 0 }
	mesh := BuildGridMesh(flat, 3, 10, geom.Vec2{})
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		a := mesh.Vertices[mesh.Indices[i]]
		b := mesh.Vertices[mesh.Indices[i+1]]
		c := mesh.Vertices[mesh.Indices[i+2]]
		cross := b.Sub(a).Cross(c.Sub(a))
		if cross.Y <= 0 {
			t.Fatalf("triangle %d faces downward: %v", i/3, cross)
		}
	}
}

func TestGridMeshVerticesMatchSampler(t *testing.T) {
	hf := heightfield.New(heightfield.Settings{Amplitude: 25, Scale: 1000, Seed: 3})
	offset := geom.Vec2{X: 2500, Z: -1500}
	stride := 200.0
	mesh := BuildGridMesh(hf.At, 4, stride, offset)
	for _, v := range mesh.Vertices {
		want := hf.At(offset.X+v.X, offset.Z+v.Z)
		if v.Y != want {
			t.Fatalf("vertex at (%v,%v): elevation %v, want %v", v.X, v.Z, v.Y, want)
		}
	}
}

func TestChunkMeshSeamsMatch(t *testing.T) {
	hf := heightfield.New(heightfield.Settings{Amplitude: 25, Scale: 1000, Seed: 11})
	size, stride := 1000, 200

	left := BuildChunkMesh(hf.At, size, stride, ChunkOrigin(ChunkCoord{0, 0}, size))
	right := BuildChunkMesh(hf.At, size, stride, ChunkOrigin(ChunkCoord{1, 0}, size))

	n := size/stride + 2
	// Column x=5 of the left chunk sits at the same world X as column
	// x=0 of the right chunk.
	for z := 0; z < n; z++ {
		lv := left.Vertices[(size/stride)+z*n]
		rv := right.Vertices[0+z*n]
		if math.Abs(lv.Y-rv.Y) > 1e-12 {
			t.Fatalf("seam elevation mismatch at row %d: %v vs %v", z, lv.Y, rv.Y)
		}
	}
}
