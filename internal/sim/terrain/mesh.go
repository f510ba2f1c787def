package terrain

import "railworld/internal/geom"

// Sampler maps world (x, z) to elevation. It must be safe for
// concurrent use; the heightfield package satisfies this.
type Sampler func(x, z float64) float64

// BuildChunkMesh samples a vertex grid over one chunk and triangulates
// it. Vertices are chunk-local (the mesh origin is the chunk's minimum
// corner at world offset); the grid extends one stride past the chunk
// edge so adjacent chunks share their seam row.
func BuildChunkMesh(sample Sampler, chunkSize, stride int, offset geom.Vec2) *geom.Mesh {
	n := chunkSize/stride + 2
	return BuildGridMesh(sample, n, float64(stride), offset)
}

// BuildGridMesh builds an n×n height-sampled triangle grid with smooth
// normals. Each quad is split along a fixed diagonal into two
// counter-clockwise triangles (viewed from above, y-up).
func BuildGridMesh(sample Sampler, n int, stride float64, offset geom.Vec2) *geom.Mesh {
	mesh := &geom.Mesh{
		Vertices: make([]geom.Vec3, 0, n*n),
		Indices:  make([]uint32, 0, (n-1)*(n-1)*6),
	}

	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			lx := float64(x) * stride
			lz := float64(z) * stride
			h := sample(offset.X+lx, offset.Z+lz)
			mesh.Vertices = append(mesh.Vertices, geom.Vec3{X: lx, Y: h, Z: lz})

			if x < n-1 && z < n-1 {
				vi := uint32(x + z*n)
				w := uint32(n)
				mesh.Indices = append(mesh.Indices,
					vi, vi+w, vi+w+1,
					vi, vi+w+1, vi+1,
				)
			}
		}
	}

	mesh.ComputeSmoothNormals()
	return mesh
}
