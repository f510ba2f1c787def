// Package terrain streams height-field terrain chunks around a moving
// viewpoint. Chunk meshes are generated on a small worker pool; all
// bookkeeping happens on the simulation goroutine.
package terrain

import (
	"sort"

	"railworld/internal/geom"
)

type ChunkCoord struct {
	X int
	Z int
}

type ChunkState int

const (
	StateQueued ChunkState = iota + 1
	StateGenerating
	StateReady
)

func (s ChunkState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	default:
		return "unloaded"
	}
}

// Chunk is one square terrain tile. The mesh is nil until generation
// completes; Offset is the world position of the mesh origin.
type Chunk struct {
	ID     uint64
	Coord  ChunkCoord
	State  ChunkState
	Offset geom.Vec2
	Mesh   *geom.Mesh
}

// Config holds the streaming tunables.
type Config struct {
	// ChunkSize is the tile edge length in world units.
	ChunkSize int
	// LoadRadius is the Chebyshev radius, in chunks, around the
	// viewpoint's chunk that must be loaded.
	LoadRadius int
	// VertexStride is the sampling interval for mesh vertices.
	VertexStride int
	// Workers is the generation pool size.
	Workers int
}

// ChunkCoordAt returns the chunk coordinate containing the given world
// position. The grid is centered: chunk (0,0) spans
// [-size/2, size/2) on both axes.
func ChunkCoordAt(pos geom.Vec2, chunkSize int) ChunkCoord {
	size := float64(chunkSize)
	return ChunkCoord{
		X: floorDiv(pos.X+size/2, size),
		Z: floorDiv(pos.Z+size/2, size),
	}
}

// ChunkOrigin returns the world position of a chunk's mesh origin
// (its minimum corner).
func ChunkOrigin(c ChunkCoord, chunkSize int) geom.Vec2 {
	size := float64(chunkSize)
	return geom.Vec2{
		X: float64(c.X)*size - size/2,
		Z: float64(c.Z)*size - size/2,
	}
}

func floorDiv(a, b float64) int {
	q := a / b
	if q < 0 && q != float64(int(q)) {
		return int(q) - 1
	}
	return int(q)
}

func sortedCoords(m map[ChunkCoord]*Chunk) []ChunkCoord {
	keys := make([]ChunkCoord, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}
