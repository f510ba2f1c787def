package geom

// Mesh is an indexed triangle list. Indices run counter-clockwise when
// viewed from the outside (y-up, right-handed).
type Mesh struct {
	Vertices []Vec3
	Normals  []Vec3
	Indices  []uint32
}

// TriangleCount returns the number of triangles in the index list.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// ComputeSmoothNormals sums the face cross product of every triangle
// into each of its three vertices and normalizes the result. Degenerate
// triangles contribute a zero vector and are effectively ignored.
func (m *Mesh) ComputeSmoothNormals() {
	normals := make([]Vec3, len(m.Vertices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		ia, ib, ic := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		a, b, c := m.Vertices[ia], m.Vertices[ib], m.Vertices[ic]
		cross := b.Sub(a).Cross(c.Sub(a))
		normals[ia] = normals[ia].Add(cross)
		normals[ib] = normals[ib].Add(cross)
		normals[ic] = normals[ic].Add(cross)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}
