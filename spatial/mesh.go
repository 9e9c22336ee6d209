package spatial

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Triangle is three vertices in counter-clockwise winding (viewed from the
// side the normal points to).
type Triangle struct {
	P0, P1, P2 r3.Vector
}

// NewTriangle constructs a Triangle from three vertices.
func NewTriangle(p0, p1, p2 r3.Vector) Triangle {
	return Triangle{P0: p0, P1: p1, P2: p2}
}

// Normal returns the (non-unit-length-guaranteed) outward normal, via the
// cross product of the two edges leaving P0.
func (t Triangle) Normal() r3.Vector {
	return t.P1.Sub(t.P0).Cross(t.P2.Sub(t.P0))
}

// UnitNormal returns the unit-length outward normal.
func (t Triangle) UnitNormal() r3.Vector {
	n := t.Normal()
	if l := n.Norm(); l > 0 {
		return n.Mul(1 / l)
	}
	return n
}

// Centroid returns the triangle's centroid.
func (t Triangle) Centroid() r3.Vector {
	return t.P0.Add(t.P1).Add(t.P2).Mul(1.0 / 3.0)
}

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	return 0.5 * t.Normal().Norm()
}

// Mesh is a triangle mesh stored as a vertex array plus index triples, the
// layout the spec's BowlMesh / CanonicalBowlMesh / FittedBowlMesh share —
// only the vertex positions change between those three; the topology does
// not.
type Mesh struct {
	Vertices  []r3.Vector
	Triangles [][3]uint32
}

// NewMesh validates and constructs a Mesh from vertex and triangle arrays.
func NewMesh(vertices []r3.Vector, triangles [][3]uint32) (*Mesh, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("mesh must have at least 3 vertices, got %d", len(vertices))
	}
	if len(triangles) < 1 {
		return nil, fmt.Errorf("mesh must have at least 1 triangle, got %d", len(triangles))
	}
	n := uint32(len(vertices))
	for i, tri := range triangles {
		if tri[0] >= n || tri[1] >= n || tri[2] >= n {
			return nil, fmt.Errorf("triangle %d references out-of-range vertex (have %d vertices)", i, n)
		}
	}
	return &Mesh{Vertices: vertices, Triangles: triangles}, nil
}

// NumTriangles returns the number of triangles in the mesh.
func (m *Mesh) NumTriangles() int { return len(m.Triangles) }

// Triangle returns the i'th triangle as three resolved vertex positions.
func (m *Mesh) Triangle(i int) Triangle {
	idx := m.Triangles[i]
	return Triangle{P0: m.Vertices[idx[0]], P1: m.Vertices[idx[1]], P2: m.Vertices[idx[2]]}
}

// Clone returns a deep copy of the mesh's vertex array, sharing the
// (immutable) triangle index array.
func (m *Mesh) Clone() *Mesh {
	v := make([]r3.Vector, len(m.Vertices))
	copy(v, m.Vertices)
	return &Mesh{Vertices: v, Triangles: m.Triangles}
}

// Transformed returns a new mesh with every vertex mapped through pose;
// the triangle topology (and thus any BVH built over indices into it) is
// shared, never mutated.
func (m *Mesh) Transformed(pose Pose) *Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = Apply(pose, v)
	}
	return out
}

// Scaled returns a new mesh with every vertex multiplied by s, about the
// origin. MeshPrep canonicalizes the mesh so the origin is a meaningful
// scale center (the rim centroid projects to it).
func (m *Mesh) Scaled(s float64) *Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = v.Mul(s)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the mesh's vertices.
func (m *Mesh) Bounds() (min, max r3.Vector) {
	if len(m.Vertices) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min = r3.Vector{X: minf(min.X, v.X), Y: minf(min.Y, v.Y), Z: minf(min.Z, v.Z)}
		max = r3.Vector{X: maxf(max.X, v.X), Y: maxf(max.Y, v.Y), Z: maxf(max.Z, v.Z)}
	}
	return min, max
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
