package spatial

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func unitTriangleMesh(t *testing.T) *Mesh {
	t.Helper()
	verts := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
	}
	m, err := NewMesh(verts, [][3]uint32{{0, 1, 2}})
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestTriangleNormalAndArea(t *testing.T) {
	tri := NewTriangle(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, tri.Area(), test.ShouldAlmostEqual, 0.5)
	n := tri.UnitNormal()
	test.That(t, n.Z, test.ShouldAlmostEqual, 1.0)
}

func TestMeshRejectsOutOfRangeTriangle(t *testing.T) {
	verts := []r3.Vector{{}, {X: 1}, {Y: 1}}
	_, err := NewMesh(verts, [][3]uint32{{0, 1, 5}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMeshScaledAndTransformed(t *testing.T) {
	m := unitTriangleMesh(t)
	scaled := m.Scaled(2.0)
	test.That(t, scaled.Vertices[1].X, test.ShouldAlmostEqual, 2.0)
	// Original is untouched.
	test.That(t, m.Vertices[1].X, test.ShouldAlmostEqual, 1.0)

	moved := m.Transformed(NewPoseFromPoint(r3.Vector{X: 10}))
	test.That(t, moved.Vertices[0].X, test.ShouldAlmostEqual, 10.0)
	test.That(t, m.Vertices[0].X, test.ShouldAlmostEqual, 0.0)
}

func TestMeshBounds(t *testing.T) {
	m := unitTriangleMesh(t)
	min, max := m.Bounds()
	test.That(t, min, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 0})
	test.That(t, max, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 0})
}
