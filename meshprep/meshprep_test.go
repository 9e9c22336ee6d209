package meshprep

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/bowlscan/core/spatial"
)

// cylinderMesh builds a crude open cylinder (a reasonable stand-in for a
// bowl for canonicalization testing): a ring of vertices at the rim (wide,
// at z=10) and a ring at the bottom (narrow, at z=-10), all axis-aligned
// along the mesh's own Z and shallower than wide, so Z is the axis of
// smallest variance and PCA recovers it as the symmetry axis
// without needing any rotation, exercising the disambiguation logic
// on the axis identification itself.
func cylinderMesh(t *testing.T) *spatial.Mesh {
	t.Helper()
	const n = 24
	var verts []r3.Vector
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		verts = append(verts, r3.Vector{X: 30 * math.Cos(a), Y: 30 * math.Sin(a), Z: 10}) // wide rim
	}
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		verts = append(verts, r3.Vector{X: 5 * math.Cos(a), Y: 5 * math.Sin(a), Z: -10}) // narrow bottom
	}
	var tris [][3]uint32
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		tris = append(tris, [3]uint32{uint32(i), uint32(j), uint32(n + i)})
		tris = append(tris, [3]uint32{uint32(j), uint32(n + j), uint32(n + i)})
	}
	m, err := spatial.NewMesh(verts, tris)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestCanonicalizeFindsWiderEndAsRim(t *testing.T) {
	mesh := cylinderMesh(t)
	canon, diag, err := Canonicalize(mesh, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	min, max := canon.Bounds()
	_ = min
	test.That(t, max.Z, test.ShouldBeGreaterThan, 0)
	test.That(t, diag.RimDiameterModelMM, test.ShouldBeGreaterThan, 40.0)
}

func TestCanonicalizeRimCenteredAtOrigin(t *testing.T) {
	mesh := cylinderMesh(t)
	canon, _, err := Canonicalize(mesh, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	zThresh := percentile(zValues(canon.Vertices), DefaultConfig().RimPercentile)
	rim := selectAbove(canon.Vertices, zThresh)
	c := centroid(rim)
	test.That(t, c.X, test.ShouldAlmostEqual, 0.0, 1e-6)
	test.That(t, c.Y, test.ShouldAlmostEqual, 0.0, 1e-6)
}

func TestCanonicalizeRejectsTooFewVertices(t *testing.T) {
	m, err := spatial.NewMesh([]r3.Vector{{}, {X: 1}, {Y: 1}}, [][3]uint32{{0, 1, 2}})
	test.That(t, err, test.ShouldBeNil)
	_, _, err = Canonicalize(m, DefaultConfig())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCanonicalizeRejectsBadRimPercentile(t *testing.T) {
	mesh := cylinderMesh(t)
	_, _, err := Canonicalize(mesh, Config{RimPercentile: 0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConvexHullAreaSquare(t *testing.T) {
	pts := []point2{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {5, 5}}
	area := convexHullArea(pts)
	test.That(t, area, test.ShouldAlmostEqual, 100.0, 1e-6)
}

func TestPercentileLinearInterpolation(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5}
	test.That(t, percentile(v, 0), test.ShouldAlmostEqual, 1.0)
	test.That(t, percentile(v, 100), test.ShouldAlmostEqual, 5.0)
	test.That(t, percentile(v, 50), test.ShouldAlmostEqual, 3.0)
}
