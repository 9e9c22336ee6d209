package icp

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/bowlscan/core/pointcloud"
	"github.com/bowlscan/core/spatial"
)

// hemisphereMesh builds a coarse triangulated hemisphere of the given
// radius, opening at +z (apex at z=0, rim at z=radius), matching
// MeshPrep's canonical-frame convention closely enough for ICP tests.
func hemisphereMesh(t *testing.T, radius float64, rings, slices int) *spatial.Mesh {
	t.Helper()
	var verts []r3.Vector
	verts = append(verts, r3.Vector{Z: 0})
	for ring := 1; ring <= rings; ring++ {
		phi := math.Pi / 2 * float64(ring) / float64(rings)
		for s := 0; s < slices; s++ {
			theta := 2 * math.Pi * float64(s) / float64(slices)
			rr := radius * math.Sin(phi)
			zz := radius * (1 - math.Cos(phi))
			verts = append(verts, r3.Vector{X: rr * math.Cos(theta), Y: rr * math.Sin(theta), Z: zz})
		}
	}

	var tris [][3]uint32
	ringStart := func(r int) int { return 1 + (r-1)*slices }
	for s := 0; s < slices; s++ {
		sNext := (s + 1) % slices
		tris = append(tris, [3]uint32{0, uint32(ringStart(1) + s), uint32(ringStart(1) + sNext)})
	}
	for ring := 1; ring < rings; ring++ {
		for s := 0; s < slices; s++ {
			sNext := (s + 1) % slices
			a := ringStart(ring) + s
			b := ringStart(ring) + sNext
			c := ringStart(ring+1) + s
			d := ringStart(ring+1) + sNext
			tris = append(tris, [3]uint32{uint32(a), uint32(b), uint32(c)})
			tris = append(tris, [3]uint32{uint32(b), uint32(d), uint32(c)})
		}
	}

	m, err := spatial.NewMesh(verts, tris)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func pointCloudFromMeshSurface(mesh *spatial.Mesh, pose spatial.Pose) *pointcloud.PointCloud {
	pc := pointcloud.New()
	for _, v := range mesh.Vertices {
		p := v
		if pose != nil {
			p = spatial.Apply(pose, v)
		}
		pc.Set(p, nil) //nolint:errcheck
	}
	return pc
}

func TestRegisterInsufficientData(t *testing.T) {
	mesh := hemisphereMesh(t, 50, 4, 8)
	scene := pointcloud.New()
	scene.Set(r3.Vector{X: 1}, nil) //nolint:errcheck
	_, err := Register(context.Background(), scene, mesh, 100, 100, nil, DefaultConfig())
	test.That(t, err, test.ShouldEqual, ErrInsufficientData)
}

func TestRegisterIdentityFit(t *testing.T) {
	mesh := hemisphereMesh(t, 50, 8, 16)
	rimDiameterModel := 100.0 // 2*radius, matches the hemisphere's equator diameter
	scene := pointCloudFromMeshSurface(mesh, nil)

	result, err := Register(context.Background(), scene, mesh, rimDiameterModel, rimDiameterModel, nil, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Fitness, test.ShouldBeGreaterThan, 0.9)
	test.That(t, result.ScaleMM, test.ShouldAlmostEqual, 1.0)

	pt := result.Pose.Point()
	test.That(t, pt.Norm(), test.ShouldBeLessThan, 5.0)
}

func TestRegisterTranslationRecovery(t *testing.T) {
	mesh := hemisphereMesh(t, 50, 8, 16)
	rimDiameterModel := 100.0
	translation := r3.Vector{X: 10, Y: -5, Z: 200}
	seedTruth := spatial.NewPoseFromPoint(translation)
	scene := pointCloudFromMeshSurface(mesh, seedTruth)

	result, err := Register(context.Background(), scene, mesh, rimDiameterModel, rimDiameterModel, nil, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	pt := result.Pose.Point()
	test.That(t, pt.X, test.ShouldAlmostEqual, translation.X, 1.0)
	test.That(t, pt.Y, test.ShouldAlmostEqual, translation.Y, 1.0)
	test.That(t, pt.Z, test.ShouldAlmostEqual, translation.Z, 1.0)
}

func TestRegisterRejectsNonPositiveDiameter(t *testing.T) {
	mesh := hemisphereMesh(t, 50, 8, 16)
	scene := pointCloudFromMeshSurface(mesh, nil)
	_, err := Register(context.Background(), scene, mesh, 0, 100, nil, DefaultConfig())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegisterCancellation(t *testing.T) {
	mesh := hemisphereMesh(t, 50, 8, 16)
	scene := pointCloudFromMeshSurface(mesh, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Register(ctx, scene, mesh, 100, 100, nil, DefaultConfig())
	test.That(t, err, test.ShouldNotBeNil)
}
