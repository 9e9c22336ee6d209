package pointcloud

import (
	"testing"

	"go.viam.com/test"
)

func gridCloud() *PointCloud {
	pc := New()
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			pc.Set(NewVector(float64(x), float64(y), 0), nil) //nolint:errcheck
		}
	}
	return pc
}

func TestNewEmptyKDTree(t *testing.T) {
	kd := NewKDTree(New())
	_, _, _, ok := kd.NearestNeighbor(NewVector(0, 0, 0))
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, kd.Set(NewVector(1, 2, 3), "x"), test.ShouldBeNil)
	p, d, dist, ok := kd.NearestNeighbor(NewVector(1, 2, 3))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, NewVector(1, 2, 3))
	test.That(t, d, test.ShouldEqual, "x")
	test.That(t, dist, test.ShouldAlmostEqual, 0.0)
}

func TestNearestNeighbor(t *testing.T) {
	kd := NewKDTree(gridCloud())
	p, _, dist, ok := kd.NearestNeighbor(NewVector(2.1, 2.1, 0))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, NewVector(2, 2, 0))
	test.That(t, dist, test.ShouldBeLessThan, 0.2)
}

func TestKNearestNeighbors(t *testing.T) {
	kd := NewKDTree(gridCloud())
	results := kd.KNearestNeighbors(NewVector(2, 2, 0), 5, true)
	test.That(t, len(results), test.ShouldEqual, 5)
	// Closest result should be the exact match itself.
	test.That(t, results[0].P, test.ShouldResemble, NewVector(2, 2, 0))
	for i := 1; i < len(results); i++ {
		di := NewVector(2, 2, 0).Sub(results[i-1].P).Norm()
		dj := NewVector(2, 2, 0).Sub(results[i].P).Norm()
		test.That(t, di, test.ShouldBeLessThanOrEqualTo, dj)
	}
}

func TestKNearestNeighborsExcludeSelf(t *testing.T) {
	kd := NewKDTree(gridCloud())
	results := kd.KNearestNeighbors(NewVector(2, 2, 0), 1, false)
	test.That(t, len(results), test.ShouldEqual, 1)
	test.That(t, results[0].P, test.ShouldNotResemble, NewVector(2, 2, 0))
}

func TestRadiusNearestNeighbors(t *testing.T) {
	kd := NewKDTree(gridCloud())
	results := kd.RadiusNearestNeighbors(NewVector(2, 2, 0), 1.01, true)
	// Self + four axis-adjacent grid points.
	test.That(t, len(results), test.ShouldEqual, 5)
	test.That(t, results[0].P, test.ShouldResemble, NewVector(2, 2, 0))
}

func TestKNearestNeighborsKGreaterThanCloudSize(t *testing.T) {
	pc := New()
	pc.Set(NewVector(0, 0, 0), nil) //nolint:errcheck
	pc.Set(NewVector(1, 0, 0), nil) //nolint:errcheck
	kd := NewKDTree(pc)
	results := kd.KNearestNeighbors(NewVector(0, 0, 0), 10, true)
	test.That(t, len(results), test.ShouldEqual, 2)
}

func TestQueryAgainstEmptyCloudFromConstructor(t *testing.T) {
	var kd *KDTree
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("NewKDTree(nil) should not panic: %v", r)
			}
		}()
		kd = NewKDTree(nil)
	}()
	test.That(t, kd.Size(), test.ShouldEqual, 0)
}
