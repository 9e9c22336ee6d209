package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewEmptyPointCloud(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)
	test.That(t, CloudCentroid(pc), test.ShouldResemble, r3.Vector{})
}

func TestSetAndAt(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(1, 2, 3), "a"), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)

	d, ok := pc.At(1, 2, 3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d, test.ShouldEqual, "a")

	_, ok = pc.At(9, 9, 9)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSetOverwritesExactMatch(t *testing.T) {
	pc := New()
	p := NewVector(1, 1, 1)
	test.That(t, pc.Set(p, "first"), test.ShouldBeNil)
	test.That(t, pc.Set(p, "second"), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
	d, _ := pc.At(1, 1, 1)
	test.That(t, d, test.ShouldEqual, "second")
}

func TestNewFromPointsDedups(t *testing.T) {
	p := NewVector(2, 2, 2)
	pc := NewFromPoints([]r3.Vector{p, p, NewVector(3, 3, 3)})
	test.That(t, pc.Size(), test.ShouldEqual, 2)
}

func TestCloudContains(t *testing.T) {
	pc := New()
	pc.Set(NewVector(5, 6, 7), nil) //nolint:errcheck
	test.That(t, CloudContains(pc, 5, 6, 7), test.ShouldBeTrue)
	test.That(t, CloudContains(pc, 0, 0, 0), test.ShouldBeFalse)
}

func TestCloudCentroid(t *testing.T) {
	pc := New()
	pc.Set(NewVector(0, 0, 0), nil)  //nolint:errcheck
	pc.Set(NewVector(10, 0, 0), nil) //nolint:errcheck
	c := CloudCentroid(pc)
	test.That(t, c.X, test.ShouldAlmostEqual, 5.0)
}

func TestIterateBatchingPartitionsDeterministically(t *testing.T) {
	pc := New()
	for i := 0; i < 10; i++ {
		pc.Set(NewVector(float64(i), 0, 0), i) //nolint:errcheck
	}

	const numBatches = 3
	seen := map[int]int{}
	var order []int
	for b := 0; b < numBatches; b++ {
		var batchOrder []int
		pc.Iterate(numBatches, b, func(_ r3.Vector, d Data) bool {
			v := d.(int)
			seen[v]++
			batchOrder = append(batchOrder, v)
			return true
		})
		for i := 1; i < len(batchOrder); i++ {
			test.That(t, batchOrder[i], test.ShouldBeGreaterThan, batchOrder[i-1])
		}
		order = append(order, batchOrder...)
	}
	test.That(t, len(seen), test.ShouldEqual, 10)
	for i := 0; i < 10; i++ {
		test.That(t, seen[i], test.ShouldEqual, 1)
	}
	test.That(t, len(order), test.ShouldEqual, 10)
}

func TestIterateEarlyStop(t *testing.T) {
	pc := New()
	for i := 0; i < 5; i++ {
		pc.Set(NewVector(float64(i), 0, 0), i) //nolint:errcheck
	}
	count := 0
	pc.Iterate(0, 0, func(_ r3.Vector, _ Data) bool {
		count++
		return count < 2
	})
	test.That(t, count, test.ShouldEqual, 2)
}
