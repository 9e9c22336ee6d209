package bvh

import (
	"math"

	"github.com/golang/geo/r3"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max r3.Vector
}

func emptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{Min: r3.Vector{X: inf, Y: inf, Z: inf}, Max: r3.Vector{X: -inf, Y: -inf, Z: -inf}}
}

func (b AABB) union(o AABB) AABB {
	return AABB{
		Min: r3.Vector{X: minf(b.Min.X, o.Min.X), Y: minf(b.Min.Y, o.Min.Y), Z: minf(b.Min.Z, o.Min.Z)},
		Max: r3.Vector{X: maxf(b.Max.X, o.Max.X), Y: maxf(b.Max.Y, o.Max.Y), Z: maxf(b.Max.Z, o.Max.Z)},
	}
}

func (b AABB) extend(p r3.Vector) AABB {
	return AABB{
		Min: r3.Vector{X: minf(b.Min.X, p.X), Y: minf(b.Min.Y, p.Y), Z: minf(b.Min.Z, p.Z)},
		Max: r3.Vector{X: maxf(b.Max.X, p.X), Y: maxf(b.Max.Y, p.Y), Z: maxf(b.Max.Z, p.Z)},
	}
}

func (b AABB) surfaceArea() float64 {
	d := b.Max.Sub(b.Min)
	if d.X < 0 || d.Y < 0 || d.Z < 0 {
		return 0
	}
	return 2 * (d.X*d.Y + d.Y*d.Z + d.Z*d.X)
}

func (b AABB) centroid() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// longestAxis returns 0/1/2 for x/y/z.
func (b AABB) longestAxis() int {
	d := b.Max.Sub(b.Min)
	if d.X >= d.Y && d.X >= d.Z {
		return 0
	}
	if d.Y >= d.Z {
		return 1
	}
	return 2
}

func axisOf(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// hit is the standard slab method for ray-AABB intersection.
func (b AABB) hit(origin, invDir r3.Vector, tMin, tMax float64) bool {
	for axis := 0; axis < 3; axis++ {
		o := axisOf(origin, axis)
		id := axisOf(invDir, axis)
		lo := (axisOf(b.Min, axis) - o) * id
		hi := (axisOf(b.Max, axis) - o) * id
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo > tMin {
			tMin = lo
		}
		if hi < tMax {
			tMax = hi
		}
		if tMax < tMin {
			return false
		}
	}
	return true
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
