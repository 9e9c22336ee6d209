// Package bvh builds a surface-area-heuristic bounding volume hierarchy
// over a mesh's triangles and answers ray-triangle intersection queries
// against it via an explicit-stack (non-recursive) traversal, per
// spec.md §4.D's requirement that naive O(pixels×triangles) search is
// not acceptable at the pipeline's target scale (5×10^5 triangles,
// 10^5 pixels per capture).
package bvh

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/bowlscan/core/spatial"
)

const (
	leafTriangleLimit = 4
	numSAHBins        = 12
)

type node struct {
	bounds             AABB
	left, right        int32 // node indices; -1 for leaves
	triStart, triCount int32 // into Tree.triOrder; triCount > 0 marks a leaf
}

// Tree is a BVH built over a mesh's triangles. It owns indices into the
// mesh's triangle array (triOrder), never a duplicate copy of the
// triangle data, so there is no ownership cycle between a Mesh and a
// Tree built over it (spec.md §9).
type Tree struct {
	mesh     *spatial.Mesh
	nodes    []node
	triOrder []int32 // permutation of triangle indices, grouped by leaf
	root     int32
}

// Hit is the result of a successful ray-mesh intersection.
type Hit struct {
	TMM          float64
	TriangleIdx  int
}

// Build constructs a BVH over mesh's triangles using binned SAH splits.
// Construction is single-threaded and recursive (it runs once, off the
// hot path); only Intersect, the per-pixel hot path, uses an explicit
// stack.
func Build(mesh *spatial.Mesh) *Tree {
	t := &Tree{mesh: mesh}
	if mesh == nil || mesh.NumTriangles() == 0 {
		return t
	}

	n := mesh.NumTriangles()
	centroidBounds := make([]AABB, n)
	triOrder := make([]int32, n)
	for i := 0; i < n; i++ {
		tri := mesh.Triangle(i)
		b := emptyAABB()
		b = b.extend(tri.P0)
		b = b.extend(tri.P1)
		b = b.extend(tri.P2)
		centroidBounds[i] = b
		triOrder[i] = int32(i)
	}
	t.triOrder = triOrder

	t.root = t.build(triOrder, centroidBounds, 0, len(triOrder))
	return t
}

// build recursively partitions triOrder[start:end] in place, returning
// the index of the node covering that range.
func (t *Tree) build(order []int32, triBounds []AABB, start, end int) int32 {
	n := end - start
	bounds := emptyAABB()
	for i := start; i < end; i++ {
		bounds = bounds.union(triBounds[order[i]])
	}

	if n <= leafTriangleLimit {
		return t.makeLeaf(bounds, start, n)
	}

	centroidBounds := emptyAABB()
	for i := start; i < end; i++ {
		centroidBounds = centroidBounds.extend(triBounds[order[i]].centroid())
	}
	axis := centroidBounds.longestAxis()
	axisMin := axisOf(centroidBounds.Min, axis)
	axisExtent := axisOf(centroidBounds.Max, axis) - axisMin

	if axisExtent <= 1e-12 {
		return t.makeLeaf(bounds, start, n)
	}

	type bin struct {
		bounds AABB
		count  int
	}
	bins := make([]bin, numSAHBins)
	for i := range bins {
		bins[i].bounds = emptyAABB()
	}
	binForTri := func(triIdx int32) int {
		c := axisOf(triBounds[triIdx].centroid(), axis)
		b := int((c - axisMin) / axisExtent * float64(numSAHBins))
		if b < 0 {
			b = 0
		}
		if b >= numSAHBins {
			b = numSAHBins - 1
		}
		return b
	}
	for i := start; i < end; i++ {
		b := binForTri(order[i])
		bins[b].count++
		bins[b].bounds = bins[b].bounds.union(triBounds[order[i]])
	}

	// Prefix/suffix sweeps over the bins to evaluate SAH cost at each of
	// the numSAHBins-1 internal split planes.
	leftCount := make([]int, numSAHBins)
	leftArea := make([]float64, numSAHBins)
	accBounds := emptyAABB()
	accCount := 0
	for i := 0; i < numSAHBins; i++ {
		accBounds = accBounds.union(bins[i].bounds)
		accCount += bins[i].count
		leftCount[i] = accCount
		leftArea[i] = accBounds.surfaceArea()
	}
	rightCount := make([]int, numSAHBins)
	rightArea := make([]float64, numSAHBins)
	accBounds = emptyAABB()
	accCount = 0
	for i := numSAHBins - 1; i >= 0; i-- {
		accBounds = accBounds.union(bins[i].bounds)
		accCount += bins[i].count
		rightCount[i] = accCount
		rightArea[i] = accBounds.surfaceArea()
	}

	bestSplit := -1
	bestCost := math.Inf(1)
	for split := 0; split < numSAHBins-1; split++ {
		if leftCount[split] == 0 || rightCount[split+1] == 0 {
			continue
		}
		cost := leftArea[split]*float64(leftCount[split]) + rightArea[split+1]*float64(rightCount[split+1])
		if cost < bestCost {
			bestCost = cost
			bestSplit = split
		}
	}

	if bestSplit < 0 {
		// Every triangle landed in one bin (degenerate spatial
		// distribution along this axis); fall back to a median split by
		// centroid so the recursion still makes progress.
		sort.Slice(order[start:end], func(i, j int) bool {
			return axisOf(triBounds[order[start+i]].centroid(), axis) < axisOf(triBounds[order[start+j]].centroid(), axis)
		})
		mid := start + n/2
		left := t.build(order, triBounds, start, mid)
		right := t.build(order, triBounds, mid, end)
		return t.makeInternal(bounds, left, right)
	}

	threshold := bestSplit
	mid := partition(order[start:end], func(triIdx int32) bool { return binForTri(triIdx) <= threshold })
	splitAt := start + mid
	if splitAt == start || splitAt == end {
		splitAt = start + n/2
	}
	left := t.build(order, triBounds, start, splitAt)
	right := t.build(order, triBounds, splitAt, end)
	return t.makeInternal(bounds, left, right)
}

// partition reorders s in place so every element for which keep returns
// true precedes every element for which it returns false, returning the
// split point.
func partition(s []int32, keep func(int32) bool) int {
	i := 0
	for j := 0; j < len(s); j++ {
		if keep(s[j]) {
			s[i], s[j] = s[j], s[i]
			i++
		}
	}
	return i
}

func (t *Tree) makeLeaf(bounds AABB, start, count int) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{bounds: bounds, left: -1, right: -1, triStart: int32(start), triCount: int32(count)})
	return idx
}

func (t *Tree) makeInternal(bounds AABB, left, right int32) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{bounds: bounds, left: left, right: right, triCount: 0})
	return idx
}

// Intersect finds the nearest triangle hit by the ray (origin, dir) with
// t > 0, using an explicit stack rather than recursion — the per-pixel
// hot path spec.md §4.D/§9 require. epsilon is the Möller–Trumbore
// determinant threshold below which a ray counts as parallel to a triangle.
func (t *Tree) Intersect(origin, dir r3.Vector, epsilon float64) (Hit, bool) {
	if len(t.nodes) == 0 {
		return Hit{}, false
	}
	invDir := r3.Vector{X: safeInv(dir.X), Y: safeInv(dir.Y), Z: safeInv(dir.Z)}

	var stack [64]int32
	sp := 0
	stack[sp] = t.root
	sp++

	best := Hit{}
	found := false
	bestT := math.Inf(1)

	for sp > 0 {
		sp--
		ni := stack[sp]
		n := &t.nodes[ni]
		if !n.bounds.hit(origin, invDir, 1e-9, bestT) {
			continue
		}
		if n.triCount > 0 {
			for i := n.triStart; i < n.triStart+n.triCount; i++ {
				triIdx := int(t.triOrder[i])
				tri := t.mesh.Triangle(triIdx)
				if tHit, ok := intersectTriangle(origin, dir, tri, epsilon); ok && tHit > 0 && tHit < bestT {
					bestT = tHit
					best = Hit{TMM: tHit, TriangleIdx: triIdx}
					found = true
				}
			}
			continue
		}
		if sp+2 > len(stack) {
			continue // stack headroom exhausted; tree depth exceeds the fixed bound, skip rather than overflow
		}
		stack[sp] = n.left
		sp++
		stack[sp] = n.right
		sp++
	}

	return best, found
}

func safeInv(x float64) float64 {
	if x == 0 {
		return math.Inf(1)
	}
	return 1 / x
}

// intersectTriangle is the standard Möller–Trumbore ray-triangle
// intersection test, per spec.md §4.D.
func intersectTriangle(origin, dir r3.Vector, tri spatial.Triangle, epsilon float64) (float64, bool) {
	edge1 := tri.P1.Sub(tri.P0)
	edge2 := tri.P2.Sub(tri.P0)
	h := dir.Cross(edge2)
	det := edge1.Dot(h)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	invDet := 1 / det
	s := origin.Sub(tri.P0)
	u := s.Dot(h) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(edge1)
	v := dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}
	tVal := edge2.Dot(q) * invDet
	return tVal, true
}
