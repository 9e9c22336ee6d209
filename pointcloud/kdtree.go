package pointcloud

import (
	"container/heap"
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// PointAndData pairs a point with its payload, returned by the
// neighbourhood queries below ordered nearest-first.
type PointAndData struct {
	P r3.Vector
	D Data
}

type kdNode struct {
	idx         int
	axis        int
	left, right *kdNode
}

// KDTree answers nearest-neighbour queries over a PointCloud. BowlFit
// builds one KDTree over the scene cloud once per fit and queries it once
// per ICP iteration per sampled mesh point.
type KDTree struct {
	cloud *PointCloud
	root  *kdNode
}

// NewKDTree builds a balanced KD-tree over cloud's points. The cloud is
// not copied; KDTree reads through to it, so concurrent queries (but not
// concurrent inserts) are safe.
func NewKDTree(cloud *PointCloud) *KDTree {
	if cloud == nil {
		cloud = New()
	}
	idxs := make([]int, cloud.Size())
	for i := range idxs {
		idxs[i] = i
	}
	kd := &KDTree{cloud: cloud}
	kd.root = kd.build(idxs, 0)
	return kd
}

func axisValue(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func (kd *KDTree) build(idxs []int, depth int) *kdNode {
	if len(idxs) == 0 {
		return nil
	}
	axis := depth % 3
	sort.Slice(idxs, func(i, j int) bool {
		return axisValue(kd.cloud.points[idxs[i]], axis) < axisValue(kd.cloud.points[idxs[j]], axis)
	})
	mid := len(idxs) / 2
	node := &kdNode{idx: idxs[mid], axis: axis}
	node.left = kd.build(idxs[:mid], depth+1)
	node.right = kd.build(idxs[mid+1:], depth+1)
	return node
}

// Set inserts a point into both the underlying cloud and the tree. The
// tree is not rebalanced, so heavy incremental use after the initial bulk
// build will degrade query time; BowlFit never does this; it is here for
// callers that build a scene cloud incrementally in small test fixtures.
func (kd *KDTree) Set(p r3.Vector, d Data) error {
	if err := kd.cloud.Set(p, d); err != nil {
		return err
	}
	newIdx := kd.cloud.index[p]
	if kd.root == nil {
		kd.root = &kdNode{idx: newIdx, axis: 0}
		return nil
	}
	n := kd.root
	depth := 0
	for {
		axis := depth % 3
		if axisValue(p, axis) < axisValue(kd.cloud.points[n.idx], axis) {
			if n.left == nil {
				n.left = &kdNode{idx: newIdx, axis: axis}
				return nil
			}
			n = n.left
		} else {
			if n.right == nil {
				n.right = &kdNode{idx: newIdx, axis: axis}
				return nil
			}
			n = n.right
		}
		depth++
	}
}

// Size returns the number of points indexed by the tree.
func (kd *KDTree) Size() int {
	return kd.cloud.Size()
}

// NearestNeighbor returns the closest point to target, its data, the
// Euclidean distance, and whether the tree is non-empty.
func (kd *KDTree) NearestNeighbor(target r3.Vector) (r3.Vector, Data, float64, bool) {
	if kd.root == nil {
		return r3.Vector{}, nil, 0, false
	}
	best := -1
	bestDist := math.MaxFloat64
	kd.nearestRec(kd.root, target, &best, &bestDist)
	return kd.cloud.points[best], kd.cloud.data[best], math.Sqrt(bestDist), true
}

func (kd *KDTree) nearestRec(n *kdNode, target r3.Vector, best *int, bestDist *float64) {
	if n == nil {
		return
	}
	p := kd.cloud.points[n.idx]
	d := target.Sub(p).Norm2()
	if *best == -1 || d < *bestDist {
		*best = n.idx
		*bestDist = d
	}
	diff := axisValue(target, n.axis) - axisValue(p, n.axis)
	first, second := n.left, n.right
	if diff > 0 {
		first, second = n.right, n.left
	}
	kd.nearestRec(first, target, best, bestDist)
	if diff*diff < *bestDist {
		kd.nearestRec(second, target, best, bestDist)
	}
}

// kNearest uses a bounded max-heap keyed on distance to target so we only
// ever hold k candidates in memory regardless of cloud size.
type maxHeapItem struct {
	idx  int
	dist float64
}

type maxHeap []maxHeapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(maxHeapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNearestNeighbors returns up to k nearest neighbours of target, sorted
// nearest-first. When includeSelf is false, a point exactly equal to
// target is excluded (used when querying a cloud's own points).
func (kd *KDTree) KNearestNeighbors(target r3.Vector, k int, includeSelf bool) []*PointAndData {
	if k <= 0 || kd.root == nil {
		return []*PointAndData{}
	}
	h := &maxHeap{}
	heap.Init(h)
	kd.kNearestRec(kd.root, target, k, includeSelf, h)

	items := make([]maxHeapItem, h.Len())
	copy(items, *h)
	sort.Slice(items, func(i, j int) bool { return items[i].dist < items[j].dist })

	out := make([]*PointAndData, len(items))
	for i, it := range items {
		out[i] = &PointAndData{P: kd.cloud.points[it.idx], D: kd.cloud.data[it.idx]}
	}
	return out
}

func (kd *KDTree) kNearestRec(n *kdNode, target r3.Vector, k int, includeSelf bool, h *maxHeap) {
	if n == nil {
		return
	}
	p := kd.cloud.points[n.idx]
	if includeSelf || p != target {
		d := target.Sub(p).Norm2()
		if h.Len() < k {
			heap.Push(h, maxHeapItem{idx: n.idx, dist: d})
		} else if d < (*h)[0].dist {
			heap.Pop(h)
			heap.Push(h, maxHeapItem{idx: n.idx, dist: d})
		}
	}
	diff := axisValue(target, n.axis) - axisValue(p, n.axis)
	first, second := n.left, n.right
	if diff > 0 {
		first, second = n.right, n.left
	}
	kd.kNearestRec(first, target, k, includeSelf, h)
	worst := math.MaxFloat64
	if h.Len() == k {
		worst = (*h)[0].dist
	}
	if diff*diff < worst || h.Len() < k {
		kd.kNearestRec(second, target, k, includeSelf, h)
	}
}

// RadiusNearestNeighbors returns every point within radius of target,
// sorted nearest-first.
func (kd *KDTree) RadiusNearestNeighbors(target r3.Vector, radius float64, includeSelf bool) []*PointAndData {
	out := []*PointAndData{}
	if kd.root == nil {
		return out
	}
	r2 := radius * radius
	var rec func(n *kdNode)
	rec = func(n *kdNode) {
		if n == nil {
			return
		}
		p := kd.cloud.points[n.idx]
		if includeSelf || p != target {
			if d := target.Sub(p).Norm2(); d <= r2 {
				out = append(out, &PointAndData{P: p, D: kd.cloud.data[n.idx]})
			}
		}
		diff := axisValue(target, n.axis) - axisValue(p, n.axis)
		if diff <= radius {
			rec(n.left)
		}
		if diff >= -radius {
			rec(n.right)
		}
	}
	rec(kd.root)
	sort.Slice(out, func(i, j int) bool {
		return target.Sub(out[i].P).Norm2() < target.Sub(out[j].P).Norm2()
	})
	return out
}
