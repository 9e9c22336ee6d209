// Package pointcloud holds the scene point cloud produced by BackProject
// and the spatial index (a KD-tree) that BowlFit's ICP loop queries for
// nearest-neighbour correspondences.
package pointcloud

import "github.com/golang/geo/r3"

// Data is an arbitrary per-point payload (e.g. a source pixel index); the
// core pipeline does not require one, but callers debugging a fit benefit
// from being able to trace a scene point back to its originating pixel.
type Data interface{}

// PointCloud is an ordered, deduplicated set of 3D points (millimetres,
// camera frame) with optional per-point data. Ordering is insertion order,
// which is what keeps downstream reductions (centroid, RMSE) deterministic
// across runs of the same pipeline.
type PointCloud struct {
	points []r3.Vector
	data   []Data
	index  map[r3.Vector]int
}

// New returns an empty PointCloud.
func New() *PointCloud {
	return &PointCloud{index: make(map[r3.Vector]int)}
}

// NewFromPoints builds a PointCloud from a slice of points with no
// per-point data, preserving order and de-duplicating exact coincident
// points, so the result can hold fewer points than were passed in.
func NewFromPoints(points []r3.Vector) *PointCloud {
	pc := &PointCloud{
		points: make([]r3.Vector, 0, len(points)),
		data:   make([]Data, 0, len(points)),
		index:  make(map[r3.Vector]int, len(points)),
	}
	for _, p := range points {
		pc.Set(p, nil) //nolint:errcheck // Set on a coordinate never errors.
	}
	return pc
}

// NewVector is a small convenience constructor matching r3.Vector's field
// order, used throughout tests.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Set inserts or overwrites the point at p with data d.
func (pc *PointCloud) Set(p r3.Vector, d Data) error {
	if i, ok := pc.index[p]; ok {
		pc.data[i] = d
		return nil
	}
	pc.index[p] = len(pc.points)
	pc.points = append(pc.points, p)
	pc.data = append(pc.data, d)
	return nil
}

// At returns the data stored at the exact point (x, y, z), if any.
func (pc *PointCloud) At(x, y, z float64) (Data, bool) {
	i, ok := pc.index[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return pc.data[i], true
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	if pc == nil {
		return 0
	}
	return len(pc.points)
}

// Points returns the cloud's points in insertion order. The returned slice
// must not be mutated by the caller.
func (pc *PointCloud) Points() []r3.Vector {
	if pc == nil {
		return nil
	}
	return pc.points
}

// Iterate calls fn for every point in deterministic (insertion) order. When
// numBatches > 1, only the points whose index falls in [myBatch::numBatches]
// are visited, letting callers fan a cloud out across a worker pool while
// every worker still walks its slice in increasing index order.
func (pc *PointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	if pc == nil {
		return
	}
	if numBatches <= 1 {
		for i, p := range pc.points {
			if !fn(p, pc.data[i]) {
				return
			}
		}
		return
	}
	for i := myBatch; i < len(pc.points); i += numBatches {
		if !fn(pc.points[i], pc.data[i]) {
			return
		}
	}
}

// CloudContains reports whether the cloud has a point at exactly (x, y, z).
func CloudContains(pc *PointCloud, x, y, z float64) bool {
	_, ok := pc.At(x, y, z)
	return ok
}

// CloudCentroid returns the mean of all points in the cloud, or the zero
// vector for an empty cloud.
func CloudCentroid(pc *PointCloud) r3.Vector {
	if pc.Size() == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	pc.Iterate(0, 0, func(p r3.Vector, _ Data) bool {
		sum = sum.Add(p)
		return true
	})
	return sum.Mul(1 / float64(pc.Size()))
}
