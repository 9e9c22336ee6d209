package icp

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/bowlscan/core/pointcloud"
	"github.com/bowlscan/core/spatial"
)

// sourceSampleSeed is a fixed PRNG seed so mesh-surface sampling (and
// therefore the whole ICP run, given a fixed scene and config) is
// deterministic — spec.md §5/§8 requires bit-reproducible results.
const sourceSampleSeed = 0xB0715CA17

// minSceneSize is spec.md §4.C's InsufficientData threshold.
const minSceneSize = 100

// Result is BowlFit's output: the rigid transform (applied on top of the
// analytic scale) that best places the canonical mesh into the scene,
// plus its quality diagnostics.
type Result struct {
	ScaleMM        float64
	Pose           spatial.Pose
	Fitness        float64
	RMSEMm         float64
	Iterations     int
	Converged      bool
	RimDiameterMM  float64
}

// ErrInsufficientData is returned when the scene has too few points to
// fit against, per spec.md §4.C.
var ErrInsufficientData = errors.New("icp: fewer than 100 valid scene points")

// Register performs scaled rigid registration of canonical (already in
// its MeshPrep canonical frame) against scene, per spec.md §4.C. seed, if
// non-nil, is a caller-supplied initial pose; otherwise the initial pose
// translates the scaled mesh's rim centroid onto the scene centroid with
// identity rotation.
func Register(ctx context.Context, scene *pointcloud.PointCloud, canonical *spatial.Mesh, rimDiameterModelMM, rimDiameterTrueMM float64, seed spatial.Pose, cfg Config) (Result, error) {
	if scene == nil || scene.Size() < minSceneSize {
		return Result{}, ErrInsufficientData
	}
	if rimDiameterModelMM <= 0 {
		return Result{}, errors.New("icp: rim_diameter_model_mm must be > 0")
	}
	if rimDiameterTrueMM <= 0 {
		return Result{}, errors.New("icp: rim_diameter_true_mm must be > 0")
	}

	scaleMM := rimDiameterTrueMM / rimDiameterModelMM
	scaled := canonical.Scaled(scaleMM)

	kd := pointcloud.NewKDTree(scene)
	normals := estimateNormals(scene, kd, cfg.NormalK)

	sourcePts := sampleSurface(scaled, targetSourceCount(scene.Size()))

	pose := seed
	if pose == nil {
		sceneCentroid := pointcloud.CloudCentroid(scene)
		rimCentroid := meshRimCentroid(scaled)
		pose = spatial.NewPoseFromPoint(sceneCentroid.Sub(rimCentroid))
	}

	var (
		meanDistPrev = math.Inf(1)
		fitness      float64
		rmse         float64
		converged    bool
		iterations   int
	)

	for it := 0; it < cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrap(err, "icp: cancelled")
		}
		iterations = it + 1

		threshold := iterationThreshold(cfg.DistanceThresholdMM, it)

		transformed := make([]r3.Vector, len(sourcePts))
		for i, p := range sourcePts {
			transformed[i] = spatial.Apply(pose, p)
		}

		var pairs []corrPair
		var sumDist float64
		for _, p := range transformed {
			q, _, dist, ok := kd.NearestNeighbor(p)
			if !ok || dist > threshold {
				continue
			}
			n := normals[q]
			pairs = append(pairs, corrPair{src: p, dst: q, normal: n, dist: dist})
			sumDist += dist
		}

		fitness = float64(len(pairs)) / float64(len(sourcePts))
		if len(pairs) == 0 {
			break
		}
		meanDist := sumDist / float64(len(pairs))

		var sqSum float64
		for _, pr := range pairs {
			sqSum += pr.dist * pr.dist
		}
		rmse = math.Sqrt(sqSum / float64(len(pairs)))

		var deltaPose spatial.Pose
		var err error
		if cfg.PointToPlane {
			deltaPose, err = solvePointToPlane(pairs)
		} else {
			deltaPose, err = solvePointToPoint(pairs)
		}
		if err != nil {
			break
		}
		pose = spatial.Compose(deltaPose, pose)

		if math.Abs(meanDist-meanDistPrev) < cfg.ConvergenceDeltaMM {
			converged = true
			meanDistPrev = meanDist
			break
		}
		meanDistPrev = meanDist

		if it >= 20 && fitness < 0.3 {
			break
		}
	}

	return Result{
		ScaleMM:       scaleMM,
		Pose:          pose,
		Fitness:       fitness,
		RMSEMm:        rmse,
		Iterations:    iterations,
		Converged:     converged,
		RimDiameterMM: rimDiameterModelMM * scaleMM,
	}, nil
}

type corrPair struct {
	src, dst r3.Vector
	normal   r3.Vector
	dist     float64
}

func iterationThreshold(base float64, iteration int) float64 {
	t := base * math.Pow(0.97, float64(iteration))
	floor := base * 0.25
	if t < floor {
		return floor
	}
	return t
}

func targetSourceCount(sceneSize int) int {
	n := 50000
	if sceneSize < n {
		n = sceneSize
	}
	if n < 1 {
		n = 1
	}
	return n
}

func meshRimCentroid(m *spatial.Mesh) r3.Vector {
	// The canonical/scaled mesh's rim sits at its maximum-z vertices, per
	// MeshPrep's frame convention; used only to seed BowlFit's initial
	// translation guess.
	maxZ := m.Vertices[0].Z
	for _, v := range m.Vertices {
		if v.Z > maxZ {
			maxZ = v.Z
		}
	}
	thresh := maxZ - 1e-6
	var sum r3.Vector
	var n int
	for _, v := range m.Vertices {
		if v.Z >= thresh {
			sum = sum.Add(v)
			n++
		}
	}
	if n == 0 {
		return r3.Vector{}
	}
	return sum.Mul(1 / float64(n))
}

// sampleSurface returns n source points: the mesh vertices first (cut to
// n if there are more), then area-weighted random points on the mesh's
// triangles to make up the rest, drawn with a fixed-seed PRNG so repeated
// calls with the same mesh are bit-identical.
func sampleSurface(mesh *spatial.Mesh, n int) []r3.Vector {
	out := make([]r3.Vector, 0, n+len(mesh.Vertices))
	out = append(out, mesh.Vertices...)
	if len(out) >= n {
		return out[:n]
	}

	areas := make([]float64, mesh.NumTriangles())
	var total float64
	for i := 0; i < mesh.NumTriangles(); i++ {
		areas[i] = mesh.Triangle(i).Area()
		total += areas[i]
	}
	if total <= 0 {
		return out
	}

	rng := rand.New(rand.NewSource(sourceSampleSeed))
	need := n - len(out)
	for k := 0; k < need; k++ {
		target := rng.Float64() * total
		var cum float64
		triIdx := 0
		for i, a := range areas {
			cum += a
			if cum >= target {
				triIdx = i
				break
			}
		}
		tri := mesh.Triangle(triIdx)
		r1, r2 := rng.Float64(), rng.Float64()
		sqrtR1 := math.Sqrt(r1)
		// barycentric sampling (Osada et al.)
		p := tri.P0.Mul(1 - sqrtR1).Add(tri.P1.Mul(sqrtR1 * (1 - r2))).Add(tri.P2.Mul(sqrtR1 * r2))
		out = append(out, p)
	}
	return out
}

// estimateNormals computes a unit normal for every scene point via local
// PCA over its k nearest neighbours (spec.md §4.C).
func estimateNormals(scene *pointcloud.PointCloud, kd *pointcloud.KDTree, k int) map[r3.Vector]r3.Vector {
	normals := make(map[r3.Vector]r3.Vector, scene.Size())
	scene.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
		neighbors := kd.KNearestNeighbors(p, k, true)
		normals[p] = localNormal(p, neighbors)
		return true
	})
	return normals
}

func localNormal(center r3.Vector, neighbors []*pointcloud.PointAndData) r3.Vector {
	if len(neighbors) < 3 {
		return r3.Vector{Z: 1}
	}
	var mean r3.Vector
	for _, nb := range neighbors {
		mean = mean.Add(nb.P)
	}
	mean = mean.Mul(1 / float64(len(neighbors)))

	var data [9]float64
	for _, nb := range neighbors {
		d := nb.P.Sub(mean)
		comp := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				data[i*3+j] += comp[i] * comp[j]
			}
		}
	}
	sym := mat.NewSymDense(3, data[:])
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return r3.Vector{Z: 1}
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	minIdx := 0
	for i := 1; i < 3; i++ {
		if values[i] < values[minIdx] {
			minIdx = i
		}
	}
	n := r3.Vector{X: vectors.At(0, minIdx), Y: vectors.At(1, minIdx), Z: vectors.At(2, minIdx)}.Normalize()
	// Orient outward (away from the local centroid's neighbourhood mean,
	// toward center) so point-to-plane residuals have a consistent sign.
	if n.Dot(center.Sub(mean)) < 0 {
		n = n.Mul(-1)
	}
	return n
}
