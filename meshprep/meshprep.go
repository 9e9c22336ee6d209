// Package meshprep canonicalizes a reference bowl mesh: rotating it so the
// opening faces +z, centering the rim at the xy-origin, and measuring the
// rim's true diameter in the mesh's own units.
package meshprep

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/bowlscan/core/spatial"
)

// Config carries spec.md §6's rim_percentile option.
type Config struct {
	// RimPercentile selects the top (100-RimPercentile)% of vertices by z
	// as rim candidates, e.g. 95 selects the top 5%.
	RimPercentile float64
}

// DefaultConfig returns spec.md §6's documented default.
func DefaultConfig() Config {
	return Config{RimPercentile: 95}
}

// Diagnostics reports values computed while canonicalizing, most notably
// the measured rim diameter that BowlFit uses to solve its isotropic
// scale factor.
type Diagnostics struct {
	RimDiameterModelMM float64
	RimZ                float64
	Flipped             bool
}

// Canonicalize rotates and translates mesh (never scales it — scaling is
// BowlFit's job) into the canonical frame spec.md §4.B defines: opening
// facing +z, rim plane at z=RimZ, rim centroid projected to the xy origin.
func Canonicalize(mesh *spatial.Mesh, cfg Config) (*spatial.Mesh, Diagnostics, error) {
	if mesh == nil || len(mesh.Vertices) < 4 {
		return nil, Diagnostics{}, errors.New("meshprep: mesh must have at least 4 vertices")
	}
	if cfg.RimPercentile <= 0 || cfg.RimPercentile >= 100 {
		return nil, Diagnostics{}, errors.Errorf("meshprep: rim_percentile must be in (0, 100), got %v", cfg.RimPercentile)
	}

	mean := centroid(mesh.Vertices)
	centered := make([]r3.Vector, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		centered[i] = v.Sub(mean)
	}

	ex, ez, err := symmetryAxisBasis(centered)
	if err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, "meshprep")
	}
	ey := ez.Cross(ex).Normalize()
	ex = ey.Cross(ez).Normalize() // re-orthogonalize ex against the final ey,ez pair

	rotated := make([]r3.Vector, len(centered))
	for i, v := range centered {
		rotated[i] = r3.Vector{X: ex.Dot(v), Y: ey.Dot(v), Z: ez.Dot(v)}
	}

	flipped := false
	if topHullArea(rotated) < bottomHullArea(rotated) {
		for i, v := range rotated {
			rotated[i] = r3.Vector{X: v.X, Y: -v.Y, Z: -v.Z}
		}
		flipped = true
	}

	zThreshold := percentile(zValues(rotated), cfg.RimPercentile)
	rimVerts := selectAbove(rotated, zThreshold)
	if len(rimVerts) < 3 {
		return nil, Diagnostics{}, errors.New("meshprep: fewer than 3 rim-candidate vertices; rim_percentile too aggressive for this mesh")
	}
	rimMean := centroid(rimVerts)

	out := make([]r3.Vector, len(rotated))
	for i, v := range rotated {
		out[i] = r3.Vector{X: v.X - rimMean.X, Y: v.Y - rimMean.Y, Z: v.Z}
	}

	rimZ := maxZ(out)
	rimVertsFinal := selectAbove(out, zThreshold)
	diameter := principalAxisExtent(rimVertsFinal)

	canonical := &spatial.Mesh{Vertices: out, Triangles: mesh.Triangles}
	return canonical, Diagnostics{RimDiameterModelMM: diameter, RimZ: rimZ, Flipped: flipped}, nil
}

func centroid(vs []r3.Vector) r3.Vector {
	var sum r3.Vector
	for _, v := range vs {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(vs)))
}

func zValues(vs []r3.Vector) []float64 {
	z := make([]float64, len(vs))
	for i, v := range vs {
		z[i] = v.Z
	}
	return z
}

func maxZ(vs []r3.Vector) float64 {
	m := vs[0].Z
	for _, v := range vs[1:] {
		if v.Z > m {
			m = v.Z
		}
	}
	return m
}

func selectAbove(vs []r3.Vector, zThreshold float64) []r3.Vector {
	out := make([]r3.Vector, 0)
	for _, v := range vs {
		if v.Z >= zThreshold {
			out = append(out, v)
		}
	}
	return out
}

// percentile returns the value below which p percent of values fall,
// using linear interpolation between closest ranks (same convention as
// numpy's default).
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// symmetryAxisBasis runs PCA over centered vertex positions and returns
// (ex, ez) where ez is the axis of smallest variance (the bowl's
// candidate symmetry axis) and ex is the axis of largest variance, both
// unit length. The caller derives ey = ez × ex to complete a right-handed
// orthonormal basis.
func symmetryAxisBasis(centered []r3.Vector) (ex, ez r3.Vector, err error) {
	n := float64(len(centered))
	var data [9]float64
	for _, v := range centered {
		comp := [3]float64{v.X, v.Y, v.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				data[i*3+j] += comp[i] * comp[j]
			}
		}
	}
	for i := range data {
		data[i] /= n
	}
	sym := mat.NewSymDense(3, data[:])

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return r3.Vector{}, r3.Vector{}, errors.New("meshprep: covariance eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	type pair struct {
		val float64
		idx int
	}
	pairs := []pair{{values[0], 0}, {values[1], 1}, {values[2], 2}}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].val < pairs[j].val })

	smallest := pairs[0].idx
	largest := pairs[2].idx
	ez = r3.Vector{X: vectors.At(0, smallest), Y: vectors.At(1, smallest), Z: vectors.At(2, smallest)}.Normalize()
	ex = r3.Vector{X: vectors.At(0, largest), Y: vectors.At(1, largest), Z: vectors.At(2, largest)}.Normalize()
	return ex, ez, nil
}

// principalAxisExtent projects vs onto their dominant in-plane (xy) axis
// and returns the extent (max-min) along it, used as the rim diameter.
func principalAxisExtent(vs []r3.Vector) float64 {
	if len(vs) < 2 {
		return 0
	}
	mean := centroid(vs)
	var sxx, sxy, syy float64
	for _, v := range vs {
		dx, dy := v.X-mean.X, v.Y-mean.Y
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	n := float64(len(vs))
	sxx, sxy, syy = sxx/n, sxy/n, syy/n

	sym := mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy})
	var eig mat.EigenSym
	eig.Factorize(sym, true)
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	majorIdx := 0
	if values[1] > values[0] {
		majorIdx = 1
	}
	axis := r3.Vector{X: vectors.At(0, majorIdx), Y: vectors.At(1, majorIdx)}.Normalize()

	minProj, maxProj := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		p := (v.X-mean.X)*axis.X + (v.Y-mean.Y)*axis.Y
		if p < minProj {
			minProj = p
		}
		if p > maxProj {
			maxProj = p
		}
	}
	return maxProj - minProj
}

func topHullArea(vs []r3.Vector) float64 {
	return hullAreaNearZ(vs, true)
}

func bottomHullArea(vs []r3.Vector) float64 {
	return hullAreaNearZ(vs, false)
}

// hullAreaNearZ computes the 2-D convex hull area (projected onto xy) of
// the top or bottom 10% of vertices by z, used to disambiguate the
// bowl's opening end from its closed end.
func hullAreaNearZ(vs []r3.Vector, top bool) float64 {
	z := zValues(vs)
	var threshold float64
	if top {
		threshold = percentile(z, 90)
	} else {
		threshold = percentile(z, 10)
	}
	pts := make([]point2, 0)
	for _, v := range vs {
		if top && v.Z >= threshold {
			pts = append(pts, point2{v.X, v.Y})
		} else if !top && v.Z <= threshold {
			pts = append(pts, point2{v.X, v.Y})
		}
	}
	return convexHullArea(pts)
}

type point2 struct{ X, Y float64 }

func cross2(o, a, b point2) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// convexHullArea computes the area of the 2-D convex hull of pts via the
// monotone-chain algorithm, then the shoelace formula.
func convexHullArea(pts []point2) float64 {
	if len(pts) < 3 {
		return 0
	}
	sorted := append([]point2(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var hull []point2
	for _, p := range sorted {
		for len(hull) >= 2 && cross2(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross2(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	hull = hull[:len(hull)-1]

	if len(hull) < 3 {
		return 0
	}
	area := 0.0
	for i := range hull {
		j := (i + 1) % len(hull)
		area += hull[i].X*hull[j].Y - hull[j].X*hull[i].Y
	}
	return math.Abs(area) / 2
}
