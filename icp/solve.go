package icp

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/bowlscan/core/spatial"
)

// solvePointToPoint computes the rigid transform that best aligns
// pairs[i].src onto pairs[i].dst in the least-squares sense, via the
// closed-form Kabsch/SVD solve.
func solvePointToPoint(pairs []corrPair) (spatial.Pose, error) {
	n := len(pairs)
	if n == 0 {
		return nil, errors.New("icp: no correspondences to solve")
	}

	var srcMean, dstMean r3.Vector
	for _, p := range pairs {
		srcMean = srcMean.Add(p.src)
		dstMean = dstMean.Add(p.dst)
	}
	srcMean = srcMean.Mul(1 / float64(n))
	dstMean = dstMean.Mul(1 / float64(n))

	var h [9]float64 // row-major 3x3, H = sum(src_centered outer dst_centered)
	for _, p := range pairs {
		s := p.src.Sub(srcMean)
		d := p.dst.Sub(dstMean)
		sc := [3]float64{s.X, s.Y, s.Z}
		dc := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h[i*3+j] += sc[i] * dc[j]
			}
		}
	}

	H := mat.NewDense(3, 3, h[:])
	var svd mat.SVD
	if ok := svd.Factorize(H, mat.SVDFull); !ok {
		return nil, errors.New("icp: SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V * U^T, with a reflection fix if det(V*U^T) < 0.
	var vut mat.Dense
	vut.Mul(&v, u.T())
	if mat.Det(&vut) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		vut.Mul(&v, u.T())
	}

	rows := [3][3]float64{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rows[i][j] = vut.At(i, j)
		}
	}
	rm := spatial.NewRotationMatrixFromRows(rows)

	rotatedSrcMean := applyRows(rows, srcMean)
	t := dstMean.Sub(rotatedSrcMean)
	return spatial.NewPose(t, rm), nil
}

func applyRows(rows [3][3]float64, v r3.Vector) r3.Vector {
	comp := [3]float64{v.X, v.Y, v.Z}
	var out [3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i] += rows[i][j] * comp[j]
		}
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}

// solvePointToPlane computes a small-angle incremental rigid transform
// minimizing point-to-plane residuals n_i . (src_i + delta - dst_i) via
// linearized Gauss-Newton, the standard formulation for ICP refinement
// steps (Low, 2004).
func solvePointToPlane(pairs []corrPair) (spatial.Pose, error) {
	n := len(pairs)
	if n < 6 {
		return nil, errors.New("icp: too few correspondences for point-to-plane solve")
	}

	A := mat.NewDense(n, 6, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range pairs {
		cross := p.src.Cross(p.normal)
		A.Set(i, 0, cross.X)
		A.Set(i, 1, cross.Y)
		A.Set(i, 2, cross.Z)
		A.Set(i, 3, p.normal.X)
		A.Set(i, 4, p.normal.Y)
		A.Set(i, 5, p.normal.Z)
		residual := p.normal.Dot(p.dst.Sub(p.src))
		b.SetVec(i, residual)
	}

	var ata mat.Dense
	ata.Mul(A.T(), A)
	var atb mat.VecDense
	atb.MulVec(A.T(), b)

	var x mat.VecDense
	if err := x.SolveVec(&ata, &atb); err != nil {
		return nil, errors.Wrap(err, "icp: point-to-plane normal equations singular")
	}

	alpha, beta, gamma := x.AtVec(0), x.AtVec(1), x.AtVec(2)
	tx, ty, tz := x.AtVec(3), x.AtVec(4), x.AtVec(5)

	// Small-angle rotation: R ≈ I + skew(alpha,beta,gamma).
	rows := [3][3]float64{
		{1, -gamma, beta},
		{gamma, 1, -alpha},
		{-beta, alpha, 1},
	}
	rm, err := orthonormalize(rows)
	if err != nil {
		return nil, err
	}
	return spatial.NewPose(r3.Vector{X: tx, Y: ty, Z: tz}, rm), nil
}

// orthonormalize re-orthonormalizes a near-rotation matrix via SVD
// (R = U*V^T), needed because the small-angle linearization only
// approximates a true rotation.
func orthonormalize(rows [3][3]float64) (*spatial.RotationMatrix, error) {
	flat := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			flat[i*3+j] = rows[i][j]
		}
	}
	m := mat.NewDense(3, 3, flat)
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("icp: orthonormalization SVD failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return spatial.NewRotationMatrixFromRows(out), nil
}
