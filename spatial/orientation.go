// Package spatial provides the rigid-transform and triangle-mesh types
// shared by every stage of the bowl-volume pipeline: poses produced by
// BowlFit, triangles and meshes consumed by MeshPrep, BVH and RayCast.
package spatial

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is anything that can express a 3D rotation. BowlFit works
// natively with rotation matrices (the ICP solve produces one via SVD);
// callers and tests more often want Euler angles or a quaternion, so every
// representation can be converted to any other.
type Orientation interface {
	Quaternion() quat.Number
	RotationMatrix() *RotationMatrix
	EulerAngles() *EulerAngles
}

// EulerAngles is a roll/pitch/yaw rotation, in radians, composed as
// R = Rz(yaw)·Ry(pitch)·Rx(roll).
type EulerAngles struct {
	Roll, Pitch, Yaw float64
}

// Quaternion converts the Euler angles to a unit quaternion.
func (e *EulerAngles) Quaternion() quat.Number {
	cr, sr := math.Cos(e.Roll/2), math.Sin(e.Roll/2)
	cp, sp := math.Cos(e.Pitch/2), math.Sin(e.Pitch/2)
	cy, sy := math.Cos(e.Yaw/2), math.Sin(e.Yaw/2)
	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// RotationMatrix converts the Euler angles to a 3x3 rotation matrix.
func (e *EulerAngles) RotationMatrix() *RotationMatrix {
	return quaternionToRotationMatrix(e.Quaternion())
}

// EulerAngles returns the receiver.
func (e *EulerAngles) EulerAngles() *EulerAngles { return e }

// RotationMatrix is a row-major 3x3 rotation matrix.
type RotationMatrix struct {
	rows [3][3]float64
}

// NewRotationMatrix builds a RotationMatrix from 9 row-major entries and
// rejects anything that is not (to within tolerance) orthonormal with
// determinant +1.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, fmt.Errorf("rotation matrix requires 9 entries, got %d", len(m))
	}
	r := &RotationMatrix{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.rows[i][j] = m[i*3+j]
		}
	}
	if det := r.determinant(); math.Abs(det-1) > 1e-3 {
		return nil, fmt.Errorf("rotation matrix is not a proper rotation: determinant=%.6f", det)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := r.rows[i][0]*r.rows[j][0] + r.rows[i][1]*r.rows[j][1] + r.rows[i][2]*r.rows[j][2]
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > 1e-3 {
				return nil, fmt.Errorf("rotation matrix is not orthonormal: row%d·row%d=%.6f", i, j, dot)
			}
		}
	}
	return r, nil
}

// NewRotationMatrixFromRows builds a RotationMatrix without validating it;
// used internally once a rotation has already been derived from an SVD
// solve, where the orthonormality is a property of the construction.
func NewRotationMatrixFromRows(rows [3][3]float64) *RotationMatrix {
	return &RotationMatrix{rows: rows}
}

func (r *RotationMatrix) determinant() float64 {
	m := r.rows
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// At returns row i, column j (both 0-indexed).
func (r *RotationMatrix) At(i, j int) float64 { return r.rows[i][j] }

// Rows returns the rotation matrix as row-major data, suitable for
// persisting alongside a fitted transform.
func (r *RotationMatrix) Rows() [3][3]float64 { return r.rows }

// RotationMatrix returns the receiver.
func (r *RotationMatrix) RotationMatrix() *RotationMatrix { return r }

// Quaternion converts the rotation matrix to a unit quaternion using
// Shepperd's method.
func (r *RotationMatrix) Quaternion() quat.Number {
	m := r.rows
	tr := m[0][0] + m[1][1] + m[2][2]
	var qw, qx, qy, qz float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		qw = 0.25 * s
		qx = (m[2][1] - m[1][2]) / s
		qy = (m[0][2] - m[2][0]) / s
		qz = (m[1][0] - m[0][1]) / s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		qw = (m[2][1] - m[1][2]) / s
		qx = 0.25 * s
		qy = (m[0][1] + m[1][0]) / s
		qz = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		qw = (m[0][2] - m[2][0]) / s
		qx = (m[0][1] + m[1][0]) / s
		qy = 0.25 * s
		qz = (m[1][2] + m[2][1]) / s
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		qw = (m[1][0] - m[0][1]) / s
		qx = (m[0][2] + m[2][0]) / s
		qy = (m[1][2] + m[2][1]) / s
		qz = 0.25 * s
	}
	return quat.Number{Real: qw, Imag: qx, Jmag: qy, Kmag: qz}
}

// EulerAngles converts the rotation matrix to roll/pitch/yaw.
func (r *RotationMatrix) EulerAngles() *EulerAngles {
	m := r.rows
	pitch := math.Asin(clamp(-m[2][0], -1, 1))
	var roll, yaw float64
	if math.Abs(m[2][0]) < 1-1e-9 {
		roll = math.Atan2(m[2][1], m[2][2])
		yaw = math.Atan2(m[1][0], m[0][0])
	} else {
		// Gimbal lock: roll and yaw trade off, fix roll at 0.
		roll = 0
		yaw = math.Atan2(-m[0][1], m[1][1])
	}
	return &EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func quaternionToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n > 0 {
		w, x, y, z = w/n, x/n, y/n, z/n
	}
	return &RotationMatrix{rows: [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}}
}

// Identity returns the identity rotation.
func Identity() *RotationMatrix {
	return &RotationMatrix{rows: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}
