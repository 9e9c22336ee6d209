package spatial

import "github.com/golang/geo/r3"

// Pose is a rigid transform: a rotation followed by a translation, both
// expressed in the parent frame. BowlFit produces a Pose (plus a uniform
// scale applied separately, see Mesh.Scaled) that carries the canonical
// bowl mesh into the camera frame.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation Orientation
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return &pose{orientation: Identity()}
}

// NewPoseFromPoint returns a pose with identity rotation and the given
// translation.
func NewPoseFromPoint(pt r3.Vector) Pose {
	return &pose{point: pt, orientation: Identity()}
}

// NewPose builds a pose from a rotation matrix and translation, the shape
// ICP solves for directly.
func NewPose(point r3.Vector, rotation *RotationMatrix) Pose {
	return &pose{point: point, orientation: rotation}
}

// NewPoseFromOrientation builds a pose from any Orientation representation.
func NewPoseFromOrientation(point r3.Vector, o Orientation) Pose {
	return &pose{point: point, orientation: o}
}

func (p *pose) Point() r3.Vector       { return p.point }
func (p *pose) Orientation() Orientation { return p.orientation }

// Apply rotates then translates v by p: p.Apply(v) = R*v + t.
func Apply(p Pose, v r3.Vector) r3.Vector {
	r := p.Orientation().RotationMatrix()
	rotated := r3.Vector{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
	return rotated.Add(p.Point())
}

// ApplyRotationOnly rotates v by p's orientation without translating;
// used for transforming surface normals.
func ApplyRotationOnly(p Pose, v r3.Vector) r3.Vector {
	r := p.Orientation().RotationMatrix()
	return r3.Vector{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
}

// Compose returns the pose equivalent to applying `inner` then `outer`:
// Compose(outer, inner).Apply(v) == outer.Apply(inner.Apply(v)).
func Compose(outer, inner Pose) Pose {
	ro := outer.Orientation().RotationMatrix()
	ri := inner.Orientation().RotationMatrix()
	var rows [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += ro.At(i, k) * ri.At(k, j)
			}
			rows[i][j] = sum
		}
	}
	composedRotation := NewRotationMatrixFromRows(rows)
	translation := Apply(outer, inner.Point())
	return &pose{point: translation, orientation: composedRotation}
}

// Inverse returns the pose that undoes p: Apply(Inverse(p), Apply(p, v)) == v.
func Inverse(p Pose) Pose {
	r := p.Orientation().RotationMatrix()
	// Transpose == inverse for an orthonormal rotation matrix.
	rows := r.Rows()
	var t [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = rows[j][i]
		}
	}
	inv := NewRotationMatrixFromRows(t)
	negated := r3.Vector{X: -p.Point().X, Y: -p.Point().Y, Z: -p.Point().Z}
	invPoint := r3.Vector{
		X: t[0][0]*negated.X + t[0][1]*negated.Y + t[0][2]*negated.Z,
		Y: t[1][0]*negated.X + t[1][1]*negated.Y + t[1][2]*negated.Z,
		Z: t[2][0]*negated.X + t[2][1]*negated.Y + t[2][2]*negated.Z,
	}
	return &pose{point: invPoint, orientation: inv}
}
