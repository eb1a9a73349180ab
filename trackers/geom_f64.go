package trackers

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a position in tracking space (meters).
type Vec3 = r3.Vec

// NewVec3 creates a position
func NewVec3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Quaternion is a rotation stored in (x, y, z, w) order, the order used by the calibration table.
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// IdentityQuaternion returns the "no rotation" quaternion
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// NewQuaternion creates a quaternion from its components
func NewQuaternion(x, y, z, w float64) Quaternion {
	return Quaternion{
		X: x,
		Y: y,
		Z: z,
		W: w,
	}
}

// NewQuaternionFromAxisAngle creates a unit quaternion rotating by angle (radians) around axis.
func NewQuaternionFromAxisAngle(axis Vec3, angle float64) Quaternion {
	return quaternionFromNumber(quat.Number(r3.NewRotation(angle, axis)))
}

func quaternionFromNumber(n quat.Number) Quaternion {
	return Quaternion{
		X: n.Imag,
		Y: n.Jmag,
		Z: n.Kmag,
		W: n.Real,
	}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{
		Real: q.W,
		Imag: q.X,
		Jmag: q.Y,
		Kmag: q.Z,
	}
}

// Mul returns the Hamilton product q*other (other is applied first).
func (q Quaternion) Mul(other Quaternion) Quaternion {
	return quaternionFromNumber(quat.Mul(q.number(), other.number()))
}

// Inverse returns the multiplicative inverse. For unit quaternions this is the conjugate.
// The zero quaternion has no inverse; identity is returned instead.
func (q Quaternion) Inverse() Quaternion {
	if q.Norm() == 0 {
		return IdentityQuaternion()
	}
	return quaternionFromNumber(quat.Inv(q.number()))
}

// Norm returns the quaternion magnitude
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalized returns q scaled to unit length. The zero quaternion normalizes to identity.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return IdentityQuaternion()
	}
	return quaternionFromNumber(quat.Scale(1/n, q.number()))
}

// IsFinite reports whether every component is a finite number
func (q Quaternion) IsFinite() bool {
	return isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z) && isFinite(q.W)
}

// IsIdentity reports whether q represents no rotation.
// q and -q encode the same rotation, so both signs of w are accepted.
func (q Quaternion) IsIdentity() bool {
	return q.ApproxEqualRotation(IdentityQuaternion(), quaternionIdentityTolerance)
}

// ApproxEqualRotation reports whether q and other encode the same rotation within tol.
func (q Quaternion) ApproxEqualRotation(other Quaternion, tol float64) bool {
	a := q.Normalized()
	b := other.Normalized()
	dot := a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W
	return 1-math.Abs(dot) <= tol
}

// Rotate applies the rotation to v
func (q Quaternion) Rotate(v Vec3) Vec3 {
	return r3.Rotation(q.Normalized().number()).Rotate(v)
}

// Pose is the last accepted position and rotation of a tracker
type Pose struct {
	Position Vec3
	Rotation Quaternion
}

// DefaultPose returns a pose at the origin with no rotation
func DefaultPose() Pose {
	return Pose{
		Position: Vec3{},
		Rotation: IdentityQuaternion(),
	}
}

// Forward returns the pose's forward (+Z) direction
func (p Pose) Forward() Vec3 {
	return p.Rotation.Rotate(Vec3{Z: 1})
}

func euclideanDistance(p1, p2 Vec3) float64 {
	return r3.Norm(r3.Sub(p1, p2))
}
