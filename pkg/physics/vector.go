// pkg/physics/vector.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// The world uses an inverted Y axis: +Y points down toward the sea floor,
// so gravity is positive Y and buoyancy pushes along Up.
var (
	Up   = mgl64.Vec3{0, -1, 0}
	Down = mgl64.Vec3{0, 1, 0}
)

// smallAngle is the rotation per step below which the orientation update
// switches to the Taylor form of sin(x)/x.
const smallAngle = 1e-4

// IsNearZero reports whether v is shorter than eps.
func IsNearZero(v mgl64.Vec3, eps float64) bool {
	return v.LenSqr() <= eps*eps
}

// SafeNormalize returns a unit vector in the direction of v, or the zero vector
// if v has no length.
func SafeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	length := v.Len()
	if length == 0 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / length)
}

// Sign returns -1, 0 or 1 depending on the sign of x.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// DampingFactor is the multiplicative velocity decay applied over one step.
func DampingFactor(damping, dt float64) float64 {
	return math.Max(1-damping*dt, 0)
}

// RotationMatrix converts an orientation into the body-to-world rotation matrix.
func RotationMatrix(q mgl64.Quat) mgl64.Mat3 {
	return q.Normalize().Mat4().Mat3()
}

// WorldInverseInertia rotates a body-space inverse inertia tensor into world
// space: R * I^-1 * R^T.
func WorldInverseInertia(q mgl64.Quat, inverseLocal mgl64.Mat3) mgl64.Mat3 {
	r := RotationMatrix(q)
	return r.Mul3(inverseLocal).Mul3(r.Transpose())
}

// IntegrateOrientation advances q by the angular velocity omega over dt using
// the quaternion exponential exp(omega*dt/2), left-multiplied onto q.
func IntegrateOrientation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	theta := omega.Len()
	half := theta * dt / 2

	var scale float64
	if half < smallAngle {
		scale = dt/2 - theta*theta*dt*dt*dt/48
	} else {
		scale = math.Sin(half) / theta
	}

	delta := mgl64.Quat{W: math.Cos(half), V: omega.Mul(scale)}
	return delta.Mul(q).Normalize()
}

// Vec3Finite reports whether every component of v is a finite number.
func Vec3Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
