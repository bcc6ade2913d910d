// pkg/collision/mpr.go
package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/physics"
)

const (
	// DefaultMaxIterations bounds portal discovery and refinement together.
	DefaultMaxIterations = 34
	// DefaultEpsilon is the refinement tolerance along the portal normal.
	DefaultEpsilon = 1e-4

	zeroTolerance = 1e-9
)

var centreNudge = mgl64.Vec3{1e-5, 0, 0}

// Detector performs Minkowski Portal Refinement on pairs of convex bodies.
type Detector struct {
	MaxIterations int
	Epsilon       float64
}

// NewDetector returns a detector, substituting defaults for non-positive values.
func NewDetector(maxIterations int, epsilon float64) *Detector {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if !(epsilon > 0) {
		epsilon = DefaultEpsilon
	}
	return &Detector{MaxIterations: maxIterations, Epsilon: epsilon}
}

// supportPair holds a Minkowski difference vertex with the support points of
// each body that produced it.
type supportPair struct {
	v mgl64.Vec3 // b - a
	a mgl64.Vec3
	b mgl64.Vec3
}

func support(a, b *physics.Rigidbody, n mgl64.Vec3) supportPair {
	pa := a.SupportPoint(n.Mul(-1))
	pb := b.SupportPoint(n)
	return supportPair{v: pb.Sub(pa), a: pa, b: pb}
}

func triple(a, b, c mgl64.Vec3) float64 {
	return a.Cross(b).Dot(c)
}

// Collide tests a against b on the Minkowski difference b - a. On overlap it
// returns a contact whose normal points from a toward b.
func (d *Detector) Collide(a, b *physics.Rigidbody) (physics.Contact, bool) {
	budget := d.MaxIterations

	// Interior point of the difference.
	c0 := supportPair{a: a.Position(), b: b.Position()}
	c0.v = c0.b.Sub(c0.a)
	if physics.IsNearZero(c0.v, zeroTolerance) {
		c0.v = centreNudge
	}

	n := c0.v.Mul(-1)
	c1 := support(a, b, n)
	if c1.v.Dot(n) <= 0 {
		return physics.Contact{}, false
	}

	n = c1.v.Cross(c0.v)
	if physics.IsNearZero(n, zeroTolerance) {
		return directHit(c0, c1), true
	}

	c2 := support(a, b, n)
	if c2.v.Dot(n) <= 0 {
		return physics.Contact{}, false
	}

	n = c1.v.Sub(c0.v).Cross(c2.v.Sub(c0.v))
	if n.Dot(c0.v) > 0 {
		c1, c2 = c2, c1
		n = n.Mul(-1)
	}

	// Portal discovery: find a triangle whose cone from c0 contains the origin ray.
	var c3 supportPair
	for {
		if budget <= 0 {
			return physics.Contact{}, false
		}
		budget--

		c3 = support(a, b, n)
		if c3.v.Dot(n) <= 0 {
			return physics.Contact{}, false
		}
		if c1.v.Cross(c3.v).Dot(c0.v) < 0 {
			c2 = c3
			n = c1.v.Sub(c0.v).Cross(c3.v.Sub(c0.v))
			continue
		}
		if c3.v.Cross(c2.v).Dot(c0.v) < 0 {
			c1 = c3
			n = c3.v.Sub(c0.v).Cross(c2.v.Sub(c0.v))
			continue
		}
		break
	}

	// Portal refinement.
	hit := false
	previous := physics.SafeNormalize(n)
	for {
		n = c2.v.Sub(c1.v).Cross(c3.v.Sub(c1.v))
		if physics.IsNearZero(n, zeroTolerance) {
			if !hit {
				return physics.Contact{}, false
			}
			return d.contact(c0, c1, c2, c3, previous, c3), true
		}
		n = n.Normalize()
		previous = n

		if !hit && n.Dot(c1.v) >= 0 {
			hit = true
		}

		c4 := support(a, b, n)
		delta := c4.v.Sub(c3.v).Dot(n)
		separation := -c4.v.Dot(n)

		budget--
		if delta <= d.Epsilon || separation >= 0 || budget <= 0 {
			if !hit {
				return physics.Contact{}, false
			}
			return d.contact(c0, c1, c2, c3, n, c4), true
		}

		d1 := c4.v.Cross(c1.v).Dot(c0.v)
		d2 := c4.v.Cross(c2.v).Dot(c0.v)
		d3 := c4.v.Cross(c3.v).Dot(c0.v)
		if d1 < 0 {
			if d2 < 0 {
				c1 = c4
			} else {
				c3 = c4
			}
		} else {
			if d3 < 0 {
				c2 = c4
			} else {
				c1 = c4
			}
		}
	}
}

// directHit handles the case where the first support lies on the centre axis.
func directHit(c0, c1 supportPair) physics.Contact {
	n := physics.SafeNormalize(c1.v.Sub(c0.v))
	return physics.Contact{
		Point:       c1.a.Add(c1.b).Mul(0.5),
		Normal:      n.Mul(-1),
		Penetration: c1.v.Dot(n),
	}
}

// contact blends the portal's support points by the barycentric coordinates
// of the origin. The portal normal points from b toward a, so it is flipped.
func (d *Detector) contact(c0, c1, c2, c3 supportPair, n mgl64.Vec3, deepest supportPair) physics.Contact {
	b0 := triple(c1.v, c2.v, c3.v)
	b1 := triple(c3.v, c2.v, c0.v)
	b2 := triple(c0.v, c1.v, c3.v)
	b3 := triple(c2.v, c1.v, c0.v)
	sum := b0 + b1 + b2 + b3

	if sum <= 0 {
		b0 = 0
		b1 = triple(c2.v, c3.v, n)
		b2 = triple(c3.v, c1.v, n)
		b3 = triple(c1.v, c2.v, n)
		sum = b1 + b2 + b3
	}

	var point mgl64.Vec3
	if sum > 0 {
		inv := 1 / sum
		pa := c0.a.Mul(b0).Add(c1.a.Mul(b1)).Add(c2.a.Mul(b2)).Add(c3.a.Mul(b3)).Mul(inv)
		pb := c0.b.Mul(b0).Add(c1.b.Mul(b1)).Add(c2.b.Mul(b2)).Add(c3.b.Mul(b3)).Mul(inv)
		point = pa.Add(pb).Mul(0.5)
	} else {
		point = deepest.a.Add(deepest.b).Mul(0.5)
	}

	normal := physics.SafeNormalize(n)
	return physics.Contact{
		Point:       point,
		Normal:      normal.Mul(-1),
		Penetration: deepest.v.Dot(normal),
	}
}
