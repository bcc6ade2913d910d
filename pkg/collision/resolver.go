// pkg/collision/resolver.go
package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// Restitution of every contact; collisions are perfectly elastic.
const Restitution = 1.0

// Resolve applies a frictionless elastic impulse along the contact normal,
// which must point from a to b. It returns the impulse magnitude, or zero if
// the bodies are already separating or both are immovable.
func Resolve(a, b *physics.Rigidbody, c physics.Contact) float64 {
	n := c.Normal
	ra := c.Point.Sub(a.Position())
	rb := c.Point.Sub(b.Position())

	relative := b.VelocityAtPoint(c.Point).Sub(a.VelocityAtPoint(c.Point))
	approach := relative.Dot(n)
	if approach > 0 {
		return 0
	}

	k := effectiveInverseMass(a, b, ra, rb, n)
	if k <= 0 {
		return 0
	}

	j := -(1 + Restitution) * approach / k
	impulse := n.Mul(j)
	b.ApplyImpulseAtPoint(impulse, c.Point)
	a.ApplyImpulseAtPoint(impulse.Mul(-1), c.Point)
	return j
}

func effectiveInverseMass(a, b *physics.Rigidbody, ra, rb, n mgl64.Vec3) float64 {
	angularA := a.InverseInertiaWorld().Mul3x1(ra.Cross(n)).Cross(ra)
	angularB := b.InverseInertiaWorld().Mul3x1(rb.Cross(n)).Cross(rb)
	return a.InverseMass() + b.InverseMass() + n.Dot(angularA.Add(angularB))
}

// NotifyHit fires both bodies' hit latches. The second body sees the contact
// with its normal reversed so it always points away from itself.
func NotifyHit(a, b *physics.Rigidbody, c physics.Contact) {
	a.Hit(b, c)
	b.Hit(a, physics.Contact{Point: c.Point, Normal: c.Normal.Mul(-1), Penetration: c.Penetration})
}
