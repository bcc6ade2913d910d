// pkg/collision/broadphase.go
package collision

import "github.com/MansenC/BarrelShooter/pkg/physics"

// BroadPhase enumerates candidate pairs over every registered body.
//
// The argument order handed to the narrow phase alternates between
// successive candidate pairs so neither body is systematically first.
type BroadPhase struct {
	swapOrder bool
}

// Pairs calls fn for each pair whose bounding spheres overlap. Pairs where
// neither body is kinematic are skipped.
func (bp *BroadPhase) Pairs(bodies []*physics.Rigidbody, fn func(a, b *physics.Rigidbody)) {
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if !a.Kinematic && !b.Kinematic {
				continue
			}
			if !boundsOverlap(a, b) {
				continue
			}

			bp.swapOrder = !bp.swapOrder
			if bp.swapOrder {
				a, b = b, a
			}
			fn(a, b)
		}
	}
}

func boundsOverlap(a, b *physics.Rigidbody) bool {
	reach := a.Shape().BoundingRadius() + b.Shape().BoundingRadius()
	return b.Position().Sub(a.Position()).LenSqr() <= reach*reach
}
