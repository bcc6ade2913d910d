// pkg/collision/mpr_test.go
package collision

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MansenC/BarrelShooter/pkg/physics"
)

func newSphere(t *testing.T, radius float64, position mgl64.Vec3) *physics.Rigidbody {
	t.Helper()
	shape, err := physics.NewSphere(radius)
	require.NoError(t, err)
	body, err := physics.NewRigidbody(shape, 1)
	require.NoError(t, err)
	body.SetPosition(position)
	return body
}

func newCylinder(t *testing.T, height, radius float64, position mgl64.Vec3) *physics.Rigidbody {
	t.Helper()
	shape, err := physics.NewCylinder(height, radius)
	require.NoError(t, err)
	body, err := physics.NewRigidbody(shape, 1)
	require.NoError(t, err)
	body.SetPosition(position)
	return body
}

func randomUnit(rng *rand.Rand) mgl64.Vec3 {
	for {
		v := mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		if l := v.Len(); l > 0.1 && l <= 1 {
			return v.Mul(1 / l)
		}
	}
}

func randomPoint(rng *rand.Rand, extent float64) mgl64.Vec3 {
	return mgl64.Vec3{
		(rng.Float64()*2 - 1) * extent,
		(rng.Float64()*2 - 1) * extent,
		(rng.Float64()*2 - 1) * extent,
	}
}

func TestNewDetector_Defaults(t *testing.T) {
	d := NewDetector(0, 0)
	assert.Equal(t, 34, d.MaxIterations)
	assert.Equal(t, 1e-4, d.Epsilon)

	d = NewDetector(10, 1e-3)
	assert.Equal(t, 10, d.MaxIterations)
	assert.Equal(t, 1e-3, d.Epsilon)
}

func TestCollide_SeparatedSpheres_NeverCollide(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)
	rng := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 500; i++ {
		ra := 0.2 + rng.Float64()*1.8
		rb := 0.2 + rng.Float64()*1.8
		gap := 1e-3 + rng.Float64()*5
		origin := randomPoint(rng, 10)
		offset := randomUnit(rng).Mul(ra + rb + gap)

		a := newSphere(t, ra, origin)
		b := newSphere(t, rb, origin.Add(offset))

		_, hit := d.Collide(a, b)
		require.False(t, hit, "case %d: ra=%v rb=%v gap=%v", i, ra, rb, gap)
	}
}

func TestCollide_OverlappingSpheres_ReportAxisContact(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)
	rng := rand.New(rand.NewPCG(9, 13))

	for i := 0; i < 300; i++ {
		ra := 0.2 + rng.Float64()*1.8
		rb := 0.2 + rng.Float64()*1.8
		distance := (ra + rb) * (0.2 + rng.Float64()*0.75)
		origin := randomPoint(rng, 10)
		axis := randomUnit(rng)

		a := newSphere(t, ra, origin)
		b := newSphere(t, rb, origin.Add(axis.Mul(distance)))

		c, hit := d.Collide(a, b)
		require.True(t, hit, "case %d", i)
		assert.InDelta(t, ra+rb-distance, c.Penetration, 2e-2, "case %d penetration", i)
		assert.Greater(t, c.Normal.Dot(axis), 0.995, "case %d normal %v axis %v", i, c.Normal, axis)
		assert.InDelta(t, 1, c.Normal.Len(), 1e-9)
	}
}

func TestCollide_CoaxialSpheres_DirectHit(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)
	a := newSphere(t, 1, mgl64.Vec3{})
	b := newSphere(t, 1, mgl64.Vec3{1.5, 0, 0})

	c, hit := d.Collide(a, b)
	require.True(t, hit)
	assert.InDelta(t, 0.5, c.Penetration, 1e-12)
	assert.True(t, c.Normal.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-12))
	assert.True(t, c.Point.ApproxEqualThreshold(mgl64.Vec3{0.75, 0, 0}, 1e-12))

	// Reversing the arguments reverses the normal.
	c, hit = d.Collide(b, a)
	require.True(t, hit)
	assert.True(t, c.Normal.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-12))
}

func TestCollide_CoincidentCentres_Collide(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)
	a := newSphere(t, 1, mgl64.Vec3{2, 2, 2})
	b := newSphere(t, 0.5, mgl64.Vec3{2, 2, 2})

	c, hit := d.Collide(a, b)
	require.True(t, hit)
	assert.InDelta(t, 1.5, c.Penetration, 1e-9)
	assert.InDelta(t, 1, c.Normal.Len(), 1e-9)
}

func TestCollide_Cylinders(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)

	tests := []struct {
		name        string
		offset      mgl64.Vec3
		hit         bool
		normal      mgl64.Vec3
		penetration float64
	}{
		{"side by side apart", mgl64.Vec3{1.2, 0, 0}, false, mgl64.Vec3{}, 0},
		{"stacked apart", mgl64.Vec3{0, 2.1, 0}, false, mgl64.Vec3{}, 0},
		{"side overlap", mgl64.Vec3{0.9, 0, 0}, true, mgl64.Vec3{1, 0, 0}, 0.1},
		{"stacked overlap", mgl64.Vec3{0, 1.8, 0}, true, mgl64.Vec3{0, 1, 0}, 0.2},
		{"oblique side overlap", mgl64.Vec3{0.9, 0.3, 0.2}, true, mgl64.Vec3{0.9, 0, 0.2}.Normalize(), 1 - mgl64.Vec2{0.9, 0.2}.Len()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newCylinder(t, 2, 0.5, mgl64.Vec3{})
			b := newCylinder(t, 2, 0.5, tt.offset)

			c, hit := d.Collide(a, b)
			require.Equal(t, tt.hit, hit)
			if !tt.hit {
				return
			}
			assert.Greater(t, c.Normal.Dot(tt.normal), 0.99)
			assert.InDelta(t, tt.penetration, c.Penetration, 2e-2)
		})
	}
}

func TestCollide_SphereOnCylinderCap(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)
	barrel := newCylinder(t, 2, 0.5, mgl64.Vec3{})
	ball := newSphere(t, 0.5, mgl64.Vec3{0, 1.4, 0})

	c, hit := d.Collide(barrel, ball)
	require.True(t, hit)
	assert.InDelta(t, 0.1, c.Penetration, 1e-9)
	assert.True(t, c.Normal.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
}

func TestCollide_RotatedCylinder_UsesOrientation(t *testing.T) {
	d := NewDetector(DefaultMaxIterations, DefaultEpsilon)
	ball := newSphere(t, 0.25, mgl64.Vec3{1.1, 0, 0})

	upright := newCylinder(t, 2, 0.5, mgl64.Vec3{})
	_, hit := d.Collide(upright, ball)
	assert.False(t, hit)

	// Tipped over, the cylinder reaches out to x = 1.
	tipped := newCylinder(t, 2, 0.5, mgl64.Vec3{})
	tipped.SetOrientation(mgl64.QuatRotate(1.5707963267948966, mgl64.Vec3{0, 0, 1}))
	_, hit = d.Collide(tipped, ball)
	assert.True(t, hit)
}
