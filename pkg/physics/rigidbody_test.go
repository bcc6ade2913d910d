// pkg/physics/rigidbody_test.go
package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDt = 0.02

var testGravity = mgl64.Vec3{0, DefaultGravity, 0}

func newTestSphereBody(t *testing.T, radius, mass float64) *Rigidbody {
	t.Helper()
	shape, err := NewSphere(radius)
	require.NoError(t, err)
	body, err := NewRigidbody(shape, mass)
	require.NoError(t, err)
	return body
}

func stepBody(b *Rigidbody, tick int) {
	b.IntegrateForces(Step{Dt: testDt, Time: float64(tick) * testDt, Gravity: testGravity})
	b.Integrate(testDt)
}

func TestNewRigidbody_Defaults(t *testing.T) {
	b := newTestSphereBody(t, 0.5, 2)

	assert.True(t, b.Kinematic)
	assert.True(t, b.UseGravity)
	assert.Equal(t, 2.0, b.Mass())
	assert.Equal(t, 0.5, b.InverseMass())
	assert.Equal(t, mgl64.QuatIdent(), b.Pose().Orientation)
	assert.NotZero(t, b.ID())
}

func TestNewRigidbody_UniqueIDs(t *testing.T) {
	a := newTestSphereBody(t, 1, 1)
	b := newTestSphereBody(t, 1, 1)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSetMass_NonPositive_ReturnsErrInvalidMass(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)

	tests := []struct {
		name string
		mass float64
	}{
		{"zero", 0},
		{"negative", -3},
		{"nan", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, b.SetMass(tt.mass), ErrInvalidMass)
			assert.Equal(t, 1.0, b.Mass())
		})
	}
}

func TestSetMass_ScalesInertia(t *testing.T) {
	b := newTestSphereBody(t, 1, 10)

	// 0.4 * m * r^2
	assert.InDelta(t, 4, b.Inertia().X(), 1e-9)
	assert.InDelta(t, 0.25, b.InverseInertiaWorld().At(1, 1), 1e-9)
}

func TestIntegrate_AtRest_StaysPut(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.UseGravity = false
	start := mgl64.Vec3{1, 2, 3}
	b.SetPosition(start)

	for i := 0; i < 1000; i++ {
		stepBody(b, i)
	}

	assert.True(t, b.Position().ApproxEqualThreshold(start, 1e-12))
	assert.InDelta(t, 1, b.Orientation().Len(), 1e-12)
	assert.Zero(t, b.LinearVelocity().Len())
}

func TestIntegrate_FreeFall_ReachesWaterInExpectedTime(t *testing.T) {
	b := newTestSphereBody(t, 0.5, 1)
	b.SetPosition(mgl64.Vec3{0, -10, 0})

	ticks := 0
	for b.Position().Y() < 0 && ticks < 1000 {
		stepBody(b, ticks)
		ticks++
	}

	expected := math.Sqrt(2 * 10 / DefaultGravity)
	assert.InDelta(t, expected, float64(ticks)*testDt, testDt)
}

func TestIntegrate_NotKinematic_IsFrozen(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.Kinematic = false
	b.SetLinearVelocity(mgl64.Vec3{1, 0, 0})

	for i := 0; i < 10; i++ {
		stepBody(b, i)
	}

	assert.Equal(t, mgl64.Vec3{}, b.Position())
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, b.LinearVelocity())
}

func TestIntegrate_Damping_ReducesVelocity(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.UseGravity = false
	b.LinearDamping = 1
	b.AngularDamping = 100
	b.SetLinearVelocity(mgl64.Vec3{10, 0, 0})
	b.SetAngularVelocity(mgl64.Vec3{0, 5, 0})

	stepBody(b, 0)

	assert.InDelta(t, 9.8, b.LinearVelocity().X(), 1e-12)
	assert.Zero(t, b.AngularVelocity().Len())
}

func TestIntegrate_PublishesPoseSnapshot(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.UseGravity = false
	b.SetLinearVelocity(mgl64.Vec3{1, 0, 0})

	before := b.Pose()
	stepBody(b, 0)
	after := b.Pose()

	assert.Equal(t, mgl64.Vec3{}, before.Position)
	assert.InDelta(t, testDt, after.Position.X(), 1e-12)
}

func TestAddForceAtPoint_OffCentre_ProducesTorque(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.AddForceAtPoint(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, 0})

	assert.Equal(t, mgl64.Vec3{0, 0, 1}, b.Force())
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, b.Torque())

	b.UseGravity = false
	stepBody(b, 0)
	assert.Equal(t, mgl64.Vec3{}, b.Force())
	assert.Equal(t, mgl64.Vec3{}, b.Torque())
	assert.Less(t, b.AngularVelocity().Y(), 0.0)
}

func TestForceContributor_RunsEachForceIntegration(t *testing.T) {
	b := newTestSphereBody(t, 1, 2)
	b.UseGravity = false

	calls := 0
	b.AddContributor(ForceFunc(func(body *Rigidbody, step Step) {
		calls++
		body.AddForce(mgl64.Vec3{2, 0, 0})
	}))

	stepBody(b, 0)
	stepBody(b, 1)

	assert.Equal(t, 2, calls)
	assert.InDelta(t, 2*testDt, b.LinearVelocity().X(), 1e-12)
}

func TestApplyImpulseAtPoint_ChangesLinearAndAngularVelocity(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.ApplyImpulseAtPoint(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, 0})

	assert.InDelta(t, 1, b.LinearVelocity().Z(), 1e-12)
	// r x J = (1,0,0) x (0,0,1) = (0,-1,0), scaled by 1/(0.4)
	assert.InDelta(t, -2.5, b.AngularVelocity().Y(), 1e-9)
}

func TestSetImmovable_IgnoresImpulsesAndGravity(t *testing.T) {
	b := newTestSphereBody(t, 1, 1)
	b.SetImmovable()
	b.ApplyImpulseAtPoint(mgl64.Vec3{5, 5, 5}, mgl64.Vec3{1, 0, 0})
	stepBody(b, 0)

	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity())
	assert.Equal(t, mgl64.Vec3{}, b.AngularVelocity())
	assert.Equal(t, mgl64.Vec3{}, b.Position())
	assert.Zero(t, b.InverseMass())
}

func TestSupportPoint_RotatedCylinder(t *testing.T) {
	shape, err := NewCylinder(2, 0.5)
	require.NoError(t, err)
	b, err := NewRigidbody(shape, 1)
	require.NoError(t, err)
	b.SetPosition(mgl64.Vec3{10, 0, 0})
	b.SetOrientation(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	// Lying on its side the cylinder axis points along world X.
	p := b.SupportPoint(mgl64.Vec3{-1, 0, 0})
	assert.InDelta(t, 9, p.X(), 1e-9)
	assert.LessOrEqual(t, math.Hypot(p.Y(), p.Z()), 0.5+1e-9)
}

func TestHit_FiresOnce(t *testing.T) {
	a := newTestSphereBody(t, 1, 1)
	other := newTestSphereBody(t, 1, 1)

	var fired int
	var seen *Rigidbody
	a.OnHit(func(self, o *Rigidbody, c Contact) {
		fired++
		seen = o
	})

	assert.True(t, a.Hit(other, Contact{}))
	assert.False(t, a.Hit(other, Contact{}))
	assert.Equal(t, 1, fired)
	assert.Same(t, other, seen)
	assert.True(t, a.HasBeenHit())

	a.ResetHit()
	assert.True(t, a.Hit(other, Contact{}))
	assert.Equal(t, 2, fired)
}

func TestKineticEnergy(t *testing.T) {
	b := newTestSphereBody(t, 1, 2)
	b.SetLinearVelocity(mgl64.Vec3{3, 0, 0})
	b.SetAngularVelocity(mgl64.Vec3{0, 0, 1})

	// 0.5*2*9 + 0.5*(0.4*2*1)*1
	assert.InDelta(t, 9.4, b.KineticEnergy(), 1e-9)
}
