// pkg/physics/rigidbody.go
package physics

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

var nextBodyID atomic.Uint64

// Pose is an immutable snapshot of a body's placement in the world.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// LocalToWorld transforms a body-space point into world space.
func (p Pose) LocalToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return p.Position.Add(p.Orientation.Rotate(local))
}

// WorldToLocalDirection rotates a world-space direction into body space.
func (p Pose) WorldToLocalDirection(dir mgl64.Vec3) mgl64.Vec3 {
	return p.Orientation.Conjugate().Rotate(dir)
}

// Step describes one fixed simulation tick.
type Step struct {
	Dt      float64    // fixed timestep in seconds
	Time    float64    // simulated time at the start of the tick
	Gravity mgl64.Vec3 // gravitational acceleration
}

// Contact is the result of a confirmed narrow-phase overlap.
type Contact struct {
	Point       mgl64.Vec3 // world-space contact point
	Normal      mgl64.Vec3 // unit normal from the first body towards the second
	Penetration float64
}

// ForceContributor accumulates forces on a body at the start of force
// integration. Buoyancy is one such contributor.
type ForceContributor interface {
	ApplyForces(body *Rigidbody, step Step)
}

// ForceFunc adapts a plain function to ForceContributor.
type ForceFunc func(body *Rigidbody, step Step)

// ApplyForces calls f.
func (f ForceFunc) ApplyForces(body *Rigidbody, step Step) { f(body, step) }

// HitFunc is invoked on the physics goroutine the first time a body is
// involved in a confirmed contact.
type HitFunc func(self, other *Rigidbody, contact Contact)

// Rigidbody is a simulated object with mass, pose and velocity state.
//
// Mutating methods are not synchronized: once a body is registered with a
// scheduler they must only be called from the physics goroutine. Other
// goroutines read Pose() and post commands to the scheduler instead.
type Rigidbody struct {
	// Kinematic bodies are integrated; a body with Kinematic == false is frozen.
	Kinematic  bool
	UseGravity bool

	LinearDamping  float64
	AngularDamping float64

	// UserData links the body back to the game entity that owns it.
	UserData any

	id    uint64
	shape Shape

	position        mgl64.Vec3
	orientation     mgl64.Quat
	linearVelocity  mgl64.Vec3
	angularVelocity mgl64.Vec3

	force  mgl64.Vec3
	torque mgl64.Vec3

	mass                float64
	inverseMass         float64
	inertia             mgl64.Vec3
	inverseInertia      mgl64.Mat3
	inverseInertiaWorld mgl64.Mat3

	contributors []ForceContributor

	onHit HitFunc
	hit   atomic.Bool

	pose atomic.Pointer[Pose]
}

// NewRigidbody creates a kinematic, gravity-affected body at the origin.
func NewRigidbody(shape Shape, mass float64) (*Rigidbody, error) {
	if shape == nil {
		return nil, fmt.Errorf("rigidbody without shape: %w", ErrInvalidShape)
	}
	b := &Rigidbody{
		Kinematic:   true,
		UseGravity:  true,
		id:          nextBodyID.Add(1),
		shape:       shape,
		orientation: mgl64.QuatIdent(),
	}
	if err := b.SetMass(mass); err != nil {
		return nil, err
	}
	b.publishPose()
	return b, nil
}

// ID returns the process-unique body identifier.
func (b *Rigidbody) ID() uint64 { return b.id }

// Shape returns the collision shape.
func (b *Rigidbody) Shape() Shape { return b.shape }

// Position returns the centre of mass in world space.
func (b *Rigidbody) Position() mgl64.Vec3 { return b.position }

// Orientation returns the body's rotation.
func (b *Rigidbody) Orientation() mgl64.Quat { return b.orientation }

// LinearVelocity returns the velocity of the centre of mass.
func (b *Rigidbody) LinearVelocity() mgl64.Vec3 { return b.linearVelocity }

// AngularVelocity returns the world-space angular velocity.
func (b *Rigidbody) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

// Force returns the force accumulated since the last integration.
func (b *Rigidbody) Force() mgl64.Vec3 { return b.force }

// Torque returns the torque accumulated since the last integration.
func (b *Rigidbody) Torque() mgl64.Vec3 { return b.torque }

// Mass returns the body's mass.
func (b *Rigidbody) Mass() float64 { return b.mass }

// InverseMass returns 1/mass, or zero for an immovable body.
func (b *Rigidbody) InverseMass() float64 { return b.inverseMass }

// Inertia returns the diagonal body-space inertia tensor.
func (b *Rigidbody) Inertia() mgl64.Vec3 { return b.inertia }

// InverseInertiaWorld returns the inverse inertia tensor in world space.
func (b *Rigidbody) InverseInertiaWorld() mgl64.Mat3 { return b.inverseInertiaWorld }

// SetMass scales the shape's unit-density inertia to the given mass.
func (b *Rigidbody) SetMass(mass float64) error {
	if !(mass > 0) {
		return fmt.Errorf("set mass %v: %w", mass, ErrInvalidMass)
	}
	b.mass = mass
	b.inverseMass = 1 / mass
	b.inertia = b.shape.UnitInertia().Mul(mass / b.shape.UnitMass())
	b.inverseInertia = mgl64.Diag3(mgl64.Vec3{
		1 / b.inertia.X(),
		1 / b.inertia.Y(),
		1 / b.inertia.Z(),
	})
	b.updateWorldInertia()
	return nil
}

// SetImmovable gives the body infinite mass and inertia: forces and impulses
// no longer move it, but it still collides.
func (b *Rigidbody) SetImmovable() {
	b.inverseMass = 0
	b.inverseInertia = mgl64.Mat3{}
	b.inverseInertiaWorld = mgl64.Mat3{}
}

// SetPosition moves the body and republishes its pose.
func (b *Rigidbody) SetPosition(p mgl64.Vec3) {
	b.position = p
	b.publishPose()
}

// SetOrientation sets the rotation, normalising q, and republishes the pose.
func (b *Rigidbody) SetOrientation(q mgl64.Quat) {
	b.orientation = q.Normalize()
	b.updateWorldInertia()
	b.publishPose()
}

// SetLinearVelocity overwrites the linear velocity.
func (b *Rigidbody) SetLinearVelocity(v mgl64.Vec3) { b.linearVelocity = v }

// SetAngularVelocity overwrites the angular velocity.
func (b *Rigidbody) SetAngularVelocity(w mgl64.Vec3) { b.angularVelocity = w }

// AddContributor attaches a force contributor invoked on every force integration.
func (b *Rigidbody) AddContributor(c ForceContributor) {
	b.contributors = append(b.contributors, c)
}

// Contributors returns the attached force contributors.
func (b *Rigidbody) Contributors() []ForceContributor { return b.contributors }

// AddForce accumulates a force through the centre of mass.
func (b *Rigidbody) AddForce(f mgl64.Vec3) {
	b.force = b.force.Add(f)
}

// AddTorque accumulates a world-space torque.
func (b *Rigidbody) AddTorque(t mgl64.Vec3) {
	b.torque = b.torque.Add(t)
}

// AddForceAtPoint applies f at a world-space point, producing torque about
// the centre of mass.
func (b *Rigidbody) AddForceAtPoint(f, point mgl64.Vec3) {
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(point.Sub(b.position).Cross(f))
}

// ApplyImpulse changes linear velocity instantly.
func (b *Rigidbody) ApplyImpulse(j mgl64.Vec3) {
	b.linearVelocity = b.linearVelocity.Add(j.Mul(b.inverseMass))
}

// ApplyImpulseAtPoint changes linear and angular velocity instantly for an
// impulse j acting at a world-space point.
func (b *Rigidbody) ApplyImpulseAtPoint(j, point mgl64.Vec3) {
	b.linearVelocity = b.linearVelocity.Add(j.Mul(b.inverseMass))
	r := point.Sub(b.position)
	b.angularVelocity = b.angularVelocity.Add(b.inverseInertiaWorld.Mul3x1(r.Cross(j)))
}

// VelocityAtPoint returns the velocity of the material point at a world position.
func (b *Rigidbody) VelocityAtPoint(point mgl64.Vec3) mgl64.Vec3 {
	return b.linearVelocity.Add(b.angularVelocity.Cross(point.Sub(b.position)))
}

// SupportPoint returns the world-space support point of the body's shape in a
// world-space direction.
func (b *Rigidbody) SupportPoint(direction mgl64.Vec3) mgl64.Vec3 {
	local := b.orientation.Conjugate().Rotate(direction)
	return b.position.Add(b.orientation.Rotate(b.shape.Support(local)))
}

// KineticEnergy returns the translational plus rotational kinetic energy.
func (b *Rigidbody) KineticEnergy() float64 {
	if b.inverseMass == 0 {
		return 0
	}
	linear := 0.5 * b.mass * b.linearVelocity.LenSqr()
	r := RotationMatrix(b.orientation)
	worldInertia := r.Mul3(mgl64.Diag3(b.inertia)).Mul3(r.Transpose())
	angular := 0.5 * b.angularVelocity.Dot(worldInertia.Mul3x1(b.angularVelocity))
	return linear + angular
}

// IntegrateForces runs the force contributors and turns the accumulated force
// and torque into velocity changes, then clears the accumulators.
func (b *Rigidbody) IntegrateForces(step Step) {
	if !b.Kinematic {
		return
	}
	for _, c := range b.contributors {
		c.ApplyForces(b, step)
	}

	b.linearVelocity = b.linearVelocity.Add(b.force.Mul(b.inverseMass * step.Dt))
	if b.UseGravity && b.inverseMass > 0 {
		b.linearVelocity = b.linearVelocity.Add(step.Gravity.Mul(step.Dt))
	}
	b.angularVelocity = b.angularVelocity.Add(b.inverseInertiaWorld.Mul3x1(b.torque).Mul(step.Dt))

	b.ClearForces()
}

// ClearForces resets the force and torque accumulators.
func (b *Rigidbody) ClearForces() {
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

// Integrate advances the pose by dt, applies damping and republishes the pose.
func (b *Rigidbody) Integrate(dt float64) {
	if !b.Kinematic {
		return
	}
	b.position = b.position.Add(b.linearVelocity.Mul(dt))
	b.orientation = IntegrateOrientation(b.orientation, b.angularVelocity, dt)

	b.linearVelocity = b.linearVelocity.Mul(DampingFactor(b.LinearDamping, dt))
	b.angularVelocity = b.angularVelocity.Mul(DampingFactor(b.AngularDamping, dt))

	b.updateWorldInertia()
	b.publishPose()
}

// OnHit sets the callback fired on the body's first confirmed contact.
func (b *Rigidbody) OnHit(fn HitFunc) { b.onHit = fn }

// Hit records a contact with other. The callback runs only for the first
// contact in the body's lifetime; Hit reports whether this call fired it.
func (b *Rigidbody) Hit(other *Rigidbody, contact Contact) bool {
	if !b.hit.CompareAndSwap(false, true) {
		return false
	}
	if b.onHit != nil {
		b.onHit(b, other, contact)
	}
	return true
}

// HasBeenHit reports whether the hit latch has fired.
func (b *Rigidbody) HasBeenHit() bool { return b.hit.Load() }

// ResetHit re-arms the hit latch.
func (b *Rigidbody) ResetHit() { b.hit.Store(false) }

// Pose returns the most recently published pose. Safe from any goroutine.
func (b *Rigidbody) Pose() Pose {
	if p := b.pose.Load(); p != nil {
		return *p
	}
	return Pose{Orientation: mgl64.QuatIdent()}
}

func (b *Rigidbody) publishPose() {
	b.pose.Store(&Pose{Position: b.position, Orientation: b.orientation})
}

func (b *Rigidbody) updateWorldInertia() {
	if b.inverseMass == 0 {
		return
	}
	b.inverseInertiaWorld = WorldInverseInertia(b.orientation, b.inverseInertia)
}
