// pkg/physics/shape.go
package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Shape is an immutable convex collision volume expressed in body space.
type Shape interface {
	// Support returns the farthest point of the shape along direction.
	Support(direction mgl64.Vec3) mgl64.Vec3
	// UnitMass is the mass of the shape at unit density.
	UnitMass() float64
	// UnitInertia is the diagonal inertia tensor at unit density.
	UnitInertia() mgl64.Vec3
	// BoundingRadius is the radius of a sphere around the origin containing every support point.
	BoundingRadius() float64
}

// Sphere is a ball of the given radius centred on the body origin.
type Sphere struct {
	radius  float64
	mass    float64
	inertia mgl64.Vec3
}

// NewSphere creates a sphere shape. The radius must be positive.
func NewSphere(radius float64) (*Sphere, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("sphere radius %v: %w", radius, ErrInvalidShape)
	}
	mass := 4.0 / 3.0 * math.Pi * radius * radius * radius
	moment := 0.4 * mass * radius * radius
	return &Sphere{
		radius:  radius,
		mass:    mass,
		inertia: mgl64.Vec3{moment, moment, moment},
	}, nil
}

// Radius returns the sphere radius.
func (s *Sphere) Radius() float64 { return s.radius }

// Support returns the surface point furthest along direction.
func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	return SafeNormalize(direction).Mul(s.radius)
}

// UnitMass returns the sphere's mass at unit density.
func (s *Sphere) UnitMass() float64 { return s.mass }

// UnitInertia returns the inertia diagonal at unit density.
func (s *Sphere) UnitInertia() mgl64.Vec3 { return s.inertia }

// BoundingRadius returns the radius.
func (s *Sphere) BoundingRadius() float64 { return s.radius }

// Cylinder is an upright cylinder whose axis is the body Y axis.
//
// Its support mapping pushes the XZ part of the direction out to the rim and
// snaps Y to the matching cap. For oblique directions that lands on the cap
// rim, which is exact; for horizontal directions it lands on the side at
// mid-height. Barrel tuning depends on this shape, so it is kept as is.
type Cylinder struct {
	height  float64
	radius  float64
	mass    float64
	inertia mgl64.Vec3
}

// NewCylinder creates a cylinder shape. Height and radius must be positive.
func NewCylinder(height, radius float64) (*Cylinder, error) {
	if !(height > 0) || !(radius > 0) {
		return nil, fmt.Errorf("cylinder height %v radius %v: %w", height, radius, ErrInvalidShape)
	}
	mass := math.Pi * radius * radius * height
	axial := 0.5 * mass * radius * radius
	transverse := 0.25*mass*radius*radius + mass*height*height/12
	return &Cylinder{
		height:  height,
		radius:  radius,
		mass:    mass,
		inertia: mgl64.Vec3{transverse, axial, transverse},
	}, nil
}

// Height returns the cylinder height along Y.
func (c *Cylinder) Height() float64 { return c.height }

// Radius returns the cylinder radius in the XZ plane.
func (c *Cylinder) Radius() float64 { return c.radius }

// Support returns the cap-rim point furthest along direction, or the cap
// centre for an axial direction.
func (c *Cylinder) Support(direction mgl64.Vec3) mgl64.Vec3 {
	y := Sign(direction.Y()) * c.height / 2
	planar := math.Hypot(direction.X(), direction.Z())
	if planar == 0 {
		return mgl64.Vec3{0, y, 0}
	}
	scale := c.radius / planar
	return mgl64.Vec3{direction.X() * scale, y, direction.Z() * scale}
}

// UnitMass returns the cylinder's mass at unit density.
func (c *Cylinder) UnitMass() float64 { return c.mass }

// UnitInertia returns the inertia diagonal at unit density, Y axial.
func (c *Cylinder) UnitInertia() mgl64.Vec3 { return c.inertia }

// BoundingRadius returns the distance from the centre to a cap rim.
func (c *Cylinder) BoundingRadius() float64 {
	return math.Hypot(c.radius, c.height/2)
}
