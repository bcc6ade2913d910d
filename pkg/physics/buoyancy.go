// pkg/physics/buoyancy.go
package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultWaterDensity is the density of sea water in kg/m³.
	DefaultWaterDensity = 1025.0
	// DefaultGravity is the magnitude of gravitational acceleration.
	DefaultGravity = 9.81

	submergedAngularDampingMin = 0.05
)

// HeightField samples the water surface height at a horizontal position and time.
type HeightField interface {
	Height(x, z, t float64) float64
}

// FlowField samples a horizontal water flow force at a position and time.
type FlowField interface {
	Flow(x, z, t float64) mgl64.Vec3
}

// Voxel is a body-local buoyancy sample cell.
type Voxel struct {
	Center mgl64.Vec3
	Valid  bool
}

// Buoyancy distributes buoyant force over a voxelized cylinder volume and
// adjusts body damping by how much of it is submerged.
type Buoyancy struct {
	voxelSize float64
	density   float64
	gravity   float64

	height HeightField
	flow   FlowField

	voxels     []Voxel
	validCount int

	lastSubmerged float64
}

// NewBuoyancy voxelizes the cylinder of the given radius and height into cubic
// cells of edge voxelSize. flow may be nil.
func NewBuoyancy(radius, height, voxelSize, density, gravity float64, heightField HeightField, flow FlowField) (*Buoyancy, error) {
	if !(radius > 0) || !(height > 0) || !(voxelSize > 0) {
		return nil, fmt.Errorf("buoyancy radius %v height %v voxel %v: %w", radius, height, voxelSize, ErrInvalidShape)
	}
	if heightField == nil {
		return nil, errors.New("buoyancy requires a height field")
	}

	b := &Buoyancy{
		voxelSize: voxelSize,
		density:   density,
		gravity:   gravity,
		height:    heightField,
		flow:      flow,
	}
	b.voxels = voxelize(radius, height, voxelSize)
	for _, v := range b.voxels {
		if v.Valid {
			b.validCount++
		}
	}
	if b.validCount == 0 {
		return nil, fmt.Errorf("buoyancy radius %v voxel %v: %w", radius, voxelSize, ErrEmptyVoxelGrid)
	}
	return b, nil
}

func voxelize(radius, height, size float64) []Voxel {
	across := int(math.Ceil(2 * radius / size))
	up := int(math.Ceil(height / size))
	voxels := make([]Voxel, 0, across*across*up)

	// The grid overhangs the cylinder evenly on every side.
	half := float64(across) * size / 2
	halfUp := float64(up) * size / 2

	for i := 0; i < across; i++ {
		x := -half + (float64(i)+0.5)*size
		for j := 0; j < up; j++ {
			y := -halfUp + (float64(j)+0.5)*size
			for k := 0; k < across; k++ {
				z := -half + (float64(k)+0.5)*size
				voxels = append(voxels, Voxel{
					Center: mgl64.Vec3{x, y, z},
					Valid:  x*x+z*z < radius*radius && math.Abs(y) <= height/2,
				})
			}
		}
	}
	return voxels
}

// Voxels returns the sample grid.
func (b *Buoyancy) Voxels() []Voxel { return b.voxels }

// ValidCount returns the number of cells inside the cylinder cross-section.
func (b *Buoyancy) ValidCount() int { return b.validCount }

// Submerged returns the mean submerged fraction computed by the last ApplyForces.
func (b *Buoyancy) Submerged() float64 { return b.lastSubmerged }

// ApplyForces implements ForceContributor.
func (b *Buoyancy) ApplyForces(body *Rigidbody, step Step) {
	position := body.Position()
	orientation := body.Orientation()
	volume := b.voxelSize * b.voxelSize * b.voxelSize

	var total float64
	for _, v := range b.voxels {
		if !v.Valid {
			continue
		}
		world := position.Add(orientation.Rotate(v.Center))
		waterY := b.height.Height(world.X(), world.Z(), step.Time)
		fraction := Clamp((world.Y()-waterY)/b.voxelSize, 0, 1)
		total += fraction
		if fraction == 0 {
			continue
		}

		lift := Up.Mul(b.density * b.gravity * volume * fraction)
		body.AddForceAtPoint(lift, world)

		if b.flow != nil {
			push := b.flow.Flow(world.X(), world.Z(), step.Time).Mul(fraction)
			body.AddForceAtPoint(push, world)
		}
	}

	mean := total / float64(b.validCount)
	b.lastSubmerged = mean
	body.LinearDamping = Lerp(0, 1, mean)
	body.AngularDamping = Lerp(submergedAngularDampingMin, 1, mean)
}
