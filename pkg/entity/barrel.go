// pkg/entity/barrel.go
package entity

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// BarrelConfig describes the floating target barrels
type BarrelConfig struct {
	Radius       float64
	Height       float64
	Mass         float64
	VoxelSize    float64
	WaterDensity float64
	Gravity      float64
	Points       int
}

// DefaultBarrelConfig returns a barrel that floats about a third submerged
func DefaultBarrelConfig() BarrelConfig {
	return BarrelConfig{
		Radius:       0.5,
		Height:       1.2,
		Mass:         300,
		VoxelSize:    0.2,
		WaterDensity: physics.DefaultWaterDensity,
		Gravity:      physics.DefaultGravity,
		Points:       10,
	}
}

// Barrel is an upright floating cylinder that breaks on its first impact
type Barrel struct {
	BaseEntity
	Buoyancy *physics.Buoyancy
	Points   int

	hitBy atomic.Uint64
}

// NewBarrel creates a buoyant barrel at position. flow may be nil.
func NewBarrel(cfg BarrelConfig, position mgl64.Vec3, water physics.HeightField, flow physics.FlowField) (*Barrel, error) {
	shape, err := physics.NewCylinder(cfg.Height, cfg.Radius)
	if err != nil {
		return nil, fmt.Errorf("barrel shape: %w", err)
	}
	body, err := physics.NewRigidbody(shape, cfg.Mass)
	if err != nil {
		return nil, fmt.Errorf("barrel body: %w", err)
	}
	buoyancy, err := physics.NewBuoyancy(cfg.Radius, cfg.Height, cfg.VoxelSize, cfg.WaterDensity, cfg.Gravity, water, flow)
	if err != nil {
		return nil, fmt.Errorf("barrel buoyancy: %w", err)
	}

	body.SetPosition(position)
	body.AddContributor(buoyancy)

	barrel := &Barrel{
		BaseEntity: newBaseEntity(body),
		Buoyancy:   buoyancy,
		Points:     cfg.Points,
	}
	body.OnHit(func(self, other *physics.Rigidbody, c physics.Contact) {
		barrel.hitBy.Store(other.ID())
	})
	return barrel, nil
}

// IsHit reports whether the barrel has been struck. It turns true only once
// the striker is known, so HitBy is valid whenever IsHit is.
func (b *Barrel) IsHit() bool {
	return b.hitBy.Load() != 0
}

// HitBy returns the rigidbody ID of whatever first struck the barrel, or zero.
func (b *Barrel) HitBy() uint64 {
	return b.hitBy.Load()
}

// ResetBody re-arms the barrel's rigidbody at position. The body must not be
// simulated concurrently: call it before registration or through Scheduler.Do.
func (b *Barrel) ResetBody(position mgl64.Vec3) {
	b.hitBy.Store(0)
	b.Body.ResetHit()
	b.Body.SetPosition(position)
	b.Body.SetOrientation(mgl64.QuatIdent())
	b.Body.SetLinearVelocity(mgl64.Vec3{})
	b.Body.SetAngularVelocity(mgl64.Vec3{})
	b.Body.ClearForces()
}

// Reset re-arms the barrel and its game-side state at position
func (b *Barrel) Reset(position mgl64.Vec3) {
	b.ResetBody(position)
	b.Pose = b.Body.Pose()
	b.Active = true
}

// Render draws the barrel
func (b *Barrel) Render(r Renderer) {
	r.RenderBarrel(b)
}
