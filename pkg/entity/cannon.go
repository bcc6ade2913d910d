// pkg/entity/cannon.go
package entity

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// ErrReloading is returned when the cannon fires before its cooldown elapsed
var ErrReloading = errors.New("cannon is reloading")

// CannonConfig contains the cannon and ammunition settings
type CannonConfig struct {
	Position     mgl64.Vec3
	MuzzleSpeed  float64
	BarrelLength float64
	Cooldown     time.Duration
	BallRadius   float64
	BallMass     float64
	Gravity      float64
	MinPitch     float64
	MaxPitch     float64
}

// DefaultCannonConfig returns a cannon standing 2m above the water
func DefaultCannonConfig() CannonConfig {
	return CannonConfig{
		Position:     mgl64.Vec3{0, -2, 0},
		MuzzleSpeed:  25,
		BarrelLength: 1,
		Cooldown:     500 * time.Millisecond,
		BallRadius:   0.15,
		BallMass:     8,
		Gravity:      physics.DefaultGravity,
		MinPitch:     -math.Pi / 6,
		MaxPitch:     math.Pi * 4 / 9,
	}
}

// Cannon is the player's weapon. It is not simulated; it only spawns
// cannonballs. Yaw is measured in the XZ plane from +X toward +Z, pitch is
// elevation above the horizon.
type Cannon struct {
	ecs.BasicEntity
	CannonConfig
	Yaw   float64
	Pitch float64

	lastFired time.Time
	shots     int
}

// NewCannon creates a level cannon aimed along +X
func NewCannon(cfg CannonConfig) *Cannon {
	return &Cannon{
		BasicEntity:  ecs.NewBasic(),
		CannonConfig: cfg,
	}
}

// GetID returns the cannon's unique identifier
func (c *Cannon) GetID() ID {
	return ID(c.BasicEntity.ID())
}

// Aim sets yaw and pitch, clamping pitch to the carriage limits
func (c *Cannon) Aim(yaw, pitch float64) {
	c.Yaw = math.Mod(yaw, 2*math.Pi)
	c.Pitch = physics.Clamp(pitch, c.MinPitch, c.MaxPitch)
}

// AimAt points the cannon so a ball leaving the muzzle follows the low
// ballistic arc through target, ignoring drag. It reports false and aims at
// 45 degrees when the target is out of range.
func (c *Cannon) AimAt(target mgl64.Vec3) bool {
	yaw := math.Atan2(target.Z()-c.Position.Z(), target.X()-c.Position.X())

	// The muzzle moves with the pitch, so refine from the pivot outward.
	origin := c.Position
	reachable := true
	for i := 0; i < aimIterations; i++ {
		pitch, ok := c.launchAngle(origin, target)
		if !ok {
			c.Aim(yaw, math.Pi/4)
			return false
		}
		c.Aim(yaw, pitch)
		reachable = pitch >= c.MinPitch && pitch <= c.MaxPitch
		origin = c.Muzzle()
	}
	return reachable
}

const aimIterations = 8

// launchAngle returns the low-arc elevation from origin to target.
func (c *Cannon) launchAngle(origin, target mgl64.Vec3) (float64, bool) {
	horizontal := math.Hypot(target.X()-origin.X(), target.Z()-origin.Z())
	rise := origin.Y() - target.Y() // world Y points down
	v2 := c.MuzzleSpeed * c.MuzzleSpeed
	g := c.Gravity

	if horizontal < 1e-9 || g <= 0 {
		return physics.Sign(rise) * math.Pi / 2, true
	}

	disc := v2*v2 - g*(g*horizontal*horizontal+2*rise*v2)
	if disc < 0 {
		return 0, false
	}
	return math.Atan((v2 - math.Sqrt(disc)) / (g * horizontal)), true
}

// Direction returns the unit firing direction
func (c *Cannon) Direction() mgl64.Vec3 {
	cp := math.Cos(c.Pitch)
	return mgl64.Vec3{
		cp * math.Cos(c.Yaw),
		-math.Sin(c.Pitch),
		cp * math.Sin(c.Yaw),
	}
}

// Muzzle returns the point where cannonballs leave the barrel
func (c *Cannon) Muzzle() mgl64.Vec3 {
	return c.Position.Add(c.Direction().Mul(c.BarrelLength))
}

// CanFire reports whether the cooldown has elapsed at now
func (c *Cannon) CanFire(now time.Time) bool {
	return c.shots == 0 || now.Sub(c.lastFired) >= c.Cooldown
}

// Shots returns how many cannonballs have been fired
func (c *Cannon) Shots() int {
	return c.shots
}

// Fire creates a cannonball leaving the muzzle at full speed. The returned
// ball is not yet registered with any scheduler.
func (c *Cannon) Fire(now time.Time) (*Cannonball, error) {
	if !c.CanFire(now) {
		return nil, ErrReloading
	}

	ball, err := NewCannonball(c.BallRadius, c.BallMass, c.Muzzle(), c.Direction().Mul(c.MuzzleSpeed))
	if err != nil {
		return nil, fmt.Errorf("fire cannon: %w", err)
	}
	ball.FiredBy = c.GetID()
	ball.FiredAt = now

	c.lastFired = now
	c.shots++
	return ball, nil
}

// Reset clears the shot counter and cooldown
func (c *Cannon) Reset() {
	c.shots = 0
	c.lastFired = time.Time{}
}

// Render draws the cannon
func (c *Cannon) Render(r Renderer) {
	r.RenderCannon(c)
}

// Cannonball is a dense sphere fired by the cannon
type Cannonball struct {
	BaseEntity
	FiredBy ID
	FiredAt time.Time
}

// NewCannonball creates a ball at position moving with velocity
func NewCannonball(radius, mass float64, position, velocity mgl64.Vec3) (*Cannonball, error) {
	shape, err := physics.NewSphere(radius)
	if err != nil {
		return nil, fmt.Errorf("cannonball shape: %w", err)
	}
	body, err := physics.NewRigidbody(shape, mass)
	if err != nil {
		return nil, fmt.Errorf("cannonball body: %w", err)
	}
	body.SetPosition(position)
	body.SetLinearVelocity(velocity)

	return &Cannonball{BaseEntity: newBaseEntity(body)}, nil
}

// Render draws the cannonball
func (b *Cannonball) Render(r Renderer) {
	r.RenderCannonball(b)
}
