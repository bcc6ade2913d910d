// pkg/game/systems.go
package game

import (
	"math"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/entity"
	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// System priorities; ecs.World runs higher priorities first.
const (
	poseSyncPriority    = 100
	destructionPriority = 50
	boundsPriority      = 40
	renderPriority      = -100
)

type poseSyncable interface {
	GetBasicEntity() *ecs.BasicEntity
	SyncPose() physics.Pose
}

// PoseSyncSystem copies the poses published by the simulation into the
// game-side entities once per frame.
type PoseSyncSystem struct {
	entities []poseSyncable
}

// Add starts syncing e
func (s *PoseSyncSystem) Add(e poseSyncable) {
	s.entities = append(s.entities, e)
}

// Remove satisfies the ecs.System interface
func (s *PoseSyncSystem) Remove(basic ecs.BasicEntity) {
	for i, e := range s.entities {
		if e.GetBasicEntity().ID() == basic.ID() {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return
		}
	}
}

// Update satisfies the ecs.System interface
func (s *PoseSyncSystem) Update(dt float32) {
	for _, e := range s.entities {
		e.SyncPose()
	}
}

// Priority runs pose sync before anything that reads poses
func (s *PoseSyncSystem) Priority() int { return poseSyncPriority }

// DestructionSystem hands barrels whose hit latch fired to onHit.
type DestructionSystem struct {
	barrels []*entity.Barrel
	onHit   func(*entity.Barrel)
}

// Add starts watching barrel
func (s *DestructionSystem) Add(barrel *entity.Barrel) {
	s.barrels = append(s.barrels, barrel)
}

// Remove satisfies the ecs.System interface
func (s *DestructionSystem) Remove(basic ecs.BasicEntity) {
	for i, b := range s.barrels {
		if b.ID() == basic.ID() {
			s.barrels = append(s.barrels[:i], s.barrels[i+1:]...)
			return
		}
	}
}

// Update satisfies the ecs.System interface
func (s *DestructionSystem) Update(dt float32) {
	// onHit removes entities from the world, which edits s.barrels.
	pending := append([]*entity.Barrel(nil), s.barrels...)
	for _, b := range pending {
		if b.Active && b.IsHit() {
			s.onHit(b)
		}
	}
}

// Priority satisfies ecs.Prioritizer
func (s *DestructionSystem) Priority() int { return destructionPriority }

// BoundsSystem reports entities that left the play area: further than
// Extent from Center horizontally, or deeper than SinkDepth below the water.
type BoundsSystem struct {
	Center    mgl64.Vec3
	Extent    float64
	SinkDepth float64
	Water     physics.HeightField
	SimTime   func() float64

	entities []entity.Entity
	onExit   func(entity.Entity)
}

// Add starts watching e
func (s *BoundsSystem) Add(e entity.Entity) {
	s.entities = append(s.entities, e)
}

// Remove satisfies the ecs.System interface
func (s *BoundsSystem) Remove(basic ecs.BasicEntity) {
	for i, e := range s.entities {
		if e.GetBasicEntity().ID() == basic.ID() {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return
		}
	}
}

// Update satisfies the ecs.System interface
func (s *BoundsSystem) Update(dt float32) {
	pending := append([]entity.Entity(nil), s.entities...)
	for _, e := range pending {
		if e.IsActive() && !s.Contains(e.GetPose().Position) {
			s.onExit(e)
		}
	}
}

// Contains reports whether p lies inside the play area
func (s *BoundsSystem) Contains(p mgl64.Vec3) bool {
	if math.Abs(p.X()-s.Center.X()) > s.Extent || math.Abs(p.Z()-s.Center.Z()) > s.Extent {
		return false
	}
	var t float64
	if s.SimTime != nil {
		t = s.SimTime()
	}
	depth := p.Y() - s.Water.Height(p.X(), p.Z(), t)
	return depth <= s.SinkDepth
}

// Priority satisfies ecs.Prioritizer
func (s *BoundsSystem) Priority() int { return boundsPriority }

type renderable interface {
	GetBasicEntity() *ecs.BasicEntity
	Render(r entity.Renderer)
}

// RenderSystem draws every tracked entity through an entity.Renderer.
type RenderSystem struct {
	Renderer entity.Renderer

	entities []renderable
}

// Add starts drawing e
func (s *RenderSystem) Add(e renderable) {
	s.entities = append(s.entities, e)
}

// Remove satisfies the ecs.System interface
func (s *RenderSystem) Remove(basic ecs.BasicEntity) {
	for i, e := range s.entities {
		if e.GetBasicEntity().ID() == basic.ID() {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return
		}
	}
}

// Update satisfies the ecs.System interface
func (s *RenderSystem) Update(dt float32) {
	if s.Renderer == nil {
		return
	}
	s.Renderer.Clear()
	for _, e := range s.entities {
		e.Render(s.Renderer)
	}
	s.Renderer.Present()
}

// Priority draws after the simulation state has been applied
func (s *RenderSystem) Priority() int { return renderPriority }
