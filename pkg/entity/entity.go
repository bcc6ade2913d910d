// pkg/entity/entity.go
package entity

import (
	"github.com/EngoEngine/ecs"

	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// ID is a unique identifier for an entity
type ID uint64

// Entity is the base interface for all game objects backed by a rigidbody
type Entity interface {
	GetID() ID
	GetBasicEntity() *ecs.BasicEntity
	GetBody() *physics.Rigidbody
	GetPose() physics.Pose
	IsActive() bool
	Render(r Renderer)
}

// BaseEntity couples an ECS identity with the rigidbody simulated for it.
// Pose is the copy last synced from the simulation and is what the game side
// reads and renders.
type BaseEntity struct {
	ecs.BasicEntity
	Body   *physics.Rigidbody
	Pose   physics.Pose
	Active bool
}

func newBaseEntity(body *physics.Rigidbody) BaseEntity {
	return BaseEntity{
		BasicEntity: ecs.NewBasic(),
		Body:        body,
		Pose:        body.Pose(),
		Active:      true,
	}
}

// GetID returns the entity's unique identifier
func (e *BaseEntity) GetID() ID {
	return ID(e.BasicEntity.ID())
}

// GetBody returns the simulated rigidbody
func (e *BaseEntity) GetBody() *physics.Rigidbody {
	return e.Body
}

// GetPose returns the last synced pose
func (e *BaseEntity) GetPose() physics.Pose {
	return e.Pose
}

// IsActive reports whether the entity is still part of the game
func (e *BaseEntity) IsActive() bool {
	return e.Active
}

// SyncPose copies the pose most recently published by the simulation.
func (e *BaseEntity) SyncPose() physics.Pose {
	e.Pose = e.Body.Pose()
	return e.Pose
}

// Deactivate marks the entity for removal
func (e *BaseEntity) Deactivate() {
	e.Active = false
}
