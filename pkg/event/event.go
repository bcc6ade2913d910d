// pkg/event/event.go
package event

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Type represents the type of event
type Type string

// Simulation and game event types
const (
	BodyRegistered    Type = "body_registered"
	BodyRemoved       Type = "body_removed"
	BodyHit           Type = "body_hit"
	SimulationStarted Type = "simulation_started"
	SimulationPaused  Type = "simulation_paused"
	SimulationResumed Type = "simulation_resumed"
	SimulationStopped Type = "simulation_stopped"
	CannonFired       Type = "cannon_fired"
	BarrelDestroyed   Type = "barrel_destroyed"
	ProjectileCulled  Type = "projectile_culled"
	BarrelEscaped     Type = "barrel_escaped"
	ScoreChanged      Type = "score_changed"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler. Cancel removes it.
type Subscription struct {
	ID     uint64
	Type   Type
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { b.Unsubscribe(eventType, id) },
	}
}

// Unsubscribe removes the handler registered under id for a specific event type
func (b *Bus) Unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			kept := make([]subscriber, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			kept = append(kept, subs[i+1:]...)
			if len(kept) == 0 {
				delete(b.handlers, eventType)
			} else {
				b.handlers[eventType] = kept
			}
			return
		}
	}
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	// Unsubscribe replaces the slice, so iterating the snapshot is safe.
	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// BodyEvent reports a rigidbody entering or leaving the simulation
type BodyEvent struct {
	BaseEvent
	BodyID uint64
}

// NewBodyEvent creates a new body event
func NewBodyEvent(eventType Type, source interface{}, bodyID uint64) *BodyEvent {
	return &BodyEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		BodyID: bodyID,
	}
}

// HitEvent contains information about a resolved contact
type HitEvent struct {
	BaseEvent
	BodyA   uint64
	BodyB   uint64
	Point   mgl64.Vec3
	Normal  mgl64.Vec3
	Impulse float64
}

// NewHitEvent creates a new hit event
func NewHitEvent(source interface{}, bodyA, bodyB uint64, point, normal mgl64.Vec3, impulse float64) *HitEvent {
	return &HitEvent{
		BaseEvent: BaseEvent{
			EventType: BodyHit,
			Source:    source,
		},
		BodyA:   bodyA,
		BodyB:   bodyB,
		Point:   point,
		Normal:  normal,
		Impulse: impulse,
	}
}

// SimulationEvent reports a scheduler lifecycle transition
type SimulationEvent struct {
	BaseEvent
	Tick uint64
}

// NewSimulationEvent creates a new simulation lifecycle event
func NewSimulationEvent(eventType Type, source interface{}, tick uint64) *SimulationEvent {
	return &SimulationEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Tick: tick,
	}
}

// EntityEvent contains information about game entity events
type EntityEvent struct {
	BaseEvent
	EntityID uint64
	Score    int
}

// NewEntityEvent creates a new game entity event
func NewEntityEvent(eventType Type, source interface{}, entityID uint64, score int) *EntityEvent {
	return &EntityEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		EntityID: entityID,
		Score:    score,
	}
}
