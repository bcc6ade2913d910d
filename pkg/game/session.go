// pkg/game/session.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/config"
	"github.com/MansenC/BarrelShooter/pkg/engine"
	"github.com/MansenC/BarrelShooter/pkg/entity"
	"github.com/MansenC/BarrelShooter/pkg/event"
	"github.com/MansenC/BarrelShooter/pkg/logging"
	"github.com/MansenC/BarrelShooter/pkg/ocean"
	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// SinkDepth is how far below the surface a body may sink before it is culled.
const SinkDepth = 8.0

// ErrSessionEnded is returned when firing after the session ended
var ErrSessionEnded = errors.New("session has ended")

// Status is the session lifecycle state
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusEnded
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Session is one round of the minigame: a cannon, a ring of floating barrels
// and the physics scheduler that simulates them. Its methods must be called
// from a single game goroutine or be serialised through EntityLock. Event bus
// handlers run synchronously and must not call back into the session.
type Session struct {
	Config      *config.Config
	Scheduler   *engine.Scheduler
	EventBus    *event.Bus
	Cannon      *entity.Cannon
	Barrels     map[entity.ID]*entity.Barrel
	Cannonballs map[entity.ID]*entity.Cannonball
	EntityLock  sync.RWMutex
	Status      Status
	Score       int

	logger      *logging.Logger
	world       *ecs.World
	poseSync    *PoseSyncSystem
	destruction *DestructionSystem
	bounds      *BoundsSystem
	render      *RenderSystem

	water   *ocean.WaveField
	flow    physics.FlowField
	spawned []*entity.Barrel
	ballsBy map[uint64]*entity.Cannonball
	now     func() time.Time
}

// NewSession validates cfg, builds the ocean, spawns the barrels and
// registers them with a stopped scheduler.
func NewSession(cfg *config.Config, logger *logging.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	water, flow, err := cfg.WaterField()
	if err != nil {
		return nil, err
	}

	bus := event.NewEventBus()
	opts := cfg.SchedulerOptions()
	opts.Logger = logger
	opts.Bus = bus
	scheduler, err := engine.NewScheduler(opts)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Session{
		Config:      cfg,
		Scheduler:   scheduler,
		EventBus:    bus,
		Cannon:      entity.NewCannon(cfg.CannonConfig()),
		Barrels:     make(map[entity.ID]*entity.Barrel),
		Cannonballs: make(map[entity.ID]*entity.Cannonball),
		logger:      logger,
		water:       water,
		ballsBy:     make(map[uint64]*entity.Cannonball),
		now:         time.Now,
	}
	// A nil *FlowPressure must stay a nil interface.
	if flow != nil {
		s.flow = flow
	}

	s.initWorld()
	if err := s.spawnBarrels(); err != nil {
		return nil, err
	}
	s.EventBus.Subscribe(event.BodyHit, s.logContact)

	return s, nil
}

// initWorld creates the ECS world and its systems.
func (s *Session) initWorld() {
	s.poseSync = &PoseSyncSystem{}
	s.destruction = &DestructionSystem{onHit: s.destroyBarrel}
	s.bounds = &BoundsSystem{
		Center:    s.Cannon.Position,
		Extent:    s.Config.Game.WorldBounds,
		SinkDepth: SinkDepth,
		Water:     s.water,
		SimTime:   func() float64 { return s.Scheduler.Stats().SimTime },
		onExit:    s.handleExit,
	}
	s.render = &RenderSystem{}

	s.world = &ecs.World{}
	s.world.AddSystem(s.poseSync)
	s.world.AddSystem(s.destruction)
	s.world.AddSystem(s.bounds)
	s.world.AddSystem(s.render)

	s.render.Add(s.Cannon)
}

// spawnPositions lays the barrels out on a jittered ring around the cannon.
// The layout depends only on the configured seed.
func (s *Session) spawnPositions() []mgl64.Vec3 {
	n := s.Config.Game.Barrels
	seed := s.Config.Game.Seed
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	centre := s.Cannon.Position
	positions := make([]mgl64.Vec3, n)
	for i := range positions {
		slot := 2 * math.Pi / float64(n)
		angle := float64(i)*slot + (rng.Float64()-0.5)*slot*0.5
		radius := s.Config.Game.SpawnRadius * (0.85 + 0.3*rng.Float64())

		x := centre.X() + radius*math.Cos(angle)
		z := centre.Z() + radius*math.Sin(angle)
		positions[i] = mgl64.Vec3{x, s.water.Height(x, z, 0), z}
	}
	return positions
}

// spawnBarrels creates the configured barrels and registers them.
func (s *Session) spawnBarrels() error {
	for i, pos := range s.spawnPositions() {
		barrel, err := entity.NewBarrel(s.Config.BarrelConfig(), pos, s.water, s.flow)
		if err != nil {
			return fmt.Errorf("spawn barrel %d: %w", i, err)
		}
		s.spawned = append(s.spawned, barrel)
		s.addBarrel(barrel)
		s.Scheduler.Register(barrel.Body)
		s.logger.Debug(context.Background(), "barrel spawned",
			"barrel", uint64(barrel.GetID()), "x", pos.X(), "z", pos.Z())
	}
	return nil
}

func (s *Session) addBarrel(barrel *entity.Barrel) {
	s.Barrels[barrel.GetID()] = barrel
	s.poseSync.Add(barrel)
	s.destruction.Add(barrel)
	s.bounds.Add(barrel)
	s.render.Add(barrel)
}

// SetRenderer installs the renderer drawn to on every Update.
func (s *Session) SetRenderer(r entity.Renderer) {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()
	s.render.Renderer = r
}

// Start begins the physics simulation.
func (s *Session) Start(ctx context.Context) error {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.Status = StatusActive
	s.logger.Info(ctx, "session started", "barrels", len(s.Barrels))
	return nil
}

// Stop halts the simulation. A stopped session cannot be restarted.
func (s *Session) Stop() error {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	if err := s.Scheduler.Stop(); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	s.Status = StatusEnded
	s.logger.Info(context.Background(), "session stopped", "score", s.Score, "shots", s.Cannon.Shots())
	return nil
}

// Update syncs poses from the simulation and runs the game systems.
func (s *Session) Update(deltaTime float64) {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	s.world.Update(float32(deltaTime))
}

// Aim points the cannon
func (s *Session) Aim(yaw, pitch float64) {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()
	s.Cannon.Aim(yaw, pitch)
}

// AimAt points the cannon at target, reporting whether it is in range
func (s *Session) AimAt(target mgl64.Vec3) bool {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()
	return s.Cannon.AimAt(target)
}

// Fire launches a cannonball along the current aim.
func (s *Session) Fire() (*entity.Cannonball, error) {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	if s.Status == StatusEnded {
		return nil, ErrSessionEnded
	}

	ball, err := s.Cannon.Fire(s.now())
	if err != nil {
		return nil, err
	}

	s.Cannonballs[ball.GetID()] = ball
	s.ballsBy[ball.Body.ID()] = ball
	s.poseSync.Add(ball)
	s.bounds.Add(ball)
	s.render.Add(ball)
	s.Scheduler.Register(ball.Body)

	s.logger.Debug(context.Background(), "cannon fired",
		"cannonball", uint64(ball.GetID()), "yaw", s.Cannon.Yaw, "pitch", s.Cannon.Pitch)
	s.EventBus.Publish(event.NewEntityEvent(event.CannonFired, s, uint64(ball.GetID()), s.Score))
	return ball, nil
}

// NearestBarrel returns the closest intact barrel to the cannon.
func (s *Session) NearestBarrel() (*entity.Barrel, bool) {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()

	var nearest *entity.Barrel
	best := math.Inf(1)
	for _, b := range s.Barrels {
		if !b.Active || b.IsHit() {
			continue
		}
		d := b.GetPose().Position.Sub(s.Cannon.Position).Len()
		// Break ties on ID so the choice does not depend on map order.
		if d < best || (d == best && nearest != nil && b.GetID() < nearest.GetID()) {
			nearest, best = b, d
		}
	}
	return nearest, nearest != nil
}

// GetScore returns the current score
func (s *Session) GetScore() int {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()
	return s.Score
}

// RemainingBarrels returns how many barrels are still in play
func (s *Session) RemainingBarrels() int {
	s.EntityLock.RLock()
	defer s.EntityLock.RUnlock()
	return len(s.Barrels)
}

// Reset removes every cannonball, re-arms all barrels at their spawn points
// and clears the score. It returns once the simulation has applied the reset.
func (s *Session) Reset(ctx context.Context) error {
	s.EntityLock.Lock()
	defer s.EntityLock.Unlock()

	s.Scheduler.Clear()
	for _, ball := range s.Cannonballs {
		s.removeCannonball(ball)
	}
	for _, barrel := range s.Barrels {
		s.world.RemoveEntity(barrel.BasicEntity)
		delete(s.Barrels, barrel.GetID())
	}

	positions := s.spawnPositions()
	for i, barrel := range s.spawned {
		pos := positions[i]
		s.Scheduler.Do(func() { barrel.ResetBody(pos) })
		s.Scheduler.Register(barrel.Body)

		barrel.Pose = physics.Pose{Position: pos, Orientation: mgl64.QuatIdent()}
		barrel.Active = true
		s.addBarrel(barrel)
	}

	if err := s.Scheduler.Flush(ctx); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}

	s.Cannon.Reset()
	s.setScore(0)
	if s.Status == StatusEnded && s.Scheduler.State() != engine.StateStopped {
		s.Status = StatusActive
	}
	s.logger.Info(ctx, "session reset", "barrels", len(s.Barrels))
	return nil
}

// destroyBarrel scores a barrel whose hit latch fired. Only cannonball hits
// score; barrels colliding with each other break without points.
func (s *Session) destroyBarrel(barrel *entity.Barrel) {
	barrel.Deactivate()
	s.Scheduler.Remove(barrel.Body)
	s.world.RemoveEntity(barrel.BasicEntity)
	delete(s.Barrels, barrel.GetID())

	striker := barrel.HitBy()
	_, byCannon := s.ballsBy[striker]
	if byCannon {
		s.setScore(s.Score + barrel.Points)
	}

	s.logger.Info(context.Background(), "barrel destroyed",
		"barrel", uint64(barrel.GetID()), "by_cannon", byCannon, "score", s.Score)
	s.EventBus.Publish(event.NewEntityEvent(event.BarrelDestroyed, s, uint64(barrel.GetID()), s.Score))
	s.checkCleared()
}

// handleExit removes entities that left the play area.
func (s *Session) handleExit(e entity.Entity) {
	switch e := e.(type) {
	case *entity.Cannonball:
		s.removeCannonball(e)
		s.EventBus.Publish(event.NewEntityEvent(event.ProjectileCulled, s, uint64(e.GetID()), s.Score))
	case *entity.Barrel:
		e.Deactivate()
		s.Scheduler.Remove(e.Body)
		s.world.RemoveEntity(e.BasicEntity)
		delete(s.Barrels, e.GetID())
		s.logger.Info(context.Background(), "barrel drifted away", "barrel", uint64(e.GetID()))
		s.EventBus.Publish(event.NewEntityEvent(event.BarrelEscaped, s, uint64(e.GetID()), s.Score))
		s.checkCleared()
	}
}

func (s *Session) removeCannonball(ball *entity.Cannonball) {
	ball.Deactivate()
	s.Scheduler.Remove(ball.Body)
	s.world.RemoveEntity(ball.BasicEntity)
	delete(s.Cannonballs, ball.GetID())
	delete(s.ballsBy, ball.Body.ID())
}

func (s *Session) setScore(score int) {
	if score == s.Score {
		return
	}
	s.Score = score
	s.EventBus.Publish(event.NewEntityEvent(event.ScoreChanged, s, uint64(s.Cannon.GetID()), score))
}

func (s *Session) checkCleared() {
	if len(s.Barrels) == 0 && s.Status == StatusActive {
		s.Status = StatusEnded
		s.logger.Info(context.Background(), "all barrels cleared", "score", s.Score, "shots", s.Cannon.Shots())
	}
}

// logContact runs on the simulation goroutine.
func (s *Session) logContact(e event.Event) {
	hit, ok := e.(*event.HitEvent)
	if !ok {
		return
	}
	s.logger.Debug(context.Background(), "contact",
		"body_a", hit.BodyA, "body_b", hit.BodyB, "impulse", hit.Impulse)
}
