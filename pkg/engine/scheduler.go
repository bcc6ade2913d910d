// pkg/engine/scheduler.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/collision"
	"github.com/MansenC/BarrelShooter/pkg/event"
	"github.com/MansenC/BarrelShooter/pkg/logging"
	"github.com/MansenC/BarrelShooter/pkg/physics"
)

var (
	// ErrAlreadyRunning is returned by Start when the loop is already active.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrRunning is returned by Step while the loop goroutine owns the bodies.
	ErrRunning = errors.New("scheduler is running")
	// ErrStopped is returned by Start once the scheduler has been stopped.
	ErrStopped = errors.New("scheduler stopped")
	// ErrInvalidTimestep is returned for a non-positive tick rate.
	ErrInvalidTimestep = errors.New("tick rate must be positive")
)

// DefaultTickRate is the simulation frequency in Hz.
const DefaultTickRate = 50.0

const overrunLogInterval = time.Second

// State is the scheduler lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TickInfo describes one completed tick.
type TickInfo struct {
	Index   uint64
	Start   time.Time
	Elapsed time.Duration
	Sleep   time.Duration
}

// TickObserver is notified on the physics goroutine after every tick.
type TickObserver interface {
	ObserveTick(info TickInfo)
}

// TickObserverFunc adapts a function to TickObserver.
type TickObserverFunc func(info TickInfo)

// ObserveTick calls f.
func (f TickObserverFunc) ObserveTick(info TickInfo) { f(info) }

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Ticks uint64
	// Overruns counts loop ticks that took a full step or longer. Ticks run
	// through Step are unpaced and never count.
	Overruns uint64
	Panics   uint64
	LastTick time.Duration
	SimTime  float64
	Bodies   int
}

// Options configures a Scheduler.
type Options struct {
	TickRate         float64 // ticks per second
	Gravity          mgl64.Vec3
	MaxIterations    int
	CollisionEpsilon float64

	Logger   *logging.Logger
	Bus      *event.Bus
	Observer TickObserver
}

// DefaultOptions returns a 50 Hz scheduler with standard gravity.
func DefaultOptions() Options {
	return Options{
		TickRate:         DefaultTickRate,
		Gravity:          physics.Down.Mul(physics.DefaultGravity),
		MaxIterations:    collision.DefaultMaxIterations,
		CollisionEpsilon: collision.DefaultEpsilon,
	}
}

type command func(s *Scheduler)

// Scheduler owns every registered rigidbody and advances them at a fixed
// rate on a dedicated goroutine. Callers interact with bodies only through
// posted commands and published poses.
type Scheduler struct {
	step     time.Duration
	dt       float64
	gravity  mgl64.Vec3
	pipeline *collision.Pipeline
	logger   *logging.Logger
	bus      *event.Bus
	observer TickObserver

	lifecycle  sync.Mutex
	state      atomic.Int32
	terminated bool
	cancel     context.CancelFunc
	done       chan struct{}

	queueMu sync.Mutex
	queue   []command
	wake    chan struct{}

	// Owned by whichever goroutine is ticking.
	bodies    []*physics.Rigidbody
	tickIndex uint64
	simTime   float64
	nonFinite map[uint64]bool
	tickCtx   context.Context

	statsMu sync.Mutex
	stats   Stats

	lastOverrunLog   time.Time
	overrunsSinceLog uint64
}

// NewScheduler validates opts and returns a stopped scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if !(opts.TickRate > 0) {
		return nil, fmt.Errorf("tick rate %v: %w", opts.TickRate, ErrInvalidTimestep)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	s := &Scheduler{
		step:      time.Duration(float64(time.Second) / opts.TickRate),
		dt:        1 / opts.TickRate,
		gravity:   opts.Gravity,
		pipeline:  collision.NewPipeline(opts.MaxIterations, opts.CollisionEpsilon),
		logger:    opts.Logger,
		bus:       opts.Bus,
		observer:  opts.Observer,
		wake:      make(chan struct{}, 1),
		nonFinite: make(map[uint64]bool),
		tickCtx:   context.Background(),
	}
	s.pipeline.OnContact = s.onContact
	s.pipeline.OnPanic = s.onPairPanic
	return s, nil
}

// Timestep returns the fixed simulation step in seconds.
func (s *Scheduler) Timestep() float64 { return s.dt }

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Start launches the simulation goroutine. Cancelling ctx stops the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateStopped {
		return ErrAlreadyRunning
	}
	if s.terminated || s.done != nil {
		return ErrStopped
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.tickCtx = loopCtx
	s.state.Store(int32(StateRunning))

	s.logger.Info(ctx, "simulation started", "tick_rate", 1/s.dt, "step", s.step.String())
	s.publish(event.NewSimulationEvent(event.SimulationStarted, s, s.tickIndex))

	go s.loop(loopCtx, s.done)
	return nil
}

// Stop ends the loop and waits for the goroutine to exit. A stopped
// scheduler cannot be started again.
func (s *Scheduler) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	wasActive := s.done != nil && !s.terminated
	s.terminated = true
	if !wasActive {
		s.state.Store(int32(StateStopped))
		return nil
	}

	s.cancel()
	<-s.done
	s.state.Store(int32(StateStopped))

	s.logger.Info(context.Background(), "simulation stopped", "ticks", s.tickIndex)
	s.publish(event.NewSimulationEvent(event.SimulationStopped, s, s.tickIndex))
	return nil
}

// Pause suspends ticking. It reports whether the scheduler was running.
func (s *Scheduler) Pause() bool {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StatePaused)) {
		return false
	}
	s.signal()
	s.logger.Info(context.Background(), "simulation paused")
	s.publish(event.NewSimulationEvent(event.SimulationPaused, s, s.Stats().Ticks))
	return true
}

// Resume continues a paused scheduler immediately. It reports whether the
// scheduler was paused.
func (s *Scheduler) Resume() bool {
	if !s.state.CompareAndSwap(int32(StatePaused), int32(StateRunning)) {
		return false
	}
	s.signal()
	s.logger.Info(context.Background(), "simulation resumed")
	s.publish(event.NewSimulationEvent(event.SimulationResumed, s, s.Stats().Ticks))
	return true
}

// Step runs exactly one tick synchronously. It is only allowed while the
// loop goroutine is not running.
func (s *Scheduler) Step() (TickInfo, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateStopped {
		return TickInfo{}, ErrRunning
	}
	info := s.runTick()
	s.finishTick(info)
	return info, nil
}

// Register adds a body to the simulation before the next tick.
func (s *Scheduler) Register(body *physics.Rigidbody) {
	s.post(func(s *Scheduler) { s.addBody(body) })
}

// Remove takes a body out of the simulation before the next tick.
func (s *Scheduler) Remove(body *physics.Rigidbody) {
	s.post(func(s *Scheduler) { s.removeBody(body) })
}

// Clear removes every registered body before the next tick.
func (s *Scheduler) Clear() {
	s.post(func(s *Scheduler) {
		for len(s.bodies) > 0 {
			s.removeBody(s.bodies[len(s.bodies)-1])
		}
	})
}

// AddForce accumulates a force through body's centre of mass.
func (s *Scheduler) AddForce(body *physics.Rigidbody, force mgl64.Vec3) {
	s.post(func(*Scheduler) { body.AddForce(force) })
}

// AddForceAtPoint accumulates a force applied at a world-space point.
func (s *Scheduler) AddForceAtPoint(body *physics.Rigidbody, force, point mgl64.Vec3) {
	s.post(func(*Scheduler) { body.AddForceAtPoint(force, point) })
}

// AddTorque accumulates a world-space torque.
func (s *Scheduler) AddTorque(body *physics.Rigidbody, torque mgl64.Vec3) {
	s.post(func(*Scheduler) { body.AddTorque(torque) })
}

// ApplyImpulse changes body's linear velocity immediately.
func (s *Scheduler) ApplyImpulse(body *physics.Rigidbody, impulse mgl64.Vec3) {
	s.post(func(*Scheduler) { body.ApplyImpulse(impulse) })
}

// ApplyImpulseAtPoint applies an impulse at a world-space point.
func (s *Scheduler) ApplyImpulseAtPoint(body *physics.Rigidbody, impulse, point mgl64.Vec3) {
	s.post(func(*Scheduler) { body.ApplyImpulseAtPoint(impulse, point) })
}

// Do runs fn on the simulation goroutine between ticks.
func (s *Scheduler) Do(fn func()) {
	s.post(func(*Scheduler) { fn() })
}

// Flush blocks until every command posted before the call has been applied.
// On a stopped scheduler the queue is drained on the calling goroutine.
func (s *Scheduler) Flush(ctx context.Context) error {
	applied := make(chan struct{})
	s.post(func(*Scheduler) { close(applied) })

	s.lifecycle.Lock()
	if s.State() == StateStopped {
		s.drain()
		s.lifecycle.Unlock()
		return nil
	}
	done := s.done
	s.lifecycle.Unlock()

	select {
	case <-applied:
		return nil
	case <-done:
		// The loop exited, possibly through ctx cancellation, without
		// draining what was queued.
		s.lifecycle.Lock()
		s.drain()
		s.lifecycle.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) post(cmd command) {
	s.queueMu.Lock()
	s.queue = append(s.queue, cmd)
	s.queueMu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drain() {
	s.queueMu.Lock()
	pending := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	for _, cmd := range pending {
		s.protect("command", func() { cmd(s) })
	}
}

func (s *Scheduler) addBody(body *physics.Rigidbody) {
	for _, b := range s.bodies {
		if b == body {
			return
		}
	}
	s.bodies = append(s.bodies, body)
	s.logger.Debug(s.tickCtx, "body registered", "body", body.ID())
	s.publish(event.NewBodyEvent(event.BodyRegistered, s, body.ID()))
}

func (s *Scheduler) removeBody(body *physics.Rigidbody) {
	for i, b := range s.bodies {
		if b != body {
			continue
		}
		s.bodies = append(s.bodies[:i], s.bodies[i+1:]...)
		delete(s.nonFinite, body.ID())
		s.logger.Debug(s.tickCtx, "body removed", "body", body.ID())
		s.publish(event.NewBodyEvent(event.BodyRemoved, s, body.ID()))
		return
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.state.Store(int32(StateStopped))

	timer := time.NewTimer(s.step)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if s.State() == StatePaused {
			s.drain()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		info := s.runTick()
		info.Sleep = sleepFor(s.step, info.Elapsed)
		s.finishTick(info)

		if info.Sleep == 0 {
			s.noteOverrun(ctx, info)
			continue
		}

		timer.Reset(info.Sleep)
	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				break wait
			case <-s.wake:
				if s.State() == StatePaused {
					timer.Stop()
					break wait
				}
			}
		}
	}
}

// sleepFor returns how long to wait after a tick that took elapsed. Overruns
// are not caught up.
func sleepFor(step, elapsed time.Duration) time.Duration {
	if elapsed >= step {
		return 0
	}
	return step - elapsed
}

func (s *Scheduler) runTick() TickInfo {
	start := time.Now()
	s.drain()
	s.simulate()
	return TickInfo{
		Index:   s.tickIndex,
		Start:   start,
		Elapsed: time.Since(start),
	}
}

func (s *Scheduler) simulate() {
	s.pipeline.Run(s.bodies)

	step := physics.Step{Dt: s.dt, Time: s.simTime, Gravity: s.gravity}
	for _, b := range s.bodies {
		s.protect("force contributor", func() {
			defer b.ClearForces()
			b.IntegrateForces(step)
		})
	}
	for _, b := range s.bodies {
		b.Integrate(s.dt)
		s.checkFinite(b)
	}

	s.tickIndex++
	s.simTime += s.dt
}

func (s *Scheduler) finishTick(info TickInfo) {
	s.statsMu.Lock()
	s.stats.Ticks = s.tickIndex
	s.stats.LastTick = info.Elapsed
	s.stats.SimTime = s.simTime
	s.stats.Bodies = len(s.bodies)
	s.statsMu.Unlock()

	if s.observer != nil {
		s.protect("tick observer", func() { s.observer.ObserveTick(info) })
	}
}

func (s *Scheduler) noteOverrun(ctx context.Context, info TickInfo) {
	s.statsMu.Lock()
	s.stats.Overruns++
	s.statsMu.Unlock()

	s.overrunsSinceLog++
	if time.Since(s.lastOverrunLog) < overrunLogInterval {
		return
	}
	s.logger.Debug(ctx, "tick overran step",
		"tick", info.Index,
		"elapsed", info.Elapsed.String(),
		"step", s.step.String(),
		"overruns", s.overrunsSinceLog,
	)
	s.lastOverrunLog = time.Now()
	s.overrunsSinceLog = 0
}

func (s *Scheduler) checkFinite(b *physics.Rigidbody) {
	if physics.Vec3Finite(b.Position()) && physics.Vec3Finite(b.LinearVelocity()) {
		return
	}
	if s.nonFinite[b.ID()] {
		return
	}
	s.nonFinite[b.ID()] = true
	s.logger.Warn(s.tickCtx, "body state is not finite", "body", b.ID(), "tick", s.tickIndex)
}

func (s *Scheduler) protect(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.countPanic()
			s.logger.Error(s.tickCtx, "recovered panic in simulation", fmt.Errorf("%v", r), "stage", stage, "tick", s.tickIndex)
		}
	}()
	fn()
}

func (s *Scheduler) countPanic() {
	s.statsMu.Lock()
	s.stats.Panics++
	s.statsMu.Unlock()
}

func (s *Scheduler) onContact(a, b *physics.Rigidbody, c physics.Contact, impulse float64) {
	s.publish(event.NewHitEvent(s, a.ID(), b.ID(), c.Point, c.Normal, impulse))
}

func (s *Scheduler) onPairPanic(a, b *physics.Rigidbody, recovered any) {
	s.countPanic()
	s.logger.Error(s.tickCtx, "recovered panic in collision", fmt.Errorf("%v", recovered),
		"body_a", a.ID(), "body_b", b.ID(), "tick", s.tickIndex)
}

func (s *Scheduler) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
