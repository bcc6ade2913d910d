// pkg/engine/scheduler_test.go
package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MansenC/BarrelShooter/pkg/event"
	"github.com/MansenC/BarrelShooter/pkg/physics"
)

func newTestScheduler(t *testing.T, mutate func(*Options)) *Scheduler {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewScheduler(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func newBall(t *testing.T, position mgl64.Vec3) *physics.Rigidbody {
	t.Helper()
	shape, err := physics.NewSphere(0.5)
	require.NoError(t, err)
	body, err := physics.NewRigidbody(shape, 1)
	require.NoError(t, err)
	body.SetPosition(position)
	return body
}

func TestNewScheduler_InvalidTickRate_ReturnsError(t *testing.T) {
	for _, rate := range []float64{0, -10, math.NaN()} {
		opts := DefaultOptions()
		opts.TickRate = rate
		_, err := NewScheduler(opts)
		assert.ErrorIs(t, err, ErrInvalidTimestep)
	}
}

func TestSleepFor_NeverNegative(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    time.Duration
	}{
		{"fast tick", 5 * time.Millisecond, 15 * time.Millisecond},
		{"exact", 20 * time.Millisecond, 0},
		{"overrun", 40 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sleepFor(20*time.Millisecond, tt.elapsed))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestStep_FreeFall_ReachesWaterInExpectedTime(t *testing.T) {
	s := newTestScheduler(t, nil)
	ball := newBall(t, mgl64.Vec3{0, -10, 0})
	s.Register(ball)

	ticks := 0
	for ball.Pose().Position.Y() < 0 && ticks < 500 {
		_, err := s.Step()
		require.NoError(t, err)
		ticks++
	}

	expected := math.Sqrt(2 * 10 / physics.DefaultGravity)
	assert.InDelta(t, expected, float64(ticks)*s.Timestep(), s.Timestep())
	assert.Equal(t, uint64(ticks), s.Stats().Ticks)
	assert.InDelta(t, float64(ticks)*s.Timestep(), s.Stats().SimTime, 1e-9)
}

func TestStep_MatchesDirectIntegration(t *testing.T) {
	s := newTestScheduler(t, nil)
	scheduled := newBall(t, mgl64.Vec3{1, -3, 2})
	direct := newBall(t, mgl64.Vec3{1, -3, 2})
	scheduled.SetLinearVelocity(mgl64.Vec3{1, 0, -1})
	direct.SetLinearVelocity(mgl64.Vec3{1, 0, -1})
	s.Register(scheduled)

	gravity := physics.Down.Mul(physics.DefaultGravity)
	for i := 0; i < 25; i++ {
		_, err := s.Step()
		require.NoError(t, err)
		direct.IntegrateForces(physics.Step{Dt: s.Timestep(), Time: float64(i) * s.Timestep(), Gravity: gravity})
		direct.Integrate(s.Timestep())
	}

	assert.Equal(t, direct.Position(), scheduled.Position())
	assert.Equal(t, direct.LinearVelocity(), scheduled.LinearVelocity())
}

func TestStep_AppliesQueuedCommands(t *testing.T) {
	s := newTestScheduler(t, func(o *Options) { o.Gravity = mgl64.Vec3{} })
	ball := newBall(t, mgl64.Vec3{})
	s.Register(ball)
	s.ApplyImpulse(ball, mgl64.Vec3{2, 0, 0})
	s.AddForce(ball, mgl64.Vec3{0, 0, 50})

	_, err := s.Step()
	require.NoError(t, err)

	assert.InDelta(t, 2, ball.LinearVelocity().X(), 1e-12)
	assert.InDelta(t, 1, ball.LinearVelocity().Z(), 1e-12)
	assert.Equal(t, 1, s.Stats().Bodies)

	s.Remove(ball)
	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Stats().Bodies)

	// A removed body is no longer integrated.
	before := ball.Position()
	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, before, ball.Position())
}

func TestStep_RegisterTwice_KeepsSingleEntry(t *testing.T) {
	s := newTestScheduler(t, nil)
	ball := newBall(t, mgl64.Vec3{})
	s.Register(ball)
	s.Register(ball)

	_, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats().Bodies)
}

func TestClear_RemovesAllBodies(t *testing.T) {
	bus := event.NewEventBus()
	removed := 0
	bus.Subscribe(event.BodyRemoved, func(e event.Event) { removed++ })

	s := newTestScheduler(t, func(o *Options) { o.Bus = bus })
	for i := 0; i < 4; i++ {
		s.Register(newBall(t, mgl64.Vec3{float64(i) * 5, 0, 0}))
	}
	_, err := s.Step()
	require.NoError(t, err)
	require.Equal(t, 4, s.Stats().Bodies)

	s.Clear()
	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Stats().Bodies)
	assert.Equal(t, 4, removed)
}

func TestStep_Collision_PublishesHitAndFiresCallbacks(t *testing.T) {
	bus := event.NewEventBus()
	var hits []*event.HitEvent
	bus.Subscribe(event.BodyHit, func(e event.Event) {
		hits = append(hits, e.(*event.HitEvent))
	})

	s := newTestScheduler(t, func(o *Options) {
		o.Bus = bus
		o.Gravity = mgl64.Vec3{}
	})
	a := newBall(t, mgl64.Vec3{0, 0, 0})
	b := newBall(t, mgl64.Vec3{0.9, 0, 0})
	a.SetLinearVelocity(mgl64.Vec3{1, 0, 0})

	callbacks := 0
	a.OnHit(func(self, other *physics.Rigidbody, c physics.Contact) { callbacks++ })
	s.Register(a)
	s.Register(b)

	for i := 0; i < 5; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	require.NotEmpty(t, hits)
	assert.Greater(t, hits[0].Impulse, 0.0)
	assert.Equal(t, 1, callbacks)
	assert.InDelta(t, 0, a.LinearVelocity().X(), 1e-9)
	assert.InDelta(t, 1, b.LinearVelocity().X(), 1e-9)
}

func TestStep_PanickingContributor_IsRecovered(t *testing.T) {
	s := newTestScheduler(t, nil)
	bad := newBall(t, mgl64.Vec3{})
	bad.AddContributor(physics.ForceFunc(func(*physics.Rigidbody, physics.Step) {
		panic("contributor failure")
	}))
	good := newBall(t, mgl64.Vec3{10, 0, 0})
	s.Register(bad)
	s.Register(good)

	for i := 0; i < 3; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(3), s.Stats().Panics)
	assert.Greater(t, good.Position().Y(), 0.0)
}

func TestLifecycle_StartPauseResumeStop(t *testing.T) {
	bus := event.NewEventBus()
	var mu sync.Mutex
	var seen []event.Type
	for _, typ := range []event.Type{event.SimulationStarted, event.SimulationPaused, event.SimulationResumed, event.SimulationStopped} {
		bus.Subscribe(typ, func(e event.Event) {
			mu.Lock()
			seen = append(seen, e.GetType())
			mu.Unlock()
		})
	}

	s := newTestScheduler(t, func(o *Options) {
		o.TickRate = 200
		o.Bus = bus
	})
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, s.Pause())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.State())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	_, err := s.Step()
	assert.ErrorIs(t, err, ErrRunning)

	require.Eventually(t, func() bool { return s.Stats().Ticks >= 3 }, time.Second, time.Millisecond)

	require.True(t, s.Pause())
	assert.Equal(t, StatePaused, s.State())
	assert.False(t, s.Pause())

	// Let any in-flight tick finish, then confirm the count holds.
	time.Sleep(20 * time.Millisecond)
	paused := s.Stats().Ticks
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, paused, s.Stats().Ticks)

	require.True(t, s.Resume())
	assert.False(t, s.Resume())
	require.Eventually(t, func() bool { return s.Stats().Ticks > paused }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)
	require.NoError(t, s.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []event.Type{
		event.SimulationStarted,
		event.SimulationPaused,
		event.SimulationResumed,
		event.SimulationStopped,
	}, seen)
}

func TestStart_ContextCancel_EndsLoop(t *testing.T) {
	s := newTestScheduler(t, func(o *Options) { o.TickRate = 200 })
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return s.State() == StateStopped }, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestLoop_Overrun_NextTickStartsWithoutSleep(t *testing.T) {
	infos := make(chan TickInfo, 16)
	s := newTestScheduler(t, func(o *Options) {
		o.TickRate = 100
		o.Observer = TickObserverFunc(func(info TickInfo) {
			select {
			case infos <- info:
			default:
			}
		})
	})

	step := 10 * time.Millisecond
	first := true
	slow := newBall(t, mgl64.Vec3{})
	slow.AddContributor(physics.ForceFunc(func(*physics.Rigidbody, physics.Step) {
		if first {
			first = false
			time.Sleep(2 * step)
		}
	}))

	// Registered before start so the slow contributor runs on the first tick.
	s.Register(slow)
	require.NoError(t, s.Start(context.Background()))

	overrun := <-infos
	next := <-infos
	require.NoError(t, s.Stop())

	assert.GreaterOrEqual(t, overrun.Elapsed, 2*step)
	assert.Zero(t, overrun.Sleep)
	assert.Less(t, next.Start.Sub(overrun.Start.Add(overrun.Elapsed)), step/2)
	assert.Equal(t, overrun.Index+1, next.Index)
	assert.GreaterOrEqual(t, s.Stats().Overruns, uint64(1))
}

func TestScheduler_ConcurrentCommands_RaceFree(t *testing.T) {
	s := newTestScheduler(t, func(o *Options) { o.TickRate = 500 })
	require.NoError(t, s.Start(context.Background()))

	const workers = 8
	const perWorker = 20
	kept := make([][]*physics.Rigidbody, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				body := newBall(t, mgl64.Vec3{float64(w) * 100, 0, float64(i) * 10})
				s.Register(body)
				s.AddForce(body, mgl64.Vec3{0, -1, 0})
				_ = body.Pose()
				if i%2 == 0 {
					s.Remove(body)
				} else {
					kept[w] = append(kept[w], body)
				}
			}
		}(w)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return s.Stats().Bodies == workers*perWorker/2
	}, 2*time.Second, time.Millisecond)

	for _, bodies := range kept {
		for _, b := range bodies {
			assert.True(t, physics.Vec3Finite(b.Pose().Position))
		}
	}
	require.NoError(t, s.Stop())
}

func TestFlush_AppliesPendingCommands(t *testing.T) {
	s := newTestScheduler(t, func(o *Options) { o.TickRate = 200 })
	ball := newBall(t, mgl64.Vec3{})

	// Stopped: drained inline without advancing the simulation.
	s.Register(ball)
	ran := false
	s.Do(func() { ran = true })
	require.NoError(t, s.Flush(context.Background()))
	assert.True(t, ran)
	assert.Zero(t, s.Stats().Ticks)

	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Pause())

	// Paused: the loop still drains commands.
	var applied bool
	s.Do(func() { applied = true })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
	assert.True(t, applied)
	require.NoError(t, s.Stop())
}

func TestFlush_AfterContextCancel_AppliesQueuedCommands(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := newTestScheduler(t, func(o *Options) { o.TickRate = 1000 })
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, s.Start(ctx))

		ran := false
		s.Do(func() { ran = true })
		cancel()

		flushed := make(chan error, 1)
		go func() { flushed <- s.Flush(context.Background()) }()

		select {
		case err := <-flushed:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d: Flush blocked after the loop exited", i)
		}
		require.True(t, ran, "run %d: queued command was dropped", i)
		require.NoError(t, s.Stop())
	}
}

func TestStep_SlowTick_IsNotCountedAsOverrun(t *testing.T) {
	s := newTestScheduler(t, func(o *Options) { o.TickRate = 100 })
	slow := newBall(t, mgl64.Vec3{})
	slow.AddContributor(physics.ForceFunc(func(*physics.Rigidbody, physics.Step) {
		time.Sleep(15 * time.Millisecond)
	}))
	s.Register(slow)

	info, err := s.Step()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, info.Elapsed, 10*time.Millisecond)
	assert.Zero(t, s.Stats().Overruns)
	assert.Equal(t, uint64(1), s.Stats().Ticks)
}
