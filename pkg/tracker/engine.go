package tracker

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/santa-scope/pkg/geography"
	"github.com/unklstewy/santa-scope/pkg/route"
	"github.com/unklstewy/santa-scope/pkg/scene"
)

// ErrAlreadyRunning is returned when Run is called on a running engine.
var ErrAlreadyRunning = errors.New("engine already running")

// Options configures an Engine.
type Options struct {
	// FrameInterval is the animation frame period
	FrameInterval time.Duration

	// Ease is the autopilot ease factor
	Ease float64

	Controller ControllerConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig

	// Seed makes the random sources deterministic when non-zero
	Seed uint64
}

// DefaultOptions returns the standard engine tuning at roughly 30 frames
// per second.
func DefaultOptions(fallbacks []string) Options {
	return Options{
		FrameInterval: 33 * time.Millisecond,
		Ease:          DefaultEase,
		Controller:    DefaultControllerConfig(),
		Scheduler:     DefaultSchedulerConfig(fallbacks),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// Engine runs the three timing domains over a shared State: the animation
// frame loop (autopilot and scene building), the waypoint scheduler and the
// telemetry simulator.
type Engine struct {
	state      *State
	controller *Controller
	autopilot  Autopilot
	scheduler  *Scheduler
	telemetry  *Telemetry
	builder    *scene.Builder
	opts       Options
	logger     zerolog.Logger

	running atomic.Bool
	rebuild chan *geography.World

	subMu   sync.Mutex
	subs    map[int]chan scene.Scene
	nextSub int
}

// NewEngine wires the simulation components together.
func NewEngine(state *State, world *geography.World, captions CaptionSource, opts Options, logger zerolog.Logger) *Engine {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultOptions(nil).FrameInterval
	}

	var schedRng, telemRng *rand.Rand
	if opts.Seed != 0 {
		schedRng = rand.New(rand.NewPCG(opts.Seed, 1))
		telemRng = rand.New(rand.NewPCG(opts.Seed, 2))
	}

	logger = logger.With().Str("component", "engine").Logger()
	return &Engine{
		state:      state,
		controller: NewController(state, opts.Controller),
		autopilot:  Autopilot{Alpha: opts.Ease},
		scheduler:  NewScheduler(state, captions, opts.Scheduler, schedRng, logger),
		telemetry:  NewTelemetry(opts.Telemetry, telemRng),
		builder:    scene.NewBuilder(world, time.Now()),
		opts:       opts,
		logger:     logger,
		rebuild:    make(chan *geography.World, 1),
		subs:       make(map[int]chan scene.Scene),
	}
}

// State returns the shared simulation state.
func (e *Engine) State() *State { return e.state }

// Controller returns the gesture controller.
func (e *Engine) Controller() *Controller { return e.controller }

// Scheduler returns the waypoint scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.scheduler }

// Run starts all timing domains and blocks until ctx is cancelled. No frame
// is published after Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	e.logger.Info().
		Dur("frame_interval", e.opts.FrameInterval).
		Int("waypoints", len(e.state.Route())).
		Msg("engine starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.runFrames(gctx) })
	g.Go(func() error { return e.scheduler.Run(gctx) })
	g.Go(func() error { return e.telemetry.Run(gctx, e.state) })

	err := g.Wait()
	e.logger.Info().Msg("engine stopped")
	return err
}

// Rebuild replaces the land outlines. A running frame loop is stopped,
// the builder updated and the loop restarted; no frame of the old loop
// fires after the swap.
func (e *Engine) Rebuild(world *geography.World) {
	if world == nil {
		world = geography.Empty()
	}
	if !e.running.Load() {
		e.builder.SetWorld(world)
		return
	}
	// Keep only the newest pending world.
	for {
		select {
		case e.rebuild <- world:
			return
		default:
		}
		select {
		case <-e.rebuild:
		default:
		}
	}
}

// SetRoute replaces the route through the scheduler so pending captions for
// the old route are discarded.
func (e *Engine) SetRoute(r route.Route) {
	e.scheduler.SetRoute(r)
}

// Frame builds the scene for the current state without advancing the
// autopilot.
func (e *Engine) Frame(now time.Time) scene.Scene {
	e.state.mu.RLock()
	cam := e.state.camera.State()
	r := e.state.route
	idx := e.state.index
	e.state.mu.RUnlock()
	return e.builder.Build(cam, r, idx, now)
}

// Step runs one frame: the autopilot tick followed by a scene build.
func (e *Engine) Step(now time.Time) scene.Scene {
	e.autopilot.Tick(e.state)
	return e.Frame(now)
}

// Subscribe returns a channel receiving frames. Slow subscribers only see
// the most recent frame. The returned function unsubscribes.
func (e *Engine) Subscribe() (<-chan scene.Scene, func()) {
	ch := make(chan scene.Scene, 1)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) publish(sc scene.Scene) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- sc:
		default:
		}
	}
}

// runFrames supervises the frame loop, restarting it on Rebuild.
func (e *Engine) runFrames(ctx context.Context) error {
	for {
		loopCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			e.frameLoop(loopCtx)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case world := <-e.rebuild:
			cancel()
			<-done
			e.builder.SetWorld(world)
			e.logger.Info().Int("rings", len(world.Rings)).Msg("frame loop restarted with new geography")
		}
	}
}

func (e *Engine) frameLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sc := e.Step(now)
			if ctx.Err() != nil {
				return
			}
			e.publish(sc)
		}
	}
}
