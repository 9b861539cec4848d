package tracker

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unklstewy/santa-scope/pkg/route"
)

// CaptionSource produces a status caption for a location.
type CaptionSource interface {
	GetStatusCaption(ctx context.Context, location string) (string, error)
}

// CaptionSourceFunc adapts a function to CaptionSource.
type CaptionSourceFunc func(ctx context.Context, location string) (string, error)

// GetStatusCaption calls f.
func (f CaptionSourceFunc) GetStatusCaption(ctx context.Context, location string) (string, error) {
	return f(ctx, location)
}

// SchedulerConfig controls waypoint advancement.
type SchedulerConfig struct {
	// Period between waypoint advances
	Period time.Duration

	// CaptionTimeout bounds a single caption request
	CaptionTimeout time.Duration

	// Fallbacks replace a caption when the source fails
	Fallbacks []string
}

// DefaultSchedulerConfig returns a 10 second cadence.
func DefaultSchedulerConfig(fallbacks []string) SchedulerConfig {
	return SchedulerConfig{
		Period:         10 * time.Second,
		CaptionTimeout: 30 * time.Second,
		Fallbacks:      fallbacks,
	}
}

// Scheduler advances the route cursor on a fixed wall-clock period and
// refreshes the status caption for every new waypoint.
//
// Caption requests run in their own goroutines and never delay the next
// tick. Each request carries a generation number; a result is applied only
// if it belongs to the latest request and the scheduler is still running.
type Scheduler struct {
	state  *State
	source CaptionSource
	cfg    SchedulerConfig
	logger zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	latest  uint64
	stopped bool
	runCtx  context.Context
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A nil rng uses a randomly seeded source.
func NewScheduler(state *State, source CaptionSource, cfg SchedulerConfig, rng *rand.Rand, logger zerolog.Logger) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = 10 * time.Second
	}
	if cfg.CaptionTimeout <= 0 {
		cfg.CaptionTimeout = 30 * time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Scheduler{
		state:  state,
		source: source,
		cfg:    cfg,
		rng:    rng,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run requests a caption for the starting waypoint and then advances the
// cursor every period until ctx is cancelled. Results of requests still in
// flight afterwards are discarded.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = false
	s.runCtx = ctx
	s.mu.Unlock()

	if wp, ok := s.state.Current(); ok {
		s.requestCaption(ctx, wp)
	}

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			s.runCtx = nil
			s.mu.Unlock()
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances the cursor once and starts a caption request for the new
// waypoint. It returns the new index.
func (s *Scheduler) Tick(ctx context.Context) int {
	idx, wp, ok := s.state.Advance()
	if !ok {
		return idx
	}
	s.logger.Debug().Int("index", idx).Str("location", wp.Name).Msg("advanced to waypoint")
	s.requestCaption(ctx, wp)
	return idx
}

// SetRoute swaps the route and restarts it at the first waypoint. Caption
// requests for the old route are invalidated, the caption shows
// InitialCaption for the new stop, and a fresh caption is requested.
func (s *Scheduler) SetRoute(r route.Route) {
	s.mu.Lock()
	s.latest++
	gen := s.latest
	ctx := s.runCtx
	s.state.SetRoute(r)
	c := Caption{Text: InitialCaption, Generation: gen, UpdatedAt: time.Now()}
	wp, ok := s.state.Current()
	if ok {
		c.Location = wp.Name
	}
	s.state.SetCaption(c)
	s.mu.Unlock()

	s.logger.Info().Int("waypoints", len(r)).Msg("route replaced")
	if !ok {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.requestCaption(ctx, wp)
}

// Wait blocks until all caption requests have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) requestCaption(ctx context.Context, wp route.Waypoint) {
	if s.source == nil {
		return
	}

	s.mu.Lock()
	s.latest++
	gen := s.latest
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.CaptionTimeout)
		text, err := s.source.GetStatusCaption(reqCtx, wp.Name)
		cancel()

		c := Caption{
			Text:       text,
			Location:   wp.Name,
			Generation: gen,
			UpdatedAt:  time.Now(),
		}
		if err != nil || text == "" {
			if err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Str("location", wp.Name).Msg("status caption failed, using fallback")
			}
			c.Text = s.fallback()
			c.Fallback = true
		}
		s.apply(ctx, c)
	}()
}

func (s *Scheduler) apply(ctx context.Context, c Caption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || ctx.Err() != nil {
		return
	}
	if c.Generation != s.latest {
		s.logger.Debug().Uint64("generation", c.Generation).Uint64("latest", s.latest).Msg("dropping stale caption")
		return
	}
	s.state.SetCaption(c)
}

func (s *Scheduler) fallback() string {
	if len(s.cfg.Fallbacks) == 0 {
		return InitialCaption
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.Fallbacks[s.rng.IntN(len(s.cfg.Fallbacks))]
}
