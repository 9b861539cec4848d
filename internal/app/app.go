// Package app assembles the tracker from configuration. Every front end
// (terminal, console and web) starts from the same App.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/santa-scope/internal/db"
	"github.com/unklstewy/santa-scope/pkg/chat"
	"github.com/unklstewy/santa-scope/pkg/config"
	"github.com/unklstewy/santa-scope/pkg/genai"
	"github.com/unklstewy/santa-scope/pkg/geography"
	"github.com/unklstewy/santa-scope/pkg/projection"
	"github.com/unklstewy/santa-scope/pkg/route"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

// App holds the wired components.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Engine *tracker.Engine
	Chat   *chat.Session
	GenAI  *genai.Client

	// Routes is nil unless a database is configured
	Routes *db.RouteRepository

	geo      *geography.Loader
	database *db.DB
}

// New wires the tracker for a canvas of the given size. Land outlines are
// not loaded yet; Run fetches them in the background so the globe appears
// immediately.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, width, height float64) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		GenAI: genai.NewClient(genai.Config{
			APIKey:            cfg.GenAI.APIKey,
			Model:             cfg.GenAI.Model,
			BaseURL:           cfg.GenAI.BaseURL,
			RequestsPerMinute: cfg.GenAI.RequestsPerMinute,
			Timeout:           cfg.GenAI.Timeout(),
		}),
		geo: geography.NewLoader(geography.Config{
			URL:       cfg.Geography.URL,
			LocalPath: cfg.Geography.LocalPath,
			CachePath: cfg.Geography.CachePath,
			CacheTTL:  cfg.Geography.CacheTTL(),
			Timeout:   cfg.Geography.Timeout(),
		}, logger),
	}
	if !a.GenAI.HasAPIKey() {
		logger.Warn().Msg("no API key configured, captions and chat replies are canned")
	}

	if cfg.UsesDatabase() {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 3, 2*time.Second, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.InitSchema(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		a.database = database
		a.Routes = db.NewRouteRepository(database)
	}

	r, err := a.loadRoute(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info().Int("waypoints", len(r)).Str("source", cfg.Route.Source).Msg("route loaded")

	retry := genai.DefaultRetryConfig()
	retry.MaxRetries = cfg.GenAI.MaxRetries
	status := genai.NewStatusService(a.GenAI, genai.StatusConfig{
		Language:  cfg.GenAI.Language,
		CacheSize: cfg.GenAI.CaptionCacheSize,
		CacheTTL:  cfg.GenAI.CaptionCacheTTL(),
	}, retry, logger)

	state := tracker.NewState(r, projection.NewCamera(width, height), tracker.InitialTelemetry())
	a.Engine = tracker.NewEngine(state, geography.Empty(), status, EngineOptions(cfg), logger)

	replies := genai.NewChatService(a.GenAI, genai.ChatConfig{
		Language:    cfg.GenAI.Language,
		Temperature: cfg.Chat.Temperature,
	}, retry, logger)
	a.Chat = chat.NewSession(ctx, replies, a.chatStore(), logger)

	return a, nil
}

// EngineOptions converts the configuration into engine tuning.
func EngineOptions(cfg *config.Config) tracker.Options {
	opts := tracker.DefaultOptions(genai.Fallbacks)
	opts.FrameInterval = cfg.Globe.FrameInterval()
	opts.Ease = cfg.Globe.Ease
	opts.Controller.DragSensitivity = cfg.Globe.DragSensitivity
	opts.Controller.WheelStep = cfg.Globe.WheelStep
	opts.Scheduler.Period = cfg.Route.AdvancePeriod()
	if cfg.Route.CaptionTimeoutSeconds > 0 {
		opts.Scheduler.CaptionTimeout = cfg.Route.CaptionTimeout()
	}
	opts.Telemetry.Period = cfg.Telemetry.Interval()
	opts.Telemetry.MinSpeed = cfg.Telemetry.MinSpeedKmh
	opts.Telemetry.MaxSpeed = cfg.Telemetry.MaxSpeedKmh
	opts.Seed = cfg.Telemetry.Seed
	return opts
}

// RouteSource returns the configured route source.
func (a *App) RouteSource() (route.Source, error) {
	switch a.Config.Route.Source {
	case "file":
		return route.FileSource{Path: a.Config.Route.File}, nil
	case "database":
		if a.Routes == nil {
			return nil, errors.New("database route source without a database")
		}
		return a.Routes.Source(a.Config.Route.Name), nil
	case "builtin":
		return route.StaticSource{Route: route.DefaultRoute()}, nil
	}
	return nil, fmt.Errorf("unknown route source %q", a.Config.Route.Source)
}

// loadRoute reads the configured route. A broken route file falls back to
// the built-in route; a database failure is fatal.
func (a *App) loadRoute(ctx context.Context) (route.Route, error) {
	src, err := a.RouteSource()
	if err != nil {
		return nil, err
	}
	r, err := src.LoadRoute(ctx)
	if err == nil {
		return r, nil
	}
	if a.Config.Route.Source == "database" {
		return nil, fmt.Errorf("load route %q: %w", a.Config.Route.Name, err)
	}
	a.Logger.Warn().Err(err).Str("file", a.Config.Route.File).Msg("using built-in route")
	return route.DefaultRoute(), nil
}

// ReloadRoute reads the route again and swaps it into the running state.
func (a *App) ReloadRoute(ctx context.Context) error {
	src, err := a.RouteSource()
	if err != nil {
		return err
	}
	r, err := src.LoadRoute(ctx)
	if err != nil {
		return fmt.Errorf("reload route: %w", err)
	}
	a.Engine.SetRoute(r)
	a.Logger.Info().Int("waypoints", len(r)).Msg("route reloaded")
	return nil
}

func (a *App) chatStore() chat.Store {
	switch a.Config.Chat.Store {
	case "file":
		return chat.NewFileStore(a.Config.Chat.HistoryFile)
	case "database":
		if a.database != nil {
			return db.NewChatRepository(a.database).Store(a.Config.Chat.Session)
		}
	}
	return nil
}

// Run starts the engine and loads the land outlines. It blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Engine.Run(ctx)
	})
	g.Go(func() error {
		world := a.geo.Load(ctx)
		if ctx.Err() == nil {
			a.Engine.Rebuild(world)
		}
		return nil
	})
	return g.Wait()
}

// Health reports whether the backing services are usable.
func (a *App) Health(ctx context.Context) error {
	if a.database == nil {
		return nil
	}
	return db.HealthCheck(ctx, a.database)
}

// Stats summarises the stored routes and chats. It returns nil without a
// database.
func (a *App) Stats(ctx context.Context) (*db.Stats, error) {
	if a.database == nil {
		return nil, nil
	}
	stats, err := a.database.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.database == nil {
		return nil
	}
	return a.database.Close()
}

var _ io.Closer = (*App)(nil)
