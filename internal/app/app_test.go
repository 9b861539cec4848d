package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/santa-scope/pkg/config"
	"github.com/unklstewy/santa-scope/pkg/genai"
	"github.com/unklstewy/santa-scope/pkg/route"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Route.Source = "builtin"
	cfg.Chat.Store = "memory"
	cfg.GenAI.APIKey = ""
	cfg.Geography.LocalPath = filepath.Join(t.TempDir(), "missing.geojson")
	cfg.Geography.CachePath = ""
	return cfg
}

func TestEngineOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Globe.FrameIntervalMs = 50
	cfg.Route.AdvanceSeconds = 3
	cfg.Telemetry.Seed = 9

	opts := EngineOptions(cfg)
	assert.Equal(t, 50*time.Millisecond, opts.FrameInterval)
	assert.Equal(t, 0.05, opts.Ease)
	assert.Equal(t, 75.0, opts.Controller.DragSensitivity)
	assert.Equal(t, 1.15, opts.Controller.WheelStep)
	assert.Equal(t, 3*time.Second, opts.Scheduler.Period)
	assert.Equal(t, 30*time.Second, opts.Scheduler.CaptionTimeout)
	assert.Equal(t, genai.Fallbacks, opts.Scheduler.Fallbacks)
	assert.Equal(t, 200*time.Millisecond, opts.Telemetry.Period)
	assert.Equal(t, 2000.0, opts.Telemetry.MinSpeed)
	assert.Equal(t, 6000.0, opts.Telemetry.MaxSpeed)
	assert.Equal(t, uint64(9), opts.Seed)
}

func TestNewBuiltinRoute(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zerolog.Nop(), 800, 600)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Routes)
	assert.False(t, a.GenAI.HasAPIKey())
	assert.Equal(t, route.DefaultRoute(), a.Engine.State().Route())
	assert.Equal(t, tracker.Following, a.Engine.State().FollowMode())
	assert.Len(t, a.Chat.Messages(), 1)
}

func TestNewFallsBackToBuiltinRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Route.Source = "file"
	cfg.Route.File = filepath.Join(t.TempDir(), "nope.yaml")

	a, err := New(context.Background(), cfg, zerolog.Nop(), 800, 600)
	require.NoError(t, err)
	assert.Equal(t, route.DefaultRoute(), a.Engine.State().Route())
}

func TestReloadRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Route.Source = "file"
	cfg.Route.File = filepath.Join(t.TempDir(), "route.yaml")

	a, err := New(context.Background(), cfg, zerolog.Nop(), 800, 600)
	require.NoError(t, err)

	short := route.Route{
		{Name: "North Pole", Lat: 90, Lng: 0},
		{Name: "Oslo", Lat: 59.91, Lng: 10.75},
	}
	require.NoError(t, route.SaveFile(cfg.Route.File, "short", short))
	require.NoError(t, a.ReloadRoute(context.Background()))
	assert.Equal(t, short, a.Engine.State().Route())
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Globe.FrameIntervalMs = 5

	a, err := New(context.Background(), cfg, zerolog.Nop(), 800, 600)
	require.NoError(t, err)

	frames, unsubscribe := a.Engine.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestHealthWithoutDatabase(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zerolog.Nop(), 800, 600)
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.Health(context.Background()))
	stats, err := a.Stats(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, stats)
}
