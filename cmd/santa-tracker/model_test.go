package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/pkg/canvas"
	"github.com/unklstewy/santa-scope/pkg/chat"
	"github.com/unklstewy/santa-scope/pkg/config"
	"github.com/unklstewy/santa-scope/pkg/projection"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Route.Source = "builtin"
	cfg.Chat.Store = "memory"
	cfg.GenAI.APIKey = ""
	cfg.Geography.LocalPath = filepath.Join(t.TempDir(), "none.geojson")

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), 800, 600)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	m := newModel(context.Background(), a)
	t.Cleanup(m.unsubscribe)
	return m
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestGlobeSize(t *testing.T) {
	cols, rows := globeSize(120, 40)
	assert.Equal(t, 120-panelWidth-1, cols)
	assert.Equal(t, 38, rows)

	cols, rows = globeSize(20, 3)
	assert.Equal(t, 10, cols)
	assert.Equal(t, 5, rows)
}

func TestWindowResizeRecentresCamera(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	cols, rows := globeSize(120, 40)
	cam := m.engine.State().Camera()
	assert.Equal(t, projection.Point{X: float64(cols*canvas.DotsX) / 2, Y: float64(rows*canvas.DotsY) / 2}, cam.Translation)

	w, h := m.raster.Size()
	assert.Equal(t, cols, w)
	assert.Equal(t, rows, h)
}

func TestKeysDriveCamera(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	state := m.engine.State()
	before := state.Camera().Scale

	m = update(t, m, runes("+"))
	assert.Greater(t, state.Camera().Scale, before)
	assert.Equal(t, tracker.Manual, state.FollowMode())
	assert.True(t, state.RecenterVisible())

	rot := state.Camera().Rotation
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.NotEqual(t, rot.Lambda, state.Camera().Rotation.Lambda)

	m = update(t, m, runes("c"))
	assert.Equal(t, tracker.Following, state.FollowMode())
	assert.False(t, state.RecenterVisible())

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMouseWheelZooms(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	state := m.engine.State()
	before := state.Camera().Scale

	m = update(t, m, tea.MouseMsg{X: 10, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	assert.InDelta(t, before*1.15, state.Camera().Scale, 1e-9)

	// Outside the globe the wheel is ignored
	scale := state.Camera().Scale
	update(t, m, tea.MouseMsg{X: 119, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	assert.Equal(t, scale, state.Camera().Scale)
}

func TestMouseDragRotates(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	state := m.engine.State()
	before := state.Camera().Rotation.Lambda

	m = update(t, m, tea.MouseMsg{X: 20, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = update(t, m, tea.MouseMsg{X: 25, Y: 10, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	update(t, m, tea.MouseMsg{X: 25, Y: 10, Action: tea.MouseActionRelease})

	k := 75 / state.Camera().Scale
	assert.InDelta(t, before+5*canvas.DotsX*k, state.Camera().Rotation.Lambda, 1e-9)
	assert.Equal(t, tracker.Manual, state.FollowMode())
}

func TestChatMode(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.True(t, m.chatMode)

	// Globe keys are typed into the input while chatting
	m = update(t, m, runes("q"))
	assert.Equal(t, "q", m.input.Value())

	m.input.SetValue("Where are you?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Santa is typing")

	m = update(t, m, cmd())
	assert.False(t, m.waiting)
	msgs := m.app.Chat.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Where are you?", msgs[1].Text)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.chatMode)
}

func TestViewShowsStatus(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	view := m.View()
	assert.Contains(t, view, "Santa Tracker")
	assert.Contains(t, view, "North Pole")
	assert.Contains(t, view, "Loading the globe")
	assert.NotContains(t, view, "Back to Santa")

	m = update(t, m, frameMsg(m.engine.Step(time.Now())))
	m = update(t, m, runes("-"))
	view = m.View()
	assert.NotContains(t, view, "Loading the globe")
	assert.Contains(t, view, "Back to Santa")
}

func TestRenderHistory(t *testing.T) {
	msgs := []chat.Message{
		chat.Welcome(time.Now()),
		{Role: chat.RoleUser, Text: "hi"},
	}
	out := renderHistory(msgs, 30, "")
	assert.Contains(t, out, "Santa")
	assert.Contains(t, out, "hi")
	assert.NotContains(t, out, "typing")

	out = renderHistory(msgs, 30, "are you there?")
	assert.True(t, strings.HasSuffix(out, "Santa is typing..."))
}
