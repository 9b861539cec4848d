package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/pkg/canvas"
	"github.com/unklstewy/santa-scope/pkg/chat"
	"github.com/unklstewy/santa-scope/pkg/scene"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

// Layout in terminal cells.
const (
	panelWidth   = 38
	headerHeight = 1
	footerHeight = 1
	inputHeight  = 3
)

// frameMsg carries a scene published by the engine.
type frameMsg scene.Scene

// chatReplyMsg reports that a chat exchange finished.
type chatReplyMsg struct {
	err error
}

type model struct {
	ctx    context.Context
	app    *app.App
	engine *tracker.Engine

	frames      <-chan scene.Scene
	unsubscribe func()
	raster      *canvas.Braille
	haveFrame   bool

	width, height int
	cols, rows    int
	rotateStep    float64

	chatMode bool
	waiting  bool
	pending  string
	input    textinput.Model
	history  viewport.Model
	status   string
}

func newModel(ctx context.Context, a *app.App) model {
	frames, unsubscribe := a.Engine.Subscribe()

	ti := textinput.New()
	ti.Placeholder = "Ask Santa something..."
	ti.CharLimit = 280
	ti.Prompt = "› "

	m := model{
		ctx:         ctx,
		app:         a,
		engine:      a.Engine,
		frames:      frames,
		unsubscribe: unsubscribe,
		rotateStep:  a.Config.Globe.RotateStep,
		input:       ti,
		history:     viewport.New(panelWidth-2, 10),
	}
	m.resize(80, 24)
	m.refreshHistory()
	return m
}

// globeSize returns the braille grid that fits beside the side panel.
func globeSize(width, height int) (cols, rows int) {
	cols = width - panelWidth - 1
	if cols < 10 {
		cols = 10
	}
	rows = height - headerHeight - footerHeight
	if rows < 5 {
		rows = 5
	}
	return cols, rows
}

func waitFrame(frames <-chan scene.Scene) tea.Cmd {
	return func() tea.Msg {
		return frameMsg(<-frames)
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitFrame(m.frames), textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case frameMsg:
		m.raster.Draw(scene.Scene(msg))
		m.haveFrame = true
		return m, waitFrame(m.frames)

	case chatReplyMsg:
		m.waiting = false
		m.pending = ""
		if msg.err != nil && !errors.Is(msg.err, chat.ErrBusy) {
			m.status = msg.err.Error()
		}
		m.refreshHistory()
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		if m.chatMode {
			return m.updateChat(msg)
		}
		return m.updateGlobe(msg)
	}
	return m, nil
}

func (m model) updateGlobe(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.engine.Controller()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.chatMode = true
		m.status = ""
		return m, m.input.Focus()
	case "left", "h":
		ctrl.Nudge(-m.rotateStep, 0)
	case "right", "l":
		ctrl.Nudge(m.rotateStep, 0)
	case "up", "k":
		ctrl.Nudge(0, -m.rotateStep)
	case "down", "j":
		ctrl.Nudge(0, m.rotateStep)
	case "+", "=":
		ctrl.Step(1)
	case "-", "_":
		ctrl.Step(-1)
	case "c", "0":
		ctrl.Recenter()
	case "r":
		if err := m.app.ReloadRoute(m.ctx); err != nil {
			m.status = err.Error()
		} else {
			m.status = "route reloaded"
		}
	}
	return m, nil
}

func (m model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "esc":
		m.chatMode = false
		m.input.Blur()
		return m, nil
	case "ctrl+r":
		m.app.Chat.Reset(m.ctx)
		m.waiting = false
		m.pending = ""
		m.refreshHistory()
		return m, nil
	case "enter":
		text := m.input.Value()
		if m.waiting || text == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.waiting = true
		m.status = ""
		m.pending = text
		m.refreshHistory()
		session := m.app.Chat
		ctx := m.ctx
		return m, func() tea.Msg {
			_, err := session.Send(ctx, text)
			return chatReplyMsg{err: err}
		}
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleMouse(msg tea.MouseMsg) {
	ctrl := m.engine.Controller()
	x := float64(msg.X*canvas.DotsX + canvas.DotsX/2)
	y := float64((msg.Y-headerHeight)*canvas.DotsY + canvas.DotsY/2)
	inGlobe := msg.X < m.cols && msg.Y >= headerHeight && msg.Y < headerHeight+m.rows

	switch msg.Action {
	case tea.MouseActionPress:
		if !inGlobe {
			return
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			ctrl.HandlePointer(tracker.PointerEvent{Kind: tracker.PointerDown, Button: tracker.ButtonPrimary, X: x, Y: y})
		case tea.MouseButtonWheelUp:
			ctrl.HandlePointer(tracker.PointerEvent{Kind: tracker.Wheel, X: x, Y: y, Notches: 1})
		case tea.MouseButtonWheelDown:
			ctrl.HandlePointer(tracker.PointerEvent{Kind: tracker.Wheel, X: x, Y: y, Notches: -1})
		}
	case tea.MouseActionMotion:
		ctrl.HandlePointer(tracker.PointerEvent{Kind: tracker.PointerMove, X: x, Y: y})
	case tea.MouseActionRelease:
		ctrl.HandlePointer(tracker.PointerEvent{Kind: tracker.PointerUp, X: x, Y: y})
	}
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.cols, m.rows = globeSize(width, height)
	m.raster = canvas.NewBraille(m.cols, m.rows)
	m.haveFrame = false
	m.engine.State().Resize(float64(m.cols*canvas.DotsX), float64(m.rows*canvas.DotsY))

	m.history.Width = panelWidth - 2
	m.history.Height = max(3, m.rows-inputHeight-1)
	m.input.Width = panelWidth - 5
	m.refreshHistory()
}

func (m *model) refreshHistory() {
	m.history.SetContent(renderHistory(m.app.Chat.Messages(), m.history.Width, m.pending))
	m.history.GotoBottom()
}
