package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/internal/logging"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

// Console is the tview operator console: globe, telemetry, controls and
// logs.
type Console struct {
	app    *app.App
	engine *tracker.Engine
	logger zerolog.Logger
	panel  *logging.Panel

	// UI components
	tviewApp   *tview.Application
	globe      *GlobeView
	telemetry  *tview.TextView
	controls   *tview.TextView
	logs       *LogView
	rootLayout *tview.Flex

	ctx        context.Context
	rotateStep float64
}

// NewConsole creates the console for a wired tracker. Records written to
// panel appear in the log view.
func NewConsole(a *app.App, panel *logging.Panel) *Console {
	c := &Console{
		app:        a,
		engine:     a.Engine,
		logger:     a.Logger.With().Str("component", "console").Logger(),
		panel:      panel,
		rotateStep: a.Config.Globe.RotateStep,
		ctx:        context.Background(),
	}
	c.setupUI()
	return c
}

// setupUI initializes the user interface
func (c *Console) setupUI() {
	c.tviewApp = tview.NewApplication().EnableMouse(true)

	c.globe = NewGlobeView(c.engine)

	c.telemetry = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	c.telemetry.SetBorder(true).SetTitle(" Sleigh ")
	c.telemetry.SetText(telemetryText(c.engine.State().Snapshot()))

	c.controls = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	c.controls.SetBorder(true).SetTitle(" Controls ")
	c.controls.SetText(controlsText)

	c.logs = NewLogView(200)
	if c.panel != nil {
		for _, e := range c.panel.Entries() {
			c.logs.Append(e)
		}
	}

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.telemetry, 0, 4, false).
		AddItem(c.controls, 0, 3, false).
		AddItem(c.logs.GetView(), 0, 3, false)

	c.rootLayout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(c.globe, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	c.tviewApp.SetRoot(c.rootLayout, true)
	c.tviewApp.SetInputCapture(c.handleKeyboard)
}

const controlsText = `[yellow]GLOBE[-]
  [white]←/→/↑/↓[-]   Spin
  [white]drag[-]      Spin
  [white]+/-, wheel[-] Zoom
  [white]c[-]         Back to Santa

[yellow]ROUTE[-]
  [white]n[-]         Next stop
  [white]r[-]         Reload

[yellow]CONTROL[-]
  [white]q, ESC[-]    Quit`

// telemetryText renders the snapshot as colour-tagged panel text.
func telemetryText(snap tracker.Snapshot) string {
	var b strings.Builder

	if snap.Current == nil {
		b.WriteString("[yellow]LOCATION:[-] [gray]no route loaded[-]\n")
	} else {
		fmt.Fprintf(&b, "[yellow]LOCATION:[-] [white]%s[-]", tview.Escape(snap.Current.Name))
		if snap.Current.ScheduledLabel != "" {
			fmt.Fprintf(&b, " [gray](%s)[-]", snap.Current.ScheduledLabel)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "[gray]Pos:[-]  [white]%.4f°, %.4f°[-]\n", snap.Current.Lat, snap.Current.Lng)
		fmt.Fprintf(&b, "[gray]Stop:[-] [white]%d of %d[-]\n", snap.Index+1, len(snap.Route))
		if snap.Next != nil && len(snap.Route) > 1 {
			fmt.Fprintf(&b, "[gray]Next:[-] [white]%s[-] [gray]%s km, %03.0f°[-]\n",
				tview.Escape(snap.Next.Name), humanize.Comma(int64(snap.DistanceNextKm)), snap.HeadingDeg)
		}
	}
	fmt.Fprintf(&b, "[gray]Status:[-] [::i]%s[::-]", tview.Escape(snap.Caption.Text))
	if snap.Caption.Fallback {
		b.WriteString(" [gray](offline)[-]")
	}
	b.WriteString("\n\n")

	t := snap.Telemetry
	b.WriteString("[yellow]INSTRUMENTS[-]\n")
	fmt.Fprintf(&b, "[gray]Speed:[-]     [white]%s km/h[-]\n", humanize.Comma(int64(t.SpeedKmh)))
	fmt.Fprintf(&b, "[gray]Delivered:[-] [white]%s[-]\n", humanize.Comma(t.Delivered))
	fmt.Fprintf(&b, "[gray]Outside:[-]   [white]%.1f °C[-]\n", t.TemperatureC)
	b.WriteString("\n")

	b.WriteString("[yellow]CAMERA[-]\n")
	mode := "[green]following[-]"
	if snap.Follow == tracker.Manual {
		mode = "[orange]manual[-]"
	}
	fmt.Fprintf(&b, "[gray]Mode:[-]  %s\n", mode)
	fmt.Fprintf(&b, "[gray]Rot:[-]   [white]%.1f°, %.1f°[-]\n", snap.Camera.Rotation.Lambda, snap.Camera.Rotation.Phi)
	fmt.Fprintf(&b, "[gray]Scale:[-] [white]%.0f[-] [gray](%.0f..%.0f)[-]\n", snap.Camera.Scale, snap.Camera.MinScale, snap.Camera.MaxScale)
	if snap.RecenterVisible {
		b.WriteString("\n[white:red:b] c: Back to Santa [-:-:-]\n")
	}
	return b.String()
}

// handleKeyboard handles keyboard input
func (c *Console) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	key := event.Key()
	r := event.Rune()
	ctrl := c.engine.Controller()

	switch {
	case key == tcell.KeyEscape || r == 'q':
		c.Stop()
		return nil

	case key == tcell.KeyLeft || r == 'h':
		ctrl.Nudge(-c.rotateStep, 0)
		return nil
	case key == tcell.KeyRight || r == 'l':
		ctrl.Nudge(c.rotateStep, 0)
		return nil
	case key == tcell.KeyUp || r == 'k':
		ctrl.Nudge(0, -c.rotateStep)
		return nil
	case key == tcell.KeyDown || r == 'j':
		ctrl.Nudge(0, c.rotateStep)
		return nil

	case r == '+' || r == '=':
		ctrl.Step(1)
		return nil
	case r == '-':
		ctrl.Step(-1)
		return nil
	case r == 'c' || r == '0':
		ctrl.Recenter()
		c.logger.Info().Msg("camera handed back to autopilot")
		return nil

	case r == 'n':
		idx := c.engine.Scheduler().Tick(c.ctx)
		c.logger.Info().Int("index", idx).Msg("skipped to next stop")
		return nil
	case r == 'r':
		if err := c.app.ReloadRoute(c.ctx); err != nil {
			c.logger.Error().Err(err).Msg("route reload failed")
		}
		return nil
	}

	return event
}

// Run starts the tracker and the UI. It returns when the UI stops or ctx
// is cancelled.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx

	// Log records are handed to the UI goroutine through a buffer; a record
	// logged from the UI goroutine itself must not wait for a redraw
	entries := make(chan logging.Entry, 256)
	if c.panel != nil {
		c.panel.OnEntry(func(e logging.Entry) {
			select {
			case entries <- e:
			default:
			}
		})
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-entries:
				c.tviewApp.QueueUpdateDraw(func() { c.logs.Append(e) })
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- c.app.Run(ctx) }()

	frames, unsubscribe := c.engine.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sc := <-frames:
				c.globe.SetFrame(sc)
				snap := c.engine.State().Snapshot()
				c.tviewApp.QueueUpdateDraw(func() {
					c.telemetry.SetText(telemetryText(snap))
				})
			}
		}
	}()

	go func() {
		<-ctx.Done()
		c.tviewApp.Stop()
	}()

	err := c.tviewApp.Run()
	if c.panel != nil {
		c.panel.OnEntry(nil)
	}
	cancel()
	if runErr := <-done; runErr != nil && err == nil {
		err = runErr
	}
	return err
}

// Stop stops the application
func (c *Console) Stop() {
	c.logger.Info().Msg("shutting down")
	c.tviewApp.Stop()
}
