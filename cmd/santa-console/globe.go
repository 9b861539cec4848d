package main

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/santa-scope/pkg/canvas"
	"github.com/unklstewy/santa-scope/pkg/scene"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

// GlobeView is a custom tview primitive that draws the latest frame as
// braille dots with tcell.
type GlobeView struct {
	*tview.Box
	engine *tracker.Engine

	mu     sync.Mutex
	frame  scene.Scene
	ready  bool
	raster *canvas.Braille
	cols   int
	rows   int

	dragging bool
}

// Cell styles by topmost layer.
var layerStyles = map[canvas.Layer]tcell.Style{
	canvas.LayerNone:    tcell.StyleDefault,
	canvas.LayerLimb:    tcell.StyleDefault.Foreground(tcell.ColorGray),
	canvas.LayerLand:    tcell.StyleDefault.Foreground(tcell.ColorCadetBlue),
	canvas.LayerFuture:  tcell.StyleDefault.Foreground(tcell.ColorOlive),
	canvas.LayerVisited: tcell.StyleDefault.Foreground(tcell.ColorGold).Bold(true),
	canvas.LayerPulse:   tcell.StyleDefault.Foreground(tcell.ColorIndianRed),
	canvas.LayerMarker:  tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
}

// oceanColor fills cells on the globe disc.
var oceanColor = tcell.NewRGBColor(0x1e, 0x29, 0x3b)

// NewGlobeView creates the globe panel.
func NewGlobeView(engine *tracker.Engine) *GlobeView {
	gv := &GlobeView{
		Box:    tview.NewBox(),
		engine: engine,
	}
	gv.SetBorder(true).SetTitle(" 🎅 Santa Tracker ")
	return gv
}

// SetFrame stores the frame to draw next.
func (gv *GlobeView) SetFrame(sc scene.Scene) {
	gv.mu.Lock()
	defer gv.mu.Unlock()
	gv.frame = sc
	gv.ready = true
}

// fit resizes the raster and camera to the inner rectangle.
func (gv *GlobeView) fit(cols, rows int) {
	if cols == gv.cols && rows == gv.rows && gv.raster != nil {
		return
	}
	gv.cols, gv.rows = cols, rows
	gv.raster = canvas.NewBraille(cols, rows)
	gv.engine.State().Resize(float64(cols*canvas.DotsX), float64(rows*canvas.DotsY))
	// The stored frame was built for the old size
	gv.ready = false
}

// Draw renders the globe using tcell
func (gv *GlobeView) Draw(screen tcell.Screen) {
	gv.Box.DrawForSubclass(screen, gv)
	x, y, width, height := gv.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}

	gv.mu.Lock()
	defer gv.mu.Unlock()

	gv.fit(width, height)
	if !gv.ready {
		tview.Print(screen, "Loading the globe...", x, y+height/2, width, tview.AlignCenter, tcell.ColorGray)
		return
	}

	gv.raster.Draw(gv.frame)
	for row := 0; row < gv.rows; row++ {
		for col := 0; col < gv.cols; col++ {
			c := gv.raster.Cell(col, row)
			style := layerStyles[c.Layer]
			if c.Inside {
				style = style.Background(oceanColor)
			}
			screen.SetContent(x+col, y+row, c.Rune, nil, style)
		}
	}
}

// pointer converts a tview mouse action at screen position (sx, sy) into a
// pointer event in canvas dots.
func (gv *GlobeView) pointer(action tview.MouseAction, sx, sy int) (tracker.PointerEvent, bool) {
	x, y, _, _ := gv.GetInnerRect()
	ev := tracker.PointerEvent{
		X: float64((sx-x)*canvas.DotsX + canvas.DotsX/2),
		Y: float64((sy-y)*canvas.DotsY + canvas.DotsY/2),
	}
	switch action {
	case tview.MouseLeftDown:
		ev.Kind, ev.Button = tracker.PointerDown, tracker.ButtonPrimary
	case tview.MouseMove:
		ev.Kind = tracker.PointerMove
	case tview.MouseLeftUp:
		ev.Kind = tracker.PointerUp
	case tview.MouseScrollUp:
		ev.Kind, ev.Notches = tracker.Wheel, 1
	case tview.MouseScrollDown:
		ev.Kind, ev.Notches = tracker.Wheel, -1
	default:
		return ev, false
	}
	return ev, true
}

// MouseHandler drags and zooms the globe. A drag keeps the mouse captured
// until the button is released.
func (gv *GlobeView) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return gv.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
		sx, sy := event.Position()
		switch action {
		case tview.MouseMove, tview.MouseLeftUp:
			if !gv.dragging {
				return false, nil
			}
		default:
			if !gv.InRect(sx, sy) {
				return false, nil
			}
		}
		ev, ok := gv.pointer(action, sx, sy)
		if !ok {
			return false, nil
		}
		gv.engine.Controller().HandlePointer(ev)

		switch action {
		case tview.MouseLeftDown:
			gv.dragging = true
			setFocus(gv)
			return true, gv
		case tview.MouseMove:
			return true, gv
		case tview.MouseLeftUp:
			gv.dragging = false
		}
		return true, nil
	})
}
