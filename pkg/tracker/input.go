package tracker

import (
	"math"
	"sync"

	"github.com/unklstewy/santa-scope/pkg/projection"
)

// PointerKind classifies a pointer event from the host surface.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	Wheel
	TouchStart
	TouchMove
	TouchEnd
)

// Button identifies the mouse button of a pointer event.
type Button int

const (
	ButtonNone Button = iota
	ButtonPrimary
	ButtonSecondary
	ButtonMiddle
)

// PointerEvent is a host-agnostic pointer or touch event in canvas units.
type PointerEvent struct {
	Kind   PointerKind
	Button Button
	X, Y   float64

	// Notches is the wheel movement; positive zooms in.
	Notches float64

	// Touches is the number of active touch points.
	Touches int

	// Spread is the distance between the first two touch points.
	Spread float64
}

// ControllerConfig tunes gesture response.
type ControllerConfig struct {
	// DragSensitivity is the rotation constant; degrees per canvas unit is
	// DragSensitivity / scale.
	DragSensitivity float64

	// WheelStep is the scale factor applied per wheel notch.
	WheelStep float64
}

// DefaultControllerConfig returns the standard gesture tuning.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		DragSensitivity: 75,
		WheelStep:       1.15,
	}
}

// Controller turns gestures into camera mutations and owns the follow mode.
// Handlers never block.
type Controller struct {
	state *State
	cfg   ControllerConfig

	mu          sync.Mutex
	dragging    bool
	lastX       float64
	lastY       float64
	pinching    bool
	pinchScale  float64
	pinchSpread float64
}

// NewController creates a controller bound to the state.
func NewController(state *State, cfg ControllerConfig) *Controller {
	if cfg.DragSensitivity <= 0 {
		cfg.DragSensitivity = DefaultControllerConfig().DragSensitivity
	}
	if cfg.WheelStep <= 1 {
		cfg.WheelStep = DefaultControllerConfig().WheelStep
	}
	return &Controller{state: state, cfg: cfg}
}

// DragStart takes manual control and shows the recenter control.
func (c *Controller) DragStart() {
	c.state.setFollow(Manual)
}

// Drag rotates by a pointer delta. Horizontal movement turns longitude and
// vertical movement turns latitude with inverted sign.
func (c *Controller) Drag(dx, dy float64) {
	c.rotateBy(dx, dy)
}

// DragEnd finishes a drag. The camera stays in manual mode.
func (c *Controller) DragEnd() {}

// ZoomStart takes manual control and shows the recenter control.
func (c *Controller) ZoomStart() {
	c.state.setFollow(Manual)
}

// Zoom sets an absolute scale, clamped by the camera.
func (c *Controller) Zoom(k float64) {
	c.state.UpdateCamera(func(cam *projection.Camera) {
		cam.SetScale(k)
	})
}

// ZoomBy multiplies the current scale.
func (c *Controller) ZoomBy(factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	c.state.UpdateCamera(func(cam *projection.Camera) {
		cam.SetScale(cam.Scale() * factor)
	})
}

// ZoomEnd finishes a zoom gesture.
func (c *Controller) ZoomEnd() {}

// PinchStart records the scale at the start of a two-finger gesture.
func (c *Controller) PinchStart(spread float64) {
	c.ZoomStart()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinching = true
	c.pinchSpread = spread
	c.pinchScale = c.state.Camera().Scale
}

// Pinch applies a scale relative to the one recorded at PinchStart.
func (c *Controller) Pinch(spread float64) {
	c.mu.Lock()
	if !c.pinching || c.pinchSpread <= 0 {
		c.mu.Unlock()
		return
	}
	k := c.pinchScale * spread / c.pinchSpread
	c.mu.Unlock()
	c.Zoom(k)
}

// Recenter hands the camera back to the autopilot. The camera is not
// snapped; easing resumes from the current orientation.
func (c *Controller) Recenter() {
	c.state.setFollow(Following)
}

// Nudge is a discrete drag, used for keyboard rotation.
func (c *Controller) Nudge(dx, dy float64) {
	c.DragStart()
	c.Drag(dx, dy)
	c.DragEnd()
}

// Step is a discrete zoom, used for keyboard and wheel input.
func (c *Controller) Step(notches float64) {
	c.ZoomStart()
	c.ZoomBy(math.Pow(c.cfg.WheelStep, notches))
	c.ZoomEnd()
}

// ZoomFilter reports whether an event may start a zoom gesture. Only the
// wheel and multi-touch starts do; mouse presses of any button and single
// touches never start a zoom.
func ZoomFilter(ev PointerEvent) bool {
	switch ev.Kind {
	case TouchStart:
		return ev.Touches > 1
	case Wheel:
		return true
	}
	return false
}

// HandlePointer dispatches a raw pointer event.
func (c *Controller) HandlePointer(ev PointerEvent) {
	switch ev.Kind {
	case PointerDown:
		if ev.Button == ButtonPrimary {
			c.beginDrag(ev.X, ev.Y)
		}
	case PointerMove:
		c.moveDrag(ev.X, ev.Y)
	case PointerUp:
		c.endGesture()
	case Wheel:
		if ZoomFilter(ev) && ev.Notches != 0 {
			c.Step(ev.Notches)
		}
	case TouchStart:
		if ZoomFilter(ev) {
			c.mu.Lock()
			c.dragging = false
			c.mu.Unlock()
			c.PinchStart(ev.Spread)
			return
		}
		c.beginDrag(ev.X, ev.Y)
	case TouchMove:
		c.mu.Lock()
		pinching := c.pinching
		c.mu.Unlock()
		if pinching && ev.Touches > 1 {
			c.Pinch(ev.Spread)
			return
		}
		c.moveDrag(ev.X, ev.Y)
	case TouchEnd:
		c.endGesture()
	}
}

func (c *Controller) beginDrag(x, y float64) {
	c.mu.Lock()
	c.dragging = true
	c.lastX, c.lastY = x, y
	c.mu.Unlock()
	c.DragStart()
}

func (c *Controller) moveDrag(x, y float64) {
	c.mu.Lock()
	if !c.dragging {
		c.mu.Unlock()
		return
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	c.mu.Unlock()
	c.Drag(dx, dy)
}

func (c *Controller) endGesture() {
	c.mu.Lock()
	wasDragging, wasPinching := c.dragging, c.pinching
	c.dragging, c.pinching = false, false
	c.mu.Unlock()
	if wasDragging {
		c.DragEnd()
	}
	if wasPinching {
		c.ZoomEnd()
	}
}

func (c *Controller) rotateBy(dx, dy float64) {
	c.state.UpdateCamera(func(cam *projection.Camera) {
		k := c.cfg.DragSensitivity / cam.Scale()
		cam.Rotate(dx*k, -dy*k)
	})
}
