// Package projection implements the orthographic globe camera.
//
// The camera follows the d3-geo conventions: rotation is a triple
// (λ, φ, γ) in degrees applied as a longitude shift followed by rotations
// about the y and x axes, scale is the sphere radius in canvas units and
// the translation places the sphere centre. Only the hemisphere facing the
// viewer is projected (clip angle 90°).
package projection

import (
	"math"

	"github.com/unklstewy/santa-scope/pkg/coordinates"
)

// ClipAngle is the fixed angular radius of the visible cap in degrees.
const ClipAngle = 90.0

// Rotation is the camera rotation in degrees.
type Rotation struct {
	Lambda float64 `json:"lambda"`
	Phi    float64 `json:"phi"`
	Gamma  float64 `json:"gamma"`
}

// Point is a position in canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the complete camera state. The projection is a pure function of it.
type State struct {
	Rotation    Rotation `json:"rotation"`
	Scale       float64  `json:"scale"`
	Translation Point    `json:"translation"`
	MinScale    float64  `json:"min_scale"`
	MaxScale    float64  `json:"max_scale"`
}

// Bounds describes the scale range for a viewport.
type Bounds struct {
	Initial float64
	Min     float64
	Max     float64
}

// Reference scale range at ReferenceHeight canvas units.
const (
	ReferenceHeight   = 600.0
	ReferenceMinScale = 200.0
	ReferenceMaxScale = 5000.0
)

// BoundsForViewport returns the initial scale and zoom range for a canvas.
// The initial radius fills most of the shorter side; the limits scale with
// the viewport from the 600-unit reference.
func BoundsForViewport(width, height float64) Bounds {
	side := math.Min(width, height)
	if side <= 0 {
		side = ReferenceHeight
	}
	f := side / ReferenceHeight
	return Bounds{
		Initial: side / 2.2,
		Min:     ReferenceMinScale * f,
		Max:     ReferenceMaxScale * f,
	}
}

// Camera wraps an orthographic projection with mutable state.
// Camera is not safe for concurrent use; the tracker serialises access.
type Camera struct {
	state State
}

// NewCamera creates a camera sized for the given canvas, centred on it and
// looking at (0, 0).
func NewCamera(width, height float64) *Camera {
	b := BoundsForViewport(width, height)
	return &Camera{state: State{
		Scale:       b.Initial,
		Translation: Point{X: width / 2, Y: height / 2},
		MinScale:    b.Min,
		MaxScale:    b.Max,
	}}
}

// FromState creates a camera from a saved state. Scale is clamped.
func FromState(s State) *Camera {
	c := &Camera{state: s}
	c.SetScale(s.Scale)
	return c
}

// State returns a copy of the camera state.
func (c *Camera) State() State {
	return c.state
}

// Rotation returns the current rotation.
func (c *Camera) Rotation() Rotation {
	return c.state.Rotation
}

// SetRotation replaces the rotation.
func (c *Camera) SetRotation(r Rotation) {
	c.state.Rotation = r
}

// Rotate adds to the current rotation. Neither axis is wrapped or clamped.
func (c *Camera) Rotate(dLambda, dPhi float64) {
	c.state.Rotation.Lambda += dLambda
	c.state.Rotation.Phi += dPhi
}

// Scale returns the sphere radius in canvas units.
func (c *Camera) Scale() float64 {
	return c.state.Scale
}

// SetScale sets the radius, clamped to [MinScale, MaxScale].
func (c *Camera) SetScale(k float64) {
	if math.IsNaN(k) {
		return
	}
	c.state.Scale = math.Max(c.state.MinScale, math.Min(c.state.MaxScale, k))
}

// ScaleBounds returns the clamp range.
func (c *Camera) ScaleBounds() (float64, float64) {
	return c.state.MinScale, c.state.MaxScale
}

// Resize re-centres the globe on a new canvas and rescales the zoom range,
// keeping the current zoom level relative to the range.
func (c *Camera) Resize(width, height float64) {
	b := BoundsForViewport(width, height)
	rel := 1.0
	if c.state.MinScale > 0 {
		rel = c.state.Scale / c.state.MinScale
	}
	c.state.MinScale, c.state.MaxScale = b.Min, b.Max
	c.state.Translation = Point{X: width / 2, Y: height / 2}
	c.SetScale(b.Min * rel)
}

// Center returns the canvas position of the globe centre.
func (c *Camera) Center() Point {
	return c.state.Translation
}

// Project maps a geographic position to canvas space. It returns false when
// the position lies on the far hemisphere.
func (c *Camera) Project(lat, lng float64) (Point, bool) {
	return c.state.Project(lat, lng)
}

// rotate applies the camera rotation to a geographic position and returns
// the rotated latitude and longitude in radians.
func (s State) rotate(lat, lng float64) (float64, float64) {
	lambda := (lng + s.Rotation.Lambda) * coordinates.DegreesToRadians
	phi := lat * coordinates.DegreesToRadians

	dPhi := s.Rotation.Phi * coordinates.DegreesToRadians
	dGamma := s.Rotation.Gamma * coordinates.DegreesToRadians
	cosDPhi, sinDPhi := math.Cos(dPhi), math.Sin(dPhi)
	cosDGamma, sinDGamma := math.Cos(dGamma), math.Sin(dGamma)

	cosPhi := math.Cos(phi)
	x := math.Cos(lambda) * cosPhi
	y := math.Sin(lambda) * cosPhi
	z := math.Sin(phi)
	k := z*cosDPhi + x*sinDPhi

	outLambda := math.Atan2(y*cosDGamma-k*sinDGamma, x*cosDPhi-z*sinDPhi)
	sinOut := k*cosDGamma + y*sinDGamma
	outPhi := math.Asin(math.Max(-1, math.Min(1, sinOut)))
	return outPhi, outLambda
}

// Project maps a geographic position through this state.
func (s State) Project(lat, lng float64) (Point, bool) {
	phi, lambda := s.rotate(lat, lng)
	cosPhi := math.Cos(phi)
	if math.Cos(lambda)*cosPhi <= 0 {
		return Point{}, false
	}
	return Point{
		X: s.Translation.X + s.Scale*cosPhi*math.Sin(lambda),
		Y: s.Translation.Y - s.Scale*math.Sin(phi),
	}, true
}

// Visible reports whether a geographic position is on the near hemisphere.
func (s State) Visible(lat, lng float64) bool {
	phi, lambda := s.rotate(lat, lng)
	return math.Cos(lambda)*math.Cos(phi) > 0
}

// Target returns the rotation that centres a position on screen.
func Target(lat, lng float64) Rotation {
	return Rotation{Lambda: -lng, Phi: -lat}
}
