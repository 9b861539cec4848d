package scene

import (
	"math"
	"time"
)

// PulseFrame is the radar ring at one instant.
type PulseFrame struct {
	Radius      float64 `json:"radius"`
	Opacity     float64 `json:"opacity"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Pulse is the expanding ring drawn around the marker. It loops forever and
// depends only on elapsed time, so it keeps running while the marker is
// hidden.
type Pulse struct {
	Period time.Duration

	StartRadius, EndRadius   float64
	StartOpacity, EndOpacity float64
	StartStroke, EndStroke   float64

	origin time.Time
}

// NewPulse returns the standard 1.5 second ring starting at origin.
func NewPulse(origin time.Time) Pulse {
	return Pulse{
		Period:       1500 * time.Millisecond,
		StartRadius:  6,
		EndRadius:    25,
		StartOpacity: 0.8,
		EndOpacity:   0,
		StartStroke:  2,
		EndStroke:    0,
		origin:       origin,
	}
}

// Progress returns the position within the current cycle in [0, 1).
func (p Pulse) Progress(now time.Time) float64 {
	if p.Period <= 0 {
		return 0
	}
	elapsed := now.Sub(p.origin)
	if elapsed < 0 {
		elapsed = 0
	}
	return float64(elapsed%p.Period) / float64(p.Period)
}

// Sample returns the ring at now.
func (p Pulse) Sample(now time.Time) PulseFrame {
	e := EaseCircleOut(p.Progress(now))
	return PulseFrame{
		Radius:      lerp(p.StartRadius, p.EndRadius, e),
		Opacity:     lerp(p.StartOpacity, p.EndOpacity, e),
		StrokeWidth: lerp(p.StartStroke, p.EndStroke, e),
	}
}

// EaseCircleOut is the circular ease-out curve sqrt(1 - (t-1)²).
func EaseCircleOut(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return math.Sqrt(1 - (t-1)*(t-1))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
