package tracker

import (
	"github.com/unklstewy/santa-scope/pkg/coordinates"
	"github.com/unklstewy/santa-scope/pkg/projection"
)

// DefaultEase is the fraction of the remaining rotation covered per frame.
const DefaultEase = 0.05

// Autopilot eases the camera toward the current waypoint once per frame.
type Autopilot struct {
	// Alpha is the ease factor in (0, 1]
	Alpha float64
}

// Tick moves the camera a fraction of the way toward the rotation that
// centres the current waypoint. It does nothing in manual mode or when the
// route is empty, and reports whether the camera was changed.
//
// Longitude is approached the short way round, so a camera left spinning by
// a drag does not unwind whole turns.
func (a Autopilot) Tick(s *State) bool {
	alpha := a.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultEase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.follow != Following {
		return false
	}
	wp, ok := s.route.At(s.index)
	if !ok {
		return false
	}

	target := projection.Target(wp.Lat, wp.Lng)
	rot := s.camera.Rotation()
	rot.Lambda += coordinates.WrapDelta(rot.Lambda, target.Lambda) * alpha
	rot.Phi += (target.Phi - rot.Phi) * alpha
	rot.Gamma -= rot.Gamma * alpha
	s.camera.SetRotation(rot)
	return true
}

// RotationError returns how far the rotation is from a target in degrees,
// summed over the longitude (short way round) and latitude axes.
func RotationError(rot, target projection.Rotation) float64 {
	dl := coordinates.WrapDelta(rot.Lambda, target.Lambda)
	dp := target.Phi - rot.Phi
	if dl < 0 {
		dl = -dl
	}
	if dp < 0 {
		dp = -dp
	}
	return dl + dp
}
