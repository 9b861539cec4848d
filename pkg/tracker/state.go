// Package tracker holds the live simulation: the shared state container, the
// gesture controller, the follow autopilot and the three timing domains
// (frame loop, waypoint scheduler and telemetry simulator).
package tracker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/unklstewy/santa-scope/pkg/coordinates"
	"github.com/unklstewy/santa-scope/pkg/projection"
	"github.com/unklstewy/santa-scope/pkg/route"
)

// FollowMode selects who drives the camera.
type FollowMode int

const (
	// Following lets the autopilot steer the camera toward the current waypoint.
	Following FollowMode = iota
	// Manual means the viewer has taken over with a gesture.
	Manual
)

// String returns the mode name.
func (m FollowMode) String() string {
	if m == Manual {
		return "manual"
	}
	return "following"
}

// MarshalJSON encodes the mode by name.
func (m FollowMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// InitialCaption is shown until the first status caption resolves.
const InitialCaption = "Preparing the sleigh..."

// Caption is the status line shown under the current location.
type Caption struct {
	Text       string    `json:"text"`
	Location   string    `json:"location"`
	Generation uint64    `json:"generation"`
	Fallback   bool      `json:"fallback"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TelemetrySample is one reading of the simulated flight instruments.
type TelemetrySample struct {
	SpeedKmh     float64 `json:"speed_kmh"`
	Delivered    int64   `json:"delivered"`
	TemperatureC float64 `json:"temperature_c"`
}

// State is the single source of truth shared by every timing domain.
//
// Each field has one writer: the scheduler owns the cursor and caption, the
// telemetry simulator owns the sample, the controller owns the follow mode
// and the camera is written by the controller (gestures) and the autopilot
// (frames). All access goes through the accessor methods.
type State struct {
	mu sync.RWMutex

	route           route.Route
	index           int
	camera          *projection.Camera
	follow          FollowMode
	recenterVisible bool
	caption         Caption
	telemetry       TelemetrySample
}

// NewState creates a state for the given route and camera.
func NewState(r route.Route, cam *projection.Camera, initial TelemetrySample) *State {
	return &State{
		route:     r,
		camera:    cam,
		follow:    Following,
		caption:   Caption{Text: InitialCaption},
		telemetry: initial,
	}
}

// Route returns the route. The slice must not be modified.
func (s *State) Route() route.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.route
}

// Index returns the route cursor.
func (s *State) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Current returns the waypoint under the cursor.
func (s *State) Current() (route.Waypoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.route.At(s.index)
}

// Advance moves the cursor to the next waypoint and returns it.
func (s *State) Advance() (int, route.Waypoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = s.route.Next(s.index)
	wp, ok := s.route.At(s.index)
	return s.index, wp, ok
}

// SetRoute swaps the route and resets the cursor.
func (s *State) SetRoute(r route.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = r
	s.index = 0
}

// Camera returns a copy of the camera state.
func (s *State) Camera() projection.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera.State()
}

// UpdateCamera runs fn with exclusive access to the camera.
func (s *State) UpdateCamera(fn func(cam *projection.Camera)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.camera)
}

// Resize fits the camera to a new canvas size.
func (s *State) Resize(width, height float64) {
	s.UpdateCamera(func(cam *projection.Camera) {
		cam.Resize(width, height)
	})
}

// FollowMode returns the current follow mode.
func (s *State) FollowMode() FollowMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follow
}

// RecenterVisible reports whether the recenter control should be shown.
func (s *State) RecenterVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recenterVisible
}

func (s *State) setFollow(mode FollowMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follow = mode
	s.recenterVisible = mode == Manual
}

// Caption returns the current status caption.
func (s *State) Caption() Caption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caption
}

// SetCaption replaces the caption.
func (s *State) SetCaption(c Caption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caption = c
}

// Telemetry returns the latest telemetry sample.
func (s *State) Telemetry() TelemetrySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

// SetTelemetry replaces the telemetry sample.
func (s *State) SetTelemetry(t TelemetrySample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
}

// Snapshot is a detached copy of everything a front end displays.
type Snapshot struct {
	Route           route.Route      `json:"route"`
	Index           int              `json:"index"`
	Current         *route.Waypoint  `json:"current,omitempty"`
	Next            *route.Waypoint  `json:"next,omitempty"`
	DistanceNextKm  float64          `json:"distance_next_km"`
	HeadingDeg      float64          `json:"heading_deg"`
	Camera          projection.State `json:"camera"`
	Follow          FollowMode       `json:"follow"`
	RecenterVisible bool             `json:"recenter_visible"`
	Caption         Caption          `json:"caption"`
	Telemetry       TelemetrySample  `json:"telemetry"`
	TakenAt         time.Time        `json:"taken_at"`
}

// Snapshot returns a deep copy of the observable state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Route:           s.route,
		Index:           s.index,
		Camera:          s.camera.State(),
		Follow:          s.follow,
		RecenterVisible: s.recenterVisible,
		Caption:         s.caption,
		Telemetry:       s.telemetry,
		TakenAt:         time.Now(),
	}
	if cur, ok := s.route.At(s.index); ok {
		next := s.route[s.route.Next(s.index)]
		snap.Current = &cur
		snap.Next = &next
		snap.DistanceNextKm = coordinates.DistanceKm(cur.Geographic(), next.Geographic())
		snap.HeadingDeg = coordinates.Bearing(cur.Geographic(), next.Geographic())
	}
	copied := deepcopy.Copy(snap).(Snapshot)
	s.mu.RUnlock()
	return copied
}
