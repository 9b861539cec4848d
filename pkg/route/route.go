// Package route defines the sleigh's flight plan: an ordered, cyclic list of
// waypoints and the helpers that slice it into visited and future legs.
package route

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unklstewy/santa-scope/pkg/coordinates"
)

// ErrEmptyRoute is returned when a route has no waypoints.
var ErrEmptyRoute = errors.New("route has no waypoints")

// Waypoint is a named stop on the route.
type Waypoint struct {
	// Name is the display name of the stop (e.g., "Tokyo")
	Name string `json:"name" yaml:"name"`

	// Lat in decimal degrees (-90 to +90)
	Lat float64 `json:"lat" yaml:"lat"`

	// Lng in decimal degrees (-180 to +180)
	Lng float64 `json:"lng" yaml:"lng"`

	// ScheduledLabel is the scheduled arrival shown to the viewer (e.g., "04:00")
	ScheduledLabel string `json:"scheduled_label" yaml:"arrival"`
}

// Geographic returns the waypoint position.
func (w Waypoint) Geographic() coordinates.Geographic {
	return coordinates.Geographic{Latitude: w.Lat, Longitude: w.Lng}
}

// Route is the ordered sequence of waypoints, traversed cyclically.
type Route []Waypoint

// Source provides a route from some backing store.
type Source interface {
	LoadRoute(ctx context.Context) (Route, error)
}

// Validate checks that the route is non-empty and every waypoint is well formed.
func (r Route) Validate() error {
	if len(r) == 0 {
		return ErrEmptyRoute
	}
	for i, wp := range r {
		if wp.Name == "" {
			return fmt.Errorf("waypoint %d: missing name", i)
		}
		if wp.Lat < -90 || wp.Lat > 90 {
			return fmt.Errorf("waypoint %d (%s): latitude %.4f out of range", i, wp.Name, wp.Lat)
		}
		if wp.Lng < -180 || wp.Lng > 180 {
			return fmt.Errorf("waypoint %d (%s): longitude %.4f out of range", i, wp.Name, wp.Lng)
		}
	}
	return nil
}

// Next returns the index that follows i, wrapping to 0 after the last waypoint.
// An empty route always yields 0.
func (r Route) Next(i int) int {
	if len(r) == 0 {
		return 0
	}
	return (i + 1) % len(r)
}

// At returns the waypoint at index i and whether it exists.
func (r Route) At(i int) (Waypoint, bool) {
	if i < 0 || i >= len(r) {
		return Waypoint{}, false
	}
	return r[i], true
}

// Segments splits the route at the cursor index.
//
// visited holds waypoints [0..i] inclusive and future holds [i..end]
// inclusive, so the current waypoint appears in both. Out-of-range
// indices yield nil slices.
func (r Route) Segments(i int) (visited, future []Waypoint) {
	if i < 0 || i >= len(r) {
		return nil, nil
	}
	return r[:i+1], r[i:]
}

// HasLine reports whether a segment has enough points to draw a line.
func HasLine(seg []Waypoint) bool {
	return len(seg) >= 2
}

// DefaultRoute returns the built-in Christmas Eve itinerary.
// Starts at the North Pole, then Oceania, Asia, Europe, South America and North America.
func DefaultRoute() Route {
	return Route{
		{Name: "North Pole", Lat: 90, Lng: 0, ScheduledLabel: "00:00"},
		{Name: "Auckland", Lat: -36.8485, Lng: 174.7633, ScheduledLabel: "01:00"},
		{Name: "Sydney", Lat: -33.8688, Lng: 151.2093, ScheduledLabel: "02:00"},
		{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503, ScheduledLabel: "04:00"},
		{Name: "Beijing", Lat: 39.9042, Lng: 116.4074, ScheduledLabel: "05:00"},
		{Name: "Mumbai", Lat: 19.0760, Lng: 72.8777, ScheduledLabel: "07:30"},
		{Name: "Dubai", Lat: 25.2048, Lng: 55.2708, ScheduledLabel: "09:00"},
		{Name: "Moscow", Lat: 55.7558, Lng: 37.6173, ScheduledLabel: "11:00"},
		{Name: "Paris", Lat: 48.8566, Lng: 2.3522, ScheduledLabel: "13:00"},
		{Name: "London", Lat: 51.5074, Lng: -0.1278, ScheduledLabel: "13:30"},
		{Name: "Rio de Janeiro", Lat: -22.9068, Lng: -43.1729, ScheduledLabel: "16:00"},
		{Name: "New York", Lat: 40.7128, Lng: -74.0060, ScheduledLabel: "19:00"},
		{Name: "Los Angeles", Lat: 34.0522, Lng: -118.2437, ScheduledLabel: "22:00"},
		{Name: "Honolulu", Lat: 21.3069, Lng: -157.8583, ScheduledLabel: "23:30"},
	}
}

// file is the on-disk YAML layout of a route.
type file struct {
	Name      string     `yaml:"name"`
	Waypoints []Waypoint `yaml:"waypoints"`
}

// LoadFile reads and validates a YAML route file.
// Returns the route name declared in the file alongside the waypoints.
func LoadFile(path string) (string, Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read route file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("failed to parse route file: %w", err)
	}

	r := Route(f.Waypoints)
	if err := r.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid route %q: %w", path, err)
	}
	return f.Name, r, nil
}

// SaveFile writes the route as YAML.
func SaveFile(path, name string, r Route) error {
	data, err := yaml.Marshal(file{Name: name, Waypoints: r})
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write route file: %w", err)
	}
	return nil
}

// StaticSource serves a fixed in-memory route.
type StaticSource struct {
	Route Route
}

// LoadRoute returns a copy of the static route.
func (s StaticSource) LoadRoute(ctx context.Context) (Route, error) {
	if err := s.Route.Validate(); err != nil {
		return nil, err
	}
	return append(Route(nil), s.Route...), nil
}

// FileSource loads the route from a YAML file on every call.
type FileSource struct {
	Path string
}

// LoadRoute reads the route file.
func (s FileSource) LoadRoute(ctx context.Context) (Route, error) {
	_, r, err := LoadFile(s.Path)
	return r, err
}
