// Package scene derives the screen-space geometry of one animation frame:
// the ocean disc, land outlines, the visited and future route trails and the
// sleigh marker with its radar pulse.
//
// A scene is rebuilt from scratch every frame because every projected
// coordinate depends on the camera, which moves continuously.
package scene

import (
	"math"
	"sync"
	"time"

	"github.com/unklstewy/santa-scope/pkg/coordinates"
	"github.com/unklstewy/santa-scope/pkg/geography"
	"github.com/unklstewy/santa-scope/pkg/projection"
	"github.com/unklstewy/santa-scope/pkg/route"
)

// Path is a projected polyline.
type Path []projection.Point

// Style describes how a layer is stroked.
type Style struct {
	Color   string    `json:"color"`
	Fill    string    `json:"fill,omitempty"`
	Width   float64   `json:"width"`
	Opacity float64   `json:"opacity"`
	Dash    []float64 `json:"dash,omitempty"`
	Glow    bool      `json:"glow,omitempty"`
}

// Layer styles.
var (
	OceanStyle   = Style{Fill: "#1e293b", Opacity: 1}
	LandStyle    = Style{Color: "#475569", Fill: "#334155", Width: 0.5, Opacity: 1}
	FutureStyle  = Style{Color: "#fbbf24", Width: 1, Opacity: 0.3, Dash: []float64{4, 4}}
	VisitedStyle = Style{Color: "#fcd34d", Width: 2.5, Opacity: 0.9, Glow: true}
	MarkerStyle  = Style{Color: "#ffffff", Fill: "#dc2626", Width: 2, Opacity: 1}
	PulseStyle   = Style{Color: "#ef4444", Width: 2, Opacity: 0.8}
)

// MarkerLabel is drawn above the marker.
const MarkerLabel = "🎅"

// Layer is a set of paths drawn with one style.
type Layer struct {
	Paths []Path `json:"paths"`
	Style Style  `json:"style"`

	// Fills are closed outlines painted with Style.Fill. Only land has them.
	Fills []Path `json:"fills,omitempty"`
}

// Marker is the sleigh position for the frame.
type Marker struct {
	Position projection.Point `json:"position"`
	Visible  bool             `json:"visible"`
	Opacity  float64          `json:"opacity"`
	Label    string           `json:"label"`
	Name     string           `json:"name"`
	Pulse    PulseFrame       `json:"pulse"`
}

// Scene is the geometry of one frame.
type Scene struct {
	Center  projection.Point `json:"center"`
	Radius  float64          `json:"radius"`
	Land    Layer            `json:"land"`
	Visited Layer            `json:"visited"`
	Future  Layer            `json:"future"`
	Marker  Marker           `json:"marker"`
	At      time.Time        `json:"at"`
}

// Resampling steps in degrees.
const (
	RouteStep = 2.0
	LandStep  = 4.0
)

// Builder turns camera state and route position into scenes.
// It is safe for concurrent use.
type Builder struct {
	mu    sync.RWMutex
	land  []geography.Ring
	pulse Pulse
}

// NewBuilder creates a builder for the given world. The pulse animation
// starts at origin.
func NewBuilder(world *geography.World, origin time.Time) *Builder {
	b := &Builder{pulse: NewPulse(origin)}
	b.SetWorld(world)
	return b
}

// SetWorld replaces the land outlines. Long ring edges are resampled once
// here so they bend with the globe.
func (b *Builder) SetWorld(world *geography.World) {
	var rings []geography.Ring
	if !world.IsEmpty() {
		rings = make([]geography.Ring, 0, len(world.Rings))
		for _, ring := range world.Rings {
			rings = append(rings, densifyRing(ring, LandStep))
		}
	}
	b.mu.Lock()
	b.land = rings
	b.mu.Unlock()
}

// Pulse returns the marker pulse animation.
func (b *Builder) Pulse() Pulse {
	return b.pulse
}

// Build projects everything for one frame.
func (b *Builder) Build(cam projection.State, r route.Route, index int, now time.Time) Scene {
	sc := Scene{
		Center: cam.Translation,
		Radius: cam.Scale,
		At:     now,
	}

	b.mu.RLock()
	land := b.land
	b.mu.RUnlock()

	sc.Land.Style = LandStyle
	for _, ring := range land {
		runs := ProjectLine(cam, ring)
		sc.Land.Paths = append(sc.Land.Paths, runs...)
		if fill := closeRuns(cam, runs); fill != nil {
			sc.Land.Fills = append(sc.Land.Fills, fill)
		}
	}

	visited, future := r.Segments(index)
	sc.Visited = Layer{Paths: RoutePaths(cam, visited), Style: VisitedStyle}
	sc.Future = Layer{Paths: RoutePaths(cam, future), Style: FutureStyle}

	sc.Marker = b.marker(cam, r, index, now)
	return sc
}

func (b *Builder) marker(cam projection.State, r route.Route, index int, now time.Time) Marker {
	m := Marker{
		Label: MarkerLabel,
		Pulse: b.pulse.Sample(now),
	}
	wp, ok := r.At(index)
	if !ok {
		return m
	}
	m.Name = wp.Name
	m.Position, m.Visible = MarkerVisible(cam, wp.Lat, wp.Lng)
	if m.Visible {
		m.Opacity = 1
	}
	return m
}

// MarkerVisible projects a position and applies the occlusion test: the
// marker is hidden when the projection clips it or when it lands outside
// the globe disc.
func MarkerVisible(cam projection.State, lat, lng float64) (projection.Point, bool) {
	p, ok := cam.Project(lat, lng)
	if !ok {
		return projection.Point{}, false
	}
	dx := p.X - cam.Translation.X
	dy := p.Y - cam.Translation.Y
	if dx*dx+dy*dy > cam.Scale*cam.Scale {
		return p, false
	}
	return p, true
}

// RoutePaths resamples a route segment along great circles and projects it.
// Segments with fewer than two waypoints produce no paths.
func RoutePaths(cam projection.State, seg []route.Waypoint) []Path {
	if !route.HasLine(seg) {
		return nil
	}
	pts := []coordinates.Geographic{seg[0].Geographic()}
	for i := 1; i < len(seg); i++ {
		leg := coordinates.Densify(seg[i-1].Geographic(), seg[i].Geographic(), RouteStep)
		pts = append(pts, leg[1:]...)
	}
	return ProjectLine(cam, pts)
}

// ProjectLine projects a polyline, splitting it where it passes behind the
// globe. Each visible run is extended to the horizon so lines meet the limb
// instead of stopping short of it.
func ProjectLine(cam projection.State, pts []coordinates.Geographic) []Path {
	var (
		paths   []Path
		current Path
	)
	flush := func() {
		if len(current) >= 2 {
			paths = append(paths, current)
		}
		current = nil
	}

	prevVisible := false
	for i, pt := range pts {
		p, visible := cam.Project(pt.Latitude, pt.Longitude)
		switch {
		case visible && prevVisible:
			current = append(current, p)
		case visible && !prevVisible:
			if i > 0 {
				edge := horizon(cam, pt, pts[i-1])
				if e, ok := cam.Project(edge.Latitude, edge.Longitude); ok {
					current = append(current, e)
				}
			}
			current = append(current, p)
		case !visible && prevVisible:
			edge := horizon(cam, pts[i-1], pt)
			if e, ok := cam.Project(edge.Latitude, edge.Longitude); ok {
				current = append(current, e)
			}
			flush()
		}
		prevVisible = visible
	}
	flush()
	return paths
}

// FillRing projects a closed ring as a fillable outline. Where the ring
// passes behind the globe its visible runs are joined along the limb. A
// ring entirely on the far side returns nil.
func FillRing(cam projection.State, ring []coordinates.Geographic) Path {
	return closeRuns(cam, ProjectLine(cam, ring))
}

func closeRuns(cam projection.State, runs []Path) Path {
	if len(runs) == 0 {
		return nil
	}
	var out Path
	for i, run := range runs {
		out = append(out, run...)
		next := runs[(i+1)%len(runs)]
		out = append(out, limbArc(cam, run[len(run)-1], next[0])...)
	}
	return out
}

// limbArcStep is the angular spacing of points inserted along the limb.
const limbArcStep = 5 * math.Pi / 180

// limbArc returns the points strictly between from and to along the
// shorter arc of the globe outline.
func limbArc(cam projection.State, from, to projection.Point) []projection.Point {
	c := cam.Translation
	a0 := math.Atan2(from.Y-c.Y, from.X-c.X)
	a1 := math.Atan2(to.Y-c.Y, to.X-c.X)
	d := math.Remainder(a1-a0, 2*math.Pi)
	if math.Abs(d) < 1e-9 {
		return nil
	}
	steps := int(math.Ceil(math.Abs(d) / limbArcStep))
	pts := make([]projection.Point, 0, steps-1)
	for j := 1; j < steps; j++ {
		a := a0 + d*float64(j)/float64(steps)
		pts = append(pts, projection.Point{
			X: c.X + cam.Scale*math.Cos(a),
			Y: c.Y + cam.Scale*math.Sin(a),
		})
	}
	return pts
}

// horizon bisects the great circle between a visible and a hidden position
// and returns the last visible point.
func horizon(cam projection.State, visible, hidden coordinates.Geographic) coordinates.Geographic {
	lo, hi := 0.0, 1.0
	for i := 0; i < 16; i++ {
		mid := (lo + hi) / 2
		p := coordinates.InterpolateGreatCircle(visible, hidden, mid)
		if cam.Visible(p.Latitude, p.Longitude) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return coordinates.InterpolateGreatCircle(visible, hidden, lo)
}

func densifyRing(ring geography.Ring, step float64) geography.Ring {
	if len(ring) < 2 {
		return ring
	}
	out := geography.Ring{ring[0]}
	for i := 1; i < len(ring); i++ {
		if coordinates.AngularDistance(ring[i-1], ring[i]) <= step {
			out = append(out, ring[i])
			continue
		}
		leg := coordinates.Densify(ring[i-1], ring[i], step)
		out = append(out, leg[1:]...)
	}
	return out
}
