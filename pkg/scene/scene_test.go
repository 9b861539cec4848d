package scene

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/santa-scope/pkg/coordinates"
	"github.com/unklstewy/santa-scope/pkg/geography"
	"github.com/unklstewy/santa-scope/pkg/projection"
	"github.com/unklstewy/santa-scope/pkg/route"
)

func testRoute() route.Route {
	return route.Route{
		{Name: "A", Lat: 0, Lng: 0},
		{Name: "B", Lat: 0, Lng: 90},
		{Name: "C", Lat: 0, Lng: 180},
	}
}

func cameraAt(lat, lng float64) projection.State {
	cam := projection.NewCamera(800, 600)
	cam.SetRotation(projection.Target(lat, lng))
	return cam.State()
}

func TestBuildRouteLayers(t *testing.T) {
	b := NewBuilder(geography.Empty(), time.Now())
	cam := cameraAt(0, 45)

	t.Run("index zero draws no visited trail", func(t *testing.T) {
		sc := b.Build(cam, testRoute(), 0, time.Now())
		assert.Empty(t, sc.Visited.Paths)
		assert.NotEmpty(t, sc.Future.Paths)
	})

	t.Run("last index draws no future trail", func(t *testing.T) {
		sc := b.Build(cam, testRoute(), 2, time.Now())
		assert.Empty(t, sc.Future.Paths)
		assert.NotEmpty(t, sc.Visited.Paths)
	})

	t.Run("styles", func(t *testing.T) {
		sc := b.Build(cam, testRoute(), 1, time.Now())
		assert.True(t, sc.Visited.Style.Glow)
		assert.Equal(t, []float64{4, 4}, sc.Future.Style.Dash)
		assert.InDelta(t, 0.3, sc.Future.Style.Opacity, 1e-9)
	})
}

func TestRoutePathsStayOnDisc(t *testing.T) {
	cam := cameraAt(20, 100)
	paths := RoutePaths(cam, route.DefaultRoute())
	require.NotEmpty(t, paths)

	for _, path := range paths {
		assert.GreaterOrEqual(t, len(path), 2)
		for _, p := range path {
			dx, dy := p.X-cam.Translation.X, p.Y-cam.Translation.Y
			assert.LessOrEqual(t, dx*dx+dy*dy, cam.Scale*cam.Scale+1e-6)
		}
	}
}

func TestProjectLineClipsAtHorizon(t *testing.T) {
	cam := cameraAt(0, 0)

	// Equator from 0 to 180: visible up to 90 degrees east
	line := coordinates.Densify(coordinates.Geographic{}, coordinates.Geographic{Longitude: 170}, 10)
	paths := ProjectLine(cam, line)
	require.Len(t, paths, 1)

	last := paths[0][len(paths[0])-1]
	assert.InDelta(t, cam.Translation.X+cam.Scale, last.X, 0.5, "line should reach the limb")
	assert.InDelta(t, cam.Translation.Y, last.Y, 1e-6)

	// Entirely on the far side
	far := coordinates.Densify(coordinates.Geographic{Longitude: 120}, coordinates.Geographic{Longitude: 170}, 10)
	assert.Empty(t, ProjectLine(cam, far))
}

func TestProjectLineSplitsRuns(t *testing.T) {
	cam := cameraAt(0, 0)
	// Out of view and back in again
	pts := []coordinates.Geographic{
		{Longitude: -60}, {Longitude: -30}, {Longitude: 0},
		{Longitude: 60}, {Longitude: 100}, {Longitude: 150},
		{Longitude: -150}, {Longitude: -100}, {Longitude: -60},
	}
	paths := ProjectLine(cam, pts)
	assert.Len(t, paths, 2)
}

func TestMarkerVisibility(t *testing.T) {
	cam := cameraAt(40, -74)

	p, visible := MarkerVisible(cam, 40, -74)
	assert.True(t, visible)
	assert.InDelta(t, cam.Translation.X, p.X, 1e-6)

	_, visible = MarkerVisible(cam, -40, 106)
	assert.False(t, visible, "antipode must be hidden")

	b := NewBuilder(geography.Empty(), time.Now())
	r := route.Route{{Name: "Far", Lat: -40, Lng: 106}}
	sc := b.Build(cam, r, 0, time.Now())
	assert.False(t, sc.Marker.Visible)
	assert.Equal(t, 0.0, sc.Marker.Opacity)
	assert.Equal(t, "Far", sc.Marker.Name)
	assert.Greater(t, sc.Marker.Pulse.Radius, 0.0, "pulse keeps running while hidden")
}

func TestLandLayer(t *testing.T) {
	world := &geography.World{Rings: []geography.Ring{
		{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 20}, {Latitude: 20, Longitude: 20}, {Latitude: 0, Longitude: 0}},
	}}
	b := NewBuilder(world, time.Now())

	sc := b.Build(cameraAt(10, 10), nil, 0, time.Now())
	require.Len(t, sc.Land.Paths, 1)
	assert.Greater(t, len(sc.Land.Paths[0]), 4, "long edges are resampled")

	sc = b.Build(cameraAt(-10, -170), nil, 0, time.Now())
	assert.Empty(t, sc.Land.Paths)
	assert.False(t, sc.Marker.Visible)

	b.SetWorld(geography.Empty())
	sc = b.Build(cameraAt(10, 10), nil, 0, time.Now())
	assert.Empty(t, sc.Land.Paths)
}

func TestFillRing(t *testing.T) {
	cam := cameraAt(0, 0)

	t.Run("visible ring stays closed", func(t *testing.T) {
		ring := []coordinates.Geographic{
			{Latitude: -10, Longitude: -10},
			{Latitude: -10, Longitude: 10},
			{Latitude: 10, Longitude: 10},
			{Latitude: 10, Longitude: -10},
			{Latitude: -10, Longitude: -10},
		}
		fill := FillRing(cam, ring)
		require.Len(t, fill, len(ring))
		assert.InDelta(t, fill[0].X, fill[len(fill)-1].X, 1e-9)
		assert.InDelta(t, fill[0].Y, fill[len(fill)-1].Y, 1e-9)
	})

	t.Run("clipped ring follows the limb", func(t *testing.T) {
		ring := []coordinates.Geographic{
			{Latitude: -10, Longitude: 80},
			{Latitude: -10, Longitude: 100},
			{Latitude: 10, Longitude: 100},
			{Latitude: 10, Longitude: 80},
			{Latitude: -10, Longitude: 80},
		}
		fill := FillRing(cam, ring)
		require.NotEmpty(t, fill)

		onLimb := 0
		for _, p := range fill {
			dx, dy := p.X-cam.Translation.X, p.Y-cam.Translation.Y
			dist := math.Sqrt(dx*dx + dy*dy)
			assert.LessOrEqual(t, dist, cam.Scale+1e-6)
			if math.Abs(dist-cam.Scale) < 0.5 {
				onLimb++
			}
		}
		// Both horizon crossings plus the arc between them
		assert.GreaterOrEqual(t, onLimb, 4)
	})

	t.Run("far side ring has no fill", func(t *testing.T) {
		ring := []coordinates.Geographic{
			{Latitude: -10, Longitude: 170},
			{Latitude: -10, Longitude: -170},
			{Latitude: 10, Longitude: -170},
			{Latitude: 10, Longitude: 170},
			{Latitude: -10, Longitude: 170},
		}
		assert.Nil(t, FillRing(cam, ring))
	})
}

func TestBuildLandFills(t *testing.T) {
	world := &geography.World{Rings: []geography.Ring{{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 10},
		{Latitude: 10, Longitude: 10},
		{Latitude: 10, Longitude: 0},
		{Latitude: 0, Longitude: 0},
	}}}
	b := NewBuilder(world, time.Now())

	sc := b.Build(cameraAt(5, 5), testRoute(), 0, time.Now())
	assert.NotEmpty(t, sc.Land.Paths)
	assert.Len(t, sc.Land.Fills, 1)

	sc = b.Build(cameraAt(-5, -175), testRoute(), 0, time.Now())
	assert.Empty(t, sc.Land.Fills)
}
