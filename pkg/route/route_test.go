package route

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStops() Route {
	return Route{
		{Name: "A", Lat: 0, Lng: 0},
		{Name: "B", Lat: 0, Lng: 90},
		{Name: "C", Lat: 0, Lng: 180},
	}
}

func TestNextWrapsAround(t *testing.T) {
	r := threeStops()

	for i0 := 0; i0 < len(r); i0++ {
		idx := i0
		for n := 1; n <= 10; n++ {
			idx = r.Next(idx)
			assert.Equal(t, (i0+n)%len(r), idx, "start %d after %d ticks", i0, n)
		}
	}

	assert.Equal(t, 0, Route(nil).Next(5))
}

func TestSegments(t *testing.T) {
	r := threeStops()

	t.Run("first waypoint has no visited line", func(t *testing.T) {
		visited, future := r.Segments(0)
		assert.Len(t, visited, 1)
		assert.False(t, HasLine(visited))
		assert.Equal(t, []Waypoint(r), future)
		assert.True(t, HasLine(future))
	})

	t.Run("middle waypoint is shared by both legs", func(t *testing.T) {
		visited, future := r.Segments(1)
		assert.Equal(t, []string{"A", "B"}, names(visited))
		assert.Equal(t, []string{"B", "C"}, names(future))
	})

	t.Run("last waypoint has a single future point", func(t *testing.T) {
		visited, future := r.Segments(2)
		assert.Len(t, visited, 3)
		require.Len(t, future, 1)
		assert.Equal(t, "C", future[0].Name)
		assert.False(t, HasLine(future))
	})

	t.Run("out of range", func(t *testing.T) {
		visited, future := r.Segments(3)
		assert.Nil(t, visited)
		assert.Nil(t, future)
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultRoute().Validate())
	assert.True(t, errors.Is(Route{}.Validate(), ErrEmptyRoute))
	assert.Error(t, Route{{Name: "", Lat: 0, Lng: 0}}.Validate())
	assert.Error(t, Route{{Name: "X", Lat: 91, Lng: 0}}.Validate())
	assert.Error(t, Route{{Name: "X", Lat: 0, Lng: -181}}.Validate())
}

func TestDefaultRoute(t *testing.T) {
	r := DefaultRoute()
	require.Len(t, r, 14)
	assert.Equal(t, "North Pole", r[0].Name)
	assert.Equal(t, 90.0, r[0].Lat)
	assert.Equal(t, "Honolulu", r[len(r)-1].Name)
	assert.Equal(t, "23:30", r[len(r)-1].ScheduledLabel)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "route.yaml")

	require.NoError(t, SaveFile(path, "test-route", threeStops()))

	name, r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "test-route", name)
	assert.Equal(t, threeStops(), r)

	src := FileSource{Path: path}
	loaded, err := src.LoadRoute(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("waypoints:\n  - { name: X, lat: 120, lng: 0 }\n"), 0644))
	_, _, err = LoadFile(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: nothing\n"), 0644))
	_, _, err = LoadFile(empty)
	assert.True(t, errors.Is(err, ErrEmptyRoute))
}

func TestLoadBundledRoute(t *testing.T) {
	name, r, err := LoadFile("../../configs/route.yaml")
	require.NoError(t, err)
	assert.Equal(t, "christmas-eve", name)
	assert.Equal(t, DefaultRoute(), r)
}

func TestStaticSourceCopies(t *testing.T) {
	src := StaticSource{Route: threeStops()}
	r, err := src.LoadRoute(context.Background())
	require.NoError(t, err)

	r[0].Name = "changed"
	assert.Equal(t, "A", src.Route[0].Name)
}

func names(seg []Waypoint) []string {
	out := make([]string, len(seg))
	for i, wp := range seg {
		out[i] = wp.Name
	}
	return out
}
