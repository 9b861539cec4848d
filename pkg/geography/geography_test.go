package geography

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Squareland"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "Islands"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[20,20],[21,20],[21,21],[20,20]]],
          [[[30,-5],[31,-5],[31,-4],[30,-5]]]
        ]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "Capital"},
      "geometry": {"type": "Point", "coordinates": [5, 5]}
    }
  ]
}`

func TestParse(t *testing.T) {
	w, err := Parse([]byte(sampleCollection))
	require.NoError(t, err)

	assert.Equal(t, 3, w.Features)
	require.Len(t, w.Rings, 3)
	assert.Len(t, w.Rings[0], 5)

	// Positions are [lng, lat]
	assert.Equal(t, 0.0, w.Rings[0][1].Latitude)
	assert.Equal(t, 10.0, w.Rings[0][1].Longitude)
	assert.Equal(t, -5.0, w.Rings[2][0].Latitude)
	assert.Equal(t, 30.0, w.Rings[2][0].Longitude)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	var nilWorld *World
	assert.True(t, nilWorld.IsEmpty())
}

func TestLoaderFetchAndCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleCollection))
	}))
	defer server.Close()

	cache := filepath.Join(t.TempDir(), "cache", "world.geojson")
	loader := NewLoader(Config{URL: server.URL, CachePath: cache, CacheTTL: time.Hour}, zerolog.Nop())

	w := loader.Load(context.Background())
	assert.Len(t, w.Rings, 3)
	assert.Equal(t, int32(1), hits.Load())

	_, err := os.Stat(cache)
	require.NoError(t, err, "cache file should be written")

	// Fresh cache: no second download
	w = loader.Load(context.Background())
	assert.Len(t, w.Rings, 3)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLoaderFallsBackToStaleCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cache := filepath.Join(t.TempDir(), "world.geojson")
	require.NoError(t, os.WriteFile(cache, []byte(sampleCollection), 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(cache, old, old))

	loader := NewLoader(Config{URL: server.URL, CachePath: cache, CacheTTL: time.Hour}, zerolog.Nop())
	w, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, w.Rings, 3)
}

func TestLoaderFailureYieldsEmptyWorld(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	loader := NewLoader(Config{URL: server.URL}, zerolog.Nop())

	_, err := loader.Fetch(context.Background())
	assert.Error(t, err)

	w := loader.Load(context.Background())
	require.NotNil(t, w)
	assert.True(t, w.IsEmpty())
}

func TestLoaderLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0644))

	loader := NewLoader(Config{URL: "http://127.0.0.1:1/unused", LocalPath: path}, zerolog.Nop())
	w, err := loader.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, w.Rings, 3)
}
