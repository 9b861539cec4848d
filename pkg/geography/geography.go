// Package geography loads the world landmass outlines drawn under the route.
//
// The data is a GeoJSON FeatureCollection of country polygons. It is fetched
// once at startup, cached on disk and treated as immutable afterwards. Any
// failure degrades to an empty world so the globe still renders.
package geography

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/rs/zerolog"

	"github.com/unklstewy/santa-scope/pkg/coordinates"
)

// DefaultURL is the public world outline dataset.
const DefaultURL = "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson"

// Ring is a closed polygon boundary.
type Ring []coordinates.Geographic

// World is an immutable set of landmass boundaries.
type World struct {
	// Rings holds every outer and inner polygon ring
	Rings []Ring

	// Features is the number of features read from the source
	Features int
}

// Empty returns a world with no land.
func Empty() *World {
	return &World{}
}

// IsEmpty reports whether the world has no rings.
func (w *World) IsEmpty() bool {
	return w == nil || len(w.Rings) == 0
}

// Parse decodes a GeoJSON FeatureCollection. Polygon and MultiPolygon
// geometries are kept; everything else is ignored.
func Parse(data []byte) (*World, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	w := &World{Features: len(fc.Features)}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch {
		case f.Geometry.IsPolygon():
			w.addPolygon(f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				w.addPolygon(poly)
			}
		}
	}
	return w, nil
}

func (w *World) addPolygon(poly [][][]float64) {
	for _, ring := range poly {
		r := make(Ring, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			// GeoJSON positions are [longitude, latitude]
			r = append(r, coordinates.Geographic{Latitude: pt[1], Longitude: pt[0]})
		}
		if len(r) >= 2 {
			w.Rings = append(w.Rings, r)
		}
	}
}

// Config controls where the outlines come from.
type Config struct {
	// URL is the remote GeoJSON source
	URL string

	// LocalPath, when set, is read instead of fetching URL
	LocalPath string

	// CachePath stores the last successful download (empty disables caching)
	CachePath string

	// CacheTTL is how long a cached copy is used without refetching (0 = forever)
	CacheTTL time.Duration

	// Timeout bounds the download
	Timeout time.Duration
}

// Loader fetches and decodes world outlines.
type Loader struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(cfg Config, logger zerolog.Logger) *Loader {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Loader{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "geography").Logger(),
	}
}

// Load returns the world outlines, never failing: on any error a warning is
// logged and an empty world is returned.
func (l *Loader) Load(ctx context.Context) *World {
	w, err := l.Fetch(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("world outlines unavailable, drawing ocean only")
		return Empty()
	}
	l.logger.Info().Int("features", w.Features).Int("rings", len(w.Rings)).Msg("loaded world outlines")
	return w
}

// Fetch loads the outlines from the local file, a fresh cache or the network,
// in that order. A stale cache is used when the download fails.
func (l *Loader) Fetch(ctx context.Context) (*World, error) {
	if l.cfg.LocalPath != "" {
		data, err := os.ReadFile(l.cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read geography file: %w", err)
		}
		return Parse(data)
	}

	cached, fresh := l.readCache()
	if cached != nil && fresh {
		if w, err := Parse(cached); err == nil {
			return w, nil
		}
	}

	data, err := l.download(ctx)
	if err != nil {
		if cached != nil {
			l.logger.Warn().Err(err).Msg("download failed, using stale cache")
			return Parse(cached)
		}
		return nil, err
	}

	w, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l.writeCache(data)
	return w, nil
}

func (l *Loader) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch geography: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geography source returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geography body: %w", err)
	}
	return data, nil
}

func (l *Loader) readCache() ([]byte, bool) {
	if l.cfg.CachePath == "" {
		return nil, false
	}
	info, err := os.Stat(l.cfg.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Debug().Err(err).Msg("cannot stat geography cache")
		}
		return nil, false
	}
	data, err := os.ReadFile(l.cfg.CachePath)
	if err != nil {
		return nil, false
	}
	fresh := l.cfg.CacheTTL <= 0 || time.Since(info.ModTime()) < l.cfg.CacheTTL
	return data, fresh
}

func (l *Loader) writeCache(data []byte) {
	if l.cfg.CachePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.cfg.CachePath), 0755); err != nil {
		l.logger.Warn().Err(err).Msg("failed to create geography cache directory")
		return
	}
	if err := os.WriteFile(l.cfg.CachePath, data, 0644); err != nil {
		l.logger.Warn().Err(err).Msg("failed to write geography cache")
	}
}
