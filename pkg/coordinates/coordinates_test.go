package coordinates

import (
	"math"
	"testing"
)

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0.0, 0.0},
		{179.0, 179.0},
		{180.0, 180.0},
		{-180.0, 180.0},
		{181.0, -179.0},
		{-181.0, 179.0},
		{360.0, 0.0},
		{540.0, 180.0},
		{-725.0, -5.0},
	}

	for _, tt := range tests {
		got := NormalizeLongitude(tt.input)
		if math.Abs(got-tt.want) > 0.0001 {
			t.Errorf("NormalizeLongitude(%.1f) = %.1f, want %.1f", tt.input, got, tt.want)
		}
	}
}

func TestWrapDelta(t *testing.T) {
	tests := []struct {
		name     string
		from, to float64
		want     float64
	}{
		{"small eastward step", 10, 20, 10},
		{"small westward step", 20, 10, -10},
		{"across the antimeridian east", 170, -170, 20},
		{"across the antimeridian west", -170, 170, -20},
		{"accumulated rotation", 725, 0, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapDelta(tt.from, tt.to)
			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("WrapDelta(%.1f, %.1f) = %.4f, want %.4f", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAngularDistance(t *testing.T) {
	a := Geographic{Latitude: 0, Longitude: 0}
	b := Geographic{Latitude: 0, Longitude: 90}
	pole := Geographic{Latitude: 90, Longitude: 0}

	if got := AngularDistance(a, b); math.Abs(got-90) > 1e-9 {
		t.Errorf("Expected 90 degrees along the equator, got %f", got)
	}
	if got := AngularDistance(a, pole); math.Abs(got-90) > 1e-9 {
		t.Errorf("Expected 90 degrees to the pole, got %f", got)
	}
	if got := AngularDistance(a, a); got != 0 {
		t.Errorf("Expected 0 for identical points, got %f", got)
	}
}

func TestDistanceKm(t *testing.T) {
	london := Geographic{Latitude: 51.5074, Longitude: -0.1278}
	paris := Geographic{Latitude: 48.8566, Longitude: 2.3522}

	got := DistanceKm(london, paris)
	// Roughly 344 km
	if got < 330 || got > 355 {
		t.Errorf("London to Paris = %.1f km, want ~344 km", got)
	}

	quarter := DistanceKm(Geographic{}, Geographic{Longitude: 90})
	want := EarthRadiusKm * math.Pi / 2
	if math.Abs(quarter-want) > 0.001 {
		t.Errorf("Quarter circumference = %f, want %f", quarter, want)
	}
}

func TestBearing(t *testing.T) {
	origin := Geographic{}
	tests := []struct {
		name string
		to   Geographic
		want float64
	}{
		{"north", Geographic{Latitude: 10}, 0},
		{"east", Geographic{Longitude: 10}, 90},
		{"south", Geographic{Latitude: -10}, 180},
		{"west", Geographic{Longitude: -10}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Bearing = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestInterpolateGreatCircle(t *testing.T) {
	a := Geographic{Latitude: 0, Longitude: 0}
	b := Geographic{Latitude: 0, Longitude: 90}

	if got := InterpolateGreatCircle(a, b, 0); got != a {
		t.Errorf("fraction 0 should return start, got %+v", got)
	}
	if got := InterpolateGreatCircle(a, b, 1); got != b {
		t.Errorf("fraction 1 should return end, got %+v", got)
	}

	mid := InterpolateGreatCircle(a, b, 0.5)
	if math.Abs(mid.Latitude) > 1e-9 || math.Abs(mid.Longitude-45) > 1e-9 {
		t.Errorf("Expected midpoint (0, 45), got (%f, %f)", mid.Latitude, mid.Longitude)
	}
}

func TestDensify(t *testing.T) {
	a := Geographic{Latitude: 0, Longitude: 0}
	b := Geographic{Latitude: 0, Longitude: 90}

	path := Densify(a, b, 4)
	if len(path) != 24 {
		t.Fatalf("Expected 24 points for 90 degrees at 4 degree steps, got %d", len(path))
	}
	if path[0] != a || path[len(path)-1] != b {
		t.Errorf("Expected endpoints to be preserved, got %+v ... %+v", path[0], path[len(path)-1])
	}
	for i := 1; i < len(path); i++ {
		if step := AngularDistance(path[i-1], path[i]); step > 4.0001 {
			t.Errorf("Step %d is %.4f degrees, want <= 4", i, step)
		}
	}

	short := Densify(a, Geographic{Latitude: 0, Longitude: 1}, 2)
	if len(short) != 2 {
		t.Errorf("Expected a short leg to keep just its endpoints, got %d points", len(short))
	}
}
