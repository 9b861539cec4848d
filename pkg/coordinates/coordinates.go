package coordinates

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad).
func (g Geographic) ToRadians() (float64, float64) {
	return g.Latitude * DegreesToRadians, g.Longitude * DegreesToRadians
}

// LatLng returns the s2 representation of the position.
func (g Geographic) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(g.Latitude, g.Longitude)
}

// Point returns the position as a unit vector on the sphere.
func (g Geographic) Point() s2.Point {
	return s2.PointFromLatLng(g.LatLng())
}

// FromPoint converts a unit vector back to geographic degrees.
func FromPoint(p s2.Point) Geographic {
	ll := s2.LatLngFromPoint(p)
	return Geographic{
		Latitude:  ll.Lat.Degrees(),
		Longitude: ll.Lng.Degrees(),
	}
}

// NormalizeLongitude wraps a longitude into the range (-180, 180].
func NormalizeLongitude(lng float64) float64 {
	l := math.Mod(lng, 360.0)
	if l <= -180.0 {
		l += 360.0
	} else if l > 180.0 {
		l -= 360.0
	}
	return l
}

// WrapDelta returns the signed angular step from one longitude (or any
// periodic angle in degrees) to another, taking the short way round.
// The result lies in (-180, 180].
func WrapDelta(from, to float64) float64 {
	return NormalizeLongitude(to - from)
}

// AngularDistance returns the central angle between two positions in degrees.
func AngularDistance(from, to Geographic) float64 {
	return from.LatLng().Distance(to.LatLng()).Degrees()
}

// DistanceKm calculates the great-circle distance between two points.
// Uses the Haversine formula for accuracy over short and long distances.
func DistanceKm(from, to Geographic) float64 {
	lat1Rad, lon1Rad := from.ToRadians()
	lat2Rad, lon2Rad := to.ToRadians()

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1 := from.ToRadians()
	lat2, lon2 := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	// Normalize to 0-360
	if bearing < 0 {
		bearing += 360
	}

	return bearing
}

// InterpolateGreatCircle finds a point along the great circle between two positions.
// fraction=0 returns from, fraction=1 returns to.
func InterpolateGreatCircle(from, to Geographic, fraction float64) Geographic {
	if fraction <= 0 {
		return from
	}
	if fraction >= 1 {
		return to
	}
	return FromPoint(s2.Interpolate(fraction, from.Point(), to.Point()))
}

// Densify returns the great-circle path from one position to another as a
// polyline whose consecutive points are at most maxStep degrees apart.
// Both endpoints are included.
func Densify(from, to Geographic, maxStep float64) []Geographic {
	a, b := from.Point(), to.Point()
	d := a.Distance(b)
	steps := 1
	if maxStep > 0 {
		steps = int(math.Ceil(d.Degrees() / maxStep))
		if steps < 1 {
			steps = 1
		}
	}

	out := make([]Geographic, 0, steps+1)
	out = append(out, from)
	for i := 1; i < steps; i++ {
		out = append(out, FromPoint(s2.Interpolate(float64(i)/float64(steps), a, b)))
	}
	return append(out, to)
}
