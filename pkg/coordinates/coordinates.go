package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// EarthRadiusMeters is EarthRadiusKm expressed in meters
	EarthRadiusMeters = EarthRadiusKm * 1000.0

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// KnotsToMetersPerSecond converts knots (1852 m/h) to meters per second
	KnotsToMetersPerSecond = 1852.0 / 3600.0

	// MetersPerNauticalMile is the length of one nautical mile
	MetersPerNauticalMile = 1852.0
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS), treated as a sphere of
// EarthRadiusKm for all great-circle math in this module.
type Geographic struct {
	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64

	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (lonRad, latRad).
func (g Geographic) ToRadians() (float64, float64) {
	return g.Longitude * DegreesToRadians, g.Latitude * DegreesToRadians
}

// Valid reports whether the point is a finite position inside the
// latitude/longitude ranges.
func (g Geographic) Valid() bool {
	if math.IsNaN(g.Latitude) || math.IsNaN(g.Longitude) ||
		math.IsInf(g.Latitude, 0) || math.IsInf(g.Longitude, 0) {
		return false
	}
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// NormalizeBearing ensures a compass bearing is in the range [0, 360).
func NormalizeBearing(bearing float64) float64 {
	b := math.Mod(bearing, 360.0)
	if b < 0 {
		b += 360.0
	}
	// Tiny negative inputs round up to exactly 360
	if b >= 360.0 {
		b = 0
	}
	return b
}

// NormalizeLongitude wraps a longitude into [-180, 180].
// Values already in range are returned unchanged, so +180 stays +180.
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180.0 && lon <= 180.0 {
		return lon
	}
	l := math.Mod(lon+180.0, 360.0)
	if l < 0 {
		l += 360.0
	}
	return l - 180.0
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lon1, lat1 := from.ToRadians()
	lon2, lat2 := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeBearing(math.Atan2(y, x) * RadiansToDegrees)
}

// AngularDistance returns the central angle between two points in radians.
// Uses the Haversine formula, which stays well conditioned for the short
// hops between refreshes where the spherical law of cosines loses precision.
func AngularDistance(from, to Geographic) float64 {
	lon1, lat1 := from.ToRadians()
	lon2, lat2 := to.ToRadians()

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceMeters calculates the great-circle distance between two points in meters.
func DistanceMeters(from, to Geographic) float64 {
	return AngularDistance(from, to) * EarthRadiusMeters
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Returns distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return DistanceMeters(from, to) / MetersPerNauticalMile
}
