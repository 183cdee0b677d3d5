package tracking

import (
	"math"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// degenerateEpsilon is the smallest sin(angular distance) treated as a
// usable great circle. Below it the endpoints coincide or are antipodal.
const degenerateEpsilon = 1e-12

// Interpolator produces points along the great circle between two fixed
// endpoints. Construct it once per pair; At is cheap and safe for
// concurrent use because the Interpolator is immutable.
type Interpolator struct {
	start, end coordinates.Geographic

	// Unit vectors of the endpoints
	x1, y1, z1 float64
	x2, y2, z2 float64

	delta      float64
	sinDelta   float64
	degenerate bool
}

// NewInterpolator precomputes the angular distance and Cartesian endpoints
// for spherical linear interpolation from start to end.
func NewInterpolator(start, end coordinates.Geographic) *Interpolator {
	ip := &Interpolator{start: start, end: end}

	lon1, lat1 := start.ToRadians()
	lon2, lat2 := end.ToRadians()

	cosLat1 := math.Cos(lat1)
	cosLat2 := math.Cos(lat2)
	ip.x1, ip.y1, ip.z1 = cosLat1*math.Cos(lon1), cosLat1*math.Sin(lon1), math.Sin(lat1)
	ip.x2, ip.y2, ip.z2 = cosLat2*math.Cos(lon2), cosLat2*math.Sin(lon2), math.Sin(lat2)

	ip.delta = coordinates.AngularDistance(start, end)
	ip.sinDelta = math.Sin(ip.delta)
	ip.degenerate = !(ip.sinDelta > degenerateEpsilon)

	return ip
}

// Start returns the t=0 endpoint.
func (ip *Interpolator) Start() coordinates.Geographic { return ip.start }

// End returns the t=1 endpoint.
func (ip *Interpolator) End() coordinates.Geographic { return ip.end }

// AngularDistance returns the central angle between the endpoints in radians.
func (ip *Interpolator) AngularDistance() float64 { return ip.delta }

// Degenerate reports whether the endpoints coincide or are antipodal, in
// which case At always returns the start point.
func (ip *Interpolator) Degenerate() bool { return ip.degenerate }

// At returns the point at fraction t along the great circle.
// t=0 is exactly the start and t=1 exactly the end. Values outside [0, 1]
// extrapolate along the same circle; callers clamp if they need to.
func (ip *Interpolator) At(t float64) coordinates.Geographic {
	switch {
	case ip.degenerate || t == 0:
		return ip.start
	case t == 1:
		return ip.end
	}

	a := math.Sin((1-t)*ip.delta) / ip.sinDelta
	b := math.Sin(t*ip.delta) / ip.sinDelta

	x := a*ip.x1 + b*ip.x2
	y := a*ip.y1 + b*ip.y2
	z := a*ip.z1 + b*ip.z2

	lat := math.Atan2(z, math.Sqrt(x*x+y*y))
	lon := math.Atan2(y, x)

	return coordinates.Geographic{
		Longitude: lon * coordinates.RadiansToDegrees,
		Latitude:  lat * coordinates.RadiansToDegrees,
	}
}
