// Package tracking turns raw aircraft samples into interpolation anchors:
// a great-circle dead-reckoning prediction for the next refresh instant and
// a slerp interpolator between the observed and predicted positions.
package tracking

import (
	"math"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// Destination returns the point reached by travelling distanceMeters from
// start along the great circle with the given initial bearing.
//
// This uses the forward azimuth formula from spherical trigonometry on a
// sphere of the Earth's mean radius:
//
//	lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(brng))
//	lon2 = lon1 + atan2(sin(brng)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
//
// where d is the angular distance. The bearing may be any real number; the
// result longitude is normalized into [-180, 180]. NaN inputs propagate.
func Destination(start coordinates.Geographic, distanceMeters, bearingDegrees float64) coordinates.Geographic {
	lonRad, latRad := start.ToRadians()
	bearingRad := coordinates.NormalizeBearing(bearingDegrees) * coordinates.DegreesToRadians

	// Angular distance (distance / Earth radius)
	d := distanceMeters / coordinates.EarthRadiusMeters

	sinLat, cosLat := math.Sincos(latRad)
	sinD, cosD := math.Sincos(d)

	sinLat2 := sinLat*cosD + cosLat*sinD*math.Cos(bearingRad)
	// Guard against rounding pushing the argument just past +/-1
	if sinLat2 > 1 {
		sinLat2 = 1
	} else if sinLat2 < -1 {
		sinLat2 = -1
	}
	newLatRad := math.Asin(sinLat2)

	newLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*sinD*cosLat,
		cosD-sinLat*sinLat2,
	)

	return coordinates.Geographic{
		Longitude: coordinates.NormalizeLongitude(newLonRad * coordinates.RadiansToDegrees),
		Latitude:  newLatRad * coordinates.RadiansToDegrees,
	}
}

// PredictPosition extrapolates a constant-velocity great-circle track.
// The aircraft keeps its ground speed and initial track for seconds.
func PredictPosition(origin coordinates.Geographic, speedMetersPerSecond, trackDegrees, seconds float64) coordinates.Geographic {
	return Destination(origin, speedMetersPerSecond*seconds, trackDegrees)
}
