package tracking

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// ErrMalformedRecord marks a raw sample that cannot be turned into a
// TrackedEntity. The record is dropped; the rest of the refresh proceeds.
var ErrMalformedRecord = errors.New("malformed record")

// ErrDuplicateRecord marks a sample whose ID already appeared earlier in the
// same refresh. The first occurrence is kept.
var ErrDuplicateRecord = errors.New("duplicate record")

// Metadata is forwarded untouched from the raw sample to every frame.
type Metadata struct {
	ICAO           string  `json:"icao,omitempty" msgpack:"icao,omitempty"`
	Callsign       string  `json:"callsign,omitempty" msgpack:"callsign,omitempty"`
	OriginCountry  string  `json:"origin_country,omitempty" msgpack:"origin_country,omitempty"`
	AltitudeMeters float64 `json:"altitude_m" msgpack:"altitude_m"`
	OnGround       bool    `json:"on_ground" msgpack:"on_ground"`
}

// TrackedEntity is one aircraft bound to its interpolation anchors for a
// single refresh interval. Origin and Predicted never change after
// construction; a new refresh builds a new entity.
type TrackedEntity struct {
	// ID is the identity key across refresh cycles
	ID string

	// Origin is the observed position at the start of the interval
	Origin coordinates.Geographic

	// Predicted is the dead-reckoned position at the end of the interval
	Predicted coordinates.Geographic

	// HeadingDegrees is the compass track, clockwise from north
	HeadingDegrees float64

	// SpeedMetersPerSecond is the observed ground speed
	SpeedMetersPerSecond float64

	// RenderHeadingDegrees is the heading mapped through the rotation convention
	RenderHeadingDegrees float64

	Metadata Metadata

	interp *Interpolator
}

// NewTrackedEntity validates a raw sample, predicts where it will be after
// period, and binds a great-circle interpolator between the two points.
func NewTrackedEntity(ac adsb.Aircraft, period time.Duration, rot RotationConvention) (TrackedEntity, error) {
	if err := ValidateRecord(ac); err != nil {
		return TrackedEntity{}, err
	}

	origin := coordinates.Geographic{Longitude: ac.Longitude, Latitude: ac.Latitude}
	heading := coordinates.NormalizeBearing(ac.Track)
	predicted := PredictPosition(origin, ac.GroundSpeed, heading, period.Seconds())

	return TrackedEntity{
		ID:                   ac.ID(),
		Origin:               origin,
		Predicted:            predicted,
		HeadingDegrees:       heading,
		SpeedMetersPerSecond: ac.GroundSpeed,
		RenderHeadingDegrees: rot.Rotation(heading),
		Metadata: Metadata{
			ICAO:           ac.ICAO,
			Callsign:       ac.Callsign,
			OriginCountry:  ac.OriginCountry,
			AltitudeMeters: ac.Altitude,
			OnGround:       ac.OnGround,
		},
		interp: NewInterpolator(origin, predicted),
	}, nil
}

// ValidateRecord reports why a raw sample cannot be tracked. The returned
// error wraps ErrMalformedRecord.
func ValidateRecord(ac adsb.Aircraft) error {
	switch {
	case ac.ID() == "":
		return fmt.Errorf("%w: missing identifier", ErrMalformedRecord)
	case !finite(ac.Latitude) || ac.Latitude < -90 || ac.Latitude > 90:
		return fmt.Errorf("%w: latitude %v", ErrMalformedRecord, ac.Latitude)
	case !finite(ac.Longitude) || ac.Longitude < -180 || ac.Longitude > 180:
		return fmt.Errorf("%w: longitude %v", ErrMalformedRecord, ac.Longitude)
	case !finite(ac.GroundSpeed) || ac.GroundSpeed < 0:
		return fmt.Errorf("%w: ground speed %v", ErrMalformedRecord, ac.GroundSpeed)
	case !finite(ac.Track):
		return fmt.Errorf("%w: track %v", ErrMalformedRecord, ac.Track)
	}
	return nil
}

// PositionAt returns the entity's position at fraction t of the interval.
// t is clamped to [0, 1] so a late refresh holds the predicted endpoint.
func (e TrackedEntity) PositionAt(t float64) coordinates.Geographic {
	if e.interp == nil {
		return e.Origin
	}
	return e.interp.At(Clamp01(t))
}

// Clamp01 limits t to [0, 1]. NaN maps to 0.
func Clamp01(t float64) float64 {
	switch {
	case !(t > 0):
		return 0
	case t > 1:
		return 1
	}
	return t
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
