// Package adsb defines the raw aircraft sample pulled from a surveillance
// feed and the clients that fetch those samples.
package adsb

import (
	"context"
	"strings"
	"time"
)

// Aircraft represents one raw sample of an aircraft from a data source.
// All position data is in WGS84 coordinate system. Only records with a
// complete position and velocity leave a DataSource; anything else is
// skipped at decode time.
type Aircraft struct {
	// ICAO is the unique 24-bit ICAO aircraft address (e.g., "a12345")
	ICAO string

	// Callsign is the flight number or aircraft registration, trimmed
	Callsign string

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// GroundSpeed in meters per second
	GroundSpeed float64

	// Track is the ground track (heading) in degrees clockwise from north
	// 0 = North, 90 = East, 180 = South, 270 = West
	Track float64

	// Altitude in meters, passthrough metadata (0 if unknown)
	Altitude float64

	// OriginCountry is passthrough metadata, empty if the feed lacks it
	OriginCountry string

	// OnGround is passthrough metadata
	OnGround bool

	// LastSeen is the timestamp of the last position update
	LastSeen time.Time
}

// ID returns the identity used to key an aircraft across refresh cycles.
// The ICAO address is unique per airframe; the callsign is the fallback
// for feeds that omit it.
func (a Aircraft) ID() string {
	if icao := strings.ToLower(strings.TrimSpace(a.ICAO)); icao != "" {
		return icao
	}
	return strings.TrimSpace(a.Callsign)
}

// DataSource is the interface that all aircraft data providers must implement.
// This abstraction allows switching between online services (OpenSky,
// airplanes.live) and a collector database.
type DataSource interface {
	// Fetch returns the latest complete sample set. A failed fetch returns
	// an error and no partial data.
	Fetch(ctx context.Context) ([]Aircraft, error)

	// Close cleanly shuts down the data source connection.
	Close() error
}
