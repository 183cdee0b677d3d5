package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// visibleAircraftQuery selects every aircraft the collector currently marks
// visible and has seen since $1.
const visibleAircraftQuery = `SELECT icao, callsign, origin_country, latitude, longitude, altitude_ft,
        ground_speed_kts, track_deg, on_ground, last_seen
 FROM aircraft
 WHERE is_visible = TRUE AND last_seen >= $1`

// rowScanner is the subset of *sql.Rows used to decode a result set.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// aircraftRow mirrors one row of visibleAircraftQuery. Columns are nullable
// because the collector stores partial messages.
type aircraftRow struct {
	ICAO       string
	Callsign   sql.NullString
	Country    sql.NullString
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
	AltitudeFt sql.NullFloat64
	SpeedKts   sql.NullFloat64
	TrackDeg   sql.NullFloat64
	OnGround   sql.NullBool
	LastSeen   sql.NullTime
}

// aircraft converts the row to SI units. Rows lacking position, speed or
// track are rejected.
func (r aircraftRow) aircraft() (adsb.Aircraft, bool) {
	if !r.Latitude.Valid || !r.Longitude.Valid || !r.SpeedKts.Valid || !r.TrackDeg.Valid {
		return adsb.Aircraft{}, false
	}

	ac := adsb.Aircraft{
		ICAO:          strings.TrimSpace(r.ICAO),
		Callsign:      strings.TrimSpace(r.Callsign.String),
		OriginCountry: r.Country.String,
		OnGround:      r.OnGround.Bool,
		Latitude:      r.Latitude.Float64,
		Longitude:     r.Longitude.Float64,
		GroundSpeed:   r.SpeedKts.Float64 * coordinates.KnotsToMetersPerSecond,
		Track:         r.TrackDeg.Float64,
	}
	if r.AltitudeFt.Valid {
		ac.Altitude = r.AltitudeFt.Float64 * coordinates.FeetToMeters
	}
	if r.LastSeen.Valid {
		ac.LastSeen = r.LastSeen.Time.UTC()
	}
	return ac, true
}

func scanAircraft(rows rowScanner) ([]adsb.Aircraft, error) {
	var out []adsb.Aircraft
	for rows.Next() {
		var r aircraftRow
		if err := rows.Scan(
			&r.ICAO, &r.Callsign, &r.Country,
			&r.Latitude, &r.Longitude, &r.AltitudeFt,
			&r.SpeedKts, &r.TrackDeg, &r.OnGround, &r.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aircraft row: %w", err)
		}
		if ac, ok := r.aircraft(); ok {
			out = append(out, ac)
		}
	}
	return out, rows.Err()
}

// SnapshotSource implements adsb.DataSource over the collector database.
type SnapshotSource struct {
	db    *DB
	stale time.Duration
	now   func() time.Time
}

// NewSnapshotSource reads from db. Rows older than db's configured
// StaleSeconds are ignored.
func NewSnapshotSource(db *DB) *SnapshotSource {
	return &SnapshotSource{
		db:    db,
		stale: time.Duration(db.config.StaleSeconds) * time.Second,
		now:   time.Now,
	}
}

// Fetch returns all visible aircraft with a complete position and velocity.
func (s *SnapshotSource) Fetch(ctx context.Context) ([]adsb.Aircraft, error) {
	cutoff := time.Unix(0, 0).UTC()
	if s.stale > 0 {
		cutoff = s.now().UTC().Add(-s.stale)
	}

	rows, err := s.db.QueryContext(ctx, visibleAircraftQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft: %w", classify(err))
	}
	defer rows.Close()

	return scanAircraft(rows)
}

// Close closes the underlying connection pool.
func (s *SnapshotSource) Close() error {
	return s.db.Close()
}
