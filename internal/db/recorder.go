package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/tracking"
)

const upsertAircraftSQL = `INSERT INTO aircraft (
	icao, callsign, origin_country, latitude, longitude, altitude_ft,
	ground_speed_kts, track_deg, on_ground, first_seen, last_seen, position_count, is_visible
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, 1, TRUE)
ON CONFLICT (icao) DO UPDATE SET
	callsign = EXCLUDED.callsign,
	origin_country = EXCLUDED.origin_country,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	altitude_ft = EXCLUDED.altitude_ft,
	ground_speed_kts = EXCLUDED.ground_speed_kts,
	track_deg = EXCLUDED.track_deg,
	on_ground = EXCLUDED.on_ground,
	last_seen = EXCLUDED.last_seen,
	position_count = aircraft.position_count + 1,
	is_visible = TRUE`

const hideStaleSQL = `UPDATE aircraft SET is_visible = FALSE
 WHERE is_visible = TRUE AND last_seen < $1`

// Recorder writes fetched aircraft into the aircraft table.
type Recorder struct {
	db *DB
}

// NewRecorder creates a recorder on db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// RecordResult summarizes one Record call.
type RecordResult struct {
	Stored  int
	Skipped int
}

// uniqueRecords drops malformed records and records without an ICAO
// address, and keeps the first record per address. The table is keyed by
// ICAO, so callsign-only sightings cannot be stored without faking one.
func uniqueRecords(aircraft []adsb.Aircraft) (kept []adsb.Aircraft, skipped int) {
	seen := make(map[string]struct{}, len(aircraft))
	for _, ac := range aircraft {
		if err := tracking.ValidateRecord(ac); err != nil || strings.TrimSpace(ac.ICAO) == "" {
			skipped++
			continue
		}
		id := ac.ID()
		if _, dup := seen[id]; dup {
			skipped++
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, ac)
	}
	return kept, skipped
}

// upsertArgs maps an aircraft onto upsertAircraftSQL's parameters, storing
// feet and knots like the rest of the table. An unknown altitude (0) is
// stored as NULL.
func upsertArgs(ac adsb.Aircraft, seen time.Time) []any {
	altitude := sql.NullFloat64{
		Float64: ac.Altitude / coordinates.FeetToMeters,
		Valid:   ac.Altitude != 0,
	}
	country := sql.NullString{String: ac.OriginCountry, Valid: ac.OriginCountry != ""}
	return []any{
		ac.ID(),
		ac.Callsign,
		country,
		ac.Latitude,
		ac.Longitude,
		altitude,
		ac.GroundSpeed / coordinates.KnotsToMetersPerSecond,
		coordinates.NormalizeBearing(ac.Track),
		ac.OnGround,
		seen.UTC(),
	}
}

// Record upserts every valid aircraft in one transaction. Malformed and
// duplicate records are skipped, not fatal.
func (r *Recorder) Record(ctx context.Context, aircraft []adsb.Aircraft, now time.Time) (RecordResult, error) {
	kept, skipped := uniqueRecords(aircraft)
	res := RecordResult{Skipped: skipped}
	if len(kept) == 0 {
		return res, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertAircraftSQL)
	if err != nil {
		return res, fmt.Errorf("failed to prepare upsert: %w", classify(err))
	}
	defer stmt.Close()

	for _, ac := range kept {
		if _, err := stmt.ExecContext(ctx, upsertArgs(ac, now)...); err != nil {
			return res, fmt.Errorf("failed to upsert aircraft %s: %w", ac.ID(), classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit: %w", err)
	}
	res.Stored = len(kept)
	return res, nil
}

// HideStale marks aircraft not seen within maxAge as no longer visible and
// returns how many rows changed.
func (r *Recorder) HideStale(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, hideStaleSQL, now.UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to hide stale aircraft: %w", classify(err))
	}
	return result.RowsAffected()
}
