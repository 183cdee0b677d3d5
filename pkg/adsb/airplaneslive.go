package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// MaxAirplanesLiveRadiusNM is the largest radius the /point endpoint accepts.
const MaxAirplanesLiveRadiusNM = 250.0

// AirplanesLiveClient implements the DataSource interface for airplanes.live API.
// API Documentation: https://airplanes.live/api-guide/
// Rate Limit: 1 request per second
type AirplanesLiveClient struct {
	// baseURL is the API base URL (default: https://api.airplanes.live/v2)
	baseURL string

	// httpClient is the HTTP client used for API requests
	httpClient *http.Client

	// limiter spaces out API calls
	limiter *rate.Limiter

	// centerLat/centerLon/radiusNM define the query region
	centerLat float64
	centerLon float64
	radiusNM  float64
}

// AirplanesLiveConfig contains configuration for the airplanes.live client.
type AirplanesLiveConfig struct {
	BaseURL     string
	CenterLat   float64
	CenterLon   float64
	RadiusNM    float64
	MinInterval time.Duration
	Timeout     time.Duration
}

// NewAirplanesLiveClient creates a new airplanes.live API client.
// BaseURL should be "https://api.airplanes.live/v2" (or custom for testing).
// The radius is capped at MaxAirplanesLiveRadiusNM.
func NewAirplanesLiveClient(cfg AirplanesLiveConfig) *AirplanesLiveClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.RadiusNM > MaxAirplanesLiveRadiusNM {
		cfg.RadiusNM = MaxAirplanesLiveRadiusNM
	}

	return &AirplanesLiveClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:   newLimiter(cfg.MinInterval),
		centerLat: cfg.CenterLat,
		centerLon: cfg.CenterLon,
		radiusNM:  cfg.RadiusNM,
	}
}

// Fetch returns all aircraft within the configured region.
// Uses the /point/[lat]/[lon]/[radius] endpoint.
func (c *AirplanesLiveClient) Fetch(ctx context.Context) ([]Aircraft, error) {
	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, c.centerLat, c.centerLon, c.radiusNM)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := get(ctx, c.httpClient, c.limiter, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp airplanesLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	now := time.Now().UTC()
	aircraft := make([]Aircraft, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		// Skip aircraft without a usable position or velocity
		if ac.Lat == nil || ac.Lon == nil || ac.Gs == nil || ac.Track == nil {
			continue
		}
		aircraft = append(aircraft, convertAirplanesLiveAircraft(ac, now))
	}

	return aircraft, nil
}

// Close cleanly shuts down the client.
// For airplanes.live, this is a no-op as there are no persistent connections.
func (c *AirplanesLiveClient) Close() error {
	return nil
}

// airplanesLiveResponse represents the JSON response from airplanes.live API.
type airplanesLiveResponse struct {
	// Aircraft is the array of aircraft data
	Aircraft []airplanesLiveAircraft `json:"ac"`

	// Total number of aircraft
	Total int `json:"total"`

	// Current timestamp
	Now float64 `json:"now"`
}

// airplanesLiveAircraft represents a single aircraft in the airplanes.live API response.
// Field documentation: https://airplanes.live/adsb-field-explanations/
type airplanesLiveAircraft struct {
	// Hex is the ICAO Mode S hex code (e.g., "a12345")
	Hex string `json:"hex"`

	// Flight is the callsign/flight number
	Flight *string `json:"flight"`

	// Lat is latitude in decimal degrees
	Lat *float64 `json:"lat"`

	// Lon is longitude in decimal degrees
	Lon *float64 `json:"lon"`

	// AltBaro is barometric altitude in feet
	// Note: Can be string "ground" or float
	AltBaro interface{} `json:"alt_baro"`

	// AltGeom is geometric (GPS) altitude in feet
	AltGeom interface{} `json:"alt_geom"`

	// Gs is ground speed in knots
	Gs *float64 `json:"gs"`

	// Track is ground track in degrees (0-360)
	Track *float64 `json:"track"`

	// Seen is seconds since last position update
	Seen *float64 `json:"seen"`
}

// convertAirplanesLiveAircraft converts an airplanes.live aircraft to our Aircraft type.
// The caller guarantees position and velocity are present.
func convertAirplanesLiveAircraft(ac airplanesLiveAircraft, now time.Time) Aircraft {
	aircraft := Aircraft{
		ICAO:        ac.Hex,
		Latitude:    *ac.Lat,
		Longitude:   *ac.Lon,
		GroundSpeed: *ac.Gs * coordinates.KnotsToMetersPerSecond,
		Track:       *ac.Track,
		LastSeen:    now,
	}

	if ac.Flight != nil {
		aircraft.Callsign = strings.TrimSpace(*ac.Flight)
	}

	// Altitude - prefer geometric (GPS) over barometric
	if alt, ground := parseAltitude(ac.AltGeom); alt != nil {
		aircraft.Altitude = *alt * coordinates.FeetToMeters
		aircraft.OnGround = ground
	} else if alt, ground := parseAltitude(ac.AltBaro); alt != nil {
		aircraft.Altitude = *alt * coordinates.FeetToMeters
		aircraft.OnGround = ground
	}

	if ac.Seen != nil {
		aircraft.LastSeen = now.Add(-time.Duration(*ac.Seen * float64(time.Second)))
	}

	return aircraft
}

// parseAltitude safely extracts altitude from interface{} which can be float64 or string.
// Returns nil if the value is invalid; "ground" yields zero and ground=true.
func parseAltitude(val interface{}) (alt *float64, ground bool) {
	switch v := val.(type) {
	case float64:
		return &v, false
	case string:
		if v == "ground" {
			zero := 0.0
			return &zero, true
		}
	}
	return nil, false
}
