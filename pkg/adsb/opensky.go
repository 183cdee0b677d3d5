package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OpenSky state vector indices.
// API Documentation: https://openskynetwork.github.io/opensky-api/rest.html
const (
	osICAO24        = 0
	osCallsign      = 1
	osOriginCountry = 2
	osLastContact   = 4
	osLongitude     = 5
	osLatitude      = 6
	osBaroAltitude  = 7
	osOnGround      = 8
	osVelocity      = 9
	osTrueTrack     = 10
	osGeoAltitude   = 13

	osMinFields = osTrueTrack + 1
)

// BoundingBox limits an OpenSky query to a lat/lon rectangle.
// A zero box means the whole world.
type BoundingBox struct {
	MinLatitude  float64
	MinLongitude float64
	MaxLatitude  float64
	MaxLongitude float64
}

// IsZero reports whether no bounding box was configured.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// OpenSkyConfig contains configuration for the OpenSky client.
type OpenSkyConfig struct {
	BaseURL     string
	Username    string
	Password    string
	Box         BoundingBox
	MinInterval time.Duration
	Timeout     time.Duration
}

// OpenSkyClient implements the DataSource interface for the OpenSky Network
// /states/all endpoint. Anonymous users are limited to one request every
// 10 seconds, which matches the default refresh period.
type OpenSkyClient struct {
	baseURL    string
	username   string
	password   string
	box        BoundingBox
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenSkyClient creates a new OpenSky Network client.
func NewOpenSkyClient(cfg OpenSkyConfig) *OpenSkyClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenSkyClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		box:        cfg.Box,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    newLimiter(cfg.MinInterval),
	}
}

// Fetch returns all state vectors inside the configured bounding box.
func (c *OpenSkyClient) Fetch(ctx context.Context) ([]Aircraft, error) {
	u := c.baseURL + "/states/all"
	if !c.box.IsZero() {
		q := url.Values{}
		q.Set("lamin", strconv.FormatFloat(c.box.MinLatitude, 'f', 4, 64))
		q.Set("lomin", strconv.FormatFloat(c.box.MinLongitude, 'f', 4, 64))
		q.Set("lamax", strconv.FormatFloat(c.box.MaxLatitude, 'f', 4, 64))
		q.Set("lomax", strconv.FormatFloat(c.box.MaxLongitude, 'f', 4, 64))
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := get(ctx, c.httpClient, c.limiter, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp openSkyResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	return apiResp.aircraft(), nil
}

// Close is a no-op; the client holds no persistent connections.
func (c *OpenSkyClient) Close() error {
	return nil
}

// openSkyResponse is the /states/all payload. States is null when nothing
// matches the query.
type openSkyResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

func (r openSkyResponse) aircraft() []Aircraft {
	out := make([]Aircraft, 0, len(r.States))
	for _, sv := range r.States {
		if ac, ok := parseStateVector(sv, r.Time); ok {
			out = append(out, ac)
		}
	}
	return out
}

// parseStateVector converts one positional state vector. Vectors missing
// position, ground speed or track are rejected.
func parseStateVector(sv []interface{}, responseTime int64) (Aircraft, bool) {
	if len(sv) < osMinFields {
		return Aircraft{}, false
	}

	lon, okLon := number(sv[osLongitude])
	lat, okLat := number(sv[osLatitude])
	speed, okSpeed := number(sv[osVelocity])
	track, okTrack := number(sv[osTrueTrack])
	if !okLon || !okLat || !okSpeed || !okTrack {
		return Aircraft{}, false
	}

	ac := Aircraft{
		ICAO:          str(sv[osICAO24]),
		Callsign:      strings.TrimSpace(str(sv[osCallsign])),
		OriginCountry: str(sv[osOriginCountry]),
		Longitude:     lon,
		Latitude:      lat,
		GroundSpeed:   speed,
		Track:         track,
	}

	if b, ok := sv[osOnGround].(bool); ok {
		ac.OnGround = b
	}

	// Altitude - prefer geometric (GPS) over barometric
	if len(sv) > osGeoAltitude {
		if alt, ok := number(sv[osGeoAltitude]); ok {
			ac.Altitude = alt
		} else if alt, ok := number(sv[osBaroAltitude]); ok {
			ac.Altitude = alt
		}
	} else if alt, ok := number(sv[osBaroAltitude]); ok {
		ac.Altitude = alt
	}

	if ts, ok := number(sv[osLastContact]); ok && ts > 0 {
		ac.LastSeen = time.Unix(int64(ts), 0).UTC()
	} else if responseTime > 0 {
		ac.LastSeen = time.Unix(responseTime, 0).UTC()
	}

	return ac, true
}

func number(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
