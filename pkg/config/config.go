// Package config loads skytrail settings from a JSON or YAML file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceOpenSky       = "opensky"
	SourceAirplanesLive = "airplanes.live"
	SourceDatabase      = "database"
)

// Frame encodings for the stream server.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Source    SourceConfig    `json:"source" yaml:"source"`
	Refresh   RefreshConfig   `json:"refresh" yaml:"refresh"`
	Animation AnimationConfig `json:"animation" yaml:"animation"`
	Render    RenderConfig    `json:"render" yaml:"render"`
	Stream    StreamConfig    `json:"stream" yaml:"stream"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" yaml:"port" validate:"required,numeric"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" yaml:"host"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig contains the connection settings for the collector
// database used by the "database" source.
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string `json:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" yaml:"port" validate:"gte=0,lte=65535"`

	// Database is the database name
	Database string `json:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`

	// StaleSeconds excludes rows not updated within this window (0 = no limit)
	StaleSeconds int `json:"stale_seconds" yaml:"stale_seconds" validate:"gte=0"`
}

// RegionConfig is a circular query area for point-radius sources.
type RegionConfig struct {
	// Name is a friendly identifier for this region
	Name string `json:"name" yaml:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`

	// RadiusNM is the query radius in nautical miles (max 250 for airplanes.live)
	RadiusNM float64 `json:"radius_nm" yaml:"radius_nm" validate:"gt=0,lte=250"`
}

// BoundingBoxConfig limits OpenSky queries. All zero means the whole world.
type BoundingBoxConfig struct {
	MinLatitude  float64 `json:"min_latitude" yaml:"min_latitude" validate:"gte=-90,lte=90"`
	MinLongitude float64 `json:"min_longitude" yaml:"min_longitude" validate:"gte=-180,lte=180"`
	MaxLatitude  float64 `json:"max_latitude" yaml:"max_latitude" validate:"gte=-90,lte=90"`
	MaxLongitude float64 `json:"max_longitude" yaml:"max_longitude" validate:"gte=-180,lte=180"`
}

// IsZero reports whether no box was configured.
func (b BoundingBoxConfig) IsZero() bool {
	return b == BoundingBoxConfig{}
}

// SourceConfig selects and configures the raw aircraft data source.
type SourceConfig struct {
	// Type is one of "opensky", "airplanes.live" or "database"
	Type string `json:"type" yaml:"type" validate:"required,oneof=opensky airplanes.live database"`

	// BaseURL is the API base URL for online sources
	BaseURL string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`

	// Username for OpenSky basic auth (optional)
	Username string `json:"username,omitempty" yaml:"username,omitempty"`

	// Password for OpenSky basic auth (should be loaded from environment)
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// RateLimitSeconds is the minimum time between API calls in seconds
	// 0 = no rate limit, >0 = enforce minimum delay between calls
	RateLimitSeconds float64 `json:"rate_limit_seconds" yaml:"rate_limit_seconds" validate:"gte=0"`

	// TimeoutSeconds bounds a single HTTP request
	TimeoutSeconds float64 `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`

	// Region is used by airplanes.live
	Region RegionConfig `json:"region" yaml:"region"`

	// BoundingBox is used by opensky
	BoundingBox BoundingBoxConfig `json:"bounding_box" yaml:"bounding_box"`
}

// RateLimit returns the minimum interval between API calls.
func (s SourceConfig) RateLimit() time.Duration {
	return seconds(s.RateLimitSeconds)
}

// Timeout returns the HTTP request timeout.
func (s SourceConfig) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds)
}

// RefreshConfig controls the fetch cycle.
type RefreshConfig struct {
	// PeriodSeconds is the time between fetches (default: 10)
	PeriodSeconds float64 `json:"period_seconds" yaml:"period_seconds" validate:"gt=0"`

	// FetchRetries is the number of in-cycle retries after a failure (default: 0)
	FetchRetries int `json:"fetch_retries" yaml:"fetch_retries" validate:"gte=0,lte=10"`

	// RetryDelaySeconds is the first retry backoff (default: 1)
	RetryDelaySeconds float64 `json:"retry_delay_seconds" yaml:"retry_delay_seconds" validate:"gte=0"`
}

// Period returns the refresh interval.
func (r RefreshConfig) Period() time.Duration {
	return seconds(r.PeriodSeconds)
}

// RetryDelay returns the first retry backoff.
func (r RefreshConfig) RetryDelay() time.Duration {
	return seconds(r.RetryDelaySeconds)
}

// AnimationConfig controls the frame clock.
type AnimationConfig struct {
	// FrameRate is the target frames per second (default: 60)
	FrameRate float64 `json:"frame_rate" yaml:"frame_rate" validate:"gt=0,lte=240"`
}

// RenderConfig maps headings to the renderer's rotation convention.
type RenderConfig struct {
	// RotationOffsetDegrees is added to the signed heading (e.g. 45 for an
	// icon drawn pointing north-east)
	RotationOffsetDegrees float64 `json:"rotation_offset_degrees" yaml:"rotation_offset_degrees"`

	// RotationDirection is "clockwise" (compass) or "counterclockwise"
	RotationDirection string `json:"rotation_direction" yaml:"rotation_direction" validate:"omitempty,oneof=clockwise counterclockwise cw ccw"`
}

// StreamConfig controls the frame streaming server.
type StreamConfig struct {
	// Enabled starts the HTTP/WebSocket server
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Encoding of WebSocket frames: "json" or "msgpack"
	Encoding string `json:"encoding" yaml:"encoding" validate:"oneof=json msgpack"`

	// AllowedOrigins for CORS and WebSocket upgrades ("*" allows any)
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// ClientBuffer is the per-client frame queue; frames are dropped when full
	ClientBuffer int `json:"client_buffer" yaml:"client_buffer" validate:"gt=0"`

	// FrameDivisor sends every Nth frame to clients (1 = every frame)
	FrameDivisor int `json:"frame_divisor" yaml:"frame_divisor" validate:"gte=1"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// File enables a rotating JSON log file when set
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB is the size at which the file rotates
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`

	// MaxBackups is the number of rotated files kept
	MaxBackups int `json:"max_backups" yaml:"max_backups" validate:"gte=0"`

	// MaxAgeDays removes rotated files older than this
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" validate:"gte=0"`

	// Compress gzips rotated files
	Compress bool `json:"compress" yaml:"compress"`
}

// Load reads configuration from a JSON or YAML file (chosen by extension).
// If the file doesn't exist, returns a default configuration. Fields absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a JSON or YAML file (chosen by extension).
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Source.Type != SourceDatabase && c.Source.BaseURL == "" {
		return fmt.Errorf("invalid configuration: source.base_url is required for %s", c.Source.Type)
	}
	if c.Source.Type == SourceDatabase && c.Database.Host == "" {
		return fmt.Errorf("invalid configuration: database.host is required for the database source")
	}

	box := c.Source.BoundingBox
	if !box.IsZero() && (box.MinLatitude >= box.MaxLatitude || box.MinLongitude >= box.MaxLongitude) {
		return fmt.Errorf("invalid configuration: bounding box min must be below max")
	}

	// At least one frame per refresh
	if c.Refresh.PeriodSeconds*c.Animation.FrameRate < 1 {
		return fmt.Errorf("invalid configuration: refresh period %.3fs is shorter than one frame at %.1f fps",
			c.Refresh.PeriodSeconds, c.Animation.FrameRate)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults: anonymous
// OpenSky, a 10 second refresh and 60 fps animation.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "skytrail",
			Username:     "skytrail",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
			StaleSeconds: 120,
		},
		Source: SourceConfig{
			Type:             SourceOpenSky,
			BaseURL:          "https://opensky-network.org/api",
			RateLimitSeconds: 10.0, // Anonymous OpenSky limit
			TimeoutSeconds:   10.0,
			Region: RegionConfig{
				Name:      "San Francisco Bay",
				Latitude:  37.7749,
				Longitude: -122.4194,
				RadiusNM:  100,
			},
		},
		Refresh: RefreshConfig{
			PeriodSeconds:     10,
			FetchRetries:      0,
			RetryDelaySeconds: 1,
		},
		Animation: AnimationConfig{
			FrameRate: 60,
		},
		Render: RenderConfig{
			RotationOffsetDegrees: 0,
			RotationDirection:     "clockwise",
		},
		Stream: StreamConfig{
			Enabled:        true,
			Encoding:       EncodingJSON,
			AllowedOrigins: []string{"*"},
			ClientBuffer:   8,
			FrameDivisor:   2, // 30 fps to browsers
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() error {
	if port := os.Getenv("SKYTRAIL_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbHost := os.Getenv("SKYTRAIL_DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if dbPassword := os.Getenv("SKYTRAIL_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if sourceType := os.Getenv("SKYTRAIL_SOURCE"); sourceType != "" {
		c.Source.Type = sourceType
	}
	if sourceURL := os.Getenv("SKYTRAIL_SOURCE_URL"); sourceURL != "" {
		c.Source.BaseURL = sourceURL
	}
	if user := os.Getenv("SKYTRAIL_OPENSKY_USERNAME"); user != "" {
		c.Source.Username = user
	}
	if pass := os.Getenv("SKYTRAIL_OPENSKY_PASSWORD"); pass != "" {
		c.Source.Password = pass
	}
	if level := os.Getenv("SKYTRAIL_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if period := os.Getenv("SKYTRAIL_REFRESH_SECONDS"); period != "" {
		p, err := strconv.ParseFloat(period, 64)
		if err != nil {
			return fmt.Errorf("invalid SKYTRAIL_REFRESH_SECONDS %q: %w", period, err)
		}
		c.Refresh.PeriodSeconds = p
	}
	return nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
