package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got: %v", err)
	}

	// Server defaults
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected default addr 0.0.0.0:8080, got %s", cfg.Server.Addr())
	}

	// Source defaults
	if cfg.Source.Type != SourceOpenSky {
		t.Errorf("Expected opensky source, got %s", cfg.Source.Type)
	}
	if cfg.Source.RateLimit() != 10*time.Second {
		t.Errorf("Expected 10s rate limit, got %v", cfg.Source.RateLimit())
	}

	// Refresh and animation defaults
	if cfg.Refresh.Period() != 10*time.Second {
		t.Errorf("Expected 10s refresh period, got %v", cfg.Refresh.Period())
	}
	if cfg.Refresh.FetchRetries != 0 {
		t.Errorf("Expected no fetch retries, got %d", cfg.Refresh.FetchRetries)
	}
	if cfg.Animation.FrameRate != 60 {
		t.Errorf("Expected 60 fps, got %f", cfg.Animation.FrameRate)
	}

	// Render defaults
	if cfg.Render.RotationDirection != "clockwise" {
		t.Errorf("Expected clockwise rotation, got %s", cfg.Render.RotationDirection)
	}
	if cfg.Render.RotationOffsetDegrees != 0 {
		t.Errorf("Expected zero rotation offset, got %f", cfg.Render.RotationOffsetDegrees)
	}

	// Stream and logging defaults
	if cfg.Stream.Encoding != EncodingJSON {
		t.Errorf("Expected json encoding, got %s", cfg.Stream.Encoding)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected info log level, got %s", cfg.Logging.Level)
	}
}

// TestLoadNonExistentFile tests that Load returns default config when file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config, got nil")
	}
	if cfg.Server.Port != "8080" {
		t.Error("Did not get default config for non-existent file")
	}
}

// TestLoadValidConfig tests loading a valid JSON configuration file.
func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	testConfig := DefaultConfig()
	testConfig.Server.Port = "9090"
	testConfig.Source.Type = SourceAirplanesLive
	testConfig.Source.BaseURL = "https://api.airplanes.live/v2"
	testConfig.Source.Region.RadiusNM = 50
	testConfig.Refresh.PeriodSeconds = 5
	testConfig.Render.RotationDirection = "counterclockwise"
	testConfig.Render.RotationOffsetDegrees = 45

	if err := testConfig.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Source.Type != SourceAirplanesLive {
		t.Errorf("Expected airplanes.live, got %s", cfg.Source.Type)
	}
	if cfg.Source.Region.RadiusNM != 50 {
		t.Errorf("Expected radius 50, got %f", cfg.Source.Region.RadiusNM)
	}
	if cfg.Refresh.Period() != 5*time.Second {
		t.Errorf("Expected 5s period, got %v", cfg.Refresh.Period())
	}
	if cfg.Render.RotationOffsetDegrees != 45 {
		t.Errorf("Expected offset 45, got %f", cfg.Render.RotationOffsetDegrees)
	}
}

// TestLoadYAMLConfig tests that .yaml files are parsed as YAML and that
// fields absent from the file keep their defaults.
func TestLoadYAMLConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "skytrail.yaml")

	yamlData := `
source:
  type: opensky
  base_url: https://opensky-network.org/api
  bounding_box:
    min_latitude: 36.5
    min_longitude: -123.5
    max_latitude: 38.5
    max_longitude: -121.0
refresh:
  period_seconds: 15
  fetch_retries: 2
stream:
  encoding: msgpack
`
	if err := os.WriteFile(configPath, []byte(yamlData), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if cfg.Refresh.Period() != 15*time.Second {
		t.Errorf("Expected 15s period, got %v", cfg.Refresh.Period())
	}
	if cfg.Refresh.FetchRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", cfg.Refresh.FetchRetries)
	}
	if cfg.Source.BoundingBox.MaxLongitude != -121.0 {
		t.Errorf("Expected max longitude -121, got %f", cfg.Source.BoundingBox.MaxLongitude)
	}
	if cfg.Stream.Encoding != EncodingMsgpack {
		t.Errorf("Expected msgpack encoding, got %s", cfg.Stream.Encoding)
	}
	// Untouched sections keep defaults
	if cfg.Animation.FrameRate != 60 {
		t.Errorf("Expected default frame rate 60, got %f", cfg.Animation.FrameRate)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port, got %s", cfg.Server.Port)
	}
}

// TestLoadInvalidJSON tests error handling for malformed JSON.
func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.json")

	if err := os.WriteFile(configPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}

// TestValidate tests validation of out-of-range settings.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Unknown source type", func(c *Config) { c.Source.Type = "adsbexchange" }, "Type"},
		{"Zero refresh period", func(c *Config) { c.Refresh.PeriodSeconds = 0 }, "PeriodSeconds"},
		{"Negative frame rate", func(c *Config) { c.Animation.FrameRate = -1 }, "FrameRate"},
		{"Bad rotation direction", func(c *Config) { c.Render.RotationDirection = "sideways" }, "RotationDirection"},
		{"Bad encoding", func(c *Config) { c.Stream.Encoding = "xml" }, "Encoding"},
		{"Bad log level", func(c *Config) { c.Logging.Level = "trace" }, "Level"},
		{"Radius over cap", func(c *Config) { c.Source.Region.RadiusNM = 300 }, "RadiusNM"},
		{"Missing base URL", func(c *Config) { c.Source.BaseURL = "" }, "base_url"},
		{"Database source without host", func(c *Config) {
			c.Source.Type = SourceDatabase
			c.Database.Host = ""
		}, "database.host"},
		{"Inverted bounding box", func(c *Config) {
			c.Source.BoundingBox = BoundingBoxConfig{MinLatitude: 40, MinLongitude: -120, MaxLatitude: 30, MaxLongitude: -110}
		}, "bounding box"},
		{"Period shorter than a frame", func(c *Config) {
			c.Refresh.PeriodSeconds = 0.001
		}, "shorter than one frame"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}

	t.Run("Database source needs no base URL", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Source.Type = SourceDatabase
		cfg.Source.BaseURL = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})
}

// TestSaveConfigCreatesDirectory tests that Save creates parent directories.
func TestSaveConfigCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "dir", "config.yml")

	if err := DefaultConfig().Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	if !strings.Contains(string(data), "period_seconds: 10") {
		t.Errorf("Expected YAML output, got:\n%s", data)
	}
}

// TestEnvironmentOverrides tests environment variable overrides.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKYTRAIL_PORT", "7777")
	t.Setenv("SKYTRAIL_DB_HOST", "env-db-host")
	t.Setenv("SKYTRAIL_DB_PASSWORD", "env-password")
	t.Setenv("SKYTRAIL_OPENSKY_USERNAME", "env-user")
	t.Setenv("SKYTRAIL_OPENSKY_PASSWORD", "env-secret")
	t.Setenv("SKYTRAIL_LOG_LEVEL", "DEBUG")
	t.Setenv("SKYTRAIL_REFRESH_SECONDS", "12.5")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	testCfg := DefaultConfig()
	testCfg.Database.Password = "original-password"

	data, _ := json.Marshal(testCfg)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port 7777 from env, got %s", cfg.Server.Port)
	}
	if cfg.Database.Host != "env-db-host" {
		t.Errorf("Expected env-db-host from env, got %s", cfg.Database.Host)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("Expected env-password from env, got %s", cfg.Database.Password)
	}
	if cfg.Source.Username != "env-user" || cfg.Source.Password != "env-secret" {
		t.Errorf("Expected OpenSky credentials from env, got %s/%s", cfg.Source.Username, cfg.Source.Password)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level from env, got %s", cfg.Logging.Level)
	}
	if cfg.Refresh.Period() != 12500*time.Millisecond {
		t.Errorf("Expected 12.5s period from env, got %v", cfg.Refresh.Period())
	}

	t.Run("Invalid refresh override", func(t *testing.T) {
		t.Setenv("SKYTRAIL_REFRESH_SECONDS", "ten")
		if _, err := Load(configPath); err == nil {
			t.Error("Expected error for non-numeric SKYTRAIL_REFRESH_SECONDS")
		}
	})
}

// TestShippedConfig keeps configs/config.json loadable.
func TestShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.BoundingBox.IsZero() {
		t.Error("expected the shipped config to set a bounding box")
	}
	if cfg.Refresh.Period() != 10*time.Second {
		t.Errorf("Refresh.Period() = %v, want 10s", cfg.Refresh.Period())
	}
}
