package coordinates

import (
	"math"
	"testing"
)

// TestNormalizeBearing tests bearing normalization
func TestNormalizeBearing(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0.0, 0.0},
		{359.0, 359.0},
		{360.0, 0.0},
		{361.0, 1.0},
		{-1.0, 359.0},
		{-90.0, 270.0},
		{720.0, 0.0},
	}

	for _, tt := range tests {
		got := NormalizeBearing(tt.input)
		if math.Abs(got-tt.want) > 0.0001 {
			t.Errorf("NormalizeBearing(%.1f) = %.1f, want %.1f", tt.input, got, tt.want)
		}
	}

	// Values just below zero must not land on 360 after the wrap.
	for _, in := range []float64{-1e-14, -1e-300, -360 - 1e-14} {
		if got := NormalizeBearing(in); got < 0 || got >= 360 {
			t.Errorf("NormalizeBearing(%g) = %v, want in [0, 360)", in, got)
		}
	}
}

// TestNormalizeLongitude tests longitude wrapping
func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0.0, 0.0},
		{180.0, 180.0},
		{-180.0, -180.0},
		{181.0, -179.0},
		{-181.0, 179.0},
		{540.0, -180.0},
		{-122.4, -122.4},
	}

	for _, tt := range tests {
		got := NormalizeLongitude(tt.input)
		if math.Abs(got-tt.want) > 0.0001 {
			t.Errorf("NormalizeLongitude(%.1f) = %.4f, want %.4f", tt.input, got, tt.want)
		}
	}
}

// TestBearing tests initial great-circle bearing
func TestBearing(t *testing.T) {
	origin := Geographic{Longitude: 0, Latitude: 0}

	tests := []struct {
		name string
		to   Geographic
		want float64
	}{
		{"North", Geographic{Longitude: 0, Latitude: 1}, 0},
		{"East", Geographic{Longitude: 1, Latitude: 0}, 90},
		{"South", Geographic{Longitude: 0, Latitude: -1}, 180},
		{"West", Geographic{Longitude: -1, Latitude: 0}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Bearing = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

// TestDistance tests haversine distances
func TestDistance(t *testing.T) {
	t.Run("One degree of latitude", func(t *testing.T) {
		a := Geographic{Longitude: 10, Latitude: 0}
		b := Geographic{Longitude: 10, Latitude: 1}

		want := EarthRadiusMeters * DegreesToRadians
		if got := DistanceMeters(a, b); math.Abs(got-want) > 0.01 {
			t.Errorf("DistanceMeters = %.3f, want %.3f", got, want)
		}
		if got := DistanceNauticalMiles(a, b); math.Abs(got-60.04) > 0.05 {
			t.Errorf("DistanceNauticalMiles = %.3f, want ~60.04", got)
		}
	})

	t.Run("Same point", func(t *testing.T) {
		a := Geographic{Longitude: -122.4, Latitude: 37.8}
		if got := AngularDistance(a, a); got != 0 {
			t.Errorf("AngularDistance of identical points = %g, want 0", got)
		}
	})

	t.Run("Antipodes", func(t *testing.T) {
		a := Geographic{Longitude: 0, Latitude: 0}
		b := Geographic{Longitude: 180, Latitude: 0}
		if got := AngularDistance(a, b); math.Abs(got-math.Pi) > 1e-9 {
			t.Errorf("AngularDistance of antipodes = %g, want pi", got)
		}
	})
}

// TestValid tests coordinate range validation
func TestValid(t *testing.T) {
	tests := []struct {
		name string
		g    Geographic
		want bool
	}{
		{"Origin", Geographic{0, 0}, true},
		{"Corners", Geographic{180, -90}, true},
		{"Latitude too large", Geographic{0, 90.5}, false},
		{"Longitude too small", Geographic{-180.1, 0}, false},
		{"NaN", Geographic{math.NaN(), 0}, false},
		{"Inf", Geographic{0, math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
