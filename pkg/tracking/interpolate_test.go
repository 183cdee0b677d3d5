package tracking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

func TestInterpolatorEndpoints(t *testing.T) {
	pairs := []struct {
		name string
		a, b coordinates.Geographic
	}{
		{"short hop", coordinates.Geographic{Longitude: -122.4, Latitude: 37.8}, coordinates.Geographic{Longitude: -122.19, Latitude: 37.79}},
		{"transatlantic", coordinates.Geographic{Longitude: -73.78, Latitude: 40.64}, coordinates.Geographic{Longitude: -0.45, Latitude: 51.47}},
		{"antimeridian", coordinates.Geographic{Longitude: 179.9, Latitude: -16.0}, coordinates.Geographic{Longitude: -179.8, Latitude: -16.2}},
		{"polar", coordinates.Geographic{Longitude: 0, Latitude: 89.5}, coordinates.Geographic{Longitude: 180, Latitude: 89.5}},
	}

	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			ip := NewInterpolator(p.a, p.b)
			require.False(t, ip.Degenerate())

			assert.Equal(t, p.a, ip.At(0))
			assert.Equal(t, p.b, ip.At(1))
			assert.Equal(t, p.a, ip.Start())
			assert.Equal(t, p.b, ip.End())
		})
	}
}

func TestInterpolatorStaysOnGreatCircle(t *testing.T) {
	a := coordinates.Geographic{Longitude: -73.78, Latitude: 40.64}
	b := coordinates.Geographic{Longitude: -0.45, Latitude: 51.47}
	ip := NewInterpolator(a, b)
	total := ip.AngularDistance()

	for _, frac := range []float64{0.1, 0.25, 0.5, 0.75, 0.9} {
		p := ip.At(frac)
		assert.True(t, p.Valid(), "point at %v is out of range: %v", frac, p)

		fromStart := coordinates.AngularDistance(a, p)
		toEnd := coordinates.AngularDistance(p, b)
		assert.InDelta(t, frac*total, fromStart, 1e-9)
		assert.InDelta(t, total, fromStart+toEnd, 1e-9)
	}
}

func TestInterpolatorMonotonic(t *testing.T) {
	a := coordinates.Geographic{Longitude: -122.4, Latitude: 37.8}
	b := Destination(a, 18500, 90)
	ip := NewInterpolator(a, b)

	prev := -1.0
	for i := 1; i <= 300; i++ {
		frac := float64(i) / 300
		d := coordinates.AngularDistance(a, ip.At(frac))
		require.Greater(t, d, prev, "t=%v did not advance", frac)
		prev = d
	}
}

func TestInterpolatorDegenerate(t *testing.T) {
	t.Run("coincident points return start", func(t *testing.T) {
		a := coordinates.Geographic{Longitude: 2.35, Latitude: 48.85}
		ip := NewInterpolator(a, a)

		assert.True(t, ip.Degenerate())
		for _, frac := range []float64{0, 0.3, 0.5, 1} {
			assert.Equal(t, a, ip.At(frac))
		}
	})

	t.Run("antipodal points return start", func(t *testing.T) {
		a := coordinates.Geographic{Longitude: 0, Latitude: 0}
		b := coordinates.Geographic{Longitude: 180, Latitude: 0}
		ip := NewInterpolator(a, b)

		assert.True(t, ip.Degenerate())
		got := ip.At(0.5)
		assert.False(t, math.IsNaN(got.Latitude) || math.IsNaN(got.Longitude))
		assert.Equal(t, a, got)
	})
}

func TestInterpolatorMidpointEquator(t *testing.T) {
	ip := NewInterpolator(
		coordinates.Geographic{Longitude: 10, Latitude: 0},
		coordinates.Geographic{Longitude: 20, Latitude: 0},
	)

	mid := ip.At(0.5)
	assert.InDelta(t, 15.0, mid.Longitude, 1e-9)
	assert.InDelta(t, 0.0, mid.Latitude, 1e-9)
}
