package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/skytrail/internal/animation"
	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/tracking"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	records []adsb.Aircraft
	closed  atomic.Bool
}

func (s *staticSource) Fetch(context.Context) ([]adsb.Aircraft, error) { return s.records, nil }
func (s *staticSource) Close() error                                   { s.closed.Store(true); return nil }

func TestRotationConvention(t *testing.T) {
	rot, err := RotationConvention(config.RenderConfig{RotationOffsetDegrees: 45, RotationDirection: "ccw"})
	require.NoError(t, err)
	assert.Equal(t, tracking.CounterClockwise, rot.Direction)
	assert.InDelta(t, 315.0, rot.Rotation(90), 1e-9)

	_, err = RotationConvention(config.RenderConfig{RotationDirection: "up"})
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	cfg := config.DefaultConfig()

	src, err := NewSource(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &adsb.OpenSkyClient{}, src)

	cfg.Source.Type = config.SourceAirplanesLive
	src, err = NewSource(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &adsb.AirplanesLiveClient{}, src)

	cfg.Source.Type = "carrier-pigeon"
	_, err = NewSource(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}

func TestPipelineRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Refresh.PeriodSeconds = 0.5
	cfg.Animation.FrameRate = 50

	source := &staticSource{records: []adsb.Aircraft{
		{ICAO: "abc123", Longitude: -122.4, Latitude: 37.8, GroundSpeed: 200, Track: 90},
	}}
	p, err := New(cfg, source, quietLogger())
	require.NoError(t, err)

	var frames atomic.Int64
	p.Driver.AddSink(animation.SinkFunc(func(f animation.Frame) {
		if len(f.Entities) == 1 {
			frames.Add(1)
		}
	}))

	var extraRan atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- p.Run(ctx, func(ctx context.Context) error {
			extraRan.Store(true)
			<-ctx.Done()
			return nil
		})
	}()

	require.Eventually(t, func() bool { return frames.Load() >= 5 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)

	assert.True(t, extraRan.Load())
	assert.True(t, source.closed.Load())
	assert.Equal(t, 1, p.Store.Load().Len())
	assert.GreaterOrEqual(t, p.Coordinator.Stats().Cycles, 1)
}

func TestPipelineOpenSkyEndToEnd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"time":1700000000,"states":[
			["a0b1c2","UAL123  ","United States",1700000000,1699999999,-122.4,37.8,3000.0,false,185.0,90.0,0.0,null,3100.0,"1200",false,0]
		]}`))
	}))
	defer ts.Close()

	cfg := config.DefaultConfig()
	cfg.Source.BaseURL = ts.URL
	cfg.Source.RateLimitSeconds = 0

	src, err := NewSource(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	p, err := New(cfg, src, quietLogger())
	require.NoError(t, err)

	snap, err := p.Coordinator.RefreshOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())

	frame, ok := p.Driver.Tick(time.Now().Add(5 * time.Second))
	require.True(t, ok)
	e := frame.Entities[0]
	assert.Equal(t, "a0b1c2", e.ID)
	assert.Equal(t, "UAL123", e.Metadata.Callsign)
	assert.Greater(t, e.Longitude, -122.4)
	assert.InDelta(t, 37.8, e.Latitude, 0.05)
}
