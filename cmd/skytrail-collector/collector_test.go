package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/pkg/adsb"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeSource) Fetch(context.Context) ([]adsb.Aircraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []adsb.Aircraft{
		{ICAO: "a00001", Latitude: 35, Longitude: -80, GroundSpeed: 100, Track: 90},
		{ICAO: "a00002", Latitude: 36, Longitude: -81, GroundSpeed: 120, Track: 180},
	}, nil
}

func (f *fakeSource) Close() error { return nil }

type fakeRecorder struct {
	mu       sync.Mutex
	records  int
	hides    int
	lastAge  time.Duration
	recordOK bool
}

func (f *fakeRecorder) Record(_ context.Context, aircraft []adsb.Aircraft, _ time.Time) (db.RecordResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
	if !f.recordOK {
		return db.RecordResult{}, errors.New("connection reset")
	}
	return db.RecordResult{Stored: len(aircraft)}, nil
}

func (f *fakeRecorder) HideStale(_ context.Context, maxAge time.Duration, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
	f.lastAge = maxAge
	return 1, nil
}

func newTestCollector(src adsb.DataSource, rec recorder) *Collector {
	return &Collector{
		source:   src,
		recorder: rec,
		interval: time.Second,
		staleAge: 2 * time.Minute,
		retry:    adsb.RetryConfig{InitialDelay: time.Millisecond, Multiplier: 2},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
}

func TestCollectorUpdate(t *testing.T) {
	src := &fakeSource{}
	rec := &fakeRecorder{recordOK: true}
	c := newTestCollector(src, rec)

	c.update(context.Background())

	assert.Equal(t, 1, rec.records)
	assert.Equal(t, 1, rec.hides)
	assert.Equal(t, 2*time.Minute, rec.lastAge)
	assert.Equal(t, 2, c.stored)
}

func TestCollectorRetriesFetch(t *testing.T) {
	src := &fakeSource{errs: []error{errors.New("timeout"), nil}}
	rec := &fakeRecorder{recordOK: true}
	c := newTestCollector(src, rec)
	c.retry.MaxRetries = 2

	c.update(context.Background())

	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 2, c.stored)
}

func TestCollectorSkipsFailedCycles(t *testing.T) {
	src := &fakeSource{errs: []error{errors.New("timeout")}}
	rec := &fakeRecorder{recordOK: true}
	c := newTestCollector(src, rec)

	c.update(context.Background())
	assert.Equal(t, 0, rec.records)

	rec.recordOK = false
	c.update(context.Background())
	assert.Equal(t, 1, rec.records)
	assert.Equal(t, 0, rec.hides, "no cleanup after a failed write")
	assert.Equal(t, 0, c.stored)
}

func TestCollectorRun(t *testing.T) {
	src := &fakeSource{}
	rec := &fakeRecorder{recordOK: true}
	c := newTestCollector(src, rec)
	c.interval = 20 * time.Millisecond
	c.staleAge = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.records >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 0, rec.hides)
}
