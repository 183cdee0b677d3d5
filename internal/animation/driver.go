// Package animation drives the per-frame clock that samples every tracked
// entity along its great-circle path between refreshes.
package animation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unklstewy/skytrail/pkg/tracking"
)

// DefaultFrameRate is the nominal display rate when none is configured.
const DefaultFrameRate = 60.0

// State is the driver lifecycle state.
type State int

const (
	// Idle means no snapshot has been received; Tick emits nothing.
	Idle State = iota
	// Running means a snapshot is bound and frames are produced.
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// RenderedEntity is one aircraft in a frame.
type RenderedEntity struct {
	ID              string            `json:"id" msgpack:"id"`
	Longitude       float64           `json:"lon" msgpack:"lon"`
	Latitude        float64           `json:"lat" msgpack:"lat"`
	HeadingDegrees  float64           `json:"heading" msgpack:"heading"`
	RotationDegrees float64           `json:"rotation" msgpack:"rotation"`
	Metadata        tracking.Metadata `json:"meta" msgpack:"meta"`
}

// Frame is the full position list emitted once per tick.
type Frame struct {
	// Generation of the snapshot this frame was interpolated from
	Generation uint64 `json:"generation" msgpack:"generation"`

	// Sequence counts frames since the last reset, starting at 0
	Sequence uint64 `json:"sequence" msgpack:"sequence"`

	// T is the interpolation fraction in [0, 1]
	T float64 `json:"t" msgpack:"t"`

	// FramesPerRefresh is the nominal frame count per refresh period
	FramesPerRefresh float64 `json:"frames_per_refresh" msgpack:"frames_per_refresh"`

	// Time is the wall clock instant the frame was sampled at
	Time time.Time `json:"time" msgpack:"time"`

	// Entities ordered by ID
	Entities []RenderedEntity `json:"entities" msgpack:"entities"`
}

// Sink consumes frames. Render is called on the driver goroutine and must
// not block; slow consumers should buffer or drop.
type Sink interface {
	Render(Frame)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Frame)

// Render calls f(frame).
func (f SinkFunc) Render(frame Frame) { f(frame) }

// Config contains configuration for the driver.
type Config struct {
	// RefreshPeriod is the interval each snapshot's predictions span
	RefreshPeriod time.Duration

	// FrameRate is the target ticks per second (default 60)
	FrameRate float64

	// Now overrides the wall clock, for tests
	Now func() time.Time

	// Logger receives sink failures; nil uses slog.Default()
	Logger *slog.Logger
}

// frameState is the unit of publication: the snapshot, the instant it was
// bound, and the frame counter for that interval. Replacing the pointer
// resets all three together.
type frameState struct {
	snap   *tracking.Snapshot
	epoch  time.Time
	frames atomic.Uint64
}

// Driver samples the current snapshot at frame rate. Reset may be called
// from any goroutine while Run or Tick is in progress.
type Driver struct {
	period    time.Duration
	frameRate float64
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	state   atomic.Pointer[frameState]
	last    atomic.Pointer[Frame]
	resetCh chan struct{}

	mu    sync.RWMutex
	sinks []Sink
}

// NewDriver creates an Idle driver.
func NewDriver(cfg Config) *Driver {
	if cfg.RefreshPeriod <= 0 {
		cfg.RefreshPeriod = 10 * time.Second
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Driver{
		period:    cfg.RefreshPeriod,
		frameRate: cfg.FrameRate,
		interval:  time.Duration(float64(time.Second) / cfg.FrameRate),
		now:       cfg.Now,
		logger:    cfg.Logger,
		resetCh:   make(chan struct{}, 1),
	}
}

// AddSink registers a frame consumer.
func (d *Driver) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// State reports whether a snapshot has been bound yet.
func (d *Driver) State() State {
	if d.state.Load() == nil {
		return Idle
	}
	return Running
}

// FrameInterval is the ticker period derived from the frame rate.
func (d *Driver) FrameInterval() time.Duration {
	return d.interval
}

// FramesPerRefresh is the nominal number of frames per refresh period.
func (d *Driver) FramesPerRefresh() float64 {
	return d.period.Seconds() * d.frameRate
}

// Reset binds a new snapshot, restarts the interval at t=0 and asks Run to
// restart its frame clock. A nil snapshot is treated as empty.
func (d *Driver) Reset(snap *tracking.Snapshot) {
	if snap == nil {
		snap = &tracking.Snapshot{Period: d.period}
	}
	d.state.Store(&frameState{snap: snap, epoch: d.now()})

	select {
	case d.resetCh <- struct{}{}:
	default:
		// A restart is already pending
	}
}

// Tick samples every entity at the interval fraction for now and emits
// the frame to all sinks. It returns false while Idle.
func (d *Driver) Tick(now time.Time) (Frame, bool) {
	fs := d.state.Load()
	if fs == nil {
		return Frame{}, false
	}

	// The snapshot's period is the one its predictions were built for
	period := d.period
	if fs.snap.Period > 0 {
		period = fs.snap.Period
	}
	t := tracking.Clamp01(float64(now.Sub(fs.epoch)) / float64(period))

	frame := Frame{
		Generation:       fs.snap.Generation,
		Sequence:         fs.frames.Add(1) - 1,
		T:                t,
		FramesPerRefresh: d.FramesPerRefresh(),
		Time:             now,
		Entities:         make([]RenderedEntity, len(fs.snap.Entities)),
	}

	for i, e := range fs.snap.Entities {
		pos := e.PositionAt(t)
		frame.Entities[i] = RenderedEntity{
			ID:              e.ID,
			Longitude:       pos.Longitude,
			Latitude:        pos.Latitude,
			HeadingDegrees:  e.HeadingDegrees,
			RotationDegrees: e.RenderHeadingDegrees,
			Metadata:        e.Metadata,
		}
	}

	d.last.Store(&frame)
	d.emit(frame)
	return frame, true
}

// LastFrame returns the most recently emitted frame.
func (d *Driver) LastFrame() (Frame, bool) {
	f := d.last.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Run ticks at the frame rate until ctx is done. Each Reset stops the
// current ticker and starts a fresh one so ticks from two intervals never
// interleave.
func (d *Driver) Run(ctx context.Context) error {
	var ticker *time.Ticker
	var tick <-chan time.Time

	restart := func() {
		if ticker != nil {
			ticker.Stop()
		}
		ticker = time.NewTicker(d.interval)
		tick = ticker.C
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	if d.State() == Running {
		restart()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.resetCh:
			restart()
			d.Tick(d.now())
		case <-tick:
			d.Tick(d.now())
		}
	}
}

func (d *Driver) emit(frame Frame) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		d.render(s, frame)
	}
}

// render isolates one sink so a panicking consumer cannot stop the clock.
func (d *Driver) render(s Sink, frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sink panicked", slog.Any("panic", r), slog.Uint64("generation", frame.Generation))
		}
	}()
	s.Render(frame)
}
