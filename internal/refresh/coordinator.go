// Package refresh periodically pulls raw samples from a data source, turns
// them into a tracking snapshot and hands it to the animation driver.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/tracking"
)

// ErrFetch wraps any data source failure. A failed cycle leaves the
// published snapshot untouched.
var ErrFetch = errors.New("fetch failed")

// DefaultPeriod is the refresh interval when none is configured.
const DefaultPeriod = 10 * time.Second

// Resetter is notified after every successful publish.
// *animation.Driver implements it.
type Resetter interface {
	Reset(*tracking.Snapshot)
}

// Config contains configuration for the coordinator.
type Config struct {
	// Period between refreshes (default 10s)
	Period time.Duration

	// Rotation maps headings to renderer angles
	Rotation tracking.RotationConvention

	// FetchRetries is the number of in-cycle retries after a failed fetch
	// (default 0). Retries never run past the end of the current period.
	FetchRetries int

	// RetryDelay is the first backoff delay for in-cycle retries
	RetryDelay time.Duration

	// Logger; nil uses slog.Default()
	Logger *slog.Logger
}

// Stats summarises refresh activity.
type Stats struct {
	Cycles        int       `json:"cycles"`
	Failures      int       `json:"failures"`
	Entities      int       `json:"entities"`
	Dropped       int       `json:"dropped"`
	Generation    uint64    `json:"generation"`
	LastSuccess   time.Time `json:"last_success"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorTime time.Time `json:"last_error_time"`
}

// Coordinator owns the refresh cycle.
type Coordinator struct {
	source   adsb.DataSource
	store    *tracking.Store
	resetter Resetter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewCoordinator wires a source to a store. resetter may be nil.
func NewCoordinator(source adsb.DataSource, store *tracking.Store, resetter Resetter, cfg Config) *Coordinator {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		source:   source,
		store:    store,
		resetter: resetter,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "refresh")),
		now:      time.Now,
	}
}

// Run refreshes immediately and then once per period until ctx is done.
// Fetch failures are logged and the cycle is skipped.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Period)
	defer ticker.Stop()

	c.logger.Info("refresh loop started", slog.Duration("period", c.cfg.Period))
	c.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("refresh loop stopped")
			return nil
		case <-ticker.C:
			c.cycle(ctx)
		}
	}
}

// cycle runs one refresh and keeps a failure from escaping the loop.
func (c *Coordinator) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic during refresh, will retry next cycle", slog.Any("panic", r))
			c.recordFailure(fmt.Errorf("%w: panic: %v", ErrFetch, r))
		}
	}()

	if _, err := c.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("refresh skipped", slog.Any("error", err))
	}
}

// RefreshOnce fetches, builds and publishes one snapshot. On failure the
// returned error wraps ErrFetch and nothing is published.
func (c *Coordinator) RefreshOnce(ctx context.Context) (*tracking.Snapshot, error) {
	records, err := c.fetch(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFetch, err)
		c.recordFailure(err)
		return nil, err
	}

	snap := tracking.BuildSnapshot(records, c.cfg.Period, c.cfg.Rotation, c.now().UTC())
	gen := c.store.Publish(snap)
	if c.resetter != nil {
		// The driver always animates what the store holds
		c.resetter.Reset(c.store.Load())
	}

	for _, d := range snap.Dropped {
		c.logger.Debug("record dropped", slog.String("id", d.ID), slog.Any("error", d.Err))
	}
	c.logger.Info("snapshot published",
		slog.Uint64("generation", gen),
		slog.Int("entities", len(snap.Entities)),
		slog.Int("dropped", len(snap.Dropped)))

	c.mu.Lock()
	c.stats.Cycles++
	c.stats.Entities = len(snap.Entities)
	c.stats.Dropped = len(snap.Dropped)
	c.stats.Generation = gen
	c.stats.LastSuccess = snap.FetchedAt
	c.mu.Unlock()

	return snap, nil
}

// Stats returns a copy of the current counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// fetch calls the source, retrying within the current period if configured.
func (c *Coordinator) fetch(ctx context.Context) ([]adsb.Aircraft, error) {
	if c.cfg.FetchRetries <= 0 {
		return c.source.Fetch(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Period)
	defer cancel()

	retryConfig := adsb.RetryConfig{
		MaxRetries:        c.cfg.FetchRetries,
		InitialDelay:      c.cfg.RetryDelay,
		MaxDelay:          c.cfg.Period / 2,
		Multiplier:        2.0,
		RespectRetryAfter: true,
		Logger:            c.logger,
	}
	return adsb.RetryWithBackoffResult(ctx, retryConfig, func() ([]adsb.Aircraft, error) {
		return c.source.Fetch(ctx)
	})
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Cycles++
	c.stats.Failures++
	c.stats.LastError = err.Error()
	c.stats.LastErrorTime = c.now().UTC()
}
