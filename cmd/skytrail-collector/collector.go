package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/pkg/adsb"
)

// recorder is the part of db.Recorder the collector uses.
type recorder interface {
	Record(ctx context.Context, aircraft []adsb.Aircraft, now time.Time) (db.RecordResult, error)
	HideStale(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error)
}

// Collector fetches aircraft on a fixed interval and records them.
type Collector struct {
	source   adsb.DataSource
	recorder recorder
	interval time.Duration
	staleAge time.Duration // 0 disables cleanup
	retry    adsb.RetryConfig
	logger   *slog.Logger
	now      func() time.Time

	updates int
	stored  int
}

// Run updates immediately and then every interval until ctx is done.
// Stale aircraft are hidden after each update.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.update(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.update(ctx)
		}
	}
}

func (c *Collector) update(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("collector update panicked", slog.Any("panic", r))
		}
	}()

	now := c.now().UTC()
	c.updates++

	fetchCtx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	aircraft, err := adsb.RetryWithBackoffResult(fetchCtx, c.retry, func() ([]adsb.Aircraft, error) {
		return c.source.Fetch(fetchCtx)
	})
	if err != nil {
		c.logger.Warn("fetch failed, will retry next cycle", slog.Int("update", c.updates), slog.Any("error", err))
		return
	}

	res, err := c.recorder.Record(ctx, aircraft, now)
	if err != nil {
		c.logger.Error("failed to store aircraft", slog.Any("error", err))
		return
	}
	c.stored += res.Stored

	var hidden int64
	if c.staleAge > 0 {
		hidden, err = c.recorder.HideStale(ctx, c.staleAge, now)
		if err != nil {
			c.logger.Warn("failed to hide stale aircraft", slog.Any("error", err))
		}
	}

	c.logger.Info("update complete",
		slog.Int("update", c.updates),
		slog.Int("fetched", len(aircraft)),
		slog.Int("stored", res.Stored),
		slog.Int("skipped", res.Skipped),
		slog.Int64("hidden", hidden))
}
