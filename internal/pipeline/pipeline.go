// Package pipeline assembles the data source, refresh coordinator and
// animation driver described by a config.Config and runs them together.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/skytrail/internal/animation"
	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/internal/refresh"
	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/tracking"
)

// Pipeline is the running core: source -> coordinator -> store -> driver.
type Pipeline struct {
	Source      adsb.DataSource
	Store       *tracking.Store
	Driver      *animation.Driver
	Coordinator *refresh.Coordinator

	logger *slog.Logger
}

// RotationConvention converts the render section of the config.
func RotationConvention(cfg config.RenderConfig) (tracking.RotationConvention, error) {
	dir, err := tracking.ParseRotationDirection(cfg.RotationDirection)
	if err != nil {
		return tracking.RotationConvention{}, err
	}
	return tracking.RotationConvention{OffsetDegrees: cfg.RotationOffsetDegrees, Direction: dir}, nil
}

// NewSource builds the configured data source. The database source
// connects immediately, retrying until ctx is done.
func NewSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adsb.DataSource, error) {
	src := cfg.Source
	switch src.Type {
	case config.SourceOpenSky:
		return adsb.NewOpenSkyClient(adsb.OpenSkyConfig{
			BaseURL:  src.BaseURL,
			Username: src.Username,
			Password: src.Password,
			Box: adsb.BoundingBox{
				MinLatitude:  src.BoundingBox.MinLatitude,
				MinLongitude: src.BoundingBox.MinLongitude,
				MaxLatitude:  src.BoundingBox.MaxLatitude,
				MaxLongitude: src.BoundingBox.MaxLongitude,
			},
			MinInterval: src.RateLimit(),
			Timeout:     src.Timeout(),
		}), nil

	case config.SourceAirplanesLive:
		return adsb.NewAirplanesLiveClient(adsb.AirplanesLiveConfig{
			BaseURL:     src.BaseURL,
			CenterLat:   src.Region.Latitude,
			CenterLon:   src.Region.Longitude,
			RadiusNM:    src.Region.RadiusNM,
			MinInterval: src.RateLimit(),
			Timeout:     src.Timeout(),
		}), nil

	case config.SourceDatabase:
		database, err := db.ConnectWithRetry(ctx, cfg.Database, 0, time.Second, logger)
		if err != nil {
			return nil, err
		}
		return db.NewSnapshotSource(database), nil
	}
	return nil, fmt.Errorf("unknown source type %q", src.Type)
}

// New wires a pipeline around source.
func New(cfg *config.Config, source adsb.DataSource, logger *slog.Logger) (*Pipeline, error) {
	rot, err := RotationConvention(cfg.Render)
	if err != nil {
		return nil, err
	}

	store := tracking.NewStore()
	driver := animation.NewDriver(animation.Config{
		RefreshPeriod: cfg.Refresh.Period(),
		FrameRate:     cfg.Animation.FrameRate,
		Logger:        logger,
	})
	coord := refresh.NewCoordinator(source, store, driver, refresh.Config{
		Period:       cfg.Refresh.Period(),
		Rotation:     rot,
		FetchRetries: cfg.Refresh.FetchRetries,
		RetryDelay:   cfg.Refresh.RetryDelay(),
		Logger:       logger,
	})

	return &Pipeline{
		Source:      source,
		Store:       store,
		Driver:      driver,
		Coordinator: coord,
		logger:      logger,
	}, nil
}

// Run starts the refresh loop, the frame clock and any extra services and
// blocks until ctx is done or one of them fails. The source is closed on
// return.
func (p *Pipeline) Run(ctx context.Context, services ...func(context.Context) error) error {
	defer func() {
		if err := p.Source.Close(); err != nil {
			p.logger.Warn("failed to close source", slog.Any("error", err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Driver.Run(ctx) })
	g.Go(func() error { return p.Coordinator.Run(ctx) })
	for _, svc := range services {
		svc := svc
		g.Go(func() error { return svc(ctx) })
	}
	return g.Wait()
}
