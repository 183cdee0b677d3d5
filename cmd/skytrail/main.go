// skytrail streams smoothly animated live aircraft positions.
//
// It pulls raw positions from OpenSky, airplanes.live or a collector
// database every refresh period, dead-reckons each aircraft along a great
// circle, and publishes interpolated frames at display rate over WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/internal/pipeline"
	"github.com/unklstewy/skytrail/internal/stream"
	"github.com/unklstewy/skytrail/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file (.json or .yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "skytrail: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("path", configPath),
		slog.String("source", cfg.Source.Type),
		slog.Duration("refresh", cfg.Refresh.Period()),
		slog.Float64("fps", cfg.Animation.FrameRate),
		slog.Float64("rotation_offset", cfg.Render.RotationOffsetDegrees),
		slog.String("rotation_direction", cfg.Render.RotationDirection))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := pipeline.NewSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}

	p, err := pipeline.New(cfg, source, logger)
	if err != nil {
		source.Close()
		return err
	}

	var services []func(context.Context) error
	if cfg.Stream.Enabled {
		enc, err := stream.NewEncoder(cfg.Stream.Encoding)
		if err != nil {
			source.Close()
			return err
		}
		hub := stream.NewHub(stream.HubConfig{
			Encoder:        enc,
			ClientBuffer:   cfg.Stream.ClientBuffer,
			FrameDivisor:   cfg.Stream.FrameDivisor,
			AllowedOrigins: cfg.Stream.AllowedOrigins,
			Logger:         logger,
		})
		p.Driver.AddSink(hub)

		srv := stream.NewServer(stream.ServerConfig{
			Addr:           cfg.Server.Addr(),
			AllowedOrigins: cfg.Stream.AllowedOrigins,
			Logger:         logger,
		}, hub, p.Driver, p.Coordinator)
		services = append(services, srv.Run)
	}

	logger.Info("skytrail started")
	if err := p.Run(ctx, services...); err != nil {
		return err
	}
	logger.Info("skytrail stopped")
	return nil
}
