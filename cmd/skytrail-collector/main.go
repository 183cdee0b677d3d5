// skytrail-collector polls an online ADS-B source and stores positions in
// PostgreSQL, so several skytrail instances can run with source type
// "database" without each hitting the API rate limits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/internal/pipeline"
	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file (.json or .yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "skytrail-collector: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Source.Type == config.SourceDatabase {
		return errors.New("collector needs an online source, not \"database\"")
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectWithRetry(ctx, cfg.Database, 0, time.Second, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		return err
	}
	logger.Info("database ready", slog.String("host", cfg.Database.Host), slog.String("database", cfg.Database.Database))

	source, err := pipeline.NewSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	defer source.Close()

	c := &Collector{
		source:   source,
		recorder: db.NewRecorder(database),
		interval: cfg.Refresh.Period(),
		staleAge: time.Duration(cfg.Database.StaleSeconds) * time.Second,
		retry: adsb.RetryConfig{
			MaxRetries:        cfg.Refresh.FetchRetries,
			InitialDelay:      cfg.Refresh.RetryDelay(),
			MaxDelay:          cfg.Refresh.Period() / 2,
			Multiplier:        2.0,
			RespectRetryAfter: true,
			Logger:            logger,
		},
		logger: logger,
		now:    time.Now,
	}

	logger.Info("collector started",
		slog.String("source", cfg.Source.Type),
		slog.Duration("interval", c.interval),
		slog.Duration("stale_after", c.staleAge))
	c.Run(ctx)
	logger.Info("collector stopped")
	return nil
}
