package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/bootstrap"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/config"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/jobs"
)

// The slot worker keeps every provider's generated slots a full horizon ahead.
// Run with -once for a one-off backfill after changing the horizon.
func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "roll the horizon forward once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := bootstrap.NewLogger(cfg.Logging)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.Database.UseMemory() {
		logger.Fatal("The slot worker needs a shared database; the API runs roll-forward itself with the memory driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbs, err := bootstrap.OpenDatabases(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbs.Close()

	api, err := bootstrap.Marketplace(cfg, dbs, nil, logger)
	if err != nil {
		logger.Fatal("Failed to set up marketplace services", zap.Error(err))
	}
	defer api.Close()

	scheduler := jobs.NewManager(logger.Named("jobs"))
	if err := scheduler.Register(jobs.RollForward(api.Calendar, cfg.Scheduling.RollForwardCron, logger)); err != nil {
		logger.Fatal("Failed to register slot roll-forward job", zap.Error(err))
	}

	if *once {
		if err := scheduler.RunNow(ctx, jobs.SlotRollForwardJob); err != nil {
			logger.Fatal("Slot roll-forward failed", zap.Error(err))
		}
		return
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start jobs", zap.Error(err))
	}
	logger.Info("Slot worker started", zap.String("cron", cfg.Scheduling.RollForwardCron))

	<-ctx.Done()
	logger.Info("Slot worker shutting down")
	scheduler.Stop()
}
