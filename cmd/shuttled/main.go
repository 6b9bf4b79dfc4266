package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"shuttle/internal/config"
	"shuttle/internal/daemon"
	"shuttle/internal/events"
	"shuttle/internal/history"
	"shuttle/internal/hosts"
	"shuttle/internal/logging"
	"shuttle/internal/preflight"
	"shuttle/internal/remote"
	"shuttle/internal/rsync"
	"shuttle/internal/transfer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("starting shuttled", logging.String("config", path))

	registry, err := hosts.NewRegistry(cfg)
	if err != nil {
		logger.Error("build host registry", logging.Error(err))
		return
	}

	for _, result := range preflight.RunAll(ctx, cfg, registry) {
		if result.Passed {
			logger.Debug("preflight ok",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	sessions := remote.NewManager(logger,
		remote.WithConnectTimeout(cfg.SSH.ConnectTimeoutDuration()))
	driver := rsync.NewRunner(sessions,
		rsync.WithBinary(cfg.SSH.RsyncBinary),
		rsync.WithLogger(logging.NewComponentLogger(logger, "rsync")))
	hub := events.NewHub(cfg.Transfers.EventBuffer)

	var journal *history.Journal
	if cfg.Paths.HistoryDB != "" {
		journal, err = history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			logger.Error("open history journal", logging.Error(err))
			return
		}
	}

	managerOpts := []transfer.Option{
		transfer.WithLogger(logging.NewComponentLogger(logger, "transfer")),
	}
	if journal != nil {
		managerOpts = append(managerOpts, transfer.WithJournal(journal))
	}
	transfers := transfer.NewManager(registry, driver, hub, cfg.Transfers.Concurrency, managerOpts...)

	d, err := daemon.New(cfg, registry, sessions, transfers, hub, journal, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("shuttled shutting down")
	d.Stop()
}
