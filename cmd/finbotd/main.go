package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finbot/bot"
	"finbot/bot/telegram"
	"finbot/config"
	"finbot/dialog"
	"finbot/httpapi"
	"finbot/ledger"
	"finbot/observability/logging"
	"finbot/scheduler"
	"finbot/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("finbot", logging.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		MaxSize:     cfg.MaxLogSize,
		BackupCount: cfg.LogBackupCount,
	})

	store, err := storage.Open(cfg.DatabasePath, cfg.DatabaseTimeout, cfg.MaxConnections)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ldgr := ledger.New(store, logger)
	states := dialog.NewStateStore(cfg.MaxUserStates)
	machine := dialog.NewMachine(ldgr, states, logger)

	client := telegram.New(cfg.BotToken)
	router := bot.NewRouter(ldgr, machine, client, cfg.AuthorizedUserID, logger)
	poll := bot.NewPollLoop(client, router, logger)
	dispatcher := bot.NewDispatcher(ldgr, client, logger)

	tasks := scheduler.BuildTasks(ldgr, states, scheduler.TaskConfig{
		AuthorizedUserID: cfg.AuthorizedUserID,
		BackupEnabled:    cfg.BackupEnabled,
		RetentionDays:    cfg.BackupRetentionDays,
		StateTTL:         cfg.StateTTL,
	}, logger)
	sched := scheduler.New(tasks, logger)
	sched.Start()

	srv := &http.Server{
		Addr:    cfg.ListenAddress(),
		Handler: httpapi.NewServer(ldgr, logger).Routes(),
	}
	go func() {
		logger.Info("health surface listening", "addr", cfg.ListenAddress())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	pollCtx, stopPolling := context.WithCancel(context.Background())
	go dispatcher.Run(pollCtx)

	pollErr := make(chan error, 1)
	go func() { pollErr <- poll.Run(pollCtx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	case err := <-pollErr:
		if err != nil {
			logger.Error("poll loop failed", "error", err)
			exitCode = 1
		}
	}

	// Poller first so no new writes arrive, then the worker, pool last.
	stopPolling()
	sched.Stop(shutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if exitCode != 0 {
		cancel()
		_ = store.Close()
		os.Exit(exitCode)
	}
}
