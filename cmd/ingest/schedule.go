package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func runSchedule(c *cli.Context) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := build(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	ops := newOpsServer(ctx, deps.runner)

	if cfg.Scheduler.Cron != "" {
		scheduler := gocron.NewScheduler(time.UTC)
		scheduler.SingletonModeAll()
		if _, err := scheduler.Cron(cfg.Scheduler.Cron).Do(ops.scheduledRun); err != nil {
			return err
		}
		scheduler.StartAsync()
		defer scheduler.Stop()
		log.Info().Str("cron", cfg.Scheduler.Cron).Msg("Scheduler started")
	} else {
		log.Info().Msg("No SCHEDULE_CRON set, runs start only via POST /trigger")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Scheduler.Port,
		Handler:           ops.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Scheduler.Port).Msg("Starting ops server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info().Msg("Shutting down scheduler...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ops server forced to shutdown")
	}

	// In-flight runs see the cancelled context and stop at the next boundary.
	ops.wait()
	return nil
}
