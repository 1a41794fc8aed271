package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sjsage522/dealwatch/config"
	"sjsage522/dealwatch/internal/classifier"
	"sjsage522/dealwatch/internal/evaluator"
	"sjsage522/dealwatch/logger"
	"sjsage522/dealwatch/services/worker"
)

func newRunCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scan and watch schedulers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Default

	svc, err := initializeServices(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer svc.Cleanup()

	store, err := openWatchlist(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Info().
		Str("environment", cfg.Environment).
		Int("profiles", len(svc.profiles)).
		Dur("cycle_interval", cfg.ScanCycleInterval).
		Dur("watch_interval", cfg.WatchInterval).
		Msg("Starting application")

	eval := evaluator.New(svc.seen, classifier.NewDefault())
	scanner := worker.NewScanScheduler(svc.profiles, svc.fetcher, eval, svc.publisher, worker.ScanOptions{
		CycleInterval: cfg.ScanCycleInterval,
		MinDelay:      cfg.ScanMinDelay,
		MaxDelay:      cfg.ScanMaxDelay,
	})
	watcher := worker.NewWatchScheduler(store, svc.profiles, svc.fetcher, svc.publisher, cfg.WatchInterval,
		worker.WithHitCache(svc.seen))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scanner.Start(gctx) })
	g.Go(func() error { return watcher.Start(gctx) })
	if svc.sweeper != nil {
		g.Go(func() error { return svc.sweeper.Run(gctx, 0) })
	}

	err = g.Wait()
	log.Info().Msg("Shutting down gracefully...")
	return err
}
