package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/dealwatch/config"
	"sjsage522/dealwatch/internal/classifier"
	"sjsage522/dealwatch/internal/crawler"
	"sjsage522/dealwatch/internal/evaluator"
	"sjsage522/dealwatch/services/worker"
)

func newScanCommand(cfg *config.Config) *cobra.Command {
	var (
		site    string
		pub     string
		noDelay bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			svc, err := initializeServices(ctx, cfg, pub)
			if err != nil {
				return err
			}
			defer svc.Cleanup()

			targets, err := selectTargets(svc.profiles, site)
			if err != nil {
				return err
			}

			var opts []worker.ScanOption
			if noDelay {
				opts = append(opts, worker.WithScanSleep(func(context.Context, time.Duration) error { return nil }))
			}
			scanner := worker.NewScanScheduler(targets, svc.fetcher, evaluator.New(svc.seen, classifier.NewDefault()), svc.publisher,
				worker.ScanOptions{MinDelay: cfg.ScanMinDelay, MaxDelay: cfg.ScanMaxDelay}, opts...)

			stats := scanner.RunCycle(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "pass %s: %d targets, %d failed, %d deals, %d published\n",
				stats.PassID, stats.Targets, stats.Failed, stats.Deals, stats.Published)
			if stats.Targets > 0 && stats.Failed == stats.Targets {
				return fmt.Errorf("all %d targets failed", stats.Targets)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "scan only the profile with this name")
	cmd.Flags().StringVar(&pub, "publisher", "", "override the configured publisher (redis or log)")
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "skip the random wait between targets")
	return cmd
}

func selectTargets(profiles crawler.Profiles, site string) (crawler.Profiles, error) {
	if site == "" {
		return profiles, nil
	}
	p, ok := profiles.ByName(site)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", site)
	}
	return crawler.Profiles{p}, nil
}
