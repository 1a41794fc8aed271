package cmd

import (
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/dealwatch/config"
	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/internal/price"
	"sjsage522/dealwatch/internal/watchlist"
)

func newWatchCommand(cfg *config.Config) *cobra.Command {
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Manage watched product pages",
	}

	watch.AddCommand(
		&cobra.Command{
			Use:   "add URL PRICE",
			Short: "Watch URL until its price drops to PRICE or below",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				target, ok := parseTargetPrice(args[1])
				if !ok {
					return fmt.Errorf("invalid target price %q", args[1])
				}
				item := models.WatchedItem{URL: args[0], TargetPrice: target, CreatedAt: time.Now().UTC()}
				if err := watchlist.Validate(item); err != nil {
					return err
				}

				store, err := openWatchlist(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer store.Close()

				if err := store.Add(cmd.Context(), item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s at %.2f\n", item.URL, item.TargetPrice)
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm URL",
			Aliases: []string{"remove"},
			Short:   "Stop watching URL",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openWatchlist(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer store.Close()

				removed, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("%s is not watched", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List watched URLs with their last observed price",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				store, err := openWatchlist(ctx, cfg)
				if err != nil {
					return err
				}
				defer store.Close()

				items, err := store.List(ctx)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No watched items.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "URL\tTARGET\tLAST PRICE\tLAST CHECK")
				for _, item := range items {
					last, checked := "-", "-"
					p, at, ok, err := store.LastCheck(ctx, item.URL)
					if err != nil {
						return err
					}
					if ok {
						last = strconv.FormatFloat(p, 'f', 2, 64)
						checked = at.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", item.URL, item.TargetPrice, last, checked)
				}
				return w.Flush()
			},
		},
	)
	return watch
}

// parseTargetPrice accepts both "19.99" and page style amounts such as "19,99 €".
// The result is always finite and positive.
func parseTargetPrice(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		var ok bool
		if v, ok = price.ParseAmount(raw); !ok {
			return 0, false
		}
	}
	if math.IsInf(v, 0) || math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}
