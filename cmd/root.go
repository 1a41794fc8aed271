// Package cmd wires the configuration, stores and schedulers behind the dealwatch CLI.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sjsage522/dealwatch/config"
	"sjsage522/dealwatch/logger"
)

// NewRootCommand builds the command tree. Configuration is read from the environment before
// any subcommand runs.
func NewRootCommand() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "dealwatch",
		Short:         "Deal detection and price watch worker",
		Long:          "Scans marketplace listing pages for discounted products, deduplicates and publishes them, and watches single product pages against target prices.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded := config.LoadConfig()
			logger.InitWithWriter(logWriter(loaded, os.Stdout))

			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = *loaded
			return nil
		},
	}

	root.AddCommand(
		newRunCommand(&cfg),
		newScanCommand(&cfg),
		newWatchCommand(&cfg),
	)
	return root
}

// logWriter emits JSON lines in production and a readable console format elsewhere
func logWriter(cfg *config.Config, out io.Writer) io.Writer {
	if cfg.IsProduction() {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

// Execute runs the root command and reports the first error to the log
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		if logger.Default == nil {
			logger.Init()
		}
		logger.Default.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}
