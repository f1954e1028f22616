package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tickvault/internal/resume"
	"tickvault/internal/storage"
)

func newUpdateCmd(a *app) *cobra.Command {
	var (
		all    bool
		days   int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "update [symbol]",
		Short: "Catch up each symbol from its latest tick partition through yesterday",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := a.resolveSymbols(args, all)
			if err != nil {
				return err
			}
			store := a.primarySink()
			if store == nil {
				return fmt.Errorf("no storage destination configured")
			}
			if days <= 0 {
				days = a.cfg.Watch.FallbackDays
			}
			planner := resume.NewPlanner(store)

			for _, symbol := range symbols {
				rng, err := planner.NextRange(storage.TickPrefix(symbol), days)
				if err != nil {
					return err
				}
				if rng.Empty() {
					slog.Info("already up to date", "symbol", symbol)
					continue
				}
				slog.Info("resume range",
					"symbol", symbol,
					"start", rng.Start.Format("2006-01-02"),
					"end", rng.End.Format("2006-01-02"),
				)
				if dryRun {
					continue
				}
				summary, err := a.runImport(cmd.Context(), symbol, rng.Start, rng.End, importOptions{delay: -1})
				if err != nil {
					return err
				}
				logSummary(symbol, summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "update every configured symbol")
	cmd.Flags().IntVar(&days, "days", 0, "fallback window when no partitions exist (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the planned range without fetching")
	return cmd
}
