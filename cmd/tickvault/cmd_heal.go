package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tickvault/internal/verify"
)

func newHealTicksCmd(a *app) *cobra.Command {
	var onlyFridays bool

	cmd := &cobra.Command{
		Use:   "heal-ticks <symbol> <start> <end>",
		Short: "Re-import weekdays with missing tick partitions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]
			start, end, err := parseDateRange(args[1], args[2])
			if err != nil {
				return err
			}

			store := a.primarySink()
			if store == nil {
				return fmt.Errorf("no storage destination configured")
			}

			v := verify.New(store, a.cfg.Candles.Bucket())
			cov, err := v.TickCoverage(symbol, start, end)
			if err != nil {
				return err
			}

			missing := cov.MissingWeekdays
			if onlyFridays {
				missing = cov.MissingFridays
			}
			if len(missing) == 0 {
				slog.Info("no gaps to heal", "symbol", symbol)
				return nil
			}

			slog.Info("healing missing days", "symbol", symbol, "days", len(missing))
			summary, err := a.runImportDays(cmd.Context(), symbol, missing, importOptions{delay: -1})
			if err != nil {
				return err
			}
			logSummary(symbol, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyFridays, "only-fridays", false, "heal only missing Fridays")
	return cmd
}
