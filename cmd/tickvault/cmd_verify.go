package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tickvault/internal/verify"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		ticksOnly   bool
		candlesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "verify <symbol> <start> <end>",
		Short: "Audit tick coverage and candle integrity; non-zero exit on findings",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticksOnly && candlesOnly {
				return fmt.Errorf("--ticks-only and --candles-only are mutually exclusive")
			}
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

			findings := 0
			if !candlesOnly {
				cov, err := v.TickCoverage(symbol, start, end)
				if err != nil {
					return err
				}
				for _, day := range cov.MissingWeekdays {
					fmt.Printf("missing tick partition: %s %s\n", symbol, day.Format("2006-01-02"))
				}
				findings += len(cov.MissingWeekdays)
			}
			if !ticksOnly {
				report, err := v.Candles(symbol, start, end)
				if err != nil {
					return err
				}
				for _, issue := range report.Issues {
					fmt.Println(issue)
				}
				findings += len(report.Issues)
			}

			if findings > 0 {
				return fmt.Errorf("verification found %d issue(s)", findings)
			}
			slog.Info("verification clean", "symbol", symbol)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ticksOnly, "ticks-only", false, "check tick coverage only")
	cmd.Flags().BoolVar(&candlesOnly, "candles-only", false, "check candle integrity only")
	return cmd
}
