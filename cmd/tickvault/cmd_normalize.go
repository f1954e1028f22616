package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tickvault/internal/normalize"
)

func newNormalizeTicksCmd(a *app) *cobra.Command {
	var broker string

	cmd := &cobra.Command{
		Use:   "normalize-ticks <symbol> <start> <end>",
		Short: "Convert broker-local tick partitions to UTC with audit manifests",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]
			start, end, err := parseDateRange(args[1], args[2])
			if err != nil {
				return err
			}

			tz, ok := a.cfg.Normalize.Brokers[broker]
			if !ok {
				return fmt.Errorf("unknown broker %q: not in normalize.brokers config", broker)
			}

			store := a.primarySink()
			if store == nil {
				return fmt.Errorf("no storage destination configured")
			}

			norm := normalize.New(store, store)
			manifests, err := norm.Run(cmd.Context(), symbol, start, end, tz)
			if err != nil {
				return err
			}

			totalTicks := 0
			for _, m := range manifests {
				totalTicks += m.TickCount
			}
			slog.Info("normalization complete",
				"symbol", symbol,
				"broker", broker,
				"timezone", tz,
				"days", len(manifests),
				"ticks", totalTicks,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&broker, "broker", "", "broker name (key into normalize.brokers)")
	cmd.MarkFlagRequired("broker")
	return cmd
}
