package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "import <symbol> <start> <end> [chunkHours] [delaySeconds] [concurrency]",
		Short: "Fetch and store raw ticks for a date range",
		Args:  cobra.RangeArgs(3, 6),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]
			start, end, err := parseDateRange(args[1], args[2])
			if err != nil {
				return err
			}

			opts := importOptions{localOnly: localOnly, delay: -1}
			if len(args) > 3 {
				if opts.chunkHours, err = strconv.Atoi(args[3]); err != nil {
					return err
				}
			}
			if len(args) > 4 {
				secs, err := strconv.Atoi(args[4])
				if err != nil {
					return err
				}
				opts.delay = time.Duration(secs) * time.Second
			}
			if len(args) > 5 {
				if opts.concurrency, err = strconv.Atoi(args[5]); err != nil {
					return err
				}
			}

			summary, err := a.runImport(cmd.Context(), symbol, start, end, opts)
			if err != nil {
				return err
			}
			logSummary(symbol, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local-only", false, "write only to the local sink, skip the mirror")
	return cmd
}
