package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tickvault/internal/config"
	"tickvault/internal/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tickvault: %v\n", err)
		os.Exit(1)
	}
}

// app carries the loaded configuration into every subcommand.
type app struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "tickvault",
		Short:         "Tick ingestion, normalization, and verification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfgPath == "" {
				a.cfgPath = "config/tickvault.yaml"
				if p := os.Getenv("TICKVAULT_CONFIG"); p != "" {
					a.cfgPath = p
				}
			}
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a.cfg = cfg
			util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to config file (default config/tickvault.yaml, env TICKVAULT_CONFIG)")

	root.AddCommand(
		newImportCmd(a),
		newUpdateCmd(a),
		newNormalizeTicksCmd(a),
		newHealTicksCmd(a),
		newVerifyCmd(a),
		newCandleUpdateCmd(a),
		newWatchCmd(a),
	)
	return root
}

// parseDate accepts YYYY-MM-DD and returns the UTC midnight instant.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t.UTC(), nil
}

// parseDateRange parses a start/end argument pair and returns the inclusive
// instant range [start 00:00:00, end 23:59:59].
func parseDateRange(startArg, endArg string) (time.Time, time.Time, error) {
	start, err := parseDate(startArg)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endArg)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = end.AddDate(0, 0, 1).Add(-time.Second)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s before start date %s", endArg, startArg)
	}
	return start, end, nil
}
