package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"tickvault/internal/calendar"
	"tickvault/internal/resume"
	"tickvault/internal/storage"
	"tickvault/internal/util"
)

func newWatchCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled catch-up imports for all configured symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Watch.Schedule == "" {
				return fmt.Errorf("watch.schedule is required")
			}
			if len(a.cfg.Watch.Symbols) == 0 {
				return fmt.Errorf("watch.symbols is required")
			}

			ctx := cmd.Context()
			c := cron.New(cron.WithLocation(time.UTC))
			_, err := c.AddFunc(a.cfg.Watch.Schedule, func() {
				a.watchTick(ctx, dryRun)
			})
			if err != nil {
				return fmt.Errorf("invalid watch.schedule %q: %w", a.cfg.Watch.Schedule, err)
			}

			slog.Info("watch daemon starting",
				"schedule", a.cfg.Watch.Schedule,
				"symbols", a.cfg.Watch.Symbols,
				"dryRun", dryRun,
			)
			c.Start()
			<-ctx.Done()

			stopCtx := c.Stop()
			<-stopCtx.Done()
			slog.Info("watch daemon stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan catch-up ranges without fetching")
	return cmd
}

// watchTick runs one scheduled catch-up pass. Failures are logged, never
// fatal; the next cron firing tries again.
func (a *app) watchTick(ctx context.Context, dryRun bool) {
	now := time.Now().UTC()
	if !calendar.IsTradeable(now) {
		slog.Debug("market closed, skipping watch pass", "now", now)
		return
	}

	store := a.primarySink()
	if store == nil {
		slog.Error("no storage destination configured")
		return
	}
	planner := resume.NewPlanner(store)

	for _, symbol := range a.cfg.Watch.Symbols {
		if ctx.Err() != nil {
			return
		}
		rng, err := planner.NextRange(storage.TickPrefix(symbol), a.cfg.Watch.FallbackDays)
		if err != nil {
			slog.Error("resume planning failed", "symbol", symbol, "err", err)
			continue
		}
		if rng.Empty() {
			slog.Debug("already up to date", "symbol", symbol)
			continue
		}
		slog.Info("watch catch-up",
			"symbol", symbol,
			"start", rng.Start.Format("2006-01-02"),
			"end", rng.End.Format("2006-01-02"),
		)
		if dryRun {
			continue
		}

		err = util.Retry(ctx, 3, 10*time.Second, func() error {
			summary, err := a.runImport(ctx, symbol, rng.Start, rng.End, importOptions{delay: -1})
			if err != nil {
				return err
			}
			logSummary(symbol, summary)
			return nil
		})
		if err != nil {
			slog.Error("catch-up failed", "symbol", symbol, "err", err)
		}
	}
}
