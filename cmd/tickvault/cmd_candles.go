package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"tickvault/internal/candledb"
	"tickvault/internal/resume"
	"tickvault/internal/storage"
)

func newCandleUpdateCmd(a *app) *cobra.Command {
	var (
		all  bool
		days int
	)

	cmd := &cobra.Command{
		Use:   "candle-update [symbol]",
		Short: "Load new candle partitions into the relational candle store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := a.resolveSymbols(args, all)
			if err != nil {
				return err
			}
			if a.cfg.Candles.SQLitePath == "" {
				return fmt.Errorf("candles.sqlite_path is required for candle-update")
			}
			store := a.primarySink()
			if store == nil {
				return fmt.Errorf("no storage destination configured")
			}
			if days <= 0 {
				days = a.cfg.Watch.FallbackDays
			}

			db, err := candledb.Open(a.cfg.Candles.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			planner := resume.NewPlanner(store)
			for _, symbol := range symbols {
				if err := a.candleUpdate(cmd.Context(), db, planner, store, symbol, days); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "update every configured symbol")
	cmd.Flags().IntVar(&days, "days", 0, "fallback window when the store is empty (default from config)")
	return cmd
}

// candleUpdate resumes from the relational store's latest day when it has
// one, otherwise from the latest candle partition in blob storage.
func (a *app) candleUpdate(ctx context.Context, db *candledb.Store, planner *resume.Planner, store storage.BlobStore, symbol string, days int) error {
	latest, found, err := db.LatestCandleDay(ctx, symbol)
	if err != nil {
		return err
	}

	var rng resume.Range
	if found {
		rng = planner.RangeAfter(latest)
	} else {
		rng, err = planner.NextRange(storage.CandlePrefix(symbol), days)
		if err != nil {
			return err
		}
	}
	if rng.Empty() {
		slog.Info("candle store up to date", "symbol", symbol)
		return nil
	}

	loaded := 0
	day := rng.Start
	for !day.After(rng.End) {
		keys, err := store.ListKeys(storage.CandleMonthPrefix(symbol, day.Year(), day.Month()))
		if err != nil {
			return err
		}
		for _, key := range keys {
			pk, ok := storage.ParseKey(key)
			if !ok || pk.Date().Before(rng.Start) || pk.Date().After(rng.End) {
				continue
			}
			data, err := store.Get(key)
			if err != nil {
				return err
			}
			candles, err := storage.DecodeCandles(data)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
			if err := db.WriteCandles(ctx, symbol, candles); err != nil {
				return err
			}
			loaded += len(candles)
		}
		// Month listings cover every day inside them; jump to the next month.
		day = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}

	slog.Info("candle store updated",
		"symbol", symbol,
		"start", rng.Start.Format("2006-01-02"),
		"end", rng.End.Format("2006-01-02"),
		"candles", loaded,
	)
	return nil
}
