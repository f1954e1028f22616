package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tickvault/internal/domain"
	"tickvault/internal/feed"
	"tickvault/internal/ingest"
	"tickvault/internal/schedule"
	"tickvault/internal/storage"
)

// importOptions are the per-run knobs for a scheduled fetch. Zero values
// fall back to the configured defaults.
type importOptions struct {
	chunkHours  int
	concurrency int
	delay       time.Duration
	localOnly   bool
}

// sinks builds the configured blob stores: the local primary plus the
// optional mirror. localOnly suppresses the mirror.
func (a *app) sinks(localOnly bool) []storage.BlobStore {
	var out []storage.BlobStore
	if a.cfg.Storage.LocalDir != "" {
		out = append(out, storage.NewFSStore(a.cfg.Storage.LocalDir, "local"))
	}
	if a.cfg.Storage.MirrorDir != "" && !localOnly {
		out = append(out, storage.NewFSStore(a.cfg.Storage.MirrorDir, "mirror"))
	}
	return out
}

// primarySink is the store used for listings: resume planning, coverage
// checks, normalization reads.
func (a *app) primarySink() storage.BlobStore {
	s := a.sinks(false)
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// runImport wires the fetch pipeline and processes the schedule for one
// symbol over [start, end].
func (a *app) runImport(ctx context.Context, symbol string, start, end time.Time, opts importOptions) (ingest.Summary, error) {
	if opts.chunkHours <= 0 {
		opts.chunkHours = a.cfg.Ingest.ChunkHours
	}
	if opts.concurrency <= 0 {
		opts.concurrency = a.cfg.Ingest.Concurrency
	}
	if opts.delay < 0 {
		opts.delay = a.cfg.Ingest.Delay()
	}

	chunks, err := schedule.Build(start, end, opts.chunkHours)
	if err != nil {
		return ingest.Summary{}, err
	}
	if len(chunks) == 0 {
		slog.Info("nothing to fetch: range is entirely inside market closure",
			"symbol", symbol, "start", start, "end", end)
		return ingest.Summary{}, nil
	}

	writer, err := storage.NewWriter(a.sinks(opts.localOnly)...)
	if err != nil {
		return ingest.Summary{}, err
	}
	fetcher := feed.NewDukascopy(a.cfg.Feed.BaseURL, a.cfg.Feed.Timeout(), a.cfg.Feed.RateLimitPerMin)
	executor := ingest.NewExecutor(fetcher, writer)
	queue := ingest.NewQueue(executor, opts.concurrency, opts.delay, a.cfg.Ingest.Backoff(),
		ingest.NewLogObserver(slog.Default()))

	return queue.Run(ctx, symbol, chunks, opts.chunkHours)
}

// runImportDays imports a set of individual days, used by heal-ticks.
func (a *app) runImportDays(ctx context.Context, symbol string, days []time.Time, opts importOptions) (ingest.Summary, error) {
	if opts.chunkHours <= 0 {
		opts.chunkHours = a.cfg.Ingest.ChunkHours
	}
	var chunks []domain.ChunkRange
	for _, day := range days {
		dayChunks, err := schedule.ForDay(day, opts.chunkHours)
		if err != nil {
			return ingest.Summary{}, err
		}
		chunks = append(chunks, dayChunks...)
	}
	if len(chunks) == 0 {
		return ingest.Summary{}, nil
	}

	if opts.concurrency <= 0 {
		opts.concurrency = a.cfg.Ingest.Concurrency
	}
	writer, err := storage.NewWriter(a.sinks(opts.localOnly)...)
	if err != nil {
		return ingest.Summary{}, err
	}
	fetcher := feed.NewDukascopy(a.cfg.Feed.BaseURL, a.cfg.Feed.Timeout(), a.cfg.Feed.RateLimitPerMin)
	executor := ingest.NewExecutor(fetcher, writer)
	queue := ingest.NewQueue(executor, opts.concurrency, opts.delay, a.cfg.Ingest.Backoff(),
		ingest.NewLogObserver(slog.Default()))

	return queue.Run(ctx, symbol, chunks, opts.chunkHours)
}

// resolveSymbols expands --all into the configured watch list.
func (a *app) resolveSymbols(args []string, all bool) ([]string, error) {
	if all {
		if len(a.cfg.Watch.Symbols) == 0 {
			return nil, fmt.Errorf("--all requires watch.symbols in the config")
		}
		return a.cfg.Watch.Symbols, nil
	}
	if len(args) < 1 || args[0] == "" {
		return nil, fmt.Errorf("a symbol argument or --all is required")
	}
	return []string{args[0]}, nil
}

func logSummary(symbol string, s ingest.Summary) {
	slog.Info("import summary",
		"runID", s.RunID,
		"symbol", symbol,
		"chunks", s.Chunks,
		"subChunks", s.SubChunks,
		"ticks", s.Ticks,
		"skipped", s.Skipped,
		"droppedMalformed", s.DroppedMalformed,
		"droppedOutOfWindow", s.DroppedOutOfWindow,
		"elapsed", s.Elapsed.Round(time.Second),
	)
}
