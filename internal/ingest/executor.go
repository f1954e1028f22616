package ingest

import (
	"context"
	"log/slog"
	"time"

	"tickvault/internal/calendar"
	"tickvault/internal/domain"
	"tickvault/internal/feed"
	"tickvault/internal/storage"
)

// Result accumulates the outcome of fetching one chunk, including any
// sub-chunks it was re-split into.
type Result struct {
	Ticks              int
	SubChunks          int
	DroppedMalformed   int
	DroppedOutOfWindow int
}

func (r *Result) add(other Result) {
	r.Ticks += other.Ticks
	r.SubChunks += other.SubChunks
	r.DroppedMalformed += other.DroppedMalformed
	r.DroppedOutOfWindow += other.DroppedOutOfWindow
}

// Executor fetches one chunk, sanitizes it, and writes the surviving ticks.
// A malformed-batch failure triggers re-fetching at 1-hour granularity; the
// re-split runs as an explicit work stack inside the calling goroutine, so
// it never multiplies pool concurrency.
type Executor struct {
	fetcher feed.Fetcher
	writer  *storage.Writer
	log     *slog.Logger
}

// NewExecutor creates an executor over the given fetcher and writer.
func NewExecutor(fetcher feed.Fetcher, writer *storage.Writer) *Executor {
	return &Executor{
		fetcher: fetcher,
		writer:  writer,
		log:     slog.Default().With("component", "executor"),
	}
}

type workItem struct {
	chunk domain.ChunkRange
	hours int
}

// FetchAndStore processes one scheduled chunk. Chunks whose start falls in
// the weekend closure short-circuit to a zero result; this re-check is
// deliberate and independent of the scheduler. Malformed upstream batches
// are re-fetched hour by hour; a 1-hour slice that still fails is logged
// and dropped. Any other failure propagates unmodified.
func (e *Executor) FetchAndStore(ctx context.Context, symbol string, chunk domain.ChunkRange, chunkHours int) (Result, error) {
	var total Result

	stack := []workItem{{chunk: chunk, hours: chunkHours}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := ctx.Err(); err != nil {
			return total, err
		}
		if !calendar.IsTradeable(item.chunk.Start) {
			e.log.Debug("chunk starts inside closure, skipping",
				"symbol", symbol, "chunk", item.chunk.String())
			continue
		}

		raw, err := e.fetcher.Fetch(ctx, symbol, item.chunk.Start, item.chunk.End)
		if err != nil {
			if !feed.IsBatchError(err) {
				return total, err
			}
			if item.hours <= 1 {
				e.log.Warn("no data at finest granularity",
					"symbol", symbol, "chunk", item.chunk.String(), "err", err)
				continue
			}
			// Push hourly sub-slices in reverse so they pop in
			// chronological order.
			subs := hourlySlices(item.chunk)
			for i := len(subs) - 1; i >= 0; i-- {
				stack = append(stack, workItem{chunk: subs[i], hours: 1})
			}
			continue
		}

		san := feed.Sanitize(raw, item.chunk.Start, item.chunk.End)
		if len(san.Ticks) == 0 {
			// No partition file for an empty window: coverage checks and
			// heal-ticks treat key existence as "day has data".
			e.log.Debug("no surviving ticks, skipping write",
				"symbol", symbol, "chunk", item.chunk.String())
			total.add(Result{
				SubChunks:          1,
				DroppedMalformed:   san.DroppedMalformed,
				DroppedOutOfWindow: san.DroppedOutOfWindow,
			})
			continue
		}

		locations, err := e.writer.WriteTicks(symbol, item.chunk, san.Ticks)
		if err != nil {
			return total, err
		}
		e.log.Debug("batch written",
			"symbol", symbol,
			"chunk", item.chunk.String(),
			"ticks", len(san.Ticks),
			"sinks", locations,
		)

		total.add(Result{
			Ticks:              len(san.Ticks),
			SubChunks:          1,
			DroppedMalformed:   san.DroppedMalformed,
			DroppedOutOfWindow: san.DroppedOutOfWindow,
		})
	}
	return total, nil
}

// hourlySlices splits a chunk into sequential 1-hour inclusive sub-ranges.
func hourlySlices(chunk domain.ChunkRange) []domain.ChunkRange {
	var subs []domain.ChunkRange
	cur := chunk.Start
	for !cur.After(chunk.End) {
		end := cur.Add(time.Hour - time.Second)
		if end.After(chunk.End) {
			end = chunk.End
		}
		subs = append(subs, domain.ChunkRange{Start: cur, End: end})
		cur = end.Add(time.Second)
	}
	return subs
}
