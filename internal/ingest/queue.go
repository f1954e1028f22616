package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"tickvault/internal/domain"
	"tickvault/internal/feed"
)

// Runner processes one scheduled chunk. Implemented by Executor.
type Runner interface {
	FetchAndStore(ctx context.Context, symbol string, chunk domain.ChunkRange, chunkHours int) (Result, error)
}

var _ Runner = (*Executor)(nil)

// Summary is the end-of-run accounting for one queue run.
type Summary struct {
	RunID              string
	Chunks             int
	SubChunks          int
	Ticks              int
	Skipped            int
	DroppedMalformed   int
	DroppedOutOfWindow int
	Elapsed            time.Duration
}

// Queue runs a chunk schedule through a bounded worker pool. Transient
// network failures are retried once after a fixed backoff, then the chunk is
// skipped; any other failure aborts the whole run. An optional delay is
// inserted after every chunk completion to throttle the upstream.
type Queue struct {
	runner      Runner
	concurrency int
	chunkDelay  time.Duration
	backoff     time.Duration
	obs         Observer
	log         *slog.Logger
}

// NetworkRetryBackoff is the fixed wait before the single retry of a chunk
// that failed with a transient network error.
const NetworkRetryBackoff = 30 * time.Second

// NewQueue creates a queue with the given worker count (minimum 1). A zero
// backoff falls back to NetworkRetryBackoff.
func NewQueue(runner Runner, concurrency int, chunkDelay, backoff time.Duration, obs Observer) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	if backoff <= 0 {
		backoff = NetworkRetryBackoff
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Queue{
		runner:      runner,
		concurrency: concurrency,
		chunkDelay:  chunkDelay,
		backoff:     backoff,
		obs:         obs,
		log:         slog.Default().With("component", "queue"),
	}
}

// Run processes every chunk and returns the aggregated summary. A non-nil
// error means the run aborted on a non-network failure; per-chunk network
// failures only increment Summary.Skipped.
func (q *Queue) Run(ctx context.Context, symbol string, chunks []domain.ChunkRange, chunkHours int) (Summary, error) {
	runStart := time.Now()
	runID := ulid.Make().String()
	q.log.Info("run starting",
		"runID", runID,
		"symbol", symbol,
		"chunks", len(chunks),
		"workers", q.concurrency,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunkCh := make(chan int, len(chunks))
	for i := range chunks {
		chunkCh <- i
	}
	close(chunkCh)

	var (
		wg         sync.WaitGroup
		ticks      atomic.Int64
		subChunks  atomic.Int64
		done       atomic.Int64
		skipped    atomic.Int64
		malformed  atomic.Int64
		outOfRange atomic.Int64

		fatalMu  sync.Mutex
		fatalErr error
	)

	fail := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel()
	}

	workers := min(q.concurrency, len(chunks))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range chunkCh {
				if ctx.Err() != nil {
					return
				}
				chunk := chunks[idx]
				q.obs.OnChunkStart(symbol, chunk)

				res, err := q.runChunk(ctx, symbol, chunk, chunkHours)
				switch {
				case err == nil:
					ticks.Add(int64(res.Ticks))
					subChunks.Add(int64(res.SubChunks))
					malformed.Add(int64(res.DroppedMalformed))
					outOfRange.Add(int64(res.DroppedOutOfWindow))
					done.Add(1)
					q.obs.OnChunkResult(symbol, chunk, res)
				case feed.IsNetworkError(err):
					skipped.Add(1)
					q.obs.OnChunkSkip(symbol, chunk, err)
				case ctx.Err() != nil:
					return
				default:
					q.obs.OnError(symbol, chunk, err)
					fail(err)
					return
				}

				if q.chunkDelay > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(q.chunkDelay):
					}
				}
			}
		}()
	}
	wg.Wait()

	summary := Summary{
		RunID:              runID,
		Chunks:             int(done.Load()),
		SubChunks:          int(subChunks.Load()),
		Ticks:              int(ticks.Load()),
		Skipped:            int(skipped.Load()),
		DroppedMalformed:   int(malformed.Load()),
		DroppedOutOfWindow: int(outOfRange.Load()),
		Elapsed:            time.Since(runStart),
	}

	fatalMu.Lock()
	err := fatalErr
	fatalMu.Unlock()
	if err != nil {
		return summary, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return summary, ctxErr
	}

	q.log.Info("run complete",
		"runID", runID,
		"symbol", symbol,
		"chunks", summary.Chunks,
		"ticks", summary.Ticks,
		"skipped", summary.Skipped,
		"droppedMalformed", summary.DroppedMalformed,
		"droppedOutOfWindow", summary.DroppedOutOfWindow,
		"elapsed", summary.Elapsed.Round(time.Second),
	)
	return summary, nil
}

// runChunk executes one chunk with the single network retry.
func (q *Queue) runChunk(ctx context.Context, symbol string, chunk domain.ChunkRange, chunkHours int) (Result, error) {
	res, err := q.runner.FetchAndStore(ctx, symbol, chunk, chunkHours)
	if err == nil || !feed.IsNetworkError(err) {
		return res, err
	}

	q.log.Warn("network error, retrying after backoff",
		"symbol", symbol, "chunk", chunk.String(), "backoff", q.backoff, "err", err)
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(q.backoff):
	}
	return q.runner.FetchAndStore(ctx, symbol, chunk, chunkHours)
}
