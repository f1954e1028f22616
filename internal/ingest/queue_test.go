package ingest

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"tickvault/internal/domain"
)

// fakeRunner scripts per-chunk outcomes and counts attempts.
type fakeRunner struct {
	mu       sync.Mutex
	attempts map[time.Time]int
	outcome  func(chunk domain.ChunkRange, attempt int) (Result, error)
}

func (f *fakeRunner) FetchAndStore(_ context.Context, _ string, chunk domain.ChunkRange, _ int) (Result, error) {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[time.Time]int)
	}
	f.attempts[chunk.Start]++
	n := f.attempts[chunk.Start]
	f.mu.Unlock()
	return f.outcome(chunk, n)
}

func (f *fakeRunner) attemptsFor(start time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[start]
}

func testChunks(n int) []domain.ChunkRange {
	base := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	chunks := make([]domain.ChunkRange, n)
	for i := range chunks {
		start := base.Add(time.Duration(i) * time.Hour)
		chunks[i] = domain.ChunkRange{Start: start, End: start.Add(time.Hour - time.Second)}
	}
	return chunks
}

var errTimeout net.Error = &net.DNSError{Name: "datafeed", IsTimeout: true}

func TestQueueRunAggregates(t *testing.T) {
	runner := &fakeRunner{
		outcome: func(domain.ChunkRange, int) (Result, error) {
			return Result{Ticks: 3, SubChunks: 1, DroppedMalformed: 1}, nil
		},
	}
	q := NewQueue(runner, 4, 0, time.Millisecond, nil)

	summary, err := q.Run(context.Background(), "EURUSD", testChunks(5), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Chunks != 5 {
		t.Errorf("Chunks = %d, want 5", summary.Chunks)
	}
	if summary.Ticks != 15 {
		t.Errorf("Ticks = %d, want 15", summary.Ticks)
	}
	if summary.DroppedMalformed != 5 {
		t.Errorf("DroppedMalformed = %d, want 5", summary.DroppedMalformed)
	}
	if summary.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", summary.Skipped)
	}
	if summary.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestQueueRetriesNetworkErrorOnce(t *testing.T) {
	// First attempt times out, the retry succeeds. The chunk must count as
	// done, not skipped.
	runner := &fakeRunner{
		outcome: func(_ domain.ChunkRange, attempt int) (Result, error) {
			if attempt == 1 {
				return Result{}, errTimeout
			}
			return Result{Ticks: 2, SubChunks: 1}, nil
		},
	}
	q := NewQueue(runner, 1, 0, time.Millisecond, nil)

	chunks := testChunks(1)
	summary, err := q.Run(context.Background(), "EURUSD", chunks, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := runner.attemptsFor(chunks[0].Start); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if summary.Chunks != 1 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want 1 done chunk and 0 skipped", summary)
	}
}

func TestQueueSkipsChunkAfterFailedRetry(t *testing.T) {
	// One chunk fails both attempts with a network error; the run continues
	// and the other chunks complete.
	chunks := testChunks(3)
	bad := chunks[1].Start

	runner := &fakeRunner{
		outcome: func(chunk domain.ChunkRange, _ int) (Result, error) {
			if chunk.Start.Equal(bad) {
				return Result{}, errTimeout
			}
			return Result{Ticks: 1, SubChunks: 1}, nil
		},
	}
	q := NewQueue(runner, 2, 0, time.Millisecond, nil)

	summary, err := q.Run(context.Background(), "EURUSD", chunks, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}
	if summary.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", summary.Chunks)
	}
	if got := runner.attemptsFor(bad); got != 2 {
		t.Errorf("bad chunk attempts = %d, want 2 (single retry)", got)
	}
}

func TestQueueAbortsOnFatalError(t *testing.T) {
	boom := errors.New("store corrupted")
	chunks := testChunks(4)

	runner := &fakeRunner{
		outcome: func(chunk domain.ChunkRange, _ int) (Result, error) {
			if chunk.Start.Equal(chunks[0].Start) {
				return Result{}, boom
			}
			return Result{Ticks: 1, SubChunks: 1}, nil
		},
	}
	q := NewQueue(runner, 1, 0, time.Millisecond, nil)

	_, err := q.Run(context.Background(), "EURUSD", chunks, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want %v", err, boom)
	}
	// Sequential worker hit the fatal chunk first and must not have touched
	// the rest.
	if got := runner.attemptsFor(chunks[3].Start); got != 0 {
		t.Errorf("chunk after fatal error was attempted %d times", got)
	}
}

func TestQueueHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{
		outcome: func(domain.ChunkRange, int) (Result, error) {
			return Result{Ticks: 1}, nil
		},
	}
	q := NewQueue(runner, 2, 0, time.Millisecond, nil)

	_, err := q.Run(ctx, "EURUSD", testChunks(3), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}
