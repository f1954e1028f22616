package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickvault/internal/domain"
	"tickvault/internal/feed"
	"tickvault/internal/storage"
)

// fakeFetcher scripts per-window responses keyed by the exact fetch window,
// so a whole-chunk fetch and its first hourly slice can behave differently.
type fakeFetcher struct {
	calls []fetchCall
	fail  map[fetchCall]error
	ticks map[fetchCall][]feed.RawTick
}

type fetchCall struct {
	from, to time.Time
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, from, to time.Time) ([]feed.RawTick, error) {
	call := fetchCall{from: from, to: to}
	f.calls = append(f.calls, call)
	if err, ok := f.fail[call]; ok {
		return nil, err
	}
	return f.ticks[call], nil
}

func newTestExecutor(t *testing.T, fetcher feed.Fetcher) *Executor {
	t.Helper()
	writer, err := storage.NewWriter(storage.NewFSStore(t.TempDir(), "test"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return NewExecutor(fetcher, writer)
}

func rawAt(ts time.Time, n int) []feed.RawTick {
	out := make([]feed.RawTick, n)
	for i := range out {
		out[i] = feed.RawTick{
			Timestamp: float64(ts.Unix()) + float64(i),
			Bid:       1.1,
			Ask:       1.2,
		}
	}
	return out
}

func TestFetchAndStoreHappyPath(t *testing.T) {
	chunk := domain.ChunkRange{
		Start: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 5, 59, 59, 0, time.UTC),
	}
	fetcher := &fakeFetcher{
		ticks: map[fetchCall][]feed.RawTick{
			{chunk.Start, chunk.End}: rawAt(chunk.Start, 10),
		},
	}
	ex := newTestExecutor(t, fetcher)

	res, err := ex.FetchAndStore(context.Background(), "EURUSD", chunk, 6)
	if err != nil {
		t.Fatalf("FetchAndStore: %v", err)
	}
	if res.Ticks != 10 {
		t.Errorf("Ticks = %d, want 10", res.Ticks)
	}
	if res.SubChunks != 1 {
		t.Errorf("SubChunks = %d, want 1", res.SubChunks)
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("fetch calls = %d, want 1", len(fetcher.calls))
	}
}

func TestFetchAndStoreResplitsMalformedBatch(t *testing.T) {
	// A 3-hour chunk whose whole-window fetch is malformed must be re-fetched
	// as three 1-hour slices.
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	chunk := domain.ChunkRange{Start: start, End: start.Add(3*time.Hour - time.Second)}

	hourEnd := func(h time.Time) time.Time { return h.Add(time.Hour - time.Second) }
	h1 := start.Add(time.Hour)
	h2 := start.Add(2 * time.Hour)

	batchErr := &feed.BatchError{Symbol: "EURUSD", Hour: start, Err: errors.New("misaligned")}
	fetcher := &fakeFetcher{
		fail: map[fetchCall]error{
			{start, chunk.End}: batchErr, // whole chunk
			{h1, hourEnd(h1)}:  batchErr, // second hour stays bad
		},
		ticks: map[fetchCall][]feed.RawTick{
			{h2, hourEnd(h2)}: rawAt(h2, 5),
		},
	}
	ex := newTestExecutor(t, fetcher)

	res, err := ex.FetchAndStore(context.Background(), "EURUSD", chunk, 3)
	if err != nil {
		t.Fatalf("FetchAndStore: %v", err)
	}

	// 1 whole-chunk attempt + 3 hourly slices.
	if len(fetcher.calls) != 4 {
		t.Fatalf("fetch calls = %d, want 4: %v", len(fetcher.calls), fetcher.calls)
	}
	// Hour 0 succeeded with no data, hour 1 dropped at finest granularity,
	// hour 2 delivered ticks.
	if res.SubChunks != 2 {
		t.Errorf("SubChunks = %d, want 2", res.SubChunks)
	}
	if res.Ticks != 5 {
		t.Errorf("Ticks = %d, want 5", res.Ticks)
	}

	// Hourly slices must pop in chronological order after the first attempt.
	for i := 1; i < len(fetcher.calls)-1; i++ {
		if !fetcher.calls[i].from.Before(fetcher.calls[i+1].from) {
			t.Errorf("slice order broken: call %d at %s, call %d at %s",
				i, fetcher.calls[i].from, i+1, fetcher.calls[i+1].from)
		}
	}
}

func TestFetchAndStoreSkipsEmptyBatchWrite(t *testing.T) {
	// An hour where the upstream has nothing (every file 404'd) must leave
	// no partition key behind; coverage checks and heal-ticks decide "day
	// has data" by key existence.
	store := storage.NewFSStore(t.TempDir(), "test")
	writer, err := storage.NewWriter(store)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	chunk := domain.ChunkRange{Start: start, End: start.Add(24*time.Hour - time.Second)}
	ex := NewExecutor(&fakeFetcher{}, writer)

	res, err := ex.FetchAndStore(context.Background(), "EURUSD", chunk, 24)
	if err != nil {
		t.Fatalf("FetchAndStore: %v", err)
	}
	if res.SubChunks != 1 || res.Ticks != 0 {
		t.Errorf("result = %+v, want 1 processed sub-chunk with 0 ticks", res)
	}

	keys, err := store.ListKeys(storage.TickDayPrefix("EURUSD", start))
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("empty batch left partition keys behind: %v", keys)
	}
}

func TestFetchAndStoreSkipsClosedStart(t *testing.T) {
	// Saturday chunk: no fetch at all.
	start := time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)
	chunk := domain.ChunkRange{Start: start, End: start.Add(time.Hour - time.Second)}
	fetcher := &fakeFetcher{}
	ex := newTestExecutor(t, fetcher)

	res, err := ex.FetchAndStore(context.Background(), "EURUSD", chunk, 1)
	if err != nil {
		t.Fatalf("FetchAndStore: %v", err)
	}
	if res.SubChunks != 0 || res.Ticks != 0 {
		t.Errorf("closed chunk produced work: %+v", res)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("closed chunk was fetched: %v", fetcher.calls)
	}
}

func TestFetchAndStorePropagatesOtherErrors(t *testing.T) {
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	chunk := domain.ChunkRange{Start: start, End: start.Add(time.Hour - time.Second)}

	boom := errors.New("disk full")
	fetcher := &fakeFetcher{fail: map[fetchCall]error{{start, chunk.End}: boom}}
	ex := newTestExecutor(t, fetcher)

	_, err := ex.FetchAndStore(context.Background(), "EURUSD", chunk, 1)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("non-batch error should not trigger re-split, got %d calls", len(fetcher.calls))
	}
}
