package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"tickvault/internal/domain"
	"tickvault/internal/storage"
)

// writeSourceDay stores a raw batch as if the ingest pipeline had written it.
func writeSourceDay(t *testing.T, store storage.BlobStore, symbol string, ticks []domain.Tick) {
	t.Helper()
	day := ticks[0].Time
	chunk := domain.ChunkRange{
		Start: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		End:   time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC),
	}
	data, err := storage.EncodeTicks(symbol, ticks)
	if err != nil {
		t.Fatalf("EncodeTicks: %v", err)
	}
	if _, err := store.Put(storage.TickBatchKey(symbol, chunk), data); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestNormalizerRebucketsAcrossDayBoundary(t *testing.T) {
	store := storage.NewFSStore(t.TempDir(), "local")

	// Broker clock is UTC+2 (Etc/GMT-2 in POSIX sign convention). A tick
	// stamped 2024-01-09 01:30 broker time is 2024-01-08 23:30 UTC, so it
	// must land in the previous UTC day.
	day := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	writeSourceDay(t, store, "EURUSD", []domain.Tick{
		{Time: day.Add(90 * time.Minute), Bid: 1.1, Ask: 1.2},   // 01:30 -> Jan 8 23:30 UTC
		{Time: day.Add(15 * time.Hour), Bid: 1.15, Ask: 1.25},   // 15:00 -> Jan 9 13:00 UTC
	})

	n := New(store, store)
	manifests, err := n.Run(context.Background(), "EURUSD", day, day, "Etc/GMT-2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("got %d manifests, want 2 (tick crossed the day boundary)", len(manifests))
	}

	if manifests[0].DestinationDateUTC != "2024-01-08" || manifests[1].DestinationDateUTC != "2024-01-09" {
		t.Errorf("destination days = %s, %s", manifests[0].DestinationDateUTC, manifests[1].DestinationDateUTC)
	}
	if manifests[0].TickCount != 1 || manifests[1].TickCount != 1 {
		t.Errorf("tick counts = %d, %d, want 1 and 1", manifests[0].TickCount, manifests[1].TickCount)
	}
	if len(manifests[0].OffsetsApplied) != 1 || manifests[0].OffsetsApplied[0] != 2*3600 {
		t.Errorf("offsets = %v, want [7200]", manifests[0].OffsetsApplied)
	}

	// The normalized batch holds the converted instant.
	data, err := store.Get(storage.NormalizedTickKey("EURUSD", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Get normalized batch: %v", err)
	}
	ticks, err := storage.DecodeTicks(data)
	if err != nil {
		t.Fatalf("DecodeTicks: %v", err)
	}
	want := time.Date(2024, 1, 8, 23, 30, 0, 0, time.UTC)
	if len(ticks) != 1 || !ticks[0].Time.Equal(want) {
		t.Errorf("normalized tick = %+v, want time %s", ticks, want)
	}
}

func TestNormalizerRunsAreDeterministic(t *testing.T) {
	store := storage.NewFSStore(t.TempDir(), "local")
	day := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	writeSourceDay(t, store, "EURUSD", []domain.Tick{
		{Time: day.Add(10 * time.Hour), Bid: 1.1, Ask: 1.2},
		{Time: day.Add(11 * time.Hour), Bid: 1.11, Ask: 1.21},
	})

	n := New(store, store)
	first, err := n.Run(context.Background(), "EURUSD", day, day, "UTC")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := n.Run(context.Background(), "EURUSD", day, day, "UTC")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("manifest counts = %d, %d, want 1 each", len(first), len(second))
	}

	// The whole manifest must reproduce on re-run; only generated_at may
	// differ.
	a, b := first[0], second[0]
	a.GeneratedAt, b.GeneratedAt = time.Time{}, time.Time{}
	aJSON, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(aJSON, bJSON) {
		t.Errorf("manifests differ beyond generated_at:\n  %s\n  %s", aJSON, bJSON)
	}
}

func TestNormalizerRejectsUnknownTimezone(t *testing.T) {
	store := storage.NewFSStore(t.TempDir(), "local")
	n := New(store, store)
	day := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	if _, err := n.Run(context.Background(), "EURUSD", day, day, "Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
