// Package ingest drives chunk fetching: the adaptive executor that re-splits
// malformed upstream batches, and the bounded concurrent queue that runs a
// schedule to completion.
package ingest

import (
	"log/slog"

	"tickvault/internal/domain"
)

// Observer receives structured pipeline events. Implementations must be safe
// for concurrent use; the queue calls them from multiple workers.
type Observer interface {
	OnChunkStart(symbol string, chunk domain.ChunkRange)
	OnChunkResult(symbol string, chunk domain.ChunkRange, res Result)
	OnChunkSkip(symbol string, chunk domain.ChunkRange, err error)
	OnError(symbol string, chunk domain.ChunkRange, err error)
}

// LogObserver emits every event through slog.
type LogObserver struct {
	Log *slog.Logger
}

var _ Observer = (*LogObserver)(nil)

// NewLogObserver creates an observer logging under the given logger, or
// slog.Default when nil.
func NewLogObserver(log *slog.Logger) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{Log: log.With("component", "ingest")}
}

func (o *LogObserver) OnChunkStart(symbol string, chunk domain.ChunkRange) {
	o.Log.Debug("chunk start", "symbol", symbol, "chunk", chunk.String())
}

func (o *LogObserver) OnChunkResult(symbol string, chunk domain.ChunkRange, res Result) {
	o.Log.Info("chunk done",
		"symbol", symbol,
		"chunk", chunk.String(),
		"ticks", res.Ticks,
		"subChunks", res.SubChunks,
		"droppedMalformed", res.DroppedMalformed,
		"droppedOutOfWindow", res.DroppedOutOfWindow,
	)
}

func (o *LogObserver) OnChunkSkip(symbol string, chunk domain.ChunkRange, err error) {
	o.Log.Warn("chunk skipped", "symbol", symbol, "chunk", chunk.String(), "err", err)
}

func (o *LogObserver) OnError(symbol string, chunk domain.ChunkRange, err error) {
	o.Log.Error("chunk failed", "symbol", symbol, "chunk", chunk.String(), "err", err)
}

// NopObserver discards all events.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) OnChunkStart(string, domain.ChunkRange)          {}
func (NopObserver) OnChunkResult(string, domain.ChunkRange, Result) {}
func (NopObserver) OnChunkSkip(string, domain.ChunkRange, error)    {}
func (NopObserver) OnError(string, domain.ChunkRange, error)        {}
