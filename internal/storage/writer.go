package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tickvault/internal/domain"
)

// Writer persists batches to every configured sink. At least one sink must
// be configured; construction fails fast otherwise.
type Writer struct {
	sinks []BlobStore
	log   *slog.Logger
}

// NewWriter creates a multi-sink writer.
func NewWriter(sinks ...BlobStore) (*Writer, error) {
	if len(sinks) == 0 {
		return nil, errors.New("no storage destination configured")
	}
	return &Writer{
		sinks: sinks,
		log:   slog.Default().With("component", "storage"),
	}, nil
}

// WriteTicks persists one chunk's sanitized ticks to every sink under the
// chunk's batch key. Returns the list of written locations.
func (w *Writer) WriteTicks(symbol string, chunk domain.ChunkRange, ticks []domain.Tick) ([]string, error) {
	data, err := EncodeTicks(symbol, ticks)
	if err != nil {
		return nil, err
	}
	return w.putAll(TickBatchKey(symbol, chunk), data)
}

// WriteCandles persists one day's candle partition to every sink.
func (w *Writer) WriteCandles(symbol string, day time.Time, candles []domain.Candle) ([]string, error) {
	data, err := EncodeCandles(symbol, candles)
	if err != nil {
		return nil, err
	}
	return w.putAll(CandleKey(symbol, day), data)
}

func (w *Writer) putAll(key string, data []byte) ([]string, error) {
	locations := make([]string, 0, len(w.sinks))
	for _, sink := range w.sinks {
		loc, err := sink.Put(key, data)
		if err != nil {
			return locations, fmt.Errorf("writing %s: %w", key, err)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
