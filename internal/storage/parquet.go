package storage

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"tickvault/internal/domain"
)

// TickRecord is the Parquet schema for tick batches.
type TickRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Bid       float64 `parquet:"bid"`
	Ask       float64 `parquet:"ask"`
	BidVolume float64 `parquet:"bid_volume"`
	AskVolume float64 `parquet:"ask_volume"`
}

// CandleRecord is the Parquet schema for candle partitions.
type CandleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // bucket start, Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
	Trades    int64   `parquet:"trades"`
}

// EncodeTicks serializes a tick batch for one symbol.
func EncodeTicks(symbol string, ticks []domain.Tick) ([]byte, error) {
	records := make([]TickRecord, len(ticks))
	for i, t := range ticks {
		records[i] = TickRecord{
			Symbol:    symbol,
			Timestamp: t.Time.UnixMilli(),
			Bid:       t.Bid,
			Ask:       t.Ask,
			BidVolume: t.BidVolume,
			AskVolume: t.AskVolume,
		}
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("encoding %d ticks: %w", len(ticks), err)
	}
	return buf.Bytes(), nil
}

// DecodeTicks deserializes a tick batch.
func DecodeTicks(data []byte) ([]domain.Tick, error) {
	records, err := parquet.Read[TickRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding tick batch: %w", err)
	}
	ticks := make([]domain.Tick, len(records))
	for i, r := range records {
		ticks[i] = domain.Tick{
			Time:      time.UnixMilli(r.Timestamp).UTC(),
			Bid:       r.Bid,
			Ask:       r.Ask,
			BidVolume: r.BidVolume,
			AskVolume: r.AskVolume,
		}
	}
	return ticks, nil
}

// EncodeCandles serializes a candle partition for one symbol.
func EncodeCandles(symbol string, candles []domain.Candle) ([]byte, error) {
	records := make([]CandleRecord, len(candles))
	for i, c := range candles {
		records[i] = CandleRecord{
			Symbol:    symbol,
			Timestamp: c.Time.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Trades:    c.Trades,
		}
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("encoding %d candles: %w", len(candles), err)
	}
	return buf.Bytes(), nil
}

// DecodeCandles deserializes a candle partition.
func DecodeCandles(data []byte) ([]domain.Candle, error) {
	records, err := parquet.Read[CandleRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding candle batch: %w", err)
	}
	candles := make([]domain.Candle, len(records))
	for i, r := range records {
		candles[i] = domain.Candle{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			Trades: r.Trades,
		}
	}
	return candles, nil
}

// MergeTicks deduplicates two tick batches by (timestamp, bid, ask),
// preferring incoming records, and returns the union sorted by timestamp.
func MergeTicks(existing, incoming []domain.Tick) []domain.Tick {
	type key struct {
		ts       int64
		bid, ask float64
	}
	seen := make(map[key]domain.Tick, len(existing)+len(incoming))
	for _, t := range existing {
		seen[key{t.Time.UnixMilli(), t.Bid, t.Ask}] = t
	}
	for _, t := range incoming {
		seen[key{t.Time.UnixMilli(), t.Bid, t.Ask}] = t
	}

	merged := make([]domain.Tick, 0, len(seen))
	for _, t := range seen {
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}
