package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tickvault/internal/domain"
)

// Key layout. Raw ticks hold one batch file per scheduled chunk so
// concurrent workers never write the same key:
//
//	ticks/<SYMBOL>/<YYYY>/<MM>/<DD>/<HHMMSS>-<HHMMSS>.parquet
//
// Normalized ticks and candles hold one file per UTC day:
//
//	ticks-utc/<SYMBOL>/<YYYY>/<MM>/<DD>.parquet  (+ <DD>.manifest.json)
//	candles/<SYMBOL>/<YYYY>/<MM>/<DD>.parquet
const (
	TickRoot           = "ticks"
	NormalizedTickRoot = "ticks-utc"
	CandleRoot         = "candles"
)

// TickBatchKey returns the raw-tick batch key for one chunk.
func TickBatchKey(symbol string, chunk domain.ChunkRange) string {
	k := domain.PartitionKeyFor(symbol, chunk.Start)
	return fmt.Sprintf("%s/%s/%02d%02d%02d-%02d%02d%02d.parquet",
		TickRoot, k,
		chunk.Start.UTC().Hour(), chunk.Start.UTC().Minute(), chunk.Start.UTC().Second(),
		chunk.End.UTC().Hour(), chunk.End.UTC().Minute(), chunk.End.UTC().Second())
}

// TickDayPrefix returns the prefix holding all raw-tick batches for one UTC
// day.
func TickDayPrefix(symbol string, day time.Time) string {
	return fmt.Sprintf("%s/%s/", TickRoot, domain.PartitionKeyFor(symbol, day))
}

// TickPrefix returns the prefix holding all raw-tick partitions for a symbol.
func TickPrefix(symbol string) string {
	return TickRoot + "/" + symbol + "/"
}

// NormalizedTickKey returns the normalized-batch key for one destination day.
func NormalizedTickKey(symbol string, day time.Time) string {
	return fmt.Sprintf("%s/%s.parquet", NormalizedTickRoot, domain.PartitionKeyFor(symbol, day))
}

// ManifestKey returns the manifest key paired with a normalized batch.
func ManifestKey(symbol string, day time.Time) string {
	return fmt.Sprintf("%s/%s.manifest.json", NormalizedTickRoot, domain.PartitionKeyFor(symbol, day))
}

// CandleKey returns the candle partition key for one UTC day.
func CandleKey(symbol string, day time.Time) string {
	return fmt.Sprintf("%s/%s.parquet", CandleRoot, domain.PartitionKeyFor(symbol, day))
}

// CandleMonthPrefix returns the prefix holding a month of candle partitions.
func CandleMonthPrefix(symbol string, year int, month time.Month) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/", CandleRoot, symbol, year, int(month))
}

// CandlePrefix returns the prefix holding all candle partitions for a symbol.
func CandlePrefix(symbol string) string {
	return CandleRoot + "/" + symbol + "/"
}

// ParseKey extracts the partition key addressed by a storage key. It accepts
// both per-chunk tick batch keys and per-day keys; manifest files parse to
// the same partition as their batch. Returns false for keys outside the
// partition layout.
func ParseKey(key string) (domain.PartitionKey, bool) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 5 {
		return domain.PartitionKey{}, false
	}

	symbol := parts[1]
	year, err1 := strconv.Atoi(parts[2])
	month, err2 := strconv.Atoi(parts[3])
	var dayStr string
	if len(parts) >= 6 {
		dayStr = parts[4] // ticks/<sym>/<y>/<m>/<d>/<batch>
	} else {
		dayStr = trimExt(parts[4]) // <d>.parquet or <d>.manifest.json
	}
	day, err3 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return domain.PartitionKey{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return domain.PartitionKey{}, false
	}
	return domain.PartitionKey{Symbol: symbol, Year: year, Month: month, Day: day}, true
}
