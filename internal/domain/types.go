// Package domain defines the core value types shared across the ingestion
// pipeline: ticks, candles, chunk ranges, partition keys, and manifests.
package domain

import (
	"fmt"
	"math"
	"time"
)

// Tick is a single sanitized bid/ask quote. Timestamps are UTC.
type Tick struct {
	Time      time.Time
	Bid       float64
	Ask       float64
	BidVolume float64
	AskVolume float64
}

// ChunkRange is one closure-free fetch window, inclusive on both ends at
// second granularity. Chunks never span a market closure or a UTC day
// boundary.
type ChunkRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the inclusive span of the chunk.
func (c ChunkRange) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

func (c ChunkRange) String() string {
	return fmt.Sprintf("%s..%s",
		c.Start.UTC().Format("2006-01-02T15:04:05Z"),
		c.End.UTC().Format("2006-01-02T15:04:05Z"))
}

// Candle is one fixed-interval OHLC bar. Time is the bucket start in UTC.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Trades int64
}

// Validate checks the OHLC invariants: all values finite, high >= max(open,
// close), low <= min(open, close), high >= low.
func (c Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle %s: non-finite value", c.Time.Format(time.RFC3339))
		}
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("candle %s: high %v below open/close", c.Time.Format(time.RFC3339), c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("candle %s: low %v above open/close", c.Time.Format(time.RFC3339), c.Low)
	}
	if c.High < c.Low {
		return fmt.Errorf("candle %s: high %v below low %v", c.Time.Format(time.RFC3339), c.High, c.Low)
	}
	return nil
}

// PartitionKey addresses one calendar UTC day of data for one symbol. It is
// the storage unit for both raw ticks and candles.
type PartitionKey struct {
	Symbol string
	Year   int
	Month  int
	Day    int
}

// PartitionKeyFor returns the partition key for the UTC day containing t.
func PartitionKeyFor(symbol string, t time.Time) PartitionKey {
	t = t.UTC()
	return PartitionKey{
		Symbol: symbol,
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
	}
}

// Date returns midnight UTC of the partition's day.
func (k PartitionKey) Date() time.Time {
	return time.Date(k.Year, time.Month(k.Month), k.Day, 0, 0, 0, 0, time.UTC)
}

func (k PartitionKey) String() string {
	return fmt.Sprintf("%s/%04d/%02d/%02d", k.Symbol, k.Year, k.Month, k.Day)
}

// Before reports whether k addresses an earlier day than other. Symbols are
// not compared.
func (k PartitionKey) Before(other PartitionKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Day < other.Day
}

// Manifest is the audit record written alongside each normalized
// destination-day batch. Immutable once written; never read back by the
// pipeline. Everything except GeneratedAt is a pure function of the source
// data, so re-running a range reproduces the manifest.
type Manifest struct {
	Symbol             string    `json:"symbol"`
	SourcePrefix       string    `json:"source_prefix"`
	DestPrefix         string    `json:"dest_prefix"`
	SourceTimezone     string    `json:"source_timezone"`
	DestinationDateUTC string    `json:"destination_date_utc"`
	OffsetsApplied     []int     `json:"offsets_applied"`
	TickCount          int       `json:"tick_count"`
	FirstUTC           time.Time `json:"first_utc"`
	LastUTC            time.Time `json:"last_utc"`
	ContentChecksum    string    `json:"content_checksum"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// TickCoverage reports weekday coverage of raw tick partitions over a range.
type TickCoverage struct {
	MissingWeekdays  []time.Time
	MissingFridays   []time.Time
	CoveredDays      int
	ExpectedWeekdays int
}

// Clean reports whether no weekday in the range is missing a partition.
func (c TickCoverage) Clean() bool {
	return len(c.MissingWeekdays) == 0
}

// DayCount is the per-day bar tally in a candle report.
type DayCount struct {
	BarCount      int
	ExpectedCount int
}

// CandleReport collects candle-integrity findings for a range.
type CandleReport struct {
	Issues []string
	PerDay map[string]DayCount
}

// Clean reports whether the audit found no issues.
func (r CandleReport) Clean() bool {
	return len(r.Issues) == 0
}
