// Package verify audits stored data: weekday coverage of raw tick
// partitions and structural integrity of candle partitions.
package verify

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tickvault/internal/calendar"
	"tickvault/internal/domain"
	"tickvault/internal/storage"
)

// ShortfallTolerance is the fraction of the expected bar count below which
// a day is reported as short. Small holiday-driven gaps stay under the
// radar; systematic losses do not.
const ShortfallTolerance = 0.95

// Verifier audits tick and candle partitions in a blob store.
type Verifier struct {
	store  storage.BlobStore
	bucket time.Duration
	log    *slog.Logger
}

// New creates a Verifier expecting candles at the given bucket width.
func New(store storage.BlobStore, bucket time.Duration) *Verifier {
	return &Verifier{
		store:  store,
		bucket: bucket,
		log:    slog.Default().With("component", "verify"),
	}
}

// TickCoverage checks that every weekday in [start, end] has at least one
// raw tick batch. Missing Fridays are reported separately as well, since
// Friday gaps usually point at close-window bugs rather than outages.
func (v *Verifier) TickCoverage(symbol string, start, end time.Time) (domain.TickCoverage, error) {
	var cov domain.TickCoverage

	day := startOfDay(start)
	endDay := startOfDay(end)
	for !day.After(endDay) {
		wd := day.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			cov.ExpectedWeekdays++
			present, err := storage.Exists(v.store, storage.TickDayPrefix(symbol, day))
			if err != nil {
				return cov, err
			}
			if present {
				cov.CoveredDays++
			} else {
				cov.MissingWeekdays = append(cov.MissingWeekdays, day)
				if wd == time.Friday {
					cov.MissingFridays = append(cov.MissingFridays, day)
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	v.log.Info("tick coverage",
		"symbol", symbol,
		"covered", cov.CoveredDays,
		"expected", cov.ExpectedWeekdays,
		"missing", len(cov.MissingWeekdays),
		"missingFridays", len(cov.MissingFridays),
	)
	return cov, nil
}

// Candles audits every day in [start, end]: per-candle OHLC validity,
// duplicate timestamps, bucket spacing, and expected bar count with the
// shortfall tolerance. Findings are accumulated as issues, never errors;
// only storage failures abort the audit.
func (v *Verifier) Candles(symbol string, start, end time.Time) (domain.CandleReport, error) {
	report := domain.CandleReport{PerDay: make(map[string]domain.DayCount)}
	months := make(map[string][]domain.Candle)

	day := startOfDay(start)
	endDay := startOfDay(end)
	for !day.After(endDay) {
		monthCandles, err := v.loadMonth(symbol, day, months)
		if err != nil {
			return report, err
		}
		v.auditDay(symbol, day, monthCandles, &report)
		day = day.AddDate(0, 0, 1)
	}
	return report, nil
}

// loadMonth loads (and caches) every candle batch in the month containing
// day.
func (v *Verifier) loadMonth(symbol string, day time.Time, cache map[string][]domain.Candle) ([]domain.Candle, error) {
	monthKey := day.Format("2006-01")
	if candles, ok := cache[monthKey]; ok {
		return candles, nil
	}

	prefix := storage.CandleMonthPrefix(symbol, day.Year(), day.Month())
	keys, err := v.store.ListKeys(prefix)
	if err != nil {
		return nil, err
	}

	var candles []domain.Candle
	for _, key := range keys {
		data, err := v.store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		batch, err := storage.DecodeCandles(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		candles = append(candles, batch...)
	}
	cache[monthKey] = candles
	return candles, nil
}

// auditDay runs the per-day candle checks and appends findings to report.
func (v *Verifier) auditDay(symbol string, day time.Time, monthCandles []domain.Candle, report *domain.CandleReport) {
	dayStr := day.Format("2006-01-02")
	nextDay := day.AddDate(0, 0, 1)

	var dayCandles []domain.Candle
	for _, c := range monthCandles {
		if !c.Time.Before(day) && c.Time.Before(nextDay) {
			dayCandles = append(dayCandles, c)
		}
	}

	expected := calendar.ExpectedBars(day, v.bucket)
	if len(dayCandles) == 0 {
		if expected > 0 {
			report.PerDay[dayStr] = domain.DayCount{BarCount: 0, ExpectedCount: expected}
			report.Issues = append(report.Issues,
				fmt.Sprintf("%s %s: no candles (expected %d)", symbol, dayStr, expected))
		}
		return
	}

	for _, c := range dayCandles {
		if err := c.Validate(); err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("%s %s: %v", symbol, dayStr, err))
		}
	}

	// Deduplicate by exact timestamp; duplicates are reported, never
	// silently merged.
	byTime := make(map[int64]int)
	for _, c := range dayCandles {
		byTime[c.Time.UnixMilli()]++
	}
	duplicates := len(dayCandles) - len(byTime)
	if duplicates > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%s %s: %d duplicate candle timestamps", symbol, dayStr, duplicates))
	}

	unique := make([]int64, 0, len(byTime))
	for ts := range byTime {
		unique = append(unique, ts)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	badSteps := 0
	step := v.bucket.Milliseconds()
	for i := 1; i < len(unique); i++ {
		if unique[i]-unique[i-1] != step {
			badSteps++
		}
	}
	if badSteps > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%s %s: %d gaps not equal to bucket width %s", symbol, dayStr, badSteps, v.bucket))
	}

	report.PerDay[dayStr] = domain.DayCount{BarCount: len(unique), ExpectedCount: expected}
	if expected > 0 && float64(len(unique)) < ShortfallTolerance*float64(expected) {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%s %s: %d of %d expected candles (below %.0f%% tolerance)",
				symbol, dayStr, len(unique), expected, ShortfallTolerance*100))
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
