// Package resume computes the next unprocessed date range for a catch-up
// run by inspecting existing storage partitions.
package resume

import (
	"time"

	"tickvault/internal/domain"
	"tickvault/internal/storage"
)

// Range is an inclusive date range to fetch. Empty when Start > End, which
// means the caller is already up to date.
type Range struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether there is nothing to fetch.
func (r Range) Empty() bool {
	return r.Start.After(r.End)
}

// Planner derives fetch ranges from a blob store's partition listing. The
// clock is injectable for tests.
type Planner struct {
	store storage.BlobStore
	Now   func() time.Time
}

// NewPlanner creates a planner over the given store.
func NewPlanner(store storage.BlobStore) *Planner {
	return &Planner{store: store, Now: time.Now}
}

// NextRange lists all partitions under prefix and returns the range from
// the day after the latest partition through end of yesterday UTC. With no
// partitions it falls back to the fallbackDays-day window ending yesterday.
// The returned range is Empty when storage is already up to date; that is
// not an error.
func (p *Planner) NextRange(prefix string, fallbackDays int) (Range, error) {
	keys, err := p.store.ListKeys(prefix)
	if err != nil {
		return Range{}, err
	}

	latest, found := latestPartition(keys)
	if !found {
		return p.FallbackRange(fallbackDays), nil
	}
	return Range{
		Start: latest.Date().AddDate(0, 0, 1),
		End:   p.endOfYesterday(),
	}, nil
}

// RangeAfter returns the range from the day after latestDay through end of
// yesterday UTC. Used when the latest processed day comes from a collaborator
// (the relational candle store) rather than a partition listing.
func (p *Planner) RangeAfter(latestDay time.Time) Range {
	latestDay = latestDay.UTC()
	start := time.Date(latestDay.Year(), latestDay.Month(), latestDay.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, 1)
	return Range{Start: start, End: p.endOfYesterday()}
}

// FallbackRange returns the fallbackDays-day window ending yesterday: it
// starts fallbackDays-1 days before today at midnight UTC.
func (p *Planner) FallbackRange(fallbackDays int) Range {
	if fallbackDays < 1 {
		fallbackDays = 1
	}
	now := p.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Range{
		Start: today.AddDate(0, 0, -(fallbackDays - 1)),
		End:   p.endOfYesterday(),
	}
}

// endOfYesterday caps every range: the upstream provider serves partial data
// for the current day, so fetching stops at yesterday 23:59:59 UTC.
func (p *Planner) endOfYesterday() time.Time {
	now := p.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.Add(-time.Second)
}

// latestPartition scans keys for the numerically latest partition day.
func latestPartition(keys []string) (domain.PartitionKey, bool) {
	var latest domain.PartitionKey
	found := false
	for _, key := range keys {
		pk, ok := storage.ParseKey(key)
		if !ok {
			continue
		}
		if !found || latest.Before(pk) {
			latest = pk
			found = true
		}
	}
	return latest, found
}
