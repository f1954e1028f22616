// Package normalize converts stored broker-local tick batches to UTC,
// re-bucketing across day boundaries and writing an audit manifest per
// destination day.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"tickvault/internal/domain"
	"tickvault/internal/storage"
)

// Normalizer reads raw tick partitions, reinterprets their timestamps as
// broker-local wall-clock time in a named zone, and writes UTC-bucketed
// batches. Each destination day is rebuilt deterministically, so re-running
// a range is safe; days already written by an interrupted run are simply
// rewritten with identical content.
type Normalizer struct {
	source storage.BlobStore
	dest   storage.BlobStore
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Normalizer reading raw batches from source and writing
// normalized batches plus manifests to dest. source and dest may be the
// same store; the key prefixes differ.
func New(source, dest storage.BlobStore) *Normalizer {
	return &Normalizer{
		source: source,
		dest:   dest,
		log:    slog.Default().With("component", "normalize"),
		now:    time.Now,
	}
}

type dayBucket struct {
	ticks   []domain.Tick
	offsets map[int]struct{}
}

// Run normalizes every source UTC day in [start, end] for the symbol,
// interpreting stored timestamps as wall-clock readings in sourceTimezone.
// Returns one manifest per destination day written, ordered by day.
func (n *Normalizer) Run(ctx context.Context, symbol string, start, end time.Time, sourceTimezone string) ([]domain.Manifest, error) {
	loc, err := time.LoadLocation(sourceTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", sourceTimezone, err)
	}

	buckets := make(map[string]*dayBucket)

	day := startOfDay(start)
	endDay := startOfDay(end)
	for !day.After(endDay) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := n.collectSourceDay(symbol, day, loc, buckets); err != nil {
			return nil, err
		}
		day = day.AddDate(0, 0, 1)
	}

	destDays := make([]string, 0, len(buckets))
	for d := range buckets {
		destDays = append(destDays, d)
	}
	sort.Strings(destDays)

	// The run ID stays in logs only: the persisted manifest is a pure
	// function of the source data, so re-runs reproduce it byte for byte
	// apart from generated_at.
	log := n.log.With("runID", ulid.Make().String())
	manifests := make([]domain.Manifest, 0, len(destDays))
	for _, d := range destDays {
		m, err := n.writeDestDay(log, symbol, d, buckets[d], sourceTimezone)
		if err != nil {
			return manifests, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// collectSourceDay reads all raw batches for one source day and distributes
// the converted ticks into destination-day buckets.
func (n *Normalizer) collectSourceDay(symbol string, day time.Time, loc *time.Location, buckets map[string]*dayBucket) error {
	keys, err := n.source.ListKeys(storage.TickDayPrefix(symbol, day))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		n.log.Debug("no raw batches for source day", "symbol", symbol, "day", day.Format("2006-01-02"))
		return nil
	}

	for _, key := range keys {
		data, err := n.source.Get(key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		ticks, err := storage.DecodeTicks(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		for _, t := range ticks {
			utc, offset := toUTC(t.Time, loc)
			t.Time = utc
			destDay := utc.Format("2006-01-02")
			b := buckets[destDay]
			if b == nil {
				b = &dayBucket{offsets: make(map[int]struct{})}
				buckets[destDay] = b
			}
			b.ticks = append(b.ticks, t)
			b.offsets[offset] = struct{}{}
		}
	}
	return nil
}

// writeDestDay sorts, deduplicates, encodes, and stores one destination-day
// batch plus its manifest.
func (n *Normalizer) writeDestDay(log *slog.Logger, symbol, destDay string, b *dayBucket, sourceTimezone string) (domain.Manifest, error) {
	day, err := time.Parse("2006-01-02", destDay)
	if err != nil {
		return domain.Manifest{}, err
	}

	ticks := storage.MergeTicks(nil, b.ticks)
	data, err := storage.EncodeTicks(symbol, ticks)
	if err != nil {
		return domain.Manifest{}, err
	}
	checksum := sha256.Sum256(data)

	if _, err := n.dest.Put(storage.NormalizedTickKey(symbol, day), data); err != nil {
		return domain.Manifest{}, err
	}

	offsets := make([]int, 0, len(b.offsets))
	for off := range b.offsets {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	manifest := domain.Manifest{
		Symbol:             symbol,
		SourcePrefix:       storage.TickPrefix(symbol),
		DestPrefix:         storage.NormalizedTickRoot + "/" + symbol + "/",
		SourceTimezone:     sourceTimezone,
		DestinationDateUTC: destDay,
		OffsetsApplied:     offsets,
		TickCount:          len(ticks),
		ContentChecksum:    hex.EncodeToString(checksum[:]),
		GeneratedAt:        n.now().UTC(),
	}
	if len(ticks) > 0 {
		manifest.FirstUTC = ticks[0].Time
		manifest.LastUTC = ticks[len(ticks)-1].Time
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return domain.Manifest{}, err
	}
	if _, err := n.dest.Put(storage.ManifestKey(symbol, day), encoded); err != nil {
		return domain.Manifest{}, err
	}

	if len(b.offsets) > 1 {
		log.Warn("multiple UTC offsets in destination day",
			"symbol", symbol, "day", destDay, "offsets", offsets)
	}
	log.Info("normalized day written",
		"symbol", symbol,
		"day", destDay,
		"ticks", len(ticks),
		"checksum", manifest.ContentChecksum[:12],
	)
	return manifest, nil
}

// toUTC reinterprets a stored timestamp as a wall-clock reading in loc and
// returns the corresponding UTC instant plus the zone offset applied, in
// seconds.
func toUTC(stored time.Time, loc *time.Location) (time.Time, int) {
	w := stored.UTC()
	local := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), loc)
	_, offset := local.Zone()
	return local.UTC(), offset
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
