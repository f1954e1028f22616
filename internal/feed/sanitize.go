package feed

import (
	"math"
	"time"

	"tickvault/internal/domain"
)

// SanitizeResult carries the surviving ticks plus distinct drop counts, so
// operators can tell upstream data-quality problems (malformed) apart from
// clock-skew problems (out of window).
type SanitizeResult struct {
	Ticks              []domain.Tick
	DroppedMalformed   int
	DroppedOutOfWindow int
}

// Sanitize filters raw ticks in two stages: first dropping records with
// non-finite or non-positive prices or a non-finite timestamp, then dropping
// records whose timestamp falls outside [windowStart, windowEnd].
func Sanitize(raw []RawTick, windowStart, windowEnd time.Time) SanitizeResult {
	res := SanitizeResult{Ticks: make([]domain.Tick, 0, len(raw))}

	for _, r := range raw {
		if !finite(r.Timestamp) || !finite(r.Bid) || !finite(r.Ask) || r.Bid <= 0 || r.Ask <= 0 {
			res.DroppedMalformed++
			continue
		}
		ts := epochToTime(r.Timestamp)
		if ts.Before(windowStart) || ts.After(windowEnd) {
			res.DroppedOutOfWindow++
			continue
		}
		res.Ticks = append(res.Ticks, domain.Tick{
			Time:      ts,
			Bid:       r.Bid,
			Ask:       r.Ask,
			BidVolume: r.BidVolume,
			AskVolume: r.AskVolume,
		})
	}
	return res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// epochToTime converts float seconds-since-epoch to a UTC time at
// millisecond precision, matching the feed's native resolution.
func epochToTime(sec float64) time.Time {
	ms := int64(math.Round(sec * 1000))
	return time.UnixMilli(ms).UTC()
}
