package feed

import (
	"math"
	"testing"
	"time"
)

func TestSanitizeDropsMalformedAndCounts(t *testing.T) {
	raw := []RawTick{
		{Timestamp: math.NaN(), Bid: 1, Ask: 1},
		{Timestamp: 100, Bid: -1, Ask: 1},
		{Timestamp: 100, Bid: 1, Ask: 1},
	}
	windowStart := time.Unix(0, 0).UTC()
	windowEnd := time.Unix(200, 0).UTC()

	res := Sanitize(raw, windowStart, windowEnd)

	if len(res.Ticks) != 1 {
		t.Fatalf("surviving ticks = %d, want 1", len(res.Ticks))
	}
	if res.DroppedMalformed != 2 {
		t.Errorf("DroppedMalformed = %d, want 2", res.DroppedMalformed)
	}
	if res.DroppedOutOfWindow != 0 {
		t.Errorf("DroppedOutOfWindow = %d, want 0", res.DroppedOutOfWindow)
	}
	if want := time.Unix(100, 0).UTC(); !res.Ticks[0].Time.Equal(want) {
		t.Errorf("surviving tick time = %s, want %s", res.Ticks[0].Time, want)
	}
}

func TestSanitizeWindowFilter(t *testing.T) {
	windowStart := time.Unix(1000, 0).UTC()
	windowEnd := time.Unix(2000, 0).UTC()

	raw := []RawTick{
		{Timestamp: 999.999, Bid: 1.1, Ask: 1.2}, // just before window
		{Timestamp: 1000, Bid: 1.1, Ask: 1.2},    // window start, inclusive
		{Timestamp: 1500, Bid: 1.1, Ask: 1.2},
		{Timestamp: 2000, Bid: 1.1, Ask: 1.2},    // window end, inclusive
		{Timestamp: 2000.001, Bid: 1.1, Ask: 1.2}, // just after window
	}

	res := Sanitize(raw, windowStart, windowEnd)

	if len(res.Ticks) != 3 {
		t.Fatalf("surviving ticks = %d, want 3", len(res.Ticks))
	}
	if res.DroppedOutOfWindow != 2 {
		t.Errorf("DroppedOutOfWindow = %d, want 2", res.DroppedOutOfWindow)
	}
	if res.DroppedMalformed != 0 {
		t.Errorf("DroppedMalformed = %d, want 0", res.DroppedMalformed)
	}
}

func TestSanitizeAccounting(t *testing.T) {
	raw := []RawTick{
		{Timestamp: 10, Bid: 1, Ask: 1},
		{Timestamp: math.Inf(1), Bid: 1, Ask: 1},
		{Timestamp: 50, Bid: 0, Ask: 1},
		{Timestamp: 5000, Bid: 1, Ask: 1},
		{Timestamp: 20, Bid: 1, Ask: math.NaN()},
	}
	res := Sanitize(raw, time.Unix(0, 0).UTC(), time.Unix(100, 0).UTC())

	total := len(res.Ticks) + res.DroppedMalformed + res.DroppedOutOfWindow
	if total != len(raw) {
		t.Errorf("accounting broken: %d survivors + %d malformed + %d out-of-window != %d inputs",
			len(res.Ticks), res.DroppedMalformed, res.DroppedOutOfWindow, len(raw))
	}
	for _, tick := range res.Ticks {
		if tick.Bid <= 0 || tick.Ask <= 0 {
			t.Errorf("surviving tick has non-positive price: %+v", tick)
		}
	}
}
