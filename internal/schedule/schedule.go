// Package schedule splits a requested date range into ordered,
// non-overlapping, closure-free fetch chunks.
package schedule

import (
	"fmt"
	"time"

	"tickvault/internal/calendar"
	"tickvault/internal/domain"
)

// Build walks forward from start and partitions [start, end) into chunks of
// at most chunkHours hours. Instants inside the weekend closure are skipped
// by jumping to the next open instant; emitted chunks are clipped to the
// end of the UTC day, to the Friday close boundary, and to the overall end.
// Every chunk start satisfies calendar.IsTradeable.
func Build(start, end time.Time, chunkHours int) ([]domain.ChunkRange, error) {
	if chunkHours < 1 {
		return nil, fmt.Errorf("chunk hours must be >= 1, got %d", chunkHours)
	}
	start = start.UTC()
	end = end.UTC()
	if !start.Before(end) {
		return nil, fmt.Errorf("start %s is not before end %s", start, end)
	}

	var chunks []domain.ChunkRange
	cur := start
	for cur.Before(end) {
		if !calendar.IsTradeable(cur) {
			cur = calendar.NextOpen(cur)
			continue
		}

		chunkEnd := cur.Add(time.Duration(chunkHours) * time.Hour)
		atBoundary := false

		if dayEnd := endOfDay(cur); !chunkEnd.Before(dayEnd) {
			chunkEnd = dayEnd
			atBoundary = true
		}
		if cur.Weekday() == time.Friday && cur.Hour() < calendar.FridayCloseHour {
			if closeEnd := fridayCloseEnd(cur); !chunkEnd.Before(closeEnd) {
				chunkEnd = closeEnd
				atBoundary = true
			}
		}
		if !chunkEnd.Before(end) {
			chunkEnd = end
			atBoundary = false
		}

		chunks = append(chunks, domain.ChunkRange{Start: cur, End: chunkEnd})

		if atBoundary {
			cur = startOfNextDay(cur)
		} else {
			cur = chunkEnd.Add(time.Second)
		}
	}
	return chunks, nil
}

// ForDay returns the schedule covering one whole UTC day.
func ForDay(day time.Time, chunkHours int) ([]domain.ChunkRange, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return Build(from, from.AddDate(0, 0, 1), chunkHours)
}

// endOfDay returns the last scheduled second of t's UTC day (23:59:59).
func endOfDay(t time.Time) time.Time {
	return startOfNextDay(t).Add(-time.Second)
}

// fridayCloseEnd returns the last scheduled second before the Friday close
// (20:59:59 UTC).
func fridayCloseEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), calendar.FridayCloseHour, 0, 0, 0, time.UTC).
		Add(-time.Second)
}

func startOfNextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
