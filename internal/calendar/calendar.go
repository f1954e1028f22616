// Package calendar implements the forex market calendar: a single weekly
// closure from Friday evening through Sunday evening UTC, with no holiday
// table. All decisions are made in UTC.
package calendar

import "time"

const (
	// FridayCloseHour is the UTC hour at which the market closes on Friday.
	// Used by the closure predicate and the chunk scheduler.
	FridayCloseHour = 21

	// SundayOpenHour is the UTC hour at which the market reopens on Sunday.
	SundayOpenHour = 22

	// FridaySessionHours is the tradeable hour count used for Friday
	// expected-bar calculations. Note this implies a 22:00 cutoff and so
	// disagrees with FridayCloseHour; both values are carried deliberately,
	// pending product confirmation of which one is wrong.
	FridaySessionHours = 22
)

// IsTradeable reports whether the market is open at instant t. The market is
// closed from Friday 21:00 UTC (inclusive) through Sunday 22:00 UTC
// (exclusive): Friday 21:00:00 is closed, Sunday 22:00:00 is open.
func IsTradeable(t time.Time) bool {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Friday:
		return t.Hour() < FridayCloseHour
	case time.Sunday:
		return t.Hour() >= SundayOpenHour
	default:
		return true
	}
}

// NextOpen returns the earliest tradeable instant at or after t.
func NextOpen(t time.Time) time.Time {
	t = t.UTC()
	if IsTradeable(t) {
		return t
	}
	var sunday time.Time
	switch t.Weekday() {
	case time.Friday:
		sunday = t.AddDate(0, 0, 2)
	case time.Saturday:
		sunday = t.AddDate(0, 0, 1)
	default: // Sunday before the open
		sunday = t
	}
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), SundayOpenHour, 0, 0, 0, time.UTC)
}

// TradeableHours returns the number of tradeable hours in the UTC day
// containing t: 24 Monday-Thursday, FridaySessionHours on Friday, 2 on
// Sunday (the post-open stub), 0 on Saturday.
func TradeableHours(t time.Time) int {
	switch t.UTC().Weekday() {
	case time.Saturday:
		return 0
	case time.Sunday:
		return 24 - SundayOpenHour
	case time.Friday:
		return FridaySessionHours
	default:
		return 24
	}
}

// ExpectedBars returns the number of fixed-width candle buckets expected in
// the UTC day containing t. Weekend days report zero, matching the
// downstream aggregation which emits nothing outside the session.
func ExpectedBars(t time.Time, bucket time.Duration) int {
	if bucket <= 0 {
		return 0
	}
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return 0
	case time.Friday:
		return int((time.Duration(FridaySessionHours) * time.Hour) / bucket)
	default:
		return int((24 * time.Hour) / bucket)
	}
}
