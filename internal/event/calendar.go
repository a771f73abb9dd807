package event

import (
	"time"

	"github.com/lmap-agent/lmapd/internal/identifier"
	"github.com/lmap-agent/lmapd/internal/model"
)

// localize returns t adjusted to ev.TimezoneOffset (minutes) when set,
// otherwise t converted to the local zone, per §4.3 "Calendar matching".
func localize(ev *model.Event, t time.Time) time.Time {
	if ev.TimezoneOffset == nil {
		return t.Local()
	}
	return t.In(time.FixedZone("", *ev.TimezoneOffset*60))
}

// CalendarMatches reports whether t, localized here via localize,
// matches every non-all-ones bitset of a calendar Event.
func CalendarMatches(ev *model.Event, t time.Time) bool {
	lt := localize(ev, t)

	if !bitsetMatches(ev.Months, identifier.MonthsWidth, uint(lt.Month())-1) {
		return false
	}
	if !bitsetMatches(ev.DaysOfMonth, identifier.DayOfMonthWidth, uint(lt.Day())-1) {
		return false
	}
	if !bitsetMatches(ev.DaysOfWeek, identifier.DayOfWeekWidth, identifier.NormalizeWeekday(lt.Weekday())) {
		return false
	}
	if !bitsetMatches(ev.Hours, identifier.HoursWidth, uint(lt.Hour())) {
		return false
	}
	if !bitsetMatches(ev.Minutes, identifier.MinutesWidth, uint(lt.Minute())) {
		return false
	}
	if !bitsetMatches(ev.Seconds, identifier.SecondsWidth, uint(lt.Second())) {
		return false
	}
	return true
}

// bitsetMatches treats an all-ones bitset as a wildcard (always matches).
func bitsetMatches(bitset uint64, width, bit uint) bool {
	if identifier.IsAll(bitset, width) {
		return true
	}
	return identifier.HasBit(bitset, bit)
}
