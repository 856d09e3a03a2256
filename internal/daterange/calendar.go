// Package daterange resolves calendar-aligned date ranges around a reference
// instant: the current or previous week, the rest of the month, the year to
// date and similar windows.
//
// All computations are pure and allocate only local values, so a Calendar may
// be shared freely between goroutines.
//
// Basic usage:
//
//	cal := daterange.Calendar{Location: time.UTC}
//	r, ok := cal.Resolve(time.Now(), daterange.WeekOfYear, 0)
//	if ok {
//		fmt.Println(r) // this week up to yesterday
//	}
package daterange

import "time"

const (
	daysPerWeek   = 7
	monthsPerYear = 12
)

// Calendar carries the host calendar configuration used to decompose an
// instant into calendar fields.
//
// The zero value is usable: weeks start on weekday index 1, times are
// interpreted in time.Local and "now" is time.Now.
type Calendar struct {
	// FirstWeekday is the 1-based index of the first day of the week in the
	// weekday numbering in use (Monday-origin unless WeekStartsOnSunday is
	// set). Zero means 1. Values outside 0..7 make the calendar invalid.
	FirstWeekday int

	// Location is the time zone instants are decomposed in. Nil means time.Local.
	Location *time.Location

	// Now returns the current instant for the Is* helpers. Nil means time.Now.
	Now func() time.Time
}

// Default returns the calendar used by the package-level functions.
func Default() Calendar {
	return Calendar{FirstWeekday: 1, Location: time.Local}
}

var defaultCal = Default()

// Valid reports whether the calendar can decompose instants.
func (c Calendar) Valid() bool {
	return c.FirstWeekday >= 0 && c.FirstWeekday <= daysPerWeek
}

func (c Calendar) firstWeekday() int {
	if c.FirstWeekday == 0 {
		return 1
	}
	return c.FirstWeekday
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// In returns t in the calendar's location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.location())
}

func (c Calendar) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now().In(c.location())
}

// fields is the calendar decomposition of a reference instant.
type fields struct {
	year        int
	month       time.Month
	day         int
	weekday     int // 1-based in the numbering selected by the options
	pos         int // 0-based position within the week, relative to FirstWeekday
	daysInMonth int
	loc         *time.Location
}

func (c Calendar) decompose(t time.Time, opts Options) (fields, bool) {
	if !c.Valid() {
		return fields{}, false
	}
	loc := c.location()
	lt := t.In(loc)
	y, m, d := lt.Date()

	// Sunday-origin index: Sunday = 1 .. Saturday = 7.
	weekday := int(lt.Weekday()) + 1
	if !opts.Has(WeekStartsOnSunday) {
		// Monday = 1 .. Sunday = 7.
		if weekday == 1 {
			weekday = daysPerWeek
		} else {
			weekday--
		}
	}

	pos := weekday - c.firstWeekday()
	if pos < 0 {
		pos += daysPerWeek
	}

	return fields{
		year:        y,
		month:       m,
		day:         d,
		weekday:     weekday,
		pos:         pos,
		daysInMonth: daysIn(y, m, loc),
		loc:         loc,
	}, true
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func startOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// endOfDay is 23:59 of the day, extended to the last representable instant of
// that minute so that Contains holds for any time of day.
func endOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}
