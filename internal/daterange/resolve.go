package daterange

import "time"

// Resolve computes the range of the given unit around reference.
//
// Start is normalised to 00:00 and End to 23:59 of their days before the
// per-unit adjustments below:
//
//   - WeekOfYear, WeekOfMonth: backward, the days of the current week up to the
//     reference day; forward, the reference day to the end of the week. Without
//     IncludeOriginalDay the reference day is left out, and a backward lookup on
//     the first day of the week yields the whole previous week.
//   - Month: backward, the 1st of the month up to the reference day, the day
//     before it (IncludeOriginalWeek) or the end of the previous week (no flag,
//     clamped at the 1st). Forward, the reference day, the end of its week
//     (IncludeOriginalWeek) or the next day (no flag) to the end of the month.
//   - Year, YearForWeekOfYear: backward, Jan 1 to the reference day when any
//     Include flag is set, otherwise to the end of the previous month; in
//     January the whole previous year. Forward, Jan 1 to Dec 31 of the
//     reference year.
//   - Any other unit: the reference day.
//
// The boolean is false only when the calendar cannot decompose reference.
func (c Calendar) Resolve(reference time.Time, unit Unit, opts Options) (Range, bool) {
	f, ok := c.decompose(reference, opts)
	if !ok {
		return Range{}, false
	}

	start := startOfDay(f.year, f.month, f.day, f.loc)
	end := endOfDay(f.year, f.month, f.day, f.loc)

	// Day offsets applied after the boundaries above are fixed.
	var startShift, endShift int

	lastPos := daysPerWeek - 1
	future := opts.Has(DirectionFuture)

	switch unit {
	case WeekOfYear, WeekOfMonth:
		if future {
			endShift = lastPos - f.pos
		} else {
			startShift = -f.pos
		}

		if !opts.Has(IncludeOriginalDay) {
			if future {
				if f.pos != lastPos {
					startShift = 1
				}
			} else {
				endShift = -1
				if f.pos == 0 {
					startShift -= daysPerWeek
				}
			}
		}

	case Month:
		if future {
			end = endOfDay(f.year, f.month, f.daysInMonth, f.loc)
			switch {
			case opts.Has(IncludeOriginalDay):
			case opts.Has(IncludeOriginalWeek):
				toWeekEnd := lastPos - f.pos
				if f.day+toWeekEnd < f.daysInMonth {
					startShift = toWeekEnd
				}
			default:
				if f.day < f.daysInMonth {
					startShift = 1
				}
			}
		} else {
			start = startOfDay(f.year, f.month, 1, f.loc)
			switch {
			case opts.Has(IncludeOriginalDay):
			case opts.Has(IncludeOriginalWeek):
				if f.day != 1 {
					endShift = -1
				}
			default:
				endShift = -(f.pos + 1)
				if f.day+endShift < 1 {
					endShift = 1 - f.day
				}
			}
		}

	case Year, YearForWeekOfYear:
		start = startOfDay(f.year, time.January, 1, f.loc)
		if future {
			end = endOfDay(f.year, time.December, 31, f.loc)
			break
		}
		if !opts.HasAny(IncludeOriginalMonth | IncludeOriginalWeek | IncludeOriginalDay) {
			if f.month == time.January {
				start = startOfDay(f.year-1, time.January, 1, f.loc)
			}
			// Day 0 is the last day of the preceding month; time.Date rolls
			// the year back together with the month.
			end = endOfDay(f.year, f.month, 0, f.loc)
		}
	}

	if startShift != 0 {
		start = start.AddDate(0, 0, startShift)
	}
	if endShift != 0 {
		end = end.AddDate(0, 0, endShift)
	}

	return Range{Start: start, End: end}, true
}

// Resolve computes a range with the default calendar.
func Resolve(reference time.Time, unit Unit, opts Options) (Range, bool) {
	return defaultCal.Resolve(reference, unit, opts)
}
