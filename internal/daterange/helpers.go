package daterange

import "time"

// DaysInWeek returns the number of weekdays.
func (c Calendar) DaysInWeek() int { return daysPerWeek }

// MonthsInYear returns the number of months in a year.
func (c Calendar) MonthsInYear() int { return monthsPerYear }

// DaysInMonth returns the number of days in the month containing t.
func (c Calendar) DaysInMonth(t time.Time) int {
	lt := t.In(c.location())
	return daysIn(lt.Year(), lt.Month(), lt.Location())
}

// Interval returns the whole unit containing t, from its first instant to the
// last instant before the next unit begins. Weeks start on FirstWeekday in the
// Monday-origin numbering; YearForWeekOfYear is the ISO 8601 week-numbering year.
func (c Calendar) Interval(t time.Time, unit Unit) (Range, bool) {
	f, ok := c.decompose(t, 0)
	if !ok {
		return Range{}, false
	}
	lt := t.In(f.loc)

	var start, next time.Time
	switch unit {
	case Minute:
		start = time.Date(f.year, f.month, f.day, lt.Hour(), lt.Minute(), 0, 0, f.loc)
		next = start.Add(time.Minute)
	case Hour:
		start = time.Date(f.year, f.month, f.day, lt.Hour(), 0, 0, 0, f.loc)
		next = start.Add(time.Hour)
	case Day, Weekday:
		start = startOfDay(f.year, f.month, f.day, f.loc)
		next = start.AddDate(0, 0, 1)
	case WeekOfYear, WeekOfMonth:
		start = startOfDay(f.year, f.month, f.day-f.pos, f.loc)
		next = start.AddDate(0, 0, daysPerWeek)
	case Month:
		start = startOfDay(f.year, f.month, 1, f.loc)
		next = start.AddDate(0, 1, 0)
	case Quarter:
		first := time.Month((int(f.month)-1)/3*3 + 1)
		start = startOfDay(f.year, first, 1, f.loc)
		next = start.AddDate(0, 3, 0)
	case Year:
		start = startOfDay(f.year, time.January, 1, f.loc)
		next = start.AddDate(1, 0, 0)
	case YearForWeekOfYear:
		isoYear, _ := lt.ISOWeek()
		start = isoYearStart(isoYear, f.loc)
		next = isoYearStart(isoYear+1, f.loc)
	default:
		return Range{}, false
	}

	return Range{Start: start, End: next.Add(-time.Nanosecond)}, true
}

// isoYearStart returns the Monday of ISO week 1, the week containing Jan 4.
func isoYearStart(year int, loc *time.Location) time.Time {
	jan4 := startOfDay(year, time.January, 4, loc)
	offset := (int(jan4.Weekday()) + 6) % daysPerWeek
	return jan4.AddDate(0, 0, -offset)
}

// IsToday reports whether t falls on the current day.
func (c Calendar) IsToday(t time.Time) bool {
	return c.sameDay(t, c.now())
}

// IsYesterday reports whether t falls on the day before the current day.
func (c Calendar) IsYesterday(t time.Time) bool {
	return c.sameDay(t, c.now().AddDate(0, 0, -1))
}

// IsTomorrow reports whether t falls on the day after the current day.
func (c Calendar) IsTomorrow(t time.Time) bool {
	return c.sameDay(t, c.now().AddDate(0, 0, 1))
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func (c Calendar) IsWeekend(t time.Time) bool {
	switch t.In(c.location()).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// IsThisWeek reports whether t falls within the current week.
func (c Calendar) IsThisWeek(t time.Time) bool {
	week, ok := c.Interval(c.now(), WeekOfYear)
	return ok && week.Contains(t)
}

// IsThisMonth reports whether t falls within the current month of the current year.
func (c Calendar) IsThisMonth(t time.Time) bool {
	now := c.now()
	lt := t.In(c.location())
	return lt.Year() == now.Year() && lt.Month() == now.Month()
}

// IsThisYear reports whether t falls within the current year.
func (c Calendar) IsThisYear(t time.Time) bool {
	return t.In(c.location()).Year() == c.now().Year()
}

func (c Calendar) sameDay(a, b time.Time) bool {
	loc := c.location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
