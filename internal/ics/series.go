package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"thunderbasics/internal/daterange"
	appLog "thunderbasics/internal/log"
	"thunderbasics/internal/model"
)

// MaxSeriesCount caps the number of steps a single series may produce.
const MaxSeriesCount = 520

var ErrBadCount = errors.New("ics: series count must be positive")

// Series resolves q for count consecutive reference instants, one unit apart,
// and returns them in chronological order. With DirectionFuture the series
// starts at reference and walks forward; otherwise it ends at reference.
//
// Reference instants are produced by an RRULE anchored on reference. Monthly
// and yearly steps keep the reference day-of-month, clamped to the last day of
// shorter months. Steps the calendar cannot resolve are skipped.
func Series(cal daterange.Calendar, q model.Query, reference time.Time, count int) ([]model.Resolved, error) {
	if count <= 0 {
		return nil, ErrBadCount
	}
	if count > MaxSeriesCount {
		appLog.Warn("ics series: count capped", "requested", count, "cap", MaxSeriesCount)
		count = MaxSeriesCount
	}

	ref := cal.In(reference)
	anchor := ref
	if !q.Options.Has(daterange.DirectionFuture) {
		anchor = step(ref, q.Unit, -(count - 1))
	}

	opt, err := ruleFor(q.Unit, ref, anchor, count)
	if err != nil {
		return nil, err
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("ics series: build rrule: %w", err)
	}

	out := make([]model.Resolved, 0, count)
	for _, at := range rule.All() {
		res, ok := q.Resolve(cal, at)
		if !ok {
			appLog.Error("ics series: step not resolvable", errors.New("invalid calendar"),
				"query", q.Name, "reference", at.Format(time.RFC3339))
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// ruleFor maps a unit onto an RRULE. ref supplies the day-of-month and month
// to keep; anchor is DTSTART.
func ruleFor(unit daterange.Unit, ref, anchor time.Time, count int) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: anchor, Count: count, Interval: 1}

	// The earliest of {day, last day of month}: the reference day where it
	// exists, else the month's last day.
	clampedDay := []int{ref.Day(), -1}

	switch unit {
	case daterange.Minute:
		opt.Freq = rrule.MINUTELY
	case daterange.Hour:
		opt.Freq = rrule.HOURLY
	case daterange.Day, daterange.Weekday:
		opt.Freq = rrule.DAILY
	case daterange.WeekOfYear, daterange.WeekOfMonth:
		opt.Freq = rrule.WEEKLY
	case daterange.Month:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = clampedDay
		opt.Bysetpos = []int{1}
	case daterange.Quarter:
		opt.Freq = rrule.MONTHLY
		opt.Interval = 3
		opt.Bymonthday = clampedDay
		opt.Bysetpos = []int{1}
	case daterange.Year, daterange.YearForWeekOfYear:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(ref.Month())}
		opt.Bymonthday = clampedDay
		opt.Bysetpos = []int{1}
	default:
		return rrule.ROption{}, fmt.Errorf("ics series: %w: %s", daterange.ErrUnknownUnit, unit)
	}
	return opt, nil
}

// step moves t by n units, keeping the time of day and clamping the
// day-of-month for month based units.
func step(t time.Time, unit daterange.Unit, n int) time.Time {
	switch unit {
	case daterange.Minute:
		return t.Add(time.Duration(n) * time.Minute)
	case daterange.Hour:
		return t.Add(time.Duration(n) * time.Hour)
	case daterange.WeekOfYear, daterange.WeekOfMonth:
		return t.AddDate(0, 0, 7*n)
	case daterange.Month:
		return addMonthsClamped(t, n)
	case daterange.Quarter:
		return addMonthsClamped(t, 3*n)
	case daterange.Year, daterange.YearForWeekOfYear:
		return addMonthsClamped(t, 12*n)
	default:
		return t.AddDate(0, 0, n)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}
