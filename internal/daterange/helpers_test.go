package daterange

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInterval(t *testing.T) {
	t.Parallel()

	ref := time.Date(2026, time.June, 10, 14, 20, 33, 0, time.UTC)
	last := func(next time.Time) time.Time { return next.Add(-time.Nanosecond) }

	tests := []struct {
		unit      Unit
		wantStart time.Time
		wantEnd   time.Time
	}{
		{Minute, at(2026, time.June, 10, 14, 20), last(at(2026, time.June, 10, 14, 21))},
		{Hour, at(2026, time.June, 10, 14, 0), last(at(2026, time.June, 10, 15, 0))},
		{Day, dayStart(2026, time.June, 10), dayEnd(2026, time.June, 10)},
		{WeekOfYear, dayStart(2026, time.June, 8), dayEnd(2026, time.June, 14)},
		{Month, dayStart(2026, time.June, 1), dayEnd(2026, time.June, 30)},
		{Quarter, dayStart(2026, time.April, 1), dayEnd(2026, time.June, 30)},
		{Year, dayStart(2026, time.January, 1), dayEnd(2026, time.December, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.unit.String(), func(t *testing.T) {
			got, ok := utcCal.Interval(ref, tt.unit)
			require.True(t, ok)
			assert.True(t, got.Start.Equal(tt.wantStart), "start = %s, want %s", got.Start, tt.wantStart)
			assert.True(t, got.End.Equal(tt.wantEnd), "end = %s, want %s", got.End, tt.wantEnd)
			assert.True(t, got.Contains(ref))
		})
	}
}

func TestInterval_ISOWeekYear(t *testing.T) {
	t.Parallel()

	// 2026-01-01 is a Thursday, so ISO year 2026 starts on Monday 2025-12-29.
	got, ok := utcCal.Interval(at(2026, time.January, 1, 10, 0), YearForWeekOfYear)
	require.True(t, ok)
	assert.True(t, got.Start.Equal(dayStart(2025, time.December, 29)), "start = %s", got.Start)
	assert.True(t, got.End.Equal(dayEnd(2027, time.January, 3)), "end = %s", got.End)
}

func TestInterval_UnknownUnitAndInvalidCalendar(t *testing.T) {
	t.Parallel()

	_, ok := utcCal.Interval(at(2026, time.June, 10, 0, 0), Unit(99))
	assert.False(t, ok)

	_, ok = Calendar{FirstWeekday: 9}.Interval(at(2026, time.June, 10, 0, 0), Day)
	assert.False(t, ok)
}

func TestCalendarCounts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, utcCal.DaysInWeek())
	assert.Equal(t, 12, utcCal.MonthsInYear())
	assert.Equal(t, 29, utcCal.DaysInMonth(at(2024, time.February, 10, 0, 0)))
	assert.Equal(t, 28, utcCal.DaysInMonth(at(2026, time.February, 10, 0, 0)))
	assert.Equal(t, 31, utcCal.DaysInMonth(at(2026, time.December, 31, 23, 0)))
}

func TestRelativeDayChecks(t *testing.T) {
	t.Parallel()

	cal := Calendar{Location: time.UTC, Now: fixedNow(at(2026, time.June, 10, 12, 0))}

	assert.True(t, cal.IsToday(at(2026, time.June, 10, 0, 1)))
	assert.False(t, cal.IsToday(at(2026, time.June, 11, 0, 0)))
	assert.True(t, cal.IsYesterday(at(2026, time.June, 9, 23, 0)))
	assert.True(t, cal.IsTomorrow(at(2026, time.June, 11, 8, 0)))
	assert.False(t, cal.IsTomorrow(at(2026, time.June, 12, 8, 0)))

	assert.True(t, cal.IsWeekend(at(2026, time.June, 13, 8, 0)))
	assert.True(t, cal.IsWeekend(at(2026, time.June, 14, 8, 0)))
	assert.False(t, cal.IsWeekend(at(2026, time.June, 10, 8, 0)))

	assert.True(t, cal.IsThisWeek(at(2026, time.June, 8, 0, 0)))
	assert.True(t, cal.IsThisWeek(at(2026, time.June, 14, 23, 0)))
	assert.False(t, cal.IsThisWeek(at(2026, time.June, 15, 0, 0)))
	assert.False(t, cal.IsThisWeek(at(2025, time.June, 11, 0, 0)))

	assert.True(t, cal.IsThisMonth(at(2026, time.June, 30, 0, 0)))
	assert.False(t, cal.IsThisMonth(at(2025, time.June, 10, 0, 0)))
	assert.True(t, cal.IsThisYear(at(2026, time.December, 31, 0, 0)))
	assert.False(t, cal.IsThisYear(at(2027, time.January, 1, 0, 0)))
}

func TestRelativeDayChecks_Location(t *testing.T) {
	t.Parallel()

	jst := time.FixedZone("Asia/Tokyo", 9*60*60)
	// 2026-06-10 20:00 UTC is already 2026-06-11 in JST.
	cal := Calendar{Location: jst, Now: fixedNow(at(2026, time.June, 10, 20, 0))}

	assert.True(t, cal.IsToday(at(2026, time.June, 11, 2, 0)))
	assert.True(t, cal.IsYesterday(at(2026, time.June, 10, 2, 0)))
}

func TestRange(t *testing.T) {
	t.Parallel()

	r := Range{Start: dayStart(2026, time.June, 8), End: dayEnd(2026, time.June, 9)}

	assert.True(t, r.Contains(r.Start))
	assert.True(t, r.Contains(r.End))
	assert.True(t, r.Contains(at(2026, time.June, 9, 12, 0)))
	assert.False(t, r.Contains(r.End.Add(time.Nanosecond)))
	assert.False(t, r.Contains(r.Start.Add(-time.Nanosecond)))

	assert.Equal(t, 2, r.Days())
	assert.Equal(t, 48*time.Hour-time.Nanosecond, r.Duration())
	assert.Equal(t, "2026-06-08 00:00 .. 2026-06-09 23:59", r.String())

	single := Range{Start: dayStart(2026, time.June, 8), End: dayEnd(2026, time.June, 8)}
	assert.Equal(t, 1, single.Days())
}

func TestParseUnit(t *testing.T) {
	t.Parallel()

	tests := map[string]Unit{
		"week":                  WeekOfYear,
		"Week-Of-Month":         WeekOfMonth,
		"month":                 Month,
		" YEAR ":                Year,
		"year_for_week_of_year": YearForWeekOfYear,
		"quarter":               Quarter,
	}
	for in, want := range tests {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for u := range unitNames {
		got, err := ParseUnit(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}

	_, err := ParseUnit("fortnight")
	assert.True(t, errors.Is(err, ErrUnknownUnit))
	assert.Equal(t, "unit(42)", Unit(42).String())
}

func TestParseOptions(t *testing.T) {
	t.Parallel()

	got, err := ParseOptions("direction_future, include-original-day,")
	require.NoError(t, err)
	assert.Equal(t, DirectionFuture|IncludeOriginalDay, got)
	assert.Equal(t, "direction_future,include_original_day", got.String())

	got, err = ParseOptions("")
	require.NoError(t, err)
	assert.Equal(t, Options(0), got)
	assert.Equal(t, "", got.String())

	all := WeekStartsOnSunday | DirectionFuture | IncludeOriginalDay | IncludeOriginalWeek | IncludeOriginalMonth
	got, err = ParseOptions(all.String())
	require.NoError(t, err)
	assert.Equal(t, all, got)

	_, err = ParseOptions("direction_future,sideways,backwards")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOption))
	assert.Contains(t, err.Error(), "backwards, sideways")
}

func TestOptionsHas(t *testing.T) {
	t.Parallel()

	o := DirectionFuture | IncludeOriginalWeek
	assert.True(t, o.Has(DirectionFuture))
	assert.False(t, o.Has(DirectionFuture|IncludeOriginalDay))
	assert.True(t, o.HasAny(DirectionFuture|IncludeOriginalDay))
	assert.False(t, o.HasAny(WeekStartsOnSunday|IncludeOriginalMonth))
}
