package daterange

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownUnit is returned by ParseUnit for an unrecognised unit name.
	ErrUnknownUnit = errors.New("daterange: unknown unit")
	// ErrUnknownOption is returned by ParseOptions for an unrecognised option name.
	ErrUnknownOption = errors.New("daterange: unknown option")
)

// Unit is the calendar granularity being resolved.
type Unit int

const (
	Day Unit = iota + 1
	WeekOfMonth
	WeekOfYear
	Month
	Year
	YearForWeekOfYear

	// Generic units. Resolve returns the reference day for these.
	Minute
	Hour
	Weekday
	Quarter
)

var unitNames = map[Unit]string{
	Day:               "day",
	WeekOfMonth:       "week_of_month",
	WeekOfYear:        "week_of_year",
	Month:             "month",
	Year:              "year",
	YearForWeekOfYear: "year_for_week_of_year",
	Minute:            "minute",
	Hour:              "hour",
	Weekday:           "weekday",
	Quarter:           "quarter",
}

var unitAliases = map[string]Unit{
	"week": WeekOfYear,
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// ParseUnit parses a unit name such as "week", "month" or "year_for_week_of_year".
// Matching is case-insensitive and dashes are accepted in place of underscores.
func ParseUnit(s string) (Unit, error) {
	key := normalizeName(s)
	if u, ok := unitAliases[key]; ok {
		return u, nil
	}
	for u, name := range unitNames {
		if name == key {
			return u, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Options is a set of independent resolver flags. The zero value has no flag set.
type Options uint8

const (
	// WeekStartsOnSunday numbers weekdays from Sunday instead of Monday.
	WeekStartsOnSunday Options = 1 << iota
	// DirectionFuture resolves the next period instead of the current or previous one.
	DirectionFuture
	// IncludeOriginalDay includes the reference instant's whole day.
	IncludeOriginalDay
	// IncludeOriginalWeek includes the reference instant's containing week.
	IncludeOriginalWeek
	// IncludeOriginalMonth includes the reference instant's containing month (year unit only).
	IncludeOriginalMonth
)

var optionNames = []struct {
	flag Options
	name string
}{
	{WeekStartsOnSunday, "week_starts_on_sunday"},
	{DirectionFuture, "direction_future"},
	{IncludeOriginalDay, "include_original_day"},
	{IncludeOriginalWeek, "include_original_week"},
	{IncludeOriginalMonth, "include_original_month"},
}

// Has reports whether every flag in f is set.
func (o Options) Has(f Options) bool {
	return o&f == f
}

// HasAny reports whether at least one flag in f is set.
func (o Options) HasAny(f Options) bool {
	return o&f != 0
}

// String renders the set as comma separated names, in declaration order.
func (o Options) String() string {
	names := make([]string, 0, len(optionNames))
	for _, on := range optionNames {
		if o.Has(on.flag) {
			names = append(names, on.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseOptions parses a comma separated list of option names. Empty elements
// are ignored, so "" yields the empty set.
func ParseOptions(s string) (Options, error) {
	var o Options
	var unknown []string
	for _, part := range strings.Split(s, ",") {
		key := normalizeName(part)
		if key == "" {
			continue
		}
		found := false
		for _, on := range optionNames {
			if on.name == key {
				o |= on.flag
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, strings.TrimSpace(part))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return 0, fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(unknown, ", "))
	}
	return o, nil
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
