package daterange

import (
	"fmt"
	"time"
)

// Range is an inclusive [Start, End] pair of instants with Start <= End.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, both ends inclusive.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Days returns the number of calendar days the range touches, in the
// location of Start.
func (r Range) Days() int {
	loc := r.Start.Location()
	sy, sm, sd := r.Start.Date()
	ey, em, ed := r.End.In(loc).Date()
	first := time.Date(sy, sm, sd, 12, 0, 0, 0, time.UTC)
	last := time.Date(ey, em, ed, 12, 0, 0, 0, time.UTC)
	return int(last.Sub(first).Hours()/24) + 1
}

func (r Range) String() string {
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf("%s .. %s", r.Start.Format(layout), r.End.Format(layout))
}
