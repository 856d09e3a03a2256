package model

import (
	"time"

	"thunderbasics/internal/daterange"
)

// Query is a named resolver request. Config entries, HTTP requests, watch
// entries and ICS exports all evaluate queries.
type Query struct {
	Name    string
	Unit    daterange.Unit
	Options daterange.Options
}

// Resolve evaluates the query against reference on cal.
func (q Query) Resolve(cal daterange.Calendar, reference time.Time) (Resolved, bool) {
	r, ok := cal.Resolve(reference, q.Unit, q.Options)
	if !ok {
		return Resolved{}, false
	}
	return Resolved{Query: q, Reference: reference, Range: r}, true
}

// Resolved is the outcome of evaluating a Query for one reference instant.
type Resolved struct {
	Query Query

	// Reference is the instant the range was resolved around.
	Reference time.Time

	Range daterange.Range
}
