package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"thunderbasics/internal/daterange"
	appLog "thunderbasics/internal/log"
	"thunderbasics/internal/model"
)

const (
	defaultProductID = "-//thunderbasics//date ranges//EN"

	propUnit      ical.ComponentProperty = "X-THUNDERBASICS-UNIT"
	propOptions   ical.ComponentProperty = "X-THUNDERBASICS-OPTIONS"
	propReference ical.ComponentProperty = "X-THUNDERBASICS-REFERENCE"

	dateLayout = "20060102"
)

// ExportOptions controls calendar serialisation.
type ExportOptions struct {
	// ProductID is written as PRODID. Empty means the package default.
	ProductID string
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Stamp is written as DTSTAMP on every event. Zero means time.Now.
	Stamp time.Time
}

// Export renders each resolved range as an all-day VEVENT. DTEND is
// exclusive, so it is the day after the range's last day.
func Export(resolved []model.Resolved, opts ExportOptions) (string, error) {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, res := range resolved {
		if res.Range.End.Before(res.Range.Start) {
			return "", fmt.Errorf("ics export: %q: end %s before start %s",
				res.Query.Name, res.Range.End, res.Range.Start)
		}
		startDay := res.Range.Start
		lastDay := res.Range.End.In(startDay.Location())

		ev := cal.AddEvent(eventUID(res))
		ev.SetDtStampTime(opts.Stamp.UTC())
		ev.SetSummary(res.Query.Name)
		ev.SetDescription(fmt.Sprintf("%s (%s)", res.Range, res.Query.Unit))
		ev.SetAllDayStartAt(startDay)
		ev.SetAllDayEndAt(lastDay.AddDate(0, 0, 1))
		ev.SetProperty(propUnit, res.Query.Unit.String())
		if res.Query.Options != 0 {
			ev.SetProperty(propOptions, res.Query.Options.String())
		}
		if !res.Reference.IsZero() {
			ev.SetProperty(propReference, res.Reference.UTC().Format("20060102T150405Z"))
		}
	}

	return cal.Serialize(), nil
}

func eventUID(res model.Resolved) string {
	name := strings.ReplaceAll(strings.TrimSpace(res.Query.Name), " ", "-")
	if name == "" {
		name = res.Query.Unit.String()
	}
	return fmt.Sprintf("%s-%s@thunderbasics", name, res.Range.Start.Format(dateLayout))
}

// Parse reads a calendar produced by Export back into resolved ranges. Day
// boundaries are rebuilt in loc (nil means time.Local). Events without an
// all-day DTSTART/DTEND pair are skipped.
func Parse(body []byte, loc *time.Location) ([]model.Resolved, error) {
	if len(body) == 0 {
		return nil, errors.New("ics parse: empty body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	out := make([]model.Resolved, 0)
	for _, ve := range cal.Events() {
		res, perr := parseEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics parse: vevent skipped", perr)
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (model.Resolved, error) {
	var res model.Resolved

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		res.Query.Name = p.Value
	}

	start, err := dateProperty(ve, ical.ComponentPropertyDtStart, loc)
	if err != nil {
		return res, err
	}
	endExclusive, err := dateProperty(ve, ical.ComponentPropertyDtEnd, loc)
	if err != nil {
		return res, err
	}
	if !endExclusive.After(start) {
		return res, fmt.Errorf("DTEND %s not after DTSTART %s", endExclusive.Format(dateLayout), start.Format(dateLayout))
	}
	last := endExclusive.AddDate(0, 0, -1)
	res.Range = daterange.Range{
		Start: start,
		End:   time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc),
	}

	if p := ve.GetProperty(propUnit); p != nil {
		unit, err := daterange.ParseUnit(p.Value)
		if err != nil {
			return res, err
		}
		res.Query.Unit = unit
	}
	if p := ve.GetProperty(propOptions); p != nil {
		// Writers may escape the list separator as TEXT.
		opts, err := daterange.ParseOptions(strings.ReplaceAll(p.Value, `\,`, ","))
		if err != nil {
			return res, err
		}
		res.Query.Options = opts
	}
	if p := ve.GetProperty(propReference); p != nil {
		if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
			res.Reference = t.In(loc)
		}
	}
	return res, nil
}

func dateProperty(ve *ical.VEvent, prop ical.ComponentProperty, loc *time.Location) (time.Time, error) {
	p := ve.GetProperty(prop)
	if p == nil || p.Value == "" {
		return time.Time{}, fmt.Errorf("missing %s", prop)
	}
	v := strings.TrimSpace(p.Value)
	if len(v) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("%s %q: not a date", prop, v)
	}
	// Only the date part matters for all-day events.
	return time.ParseInLocation(dateLayout, v[:len(dateLayout)], loc)
}
