package ical

import (
	"time"

	"github.com/google/uuid"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
	"icalkit/pkg/value"
)

const day = 24 * time.Hour

// Event is a VEVENT with typed accessors.
type Event struct {
	*Component
}

// NewEvent returns an unattached VEVENT stamped with the current time. An
// empty uid gets a random UUID.
func NewEvent(uid string) *Event {
	if uid == "" {
		uid = uuid.NewString()
	}
	e := &Event{Component: NewComponent("VEVENT")}
	e.Add("DTSTAMP", stamp(time.Time{}))
	e.Add("UID", value.Text(uid))
	return e
}

// AsEvent views c as an Event when it is a VEVENT.
func AsEvent(c *Component) (*Event, bool) {
	if c == nil || c.Kind != KindEvent {
		return nil, false
	}
	return &Event{Component: c}, true
}

func (e *Event) UID() string         { return e.Text("UID") }
func (e *Event) Summary() string     { return e.Text("SUMMARY") }
func (e *Event) Location() string    { return e.Text("LOCATION") }
func (e *Event) Description() string { return e.Text("DESCRIPTION") }

func (e *Event) SetSummary(s string)     { e.Set("SUMMARY", value.Text(s)) }
func (e *Event) SetLocation(s string)    { e.Set("LOCATION", value.Text(s)) }
func (e *Event) SetDescription(s string) { e.Set("DESCRIPTION", value.Text(s)) }

// SetDate sets DTSTART and DTEND, dropping any DURATION. Date instants are
// written as DATE values.
func (e *Event) SetDate(start, end caltime.Instant) {
	e.Remove("DURATION")
	e.Set("DTSTART", instantValue(start))
	e.Set("DTEND", instantValue(end))
}

// SetDuration sets DTSTART and DURATION, dropping any DTEND.
func (e *Event) SetDuration(start caltime.Instant, d time.Duration) {
	e.Remove("DTEND")
	e.Set("DTSTART", instantValue(start))
	e.Set("DURATION", value.Duration(d))
}

// SetRRule replaces the recurrence rule.
func (e *Event) SetRRule(r *recur.Rule) {
	e.Set("RRULE", value.Recur{Rule: r})
}

func instantValue(i caltime.Instant) value.Value {
	if i.IsDate() {
		return value.Date{Instant: i}
	}
	return value.DateTime{Instant: i}
}

// timeOf extracts the instant of a DATE or DATE-TIME property value.
func timeOf(v value.Value) (caltime.Instant, bool) {
	switch v := v.(type) {
	case value.Date:
		return v.Instant, true
	case value.DateTime:
		return v.Instant, true
	}
	return caltime.Instant{}, false
}

// Start returns DTSTART.
func (e *Event) Start() (caltime.Instant, bool) {
	return timeOf(e.Value("DTSTART"))
}

// Duration returns the event length from DTEND or DURATION.
func (e *Event) Duration() (time.Duration, bool) {
	if d, ok := e.Value("DURATION").(value.Duration); ok {
		return time.Duration(d), true
	}
	start, ok := e.Start()
	if !ok {
		return 0, false
	}
	end, ok := timeOf(e.Value("DTEND"))
	if !ok {
		return 0, false
	}
	return end.Wall().Sub(start.Wall()), true
}

// End returns DTEND, or DTSTART plus DURATION.
func (e *Event) End() (caltime.Instant, bool) {
	if end, ok := timeOf(e.Value("DTEND")); ok {
		return end, true
	}
	start, ok := e.Start()
	if !ok {
		return caltime.Instant{}, false
	}
	if d, ok := e.Value("DURATION").(value.Duration); ok {
		return start.Add(time.Duration(d)), true
	}
	return caltime.Instant{}, false
}

// Exceptions collects the instants of every EXDATE property.
func (e *Event) Exceptions() []caltime.Instant {
	var out []caltime.Instant
	for _, item := range e.exdates() {
		if t, ok := timeOf(item); ok {
			out = append(out, t)
		}
	}
	return out
}

func (e *Event) exdates() []value.Value {
	var out []value.Value
	for _, p := range e.Properties("EXDATE") {
		if l, ok := p.Value.(value.List); ok {
			out = append(out, l.Items...)
			continue
		}
		out = append(out, p.Value)
	}
	return out
}

// wallStart returns DTSTART as the clock the rule steps in: the local
// wall time and its TZID for a zoned value, the value itself otherwise.
func (e *Event) wallStart() (caltime.Instant, string, bool) {
	switch v := e.Value("DTSTART").(type) {
	case value.Date:
		return v.Instant, "", true
	case value.DateTime:
		if v.TZID != "" {
			return v.Local.Instant(), v.TZID, true
		}
		return v.Instant, "", true
	}
	return caltime.Instant{}, "", false
}

// splitExceptions sorts EXDATE values into those written on the rule's
// wall clock and absolute ones that can only be compared after
// resolution.
func (e *Event) splitExceptions(tzid string) (wall, abs []caltime.Instant) {
	for _, item := range e.exdates() {
		switch v := item.(type) {
		case value.Date:
			wall = append(wall, v.Instant)
		case value.DateTime:
			switch {
			case tzid == "":
				wall = append(wall, v.Instant)
			case v.TZID == tzid:
				wall = append(wall, v.Local.Instant())
			case v.TZID == "" && !v.Instant.IsUTC():
				wall = append(wall, v.Instant)
			default:
				abs = append(abs, v.Instant)
			}
		}
	}
	return wall, abs
}

// RRule returns the recurrence rule anchored at DTSTART, or nil for a
// non-recurring event. For a TZID-qualified DTSTART the anchor is the
// local wall clock, so occurrences keep their time of day across DST and
// come out floating; Recurrence resolves them to UTC. EXDATEs written on
// the same clock are attached as exceptions.
func (e *Event) RRule() *recur.Rule {
	rv, ok := e.Value("RRULE").(value.Recur)
	if !ok || rv.Rule == nil {
		return nil
	}
	start, tzid, ok := e.wallStart()
	if !ok {
		return nil
	}
	wall, _ := e.splitExceptions(tzid)
	return rv.Rule.Anchor(start, recur.Bounds{Exceptions: wall})
}

// InTimeRange reports whether the event, or any of its occurrences,
// overlaps [start, end). A zero bound is open.
//
// A zero-length event matches when it starts inside the range. An event
// with neither DTEND nor DURATION lasts one day.
func (e *Event) InTimeRange(start, end caltime.Instant) bool {
	dtstart, ok := e.Start()
	if !ok {
		return false
	}
	length, hasLength := e.Duration()
	if !hasLength {
		length = day
	}

	if rr := e.Recurrence(); rr != nil {
		after := start.Add(-length)
		if length <= 0 {
			after = start.Add(-time.Nanosecond)
		}
		if start.IsZero() {
			after = dtstart.Add(-time.Nanosecond)
		}
		occ, ok := rr.Next(after)
		return ok && (end.IsZero() || occ.Before(end))
	}

	if hasLength && length == 0 {
		return (start.IsZero() || !dtstart.Before(start)) && (end.IsZero() || end.After(dtstart))
	}
	dtend := dtstart.Add(length)
	return (start.IsZero() || start.Before(dtend)) && (end.IsZero() || end.After(dtstart))
}

// Validate checks the rules RFC5545 adds on top of required properties.
func (e *Event) Validate() error {
	if e.Property("DTEND") != nil && e.Property("DURATION") != nil {
		return &ValidationError{Component: e.Name, Property: "DTEND", Msg: "must not appear together with DURATION"}
	}
	start, okStart := e.Start()
	end, okEnd := timeOf(e.Value("DTEND"))
	if okStart && okEnd && end.Before(start) {
		return &ValidationError{Component: e.Name, Property: "DTEND", Msg: "is before DTSTART"}
	}
	return nil
}

// stamp returns t, or the current time when t is zero, as a second-precision
// UTC DATE-TIME.
func stamp(t time.Time) value.DateTime {
	if t.IsZero() {
		t = time.Now()
	}
	return value.DateTime{Instant: caltime.UTC(t.Truncate(time.Second))}
}
