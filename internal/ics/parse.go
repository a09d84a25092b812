package ics

import (
	"errors"
	"fmt"
	"time"

	appLog "icalkit/internal/log"
	"icalkit/internal/model"
	"icalkit/pkg/caltime"
	"icalkit/pkg/ical"
	"icalkit/pkg/recur"
	"icalkit/pkg/value"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion will operate on this type.
type ParsedEvent struct {
	Source Source
	Event  *ical.Event

	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	// Start and End are absolute for UTC and TZID values, and wall clock
	// for floating and DATE values.
	Start  caltime.Instant
	End    caltime.Instant
	AllDay bool
	TZID   string

	// RRule is the rule as written; Rule is the same rule anchored at the
	// DTSTART wall clock with the EXDATEs that share that clock.
	RRule  *recur.Rule
	Rule   *recur.Rule
	RDates []caltime.Instant

	Recurrence *caltime.Instant // RECURRENCE-ID (if present)
	IsOverride bool             // true if this VEVENT is an override for a recurring instance

	wallStart      caltime.Instant
	recurrenceWall caltime.Instant
	absExDates     []caltime.Instant
	zones          value.ZoneResolver
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - TZIDs resolve against the payload's VTIMEZONEs, then against any
//     zones supplied through opts, then against the IANA database.
//   - All-day events are DTSTART values of type DATE.
//   - RRULE/EXDATE/RDATE/RECURRENCE-ID are recorded but not expanded;
//     expansion is done in expand.go.
func ParseICS(src Source, body []byte, opts ...ical.ParseOption) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	opts = append([]ical.ParseOption{ical.WithZoneFallback(IANAZones)}, opts...)
	cal, err := ical.Parse(string(body), opts...)
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "location", src.Location())
		return nil, err
	}
	return EventsOf(src, cal), nil
}

// EventsOf extracts the VEVENTs of an already parsed calendar.
func EventsOf(src Source, cal *ical.Component) []ParsedEvent {
	zones := value.Chain(cal.Zones(), IANAZones)
	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, zones)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent skipped", perr, "id", src.ID, "uid", ve.UID())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "location", src.Location(), "event_count", len(events))
	return events
}

func parseVEvent(src Source, ve *ical.Event, zones value.ZoneResolver) (ParsedEvent, error) {
	out := ParsedEvent{Source: src, Event: ve, zones: zones}

	out.UID = ve.UID()
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, ok := ve.Value("SEQUENCE").(value.Integer); ok {
		out.Seq = int(n)
	}
	out.Summary = ve.Summary()
	out.Description = ve.Description()
	out.Location = ve.Location()

	start, ok := ve.Start()
	if !ok {
		return out, errors.New("missing DTSTART")
	}
	out.Start = start
	out.AllDay = start.IsDate()
	out.wallStart, out.TZID = wallOf(ve.Value("DTSTART"))

	if end, ok := ve.End(); ok && !end.Before(start) {
		out.End = end
	} else if out.AllDay {
		out.End = start.Add(24 * time.Hour)
	} else {
		out.End = start
	}

	if rv, ok := ve.Value("RRULE").(value.Recur); ok && rv.Rule != nil {
		out.RRule = rv.Rule
		var wallEx []caltime.Instant
		for _, item := range listItems(ve.Properties("EXDATE")) {
			w, tzid := wallOf(item)
			abs, _ := instantOf(item)
			switch {
			case out.TZID == "":
				wallEx = append(wallEx, abs)
			case tzid == out.TZID || (tzid == "" && !abs.IsUTC()):
				wallEx = append(wallEx, w)
			default:
				out.absExDates = append(out.absExDates, abs)
			}
		}
		out.Rule = rv.Rule.Anchor(out.wallStart, recur.Bounds{Exceptions: wallEx})
	}

	for _, item := range listItems(ve.Properties("RDATE")) {
		if t, ok := instantOf(item); ok {
			out.RDates = append(out.RDates, t)
		}
	}

	if rid := ve.Value("RECURRENCE-ID"); rid != nil {
		t, ok := instantOf(rid)
		if !ok {
			return out, fmt.Errorf("RECURRENCE-ID has unexpected type %s", rid.Type())
		}
		out.Recurrence = &t
		out.recurrenceWall, _ = wallOf(rid)
		out.IsOverride = true
	}

	return out, nil
}

// Model flattens the event into the display zone.
func (e ParsedEvent) Model(loc *time.Location) model.Event {
	return model.Event{
		SourceID:    e.Source.ID,
		UID:         e.UID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		AllDay:      e.AllDay,
		Start:       e.Start.In(loc),
		End:         e.End.In(loc),
	}
}

// resolve turns a wall-clock occurrence of the event's rule into the
// instant the rest of the program uses.
func (e ParsedEvent) resolve(wall caltime.Instant) (caltime.Instant, error) {
	if e.TZID == "" || wall.IsDate() {
		return wall, nil
	}
	return e.zones.FromLocalTime(e.TZID, wall.Fields())
}

// listItems flattens list-valued properties.
func listItems(props []*ical.Property) []value.Value {
	var out []value.Value
	for _, p := range props {
		if l, ok := p.Value.(value.List); ok {
			out = append(out, l.Items...)
			continue
		}
		out = append(out, p.Value)
	}
	return out
}

// instantOf returns the absolute (or floating) instant of a DATE,
// DATE-TIME or PERIOD value.
func instantOf(v value.Value) (caltime.Instant, bool) {
	switch v := v.(type) {
	case value.Date:
		return v.Instant, true
	case value.DateTime:
		return v.Instant, true
	case value.Period:
		return v.Start, true
	}
	return caltime.Instant{}, false
}

// wallOf returns the wall clock a value was written in and its TZID.
func wallOf(v value.Value) (caltime.Instant, string) {
	if dt, ok := v.(value.DateTime); ok && dt.TZID != "" {
		return dt.Local.Instant(), dt.TZID
	}
	t, _ := instantOf(v)
	return t, ""
}
