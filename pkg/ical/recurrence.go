package ical

import (
	"iter"
	"slices"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
	"icalkit/pkg/value"
)

// scanSlack moves a wall-clock cursor back far enough to cover any UTC
// offset.
const scanSlack = 26 * time.Hour

// Recurrence enumerates the occurrences of an event. For a zoned DTSTART
// the rule runs on the local wall clock and every occurrence is resolved
// to UTC; otherwise occurrences are those of the rule itself.
type Recurrence struct {
	rule  *recur.Rule
	tzid  string
	zones value.ZoneResolver
	// offset is DTSTART's local minus UTC time, used when no resolver
	// knows the zone.
	offset time.Duration
	abs    []caltime.Instant
}

// Recurrence returns the event's occurrences, or nil for a non-recurring
// event. Zones resolve against the owning calendar's VTIMEZONEs.
func (e *Event) Recurrence() *Recurrence {
	rule := e.RRule()
	if rule == nil {
		return nil
	}
	r := &Recurrence{rule: rule}
	if dt, ok := e.Value("DTSTART").(value.DateTime); ok && dt.TZID != "" {
		r.tzid = dt.TZID
		r.zones = e.Root().Zones()
		r.offset = dt.Local.Instant().Wall().Sub(dt.Instant.Wall())
		_, r.abs = e.splitExceptions(dt.TZID)
	}
	return r
}

// WithZones returns a copy that also consults z for the event's TZID.
func (r *Recurrence) WithZones(z value.ZoneResolver) *Recurrence {
	cp := *r
	cp.zones = value.Chain(r.zones, z)
	return &cp
}

// Rule returns the wall-clock rule.
func (r *Recurrence) Rule() *recur.Rule { return r.rule }

// TZID returns the zone occurrences are resolved in, or "".
func (r *Recurrence) TZID() string { return r.tzid }

// Next returns the earliest occurrence strictly after `after`. A
// non-UTC `after` is read as wall clock in the event's zone.
func (r *Recurrence) Next(after caltime.Instant) (caltime.Instant, bool) {
	if r.tzid == "" {
		return r.rule.Next(after)
	}
	var cursor caltime.Instant
	if !after.IsZero() {
		if !after.IsUTC() {
			after = r.resolve(caltime.FromFields(after.Fields(), caltime.KindFloating))
		}
		cursor = caltime.FromWall(after.Wall().Add(-scanSlack), caltime.KindFloating)
	}
	for occ := range r.rule.All(cursor) {
		t := r.resolve(occ)
		if (!after.IsZero() && !t.After(after)) || slices.ContainsFunc(r.abs, t.Equal) {
			continue
		}
		return t, true
	}
	return caltime.Instant{}, false
}

// NextN returns at most n occurrences after `after`.
func (r *Recurrence) NextN(after caltime.Instant, n int) []caltime.Instant {
	var out []caltime.Instant
	for t := range r.All(after) {
		if len(out) == n {
			break
		}
		out = append(out, t)
	}
	return out
}

// All yields occurrences after `after`; see recur.Rule.All for bounding.
func (r *Recurrence) All(after caltime.Instant) iter.Seq[caltime.Instant] {
	return func(yield func(caltime.Instant) bool) {
		for {
			next, ok := r.Next(after)
			if !ok || !yield(next) {
				return
			}
			after = next
		}
	}
}

func (r *Recurrence) resolve(wall caltime.Instant) caltime.Instant {
	if r.tzid == "" || wall.IsDate() {
		return wall
	}
	if r.zones != nil {
		if t, err := r.zones.FromLocalTime(r.tzid, wall.Fields()); err == nil {
			return t
		}
	}
	return caltime.UTC(wall.Wall().Add(-r.offset))
}
