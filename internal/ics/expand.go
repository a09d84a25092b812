package ics

import (
	"errors"
	"slices"
	"time"

	appLog "icalkit/internal/log"
	"icalkit/internal/model"
	"icalkit/pkg/caltime"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// It is also the zone floating and all-day values are read in.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences takes a list of ParsedEvent (typically for one or more ICS
// sources) and expands them into concrete occurrences within the given time
// range. It handles:
//
//   - Single non-recurring events
//   - RRULE and RDATE recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, including instances moved into the window
//   - All-day semantics
//
// The result is sorted by start time and converted into
// ExpandConfig.DisplayLocation.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by source and UID.
	type key struct{ source, uid string }
	baseByUID := make(map[key][]ParsedEvent)
	overridesByUID := make(map[key][]ParsedEvent)
	var order []key

	for _, ev := range events {
		k := key{ev.Source.ID, ev.UID}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[k] = append(overridesByUID[k], ev)
			continue
		}
		if _, seen := baseByUID[k]; !seen {
			order = append(order, k)
		}
		baseByUID[k] = append(baseByUID[k], ev)
	}
	// Orphan overrides stand on their own, after the bases, in input order.
	for _, ev := range events {
		k := key{ev.Source.ID, ev.UID}
		if _, ok := overridesByUID[k]; !ok {
			continue
		}
		if _, ok := baseByUID[k]; !ok && !slices.Contains(order, k) {
			order = append(order, k)
		}
	}

	allOccurrences := make([]model.Occurrence, 0)

	for _, k := range order {
		ov := overridesByUID[k]
		bases := baseByUID[k]
		if len(bases) == 0 {
			for _, o := range ov {
				if occ := makeOccurrence(o, o.Start, o.End, cfg.DisplayLocation); occ.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
					occ.Overridden = true
					allOccurrences = append(allOccurrences, occ)
				}
			}
			continue
		}

		truncated := false
		for _, ev := range bases {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			allOccurrences = append(allOccurrences, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", k.uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	slices.SortStableFunc(allOccurrences, func(a, b model.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})
	result.Occurrences = allOccurrences
	return result, nil
}

// expandEvent expands a single base event with its overrides, returning
// occurrences and whether the cap was hit.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	starts, hitCap := occurrenceStarts(ev, cfg)
	length := ev.End.Wall().Sub(ev.Start.Wall())

	out := make([]model.Occurrence, 0, len(starts))
	used := make([]bool, len(overrides))
	for _, start := range starts {
		if i, ok := findOverrideForStart(overrides, start); ok {
			used[i] = true
			o := overrides[i]
			occ := makeOccurrence(o, o.Start, o.End, cfg.DisplayLocation)
			occ.Overridden = true
			if occ.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, occ)
			}
			continue
		}
		occ := makeOccurrence(ev, start, start.Add(length), cfg.DisplayLocation)
		if occ.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, occ)
		}
	}

	// Overrides whose original slot lies outside the window but that were
	// moved into it.
	for i, o := range overrides {
		if used[i] || !ev.hasOccurrence(o) {
			continue
		}
		occ := makeOccurrence(o, o.Start, o.End, cfg.DisplayLocation)
		occ.Overridden = true
		if occ.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, occ)
		}
	}
	return out, hitCap
}

// occurrenceStarts returns the resolved start of every occurrence that
// may overlap the window.
func occurrenceStarts(ev ParsedEvent, cfg ExpandConfig) ([]caltime.Instant, bool) {
	if ev.Rule == nil && len(ev.RDates) == 0 {
		return []caltime.Instant{ev.Start}, false
	}

	length := ev.End.Wall().Sub(ev.Start.Wall())
	// The rule runs on the event's own wall clock, so widen the window to
	// cover the largest possible difference between two UTC offsets.
	const slack = 48 * time.Hour
	lo := caltime.WallClock(cfg.RangeStart.In(cfg.DisplayLocation)).Add(-length - slack)
	hi := caltime.WallClock(cfg.RangeEnd.In(cfg.DisplayLocation)).Add(slack)

	var out []caltime.Instant
	hitCap := false
	if ev.Rule != nil {
		for wall := range ev.Rule.All(lo) {
			if wall.After(hi) {
				break
			}
			if len(out) >= cfg.MaxOccurrencesPerEvent {
				hitCap = true
				break
			}
			start, err := ev.resolve(wall)
			if err != nil {
				appLog.Error("expand: cannot resolve occurrence", err, "uid", ev.UID, "tzid", ev.TZID)
				continue
			}
			if containsInstant(ev.absExDates, start) {
				continue
			}
			out = append(out, start)
		}
	} else {
		// RDATE alone still includes DTSTART.
		out = append(out, ev.Start)
	}

	for _, rd := range ev.RDates {
		if !containsInstant(out, rd) {
			out = append(out, rd)
		}
	}
	return out, hitCap
}

// hasOccurrence reports whether the override's RECURRENCE-ID names a real
// occurrence of ev.
func (e ParsedEvent) hasOccurrence(o ParsedEvent) bool {
	if o.Recurrence == nil {
		return false
	}
	if o.Recurrence.Equal(e.Start) || containsInstant(e.RDates, *o.Recurrence) {
		return true
	}
	if e.Rule == nil {
		return false
	}
	next, ok := e.Rule.Next(o.recurrenceWall.Add(-time.Nanosecond))
	return ok && next.Equal(o.recurrenceWall)
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches the
// generated start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, start caltime.Instant) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(start) || (ov.Recurrence.IsDate() && ov.Recurrence.SameDate(start)) {
			return i, true
		}
	}
	return 0, false
}

func containsInstant(list []caltime.Instant, t caltime.Instant) bool {
	return slices.ContainsFunc(list, t.Equal)
}

// makeOccurrence converts a (possibly overridden) ParsedEvent plus a
// specific start/end into a model.Occurrence normalized into displayLoc.
func makeOccurrence(ev ParsedEvent, start, end caltime.Instant, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	endLocal := end.In(displayLoc)

	occ := model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         endLocal,
	}

	// InstanceKey: UID plus start time in RFC3339 as a stable per-instance key.
	occ.InstanceKey = ev.UID + "@" + startLocal.Format(time.RFC3339)
	return occ
}
