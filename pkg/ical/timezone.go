package ical

import (
	"errors"
	"fmt"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
	"icalkit/pkg/value"
)

// ErrNoObservance is returned for a VTIMEZONE without a STANDARD
// observance.
var ErrNoObservance = errors.New("no STANDARD observance")

// Timezone is a VTIMEZONE viewed as an offset resolver.
type Timezone struct {
	*Component
}

// ID returns the TZID.
func (tz *Timezone) ID() string { return tz.Text("TZID") }

type observance struct {
	start  caltime.Instant
	offset value.UTCOffset
	rule   *recur.Rule
}

func (tz *Timezone) observances(name string) []observance {
	var out []observance
	for _, c := range tz.Components(name) {
		var o observance
		if v, ok := c.Value("DTSTART").(value.DateTime); ok {
			o.start = caltime.FromWall(v.Instant.Wall(), caltime.KindFloating)
		}
		if v, ok := c.Value("TZOFFSETTO").(value.UTCOffset); ok {
			o.offset = v
		}
		if v, ok := c.Value("RRULE").(value.Recur); ok && v.Rule != nil {
			o.rule = v.Rule.Anchor(o.start, recur.Bounds{})
		}
		out = append(out, o)
	}
	return out
}

// current picks the observance with the latest DTSTART not after at, or
// the earliest one when at precedes them all.
func current(obs []observance, at caltime.Instant) (observance, bool) {
	if len(obs) == 0 {
		return observance{}, false
	}
	best, found := obs[0], false
	for _, o := range obs {
		switch {
		case !o.start.After(at):
			if !found || o.start.After(best.start) {
				best, found = o, true
			}
		case !found && o.start.Before(best.start):
			best = o
		}
	}
	return best, true
}

// onset returns the last time o took effect at or before at, or its
// DTSTART when it has not started yet.
func (o observance) onset(at caltime.Instant) caltime.Instant {
	if o.rule == nil || o.start.After(at) {
		return o.start
	}
	occ := o.rule.NextUntil(at.Add(-366*day), at)
	if len(occ) == 0 {
		occ = o.rule.NextUntil(caltime.Instant{}, at)
	}
	if len(occ) == 0 {
		return o.start
	}
	return occ[len(occ)-1]
}

// OffsetFor returns the UTC offset in effect at the given wall clock. The
// fields may name a time skipped by a forward DST jump.
func (tz *Timezone) OffsetFor(local caltime.Fields) (value.UTCOffset, error) {
	at := caltime.FromFields(local, caltime.KindFloating)
	std, ok := current(tz.observances("STANDARD"), at)
	if !ok {
		return 0, fmt.Errorf("ical: VTIMEZONE %s: %w", tz.ID(), ErrNoObservance)
	}
	dst, ok := current(tz.observances("DAYLIGHT"), at)
	if !ok {
		return std.offset, nil
	}

	if std.rule == nil || dst.rule == nil {
		// The regime that began most recently is in effect.
		so, do := std.onset(at), dst.onset(at)
		switch {
		case do.After(at):
			return std.offset, nil
		case so.After(at), so.Before(do):
			return dst.offset, nil
		}
		return std.offset, nil
	}

	// The regime whose next transition is farther away is the one in
	// effect. A rule that has run out never transitions again.
	nextStd, okStd := std.rule.Next(at)
	nextDst, okDst := dst.rule.Next(at)
	switch {
	case okStd && okDst:
		if nextDst.Before(nextStd) {
			return std.offset, nil
		}
		return dst.offset, nil
	case okStd:
		return dst.offset, nil
	default:
		return std.offset, nil
	}
}

// FromLocalTime converts a wall clock in this zone to a UTC instant.
func (tz *Timezone) FromLocalTime(local caltime.Fields) (caltime.Instant, error) {
	off, err := tz.OffsetFor(local)
	if err != nil {
		return caltime.Instant{}, err
	}
	hrs, mins := int(off)/100, int(off)%100
	t := time.Date(local.Year, time.Month(local.Month), local.Day,
		local.Hour-hrs, local.Minute-mins, local.Second, 0, time.UTC)
	return caltime.UTC(t), nil
}
