package recur

import (
	"iter"
	"slices"
	"time"

	"icalkit/pkg/caltime"
)

// NB: every computation here runs on wall-clock fields stored in a
// time.Time located in UTC, whatever the anchor's kind. A local zone never
// takes part, so an anchor's time of day cannot drift across a DST change.

// Scan limits. A rule that finds nothing within them (BYMONTH=2;BYMONTHDAY=30)
// is treated as exhausted.
const (
	maxScanDays   = 5000
	maxScanMonths = 1200
	maxScanYears  = 400
)

type scanMode int

const (
	scanAll scanMode = iota
	// scanRaw ignores COUNT and EXDATE. It is how the COUNT cutoff is found.
	scanRaw
)

// Next returns the earliest occurrence strictly after `after`. When `after`
// precedes the rule's start, the first occurrence at or after the start is
// returned. ok is false once the rule is exhausted or unanchored.
func (r *Rule) Next(after caltime.Instant) (caltime.Instant, bool) {
	if r.freq == freqNone || r.start.IsZero() {
		return caltime.Instant{}, false
	}
	t, ok := r.next(after.Wall(), scanAll)
	if !ok {
		return caltime.Instant{}, false
	}
	return caltime.FromWall(t, r.start.Kind()), true
}

// First returns the rule's first occurrence.
func (r *Rule) First() (caltime.Instant, bool) {
	return r.Next(caltime.Instant{})
}

// NextN returns at most n occurrences after `after`, strictly increasing.
func (r *Rule) NextN(after caltime.Instant, n int) []caltime.Instant {
	var out []caltime.Instant
	for len(out) < n {
		next, ok := r.Next(after)
		if !ok {
			break
		}
		out = append(out, next)
		after = next
	}
	return out
}

// NextUntil returns the occurrences after `after` and not after until.
func (r *Rule) NextUntil(after, until caltime.Instant) []caltime.Instant {
	var out []caltime.Instant
	for {
		next, ok := r.Next(after)
		if !ok || next.After(until) {
			return out
		}
		out = append(out, next)
		after = next
	}
}

// All yields occurrences after `after`. Unless the rule carries COUNT or
// UNTIL the sequence is unbounded; the caller must stop it.
func (r *Rule) All(after caltime.Instant) iter.Seq[caltime.Instant] {
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

func (r *Rule) next(after time.Time, mode scanMode) (time.Time, bool) {
	start := r.start.Wall()
	if after.Before(start) {
		after = start.Add(-time.Nanosecond)
	}
	if !r.end.IsZero() && after.After(r.end.Wall()) {
		return time.Time{}, false
	}

	// Each exception can swallow at most one candidate.
	for range len(r.exceptions) + 1 {
		next, ok := r.candidate(after, start)
		if !ok || r.pastBounds(next, mode) {
			return time.Time{}, false
		}
		if mode == scanAll && r.excluded(next) {
			after = next
			continue
		}
		return next, true
	}
	return time.Time{}, false
}

func (r *Rule) candidate(after, start time.Time) (time.Time, bool) {
	switch r.freq {
	case Daily:
		return r.nextDaily(after, start)
	case Weekly:
		return r.nextWeekly(after, start)
	case Monthly:
		return r.nextMonthly(after, start)
	case Yearly:
		return r.nextYearly(after, start)
	}
	return time.Time{}, false
}

func (r *Rule) pastBounds(t time.Time, mode scanMode) bool {
	if !r.end.IsZero() && t.After(r.end.Wall()) {
		return true
	}
	if !r.Until.IsZero() {
		until := r.Until.Wall()
		if r.Until.IsDate() {
			// A DATE UNTIL covers its whole day.
			if !t.Before(until.AddDate(0, 0, 1)) {
				return true
			}
		} else if t.After(until) {
			return true
		}
	}
	if mode == scanAll && r.Count > 0 {
		if cutoff, ok := r.countCutoff(); ok && t.After(cutoff) {
			return true
		}
	}
	return false
}

// countCutoff is the last instant COUNT admits. EXDATE entries still use up
// their slot in the count.
func (r *Rule) countCutoff() (time.Time, bool) {
	r.countOnce.Do(func() {
		after := r.start.Wall().Add(-time.Nanosecond)
		for i := 0; i < r.Count; i++ {
			next, ok := r.next(after, scanRaw)
			if !ok {
				return
			}
			after = next
			r.countEnd, r.countOK = next, true
		}
	})
	return r.countEnd, r.countOK
}

func (r *Rule) excluded(t time.Time) bool {
	for _, ex := range r.exceptions {
		w := ex.Wall()
		if ex.IsDate() {
			if sameDate(w, t) {
				return true
			}
		} else if w.Equal(t) {
			return true
		}
	}
	return false
}

func (r *Rule) nextDaily(after, start time.Time) (time.Time, bool) {
	interval := r.interval()
	day := atClock(after, start)
	if mod := floorMod(daysBetween(start, day), interval); mod != 0 {
		day = day.AddDate(0, 0, interval-mod)
	}
	for range maxScanDays {
		if day.After(after) && r.matchesDay(day) {
			return day, true
		}
		day = day.AddDate(0, 0, interval)
	}
	return time.Time{}, false
}

func (r *Rule) nextWeekly(after, start time.Time) (time.Time, bool) {
	interval := r.interval()
	weekdays := r.weekdaySet(start.Weekday())
	anchorWeek := weekStart(start)

	day := atClock(after, start)
	for range maxScanDays {
		weeks := daysBetween(anchorWeek, weekStart(day)) / 7
		if mod := floorMod(weeks, interval); mod != 0 {
			day = atClock(weekStart(day).AddDate(0, 0, 7*(interval-mod)), start)
			continue
		}
		if day.After(after) && weekdays[day.Weekday()] && r.inMonths(day.Month()) {
			return day, true
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

func (r *Rule) nextMonthly(after, start time.Time) (time.Time, bool) {
	interval := r.interval()
	base := monthIndex(start)
	idx := monthIndex(after) - base
	if mod := floorMod(idx, interval); mod != 0 {
		idx += interval - mod
	}
	for range maxScanMonths {
		year, month := fromMonthIndex(base + idx)
		if r.inMonths(month) {
			if t, ok := r.firstInMonth(year, month, start, after); ok {
				return t, true
			}
		}
		idx += interval
	}
	return time.Time{}, false
}

func (r *Rule) nextYearly(after, start time.Time) (time.Time, bool) {
	interval := r.interval()
	year := after.Year()
	if mod := floorMod(year-start.Year(), interval); mod != 0 {
		year += interval - mod
	}

	months := []time.Month{start.Month()}
	if len(r.ByMonth) > 0 {
		months = months[:0]
		for _, m := range r.ByMonth {
			months = append(months, time.Month(m))
		}
		slices.Sort(months)
		months = slices.Compact(months)
	}

	for range maxScanYears {
		for _, month := range months {
			if t, ok := r.firstInMonth(year, month, start, after); ok {
				return t, true
			}
		}
		year += interval
	}
	return time.Time{}, false
}

// firstInMonth returns the earliest candidate in the month later than after.
func (r *Rule) firstInMonth(year int, month time.Month, start, after time.Time) (time.Time, bool) {
	for _, d := range r.monthDays(year, month, start.Day()) {
		t := time.Date(year, month, d, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), time.UTC)
		if t.After(after) {
			return t, true
		}
	}
	return time.Time{}, false
}

// monthDays lists, ascending, the days of the month selected by BYDAY and
// BYMONTHDAY. When both are present only days satisfying both survive. With
// neither, the anchor's day of month is used, skipped in months too short
// to hold it.
func (r *Rule) monthDays(year int, month time.Month, anchorDay int) []int {
	n := caltime.DaysIn(year, int(month))
	var days []int
	switch {
	case len(r.ByDay) == 0 && len(r.ByMonthDay) == 0:
		if anchorDay <= n {
			days = []int{anchorDay}
		}
	case len(r.ByMonthDay) == 0:
		days = byDayInMonth(r.ByDay, year, month)
	case len(r.ByDay) == 0:
		days = byMonthDay(r.ByMonthDay, n)
	default:
		wanted := byDayInMonth(r.ByDay, year, month)
		for _, d := range byMonthDay(r.ByMonthDay, n) {
			if slices.Contains(wanted, d) {
				days = append(days, d)
			}
		}
	}
	slices.Sort(days)
	return slices.Compact(days)
}

func byDayInMonth(rules []WeekdayNum, year int, month time.Month) []int {
	n := caltime.DaysIn(year, int(month))
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()

	var days []int
	for _, rule := range rules {
		var matches []int
		for d := 1 + (int(rule.Weekday)-int(first)+7)%7; d <= n; d += 7 {
			matches = append(matches, d)
		}
		switch {
		case rule.Ordinal == 0:
			days = append(days, matches...)
		case rule.Ordinal > 0 && rule.Ordinal <= len(matches):
			days = append(days, matches[rule.Ordinal-1])
		case rule.Ordinal < 0 && -rule.Ordinal <= len(matches):
			days = append(days, matches[len(matches)+rule.Ordinal])
		}
	}
	return days
}

func byMonthDay(rules []int, n int) []int {
	var days []int
	for _, v := range rules {
		d := v
		if v < 0 {
			d = n + v + 1
		}
		if d >= 1 && d <= n {
			days = append(days, d)
		}
	}
	return days
}

func (r *Rule) matchesDay(t time.Time) bool {
	if len(r.ByDay) > 0 && !r.weekdaySet(-1)[t.Weekday()] {
		return false
	}
	if !r.inMonths(t.Month()) {
		return false
	}
	if len(r.ByMonthDay) > 0 {
		return slices.Contains(byMonthDay(r.ByMonthDay, caltime.DaysIn(t.Year(), int(t.Month()))), t.Day())
	}
	return true
}

// weekdaySet returns the BYDAY weekdays, or just fallback when BYDAY is
// empty.
func (r *Rule) weekdaySet(fallback time.Weekday) [7]bool {
	var set [7]bool
	if len(r.ByDay) == 0 {
		if fallback >= 0 {
			set[fallback] = true
		}
		return set
	}
	for _, d := range r.ByDay {
		set[d.Weekday] = true
	}
	return set
}

func (r *Rule) inMonths(m time.Month) bool {
	return len(r.ByMonth) == 0 || slices.Contains(r.ByMonth, int(m))
}

func atClock(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), time.UTC)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b. Unix seconds are used
// instead of time.Sub, which saturates for anchors centuries back (the
// 1601 DTSTART that Exchange writes into every VTIMEZONE).
func daysBetween(a, b time.Time) int {
	return int((midnight(b).Unix() - midnight(a).Unix()) / 86400)
}

// weekStart returns midnight of the Monday starting t's week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return midnight(t).AddDate(0, 0, -offset)
}

func sameDate(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func fromMonthIndex(idx int) (int, time.Month) {
	return idx / 12, time.Month(idx%12 + 1)
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
