// Package recur implements RFC5545 recurrence rules (RRULE) and the engine
// that enumerates their occurrences.
//
// Supported parts are FREQ (DAILY, WEEKLY, MONTHLY, YEARLY), INTERVAL,
// COUNT, UNTIL, BYDAY, BYMONTH and BYMONTHDAY, plus WKST=MO. Anything else
// is rejected with an *UnsupportedError rather than silently ignored.
package recur

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"icalkit/pkg/caltime"
)

// Frequency is the FREQ part of a rule.
type Frequency int

const (
	freqNone Frequency = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

func (f Frequency) String() string {
	if s, ok := frequencyNames[f]; ok {
		return s
	}
	return ""
}

// ParseFrequency maps a FREQ value to a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	for f, name := range frequencyNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return freqNone, &UnsupportedError{Part: "FREQ", Value: s}
}

// WeekdayNum is one BYDAY entry. Ordinal 0 means every such weekday in the
// period; positive ordinals count from the start of the period and negative
// ones from its end.
type WeekdayNum struct {
	Ordinal int
	Weekday time.Weekday
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func (w WeekdayNum) String() string {
	if w.Ordinal == 0 {
		return weekdayCodes[w.Weekday]
	}
	return strconv.Itoa(w.Ordinal) + weekdayCodes[w.Weekday]
}

// Bounds anchors a rule to an optional end and a set of excluded instants.
type Bounds struct {
	End        caltime.Instant
	Exceptions []caltime.Instant
}

// Rule is a recurrence rule, optionally anchored to a start instant.
//
// A Rule is not safe for concurrent mutation. Next and friends may be
// called concurrently once the rule is fully built.
type Rule struct {
	freq Frequency

	Interval   int
	Count      int
	Until      caltime.Instant
	ByDay      []WeekdayNum
	ByMonth    []int
	ByMonthDay []int

	start      caltime.Instant
	end        caltime.Instant
	exceptions []caltime.Instant

	countOnce sync.Once
	countEnd  time.Time
	countOK   bool
}

// ErrFrequencySet is returned by SetFrequency on a rule that already has one.
var ErrFrequencySet = errors.New("recur: frequency already set")

// New returns an empty rule for programmatic construction. Its frequency
// must be set exactly once with SetFrequency.
func New() *Rule {
	return &Rule{}
}

var byDayPattern = regexp.MustCompile(`^([+-]?\d{1,2})?(SU|MO|TU|WE|TH|FR|SA)$`)

// Parse reads the KEY=VAL;KEY=VAL text form. An "RRULE:" prefix is tolerated.
func Parse(text string) (*Rule, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "RRULE:")
	r := &Rule{}
	seen := make(map[string]bool)

	for _, part := range strings.Split(text, ";") {
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, &SyntaxError{Part: part, Msg: "missing '='"}
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if seen[key] {
			return nil, &SyntaxError{Part: key, Msg: "repeated rule part"}
		}
		seen[key] = true

		var err error
		switch key {
		case "FREQ":
			r.freq, err = ParseFrequency(val)
		case "INTERVAL":
			r.Interval, err = parsePositive(key, val)
		case "COUNT":
			r.Count, err = parsePositive(key, val)
		case "UNTIL":
			r.Until, err = caltime.ParseDateTime(val)
			if err != nil {
				err = &SyntaxError{Part: key, Msg: "bad date", Err: err}
			}
		case "BYDAY":
			r.ByDay, err = parseByDay(val)
		case "BYMONTH":
			r.ByMonth, err = parseIntList(key, val, 1, 12, false)
		case "BYMONTHDAY":
			r.ByMonthDay, err = parseIntList(key, val, 1, 31, true)
		case "WKST":
			// Weeks always start on Monday, so only the default is accepted.
			if !strings.EqualFold(val, "MO") {
				err = &UnsupportedError{Part: key, Value: val}
			}
		default:
			err = &UnsupportedError{Part: key, Value: val}
		}
		if err != nil {
			return nil, err
		}
	}

	if r.freq == freqNone {
		return nil, &SyntaxError{Part: "FREQ", Msg: "required"}
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(text string) *Rule {
	r, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return r
}

func parsePositive(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return 0, &SyntaxError{Part: key, Msg: fmt.Sprintf("want a positive integer, got %q", val)}
	}
	return n, nil
}

func parseIntList(key, val string, lo, hi int, allowNegative bool) ([]int, error) {
	var out []int
	for _, s := range strings.Split(val, ",") {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
		abs := n
		if abs < 0 && allowNegative {
			abs = -abs
		}
		if err != nil || abs < lo || abs > hi {
			return nil, &SyntaxError{Part: key, Msg: fmt.Sprintf("value %q out of range", s)}
		}
		out = append(out, n)
	}
	return out, nil
}

func parseByDay(val string) ([]WeekdayNum, error) {
	var out []WeekdayNum
	for _, s := range strings.Split(val, ",") {
		m := byDayPattern.FindStringSubmatch(strings.ToUpper(s))
		if m == nil {
			return nil, &SyntaxError{Part: "BYDAY", Msg: fmt.Sprintf("bad weekday %q", s)}
		}
		ord := 0
		if m[1] != "" {
			ord, _ = strconv.Atoi(strings.TrimPrefix(m[1], "+"))
			if ord == 0 || ord < -53 || ord > 53 {
				return nil, &SyntaxError{Part: "BYDAY", Msg: fmt.Sprintf("ordinal out of range in %q", s)}
			}
		}
		out = append(out, WeekdayNum{Ordinal: ord, Weekday: time.Weekday(slices.Index(weekdayCodes[:], m[2]))})
	}
	sortByDay(out)
	return out, nil
}

func sortByDay(days []WeekdayNum) {
	slices.SortFunc(days, func(a, b WeekdayNum) int {
		if a.Ordinal != b.Ordinal {
			return a.Ordinal - b.Ordinal
		}
		return int(a.Weekday) - int(b.Weekday)
	})
}

// validate rejects combinations the engine does not evaluate.
func (r *Rule) validate() error {
	if r.freq == Daily || r.freq == Weekly {
		for _, d := range r.ByDay {
			if d.Ordinal != 0 {
				return &UnsupportedError{Part: "BYDAY", Value: d.String() + " with FREQ=" + r.freq.String()}
			}
		}
	}
	return nil
}

// Frequency returns the rule's FREQ, or the zero Frequency if unset.
func (r *Rule) Frequency() Frequency { return r.freq }

// SetFrequency sets FREQ on a programmatically built rule. It may succeed
// only once; rules parsed from text already carry their frequency.
func (r *Rule) SetFrequency(f Frequency) error {
	if r.freq != freqNone {
		return ErrFrequencySet
	}
	if _, ok := frequencyNames[f]; !ok {
		return &UnsupportedError{Part: "FREQ", Value: strconv.Itoa(int(f))}
	}
	sortByDay(r.ByDay)
	r.freq = f
	if err := r.validate(); err != nil {
		r.freq = freqNone
		return err
	}
	return nil
}

// Anchor returns a copy of the rule anchored at start. The receiver is left
// untouched.
func (r *Rule) Anchor(start caltime.Instant, b Bounds) *Rule {
	return &Rule{
		freq:       r.freq,
		Interval:   r.Interval,
		Count:      r.Count,
		Until:      r.Until,
		ByDay:      slices.Clone(r.ByDay),
		ByMonth:    slices.Clone(r.ByMonth),
		ByMonthDay: slices.Clone(r.ByMonthDay),
		start:      start,
		end:        b.End,
		exceptions: slices.Clone(b.Exceptions),
	}
}

// Clone returns a deep copy of the rule, anchor included.
func (r *Rule) Clone() *Rule {
	return r.Anchor(r.start, Bounds{End: r.end, Exceptions: r.exceptions})
}

func (r *Rule) Start() caltime.Instant { return r.start }

func (r *Rule) End() caltime.Instant { return r.end }

func (r *Rule) Exceptions() []caltime.Instant { return slices.Clone(r.exceptions) }

func (r *Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// String renders the rule with FREQ first.
func (r *Rule) String() string {
	parts := []string{"FREQ=" + r.freq.String()}
	if r.Interval > 0 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if !r.Until.IsZero() {
		parts = append(parts, "UNTIL="+r.Until.String())
	}
	if len(r.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(r.ByMonth))
	}
	if len(r.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(r.ByMonthDay))
	}
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = d.String()
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	return strings.Join(parts, ";")
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}
