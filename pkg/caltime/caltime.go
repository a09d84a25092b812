// Package caltime models the three kinds of calendar instants used by
// iCalendar data: pure dates, floating local date-times and absolute UTC
// instants.
//
// Every Instant stores its wall-clock fields in a time.Time whose location
// is time.UTC. For absolute instants those fields are the real UTC fields;
// for dates and floating values they are the local wall clock. Calendar
// arithmetic on that representation never crosses a DST boundary.
package caltime

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Kind tags the category of an Instant. It never changes after construction.
type Kind int

const (
	KindDate Kind = iota
	KindFloating
	KindUTC
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "DATE"
	case KindFloating:
		return "FLOATING"
	case KindUTC:
		return "UTC"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Instant is a calendar value tagged with its Kind.
type Instant struct {
	kind Kind
	t    time.Time
}

// Fields holds wall-clock values. Unlike an Instant it can describe a local
// time that does not exist in a real zone, such as 02:30 on the day DST
// starts.
type Fields struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// Date returns a date-only instant.
func Date(year, month, day int) Instant {
	return Instant{kind: KindDate, t: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Floating returns a local date-time with no zone attached.
func Floating(year, month, day, hour, min, sec int) Instant {
	return Instant{kind: KindFloating, t: time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)}
}

// UTC returns an absolute instant.
func UTC(t time.Time) Instant {
	return Instant{kind: KindUTC, t: t.UTC()}
}

// FromFields builds an instant of the given kind from wall-clock fields.
// Out-of-range fields are normalised the way time.Date does.
func FromFields(f Fields, kind Kind) Instant {
	if kind == KindDate {
		return Date(f.Year, f.Month, f.Day)
	}
	return Instant{kind: kind, t: f.utc()}
}

// WallClock reinterprets t's local fields as a floating instant.
func WallClock(t time.Time) Instant {
	return Floating(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// FromWall is used by the recurrence engine: it tags a wall time
// (location time.UTC) with kind, truncating to midnight for dates.
func FromWall(t time.Time, kind Kind) Instant {
	if kind == KindDate {
		return Date(t.Year(), int(t.Month()), t.Day())
	}
	return Instant{kind: kind, t: t.UTC()}
}

func (f Fields) utc() time.Time {
	return time.Date(f.Year, time.Month(f.Month), f.Day, f.Hour, f.Minute, f.Second, 0, time.UTC)
}

// Instant returns the fields as a floating instant.
func (f Fields) Instant() Instant { return FromFields(f, KindFloating) }

func (f Fields) String() string {
	return fmt.Sprintf("%04d%02d%02dT%02d%02d%02d", f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Second)
}

func (i Instant) Kind() Kind { return i.kind }
func (i Instant) IsDate() bool { return i.kind == KindDate }
func (i Instant) IsUTC() bool { return i.kind == KindUTC }
func (i Instant) IsZero() bool { return i.t.IsZero() }
func (i Instant) Wall() time.Time { return i.t }

// Fields returns the stored wall-clock fields.
func (i Instant) Fields() Fields {
	return Fields{
		Year: i.t.Year(), Month: int(i.t.Month()), Day: i.t.Day(),
		Hour: i.t.Hour(), Minute: i.t.Minute(), Second: i.t.Second(),
	}
}

// In converts the instant to a time in loc. Dates and floating values are
// read as wall clock in loc; absolute instants are converted.
func (i Instant) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if i.kind == KindUTC {
		return i.t.In(loc)
	}
	return time.Date(i.t.Year(), i.t.Month(), i.t.Day(), i.t.Hour(), i.t.Minute(), i.t.Second(), i.t.Nanosecond(), loc)
}

// Compare orders instants by their stored wall time.
func (i Instant) Compare(j Instant) int { return i.t.Compare(j.t) }

func (i Instant) Before(j Instant) bool { return i.t.Before(j.t) }
func (i Instant) After(j Instant) bool { return i.t.After(j.t) }
func (i Instant) Equal(j Instant) bool { return i.t.Equal(j.t) }

// SameDate reports whether both instants fall on the same calendar date.
func (i Instant) SameDate(j Instant) bool {
	y1, m1, d1 := i.t.Date()
	y2, m2, d2 := j.t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Add shifts the instant by d, keeping its kind.
func (i Instant) Add(d time.Duration) Instant {
	return Instant{kind: i.kind, t: i.t.Add(d)}
}

// String renders the RFC5545 text form for the instant's kind.
func (i Instant) String() string {
	switch i.kind {
	case KindDate:
		return i.t.Format(layoutDate)
	case KindUTC:
		return i.t.Format(layoutUTC)
	default:
		return i.t.Format(layoutFloating)
	}
}

const (
	layoutDate     = "20060102"
	layoutFloating = "20060102T150405"
	layoutUTC      = "20060102T150405Z"
)

var (
	ErrDateSyntax     = errors.New("malformed DATE value")
	ErrDateTimeSyntax = errors.New("malformed DATE-TIME value")
)

// ParseDate parses YYYYMMDD.
func ParseDate(s string) (Instant, error) {
	if len(s) != 8 {
		return Instant{}, fmt.Errorf("%w: %q", ErrDateSyntax, s)
	}
	y, m, d, ok := ymd(s)
	if !ok || !validDate(y, m, d) {
		return Instant{}, fmt.Errorf("%w: %q", ErrDateSyntax, s)
	}
	return Date(y, m, d), nil
}

// ParseDateTime parses YYYYMMDDTHHMMSS with an optional Z suffix. An
// eight-character input is accepted as a date.
func ParseDateTime(s string) (Instant, error) {
	if len(s) <= 8 {
		return ParseDate(s)
	}
	f, utc, err := ParseFields(s)
	if err != nil {
		return Instant{}, err
	}
	if utc {
		return FromFields(f, KindUTC), nil
	}
	return FromFields(f, KindFloating), nil
}

// ParseFields parses a DATE-TIME into raw wall-clock fields without
// normalising them, reporting whether the value carried the Z suffix.
func ParseFields(s string) (Fields, bool, error) {
	if len(s) != 15 && len(s) != 16 {
		return Fields{}, false, fmt.Errorf("%w: %q", ErrDateTimeSyntax, s)
	}
	utc := len(s) == 16
	if (utc && s[15] != 'Z') || s[8] != 'T' {
		return Fields{}, false, fmt.Errorf("%w: %q", ErrDateTimeSyntax, s)
	}
	y, m, d, ok := ymd(s[:8])
	if !ok || !validDate(y, m, d) {
		return Fields{}, false, fmt.Errorf("%w: %q", ErrDateTimeSyntax, s)
	}
	hh, ok1 := digits(s[9:11])
	mm, ok2 := digits(s[11:13])
	ss, ok3 := digits(s[13:15])
	// Leap second 60 is allowed by RFC5545.
	if !ok1 || !ok2 || !ok3 || hh > 23 || mm > 59 || ss > 60 {
		return Fields{}, false, fmt.Errorf("%w: %q", ErrDateTimeSyntax, s)
	}
	return Fields{Year: y, Month: m, Day: d, Hour: hh, Minute: mm, Second: ss}, utc, nil
}

func ymd(s string) (int, int, int, bool) {
	y, ok1 := digits(s[0:4])
	m, ok2 := digits(s[4:6])
	d, ok3 := digits(s[6:8])
	return y, m, d, ok1 && ok2 && ok3
}

func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, len(s) > 0
}

func validDate(y, m, d int) bool {
	if m < 1 || m > 12 || d < 1 {
		return false
	}
	return d <= DaysIn(y, m)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
