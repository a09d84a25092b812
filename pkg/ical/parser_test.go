package ical

import (
	"errors"
	"strings"
	"testing"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
	"icalkit/pkg/value"
)

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var nyTimezone = []string{
	"BEGIN:VTIMEZONE",
	"TZID:America/New_York",
	"BEGIN:DAYLIGHT",
	"TZOFFSETFROM:-0500",
	"TZOFFSETTO:-0400",
	"DTSTART:19700308T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU",
	"TZNAME:EDT",
	"END:DAYLIGHT",
	"BEGIN:STANDARD",
	"TZOFFSETFROM:-0400",
	"TZOFFSETTO:-0500",
	"DTSTART:19701101T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
	"TZNAME:EST",
	"END:STANDARD",
	"END:VTIMEZONE",
}

func calendarText(body ...string) string {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//test//EN"}
	lines = append(lines, body...)
	return crlf(append(lines, "END:VCALENDAR")...)
}

func mustParse(t *testing.T, text string, opts ...ParseOption) *Component {
	t.Helper()
	cal, err := Parse(text, opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cal
}

func TestParseBasic(t *testing.T) {
	cal := mustParse(t, crlf(
		"BEGIN:VCALENDAR",
		"PRODID:-//Bobs Software Emporium//NONSGML Bobs Calendar//EN",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"DTSTAMP:20111202T165900",
		"UID:testuid@someotherplace.com",
		"DESCRIPTION:This bit of text is long and should be sp",
		" lit across multiple lines of output",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	if cal.Kind != KindCalendar {
		t.Errorf("Kind = %v, want VCALENDAR", cal.Kind)
	}
	if got := cal.Text("PRODID"); got != "-//Bobs Software Emporium//NONSGML Bobs Calendar//EN" {
		t.Errorf("PRODID = %q", got)
	}
	if got := cal.Text("VERSION"); got != "2.0" {
		t.Errorf("VERSION = %q", got)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if got := ev.Description(); got != "This bit of text is long and should be split across multiple lines of output" {
		t.Errorf("DESCRIPTION = %q", got)
	}
	dtstamp, ok := ev.Value("DTSTAMP").(value.DateTime)
	if !ok {
		t.Fatalf("DTSTAMP is %T", ev.Value("DTSTAMP"))
	}
	if !dtstamp.Instant.Equal(caltime.Floating(2011, 12, 2, 16, 59, 0)) || dtstamp.Instant.Kind() != caltime.KindFloating {
		t.Errorf("DTSTAMP = %v (%v)", dtstamp.Instant, dtstamp.Instant.Kind())
	}
	if ev.Root() != cal {
		t.Error("event is not owned by the parsed calendar")
	}
}

func TestParseResolvesTZID(t *testing.T) {
	body := append(append([]string{}, nyTimezone...),
		"BEGIN:VEVENT",
		"UID:jmdoebbto9vubpjf32aokpojb4@google.com",
		"DTSTAMP:20110901T000000Z",
		"DTSTART;TZID=America/New_York:20110926T150000",
		"END:VEVENT",
	)
	cal := mustParse(t, calendarText(body...))

	ev := cal.Events()[0]
	p := ev.Property("DTSTART")
	if got := p.Params.Value("TZID"); got != "America/New_York" {
		t.Errorf("TZID = %q", got)
	}
	start, ok := ev.Start()
	if !ok {
		t.Fatal("no DTSTART")
	}
	want := caltime.UTC(time.Date(2011, 9, 26, 19, 0, 0, 0, time.UTC))
	if !start.Equal(want) || !start.IsUTC() {
		t.Errorf("DTSTART = %v, want %v", start, want)
	}
	if got := value.Encode(p.Value); got != "20110926T150000" {
		t.Errorf("encoded DTSTART = %q, want local wall clock", got)
	}
}

func TestParseTimezoneSources(t *testing.T) {
	tzDoc := calendarText(nyTimezone...)
	body := calendarText(
		"BEGIN:VEVENT",
		"UID:x",
		"DTSTAMP:20110901T000000Z",
		"DTSTART;TZID=America/New_York:20110926T150000",
		"END:VEVENT",
	)
	want := caltime.UTC(time.Date(2011, 9, 26, 19, 0, 0, 0, time.UTC))

	check := func(t *testing.T, cal *Component) {
		t.Helper()
		start, _ := cal.Events()[0].Start()
		if !start.Equal(want) {
			t.Errorf("DTSTART = %v, want %v", start, want)
		}
		if cal.Timezone("America/New_York") == nil {
			t.Error("timezone source was not merged into the calendar")
		}
	}

	t.Run("text", func(t *testing.T) {
		check(t, mustParse(t, body, WithTimezoneText(tzDoc)))
	})
	t.Run("calendar", func(t *testing.T) {
		src := mustParse(t, tzDoc)
		cal := mustParse(t, body, WithTimezoneCalendar(src))
		check(t, cal)
		if cal.Timezone("America/New_York").Component == src.Timezone("America/New_York").Component {
			t.Error("timezone shared between calendars instead of copied")
		}
	})
	t.Run("fallback", func(t *testing.T) {
		fixed := value.ZoneResolverFunc(func(tzid string, f caltime.Fields) (caltime.Instant, error) {
			return caltime.UTC(time.Date(f.Year, time.Month(f.Month), f.Day, f.Hour+4, f.Minute, f.Second, 0, time.UTC)), nil
		})
		cal := mustParse(t, body, WithZoneFallback(fixed))
		start, _ := cal.Events()[0].Start()
		if !start.Equal(want) {
			t.Errorf("DTSTART = %v, want %v", start, want)
		}
	})
	t.Run("missing", func(t *testing.T) {
		_, err := Parse(body)
		if !errors.Is(err, value.ErrUnknownZone) {
			t.Fatalf("err = %v, want ErrUnknownZone", err)
		}
		var pe *PropertyError
		if !errors.As(err, &pe) || pe.Property != "DTSTART" || pe.Line != 7 {
			t.Errorf("err = %#v, want PropertyError for DTSTART on line 7", err)
		}
	})
}

func TestParseStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{
			"missing END:VCALENDAR",
			crlf("BEGIN:VCALENDAR", "VERSION:2.0", "BEGIN:VEVENT", "UID:x", "END:VEVENT"),
			0,
		},
		{
			"wrong first record",
			crlf("BEGIN:VEVENT", "END:VEVENT"),
			1,
		},
		{
			"property before BEGIN",
			crlf("VERSION:2.0", "BEGIN:VCALENDAR", "END:VCALENDAR"),
			1,
		},
		{
			"mismatched tags",
			crlf("BEGIN:VCALENDAR", "BEGIN:VEVENT", "END:VTODO", "END:VCALENDAR"),
			3,
		},
		{
			"trailing data",
			crlf("BEGIN:VCALENDAR", "END:VCALENDAR", "X-MORE:1"),
			3,
		},
		{
			"empty input",
			"",
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := Parse(tt.text)
			if cal != nil {
				t.Error("partial tree returned")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if pe.Line != tt.line {
				t.Errorf("Line = %d, want %d", pe.Line, tt.line)
			}
		})
	}
}

func TestParseMismatchMessage(t *testing.T) {
	_, err := Parse(crlf("BEGIN:VCALENDAR", "BEGIN:VEVENT", "END:VTODO", "END:VCALENDAR"))
	if err == nil || !strings.Contains(err.Error(), "Mismatched BEGIN/END tags") {
		t.Errorf("err = %v", err)
	}
}

func TestParseSyntaxErrorCarriesLine(t *testing.T) {
	_, err := Parse(crlf("BEGIN:VCALENDAR", "VERSION:2.0", "BROKEN LINE", "END:VCALENDAR"))
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
	if se.Line != 3 {
		t.Errorf("Line = %d, want 3", se.Line)
	}
}

func TestParseValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, err error)
	}{
		{
			"bad duration",
			"DURATION:PXT",
			func(t *testing.T, err error) {
				var ve *value.Error
				if !errors.As(err, &ve) || ve.Type != value.TypeDuration {
					t.Errorf("err = %v, want DURATION value error", err)
				}
			},
		},
		{
			"unknown VALUE type",
			"X-THING;VALUE=COLOR:red",
			func(t *testing.T, err error) {
				if !errors.Is(err, value.ErrUnknownType) {
					t.Errorf("err = %v, want ErrUnknownType", err)
				}
			},
		},
		{
			"unsupported rule part",
			"RRULE:FREQ=MONTHLY;BYSETPOS=-1;BYDAY=MO",
			func(t *testing.T, err error) {
				var ue *recur.UnsupportedError
				if !errors.As(err, &ue) || ue.Part != "BYSETPOS" {
					t.Errorf("err = %v, want UnsupportedError for BYSETPOS", err)
				}
			},
		},
		{
			"unsupported frequency",
			"RRULE:FREQ=HOURLY",
			func(t *testing.T, err error) {
				var ue *recur.UnsupportedError
				if !errors.As(err, &ue) {
					t.Errorf("err = %v, want UnsupportedError", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(calendarText("BEGIN:VEVENT", tt.line, "END:VEVENT"))
			var pe *PropertyError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *PropertyError", err)
			}
			if pe.Line != 5 {
				t.Errorf("Line = %d, want 5", pe.Line)
			}
			tt.check(t, err)
		})
	}
}

func TestParseValueOverride(t *testing.T) {
	cal := mustParse(t, calendarText(
		"BEGIN:VEVENT",
		"DTSTART;VALUE=DATE:20110101",
		"EXDATE;VALUE=DATE:20110201,20110301",
		"GEO:37.386013;-122.082932",
		"CATEGORIES:WORK,Fun\\, really",
		"X-UNKNOWN:plain\\ntext",
		"END:VEVENT",
	))
	ev := cal.Events()[0]

	if _, ok := ev.Value("DTSTART").(value.Date); !ok {
		t.Errorf("DTSTART is %T, want value.Date", ev.Value("DTSTART"))
	}
	ex, ok := ev.Value("EXDATE").(value.List)
	if !ok || ex.Of != value.TypeDate || len(ex.Items) != 2 {
		t.Errorf("EXDATE = %#v", ev.Value("EXDATE"))
	}
	geo, ok := ev.Value("GEO").(value.List)
	if !ok || len(geo.Items) != 2 || geo.Items[0] != value.Float(37.386013) || geo.Items[1] != value.Float(-122.082932) {
		t.Errorf("GEO = %#v", ev.Value("GEO"))
	}
	cats, ok := ev.Value("CATEGORIES").(value.List)
	if !ok || len(cats.Items) != 2 || cats.Items[1] != value.Text("Fun, really") {
		t.Errorf("CATEGORIES = %#v", ev.Value("CATEGORIES"))
	}
	if got := ev.Text("X-UNKNOWN"); got != "plain\ntext" {
		t.Errorf("X-UNKNOWN = %q", got)
	}
}

func TestParserFeed(t *testing.T) {
	p := newParser(DefaultRegistry())
	if p.state != stateStart {
		t.Fatalf("initial state = %d", p.state)
	}
	steps := []struct {
		rec   Record
		state parseState
		depth int
	}{
		{Record{Name: "BEGIN", Value: "VCALENDAR"}, stateBody, 1},
		{Record{Name: "VERSION", Value: "2.0"}, stateBody, 1},
		{Record{Name: "BEGIN", Value: "VEVENT"}, stateBody, 2},
		{Record{Name: "BEGIN", Value: "VALARM"}, stateBody, 3},
		{Record{Name: "END", Value: "VALARM"}, stateBody, 2},
		{Record{Name: "END", Value: "VEVENT"}, stateBody, 1},
		{Record{Name: "END", Value: "VCALENDAR"}, stateDone, 0},
	}
	for i, step := range steps {
		if err := p.feed(step.rec); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if p.state != step.state || len(p.stack) != step.depth {
			t.Fatalf("step %d: state %d depth %d, want %d/%d", i, p.state, len(p.stack), step.state, step.depth)
		}
	}
	if err := p.feed(Record{Name: "X-LATE", Value: "1", Line: 9}); err == nil {
		t.Error("feed after END:VCALENDAR succeeded")
	}

	cal, err := p.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	ev := cal.Components("VEVENT")
	if len(ev) != 1 || len(ev[0].Components("VALARM")) != 1 {
		t.Fatalf("unexpected tree: %v", cal.Children())
	}
	if ev[0].Components("VALARM")[0].Root() != cal {
		t.Error("nested component not owned by the calendar")
	}
}

func TestParseUnknownComponent(t *testing.T) {
	cal := mustParse(t, calendarText("BEGIN:X-CUSTOM", "X-PROP:1", "END:X-CUSTOM"))
	c := cal.Components("X-CUSTOM")
	if len(c) != 1 || c[0].Kind != KindOther || c[0].Text("X-PROP") != "1" {
		t.Errorf("X-CUSTOM = %v", c)
	}
}

func TestParseCustomRegistry(t *testing.T) {
	reg := DefaultRegistry().WithProperty("X-COUNT", PropertyDef{Type: value.TypeInteger})
	cal := mustParse(t, calendarText("X-COUNT:42"), WithRegistry(reg))
	if got := cal.Value("X-COUNT"); got != value.Integer(42) {
		t.Errorf("X-COUNT = %#v, want Integer(42)", got)
	}
	if DefaultRegistry().Property("X-COUNT").Type != value.TypeText {
		t.Error("WithProperty mutated the default registry")
	}
}

func TestParseReader(t *testing.T) {
	cal, err := ParseReader(strings.NewReader(calendarText()))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if cal.Text("VERSION") != "2.0" {
		t.Errorf("VERSION = %q", cal.Text("VERSION"))
	}
}
