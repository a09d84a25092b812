package value

import (
	"errors"
	"testing"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
)

func TestDurationRoundTrip(t *testing.T) {
	for _, secs := range []int64{0, 1, 60, 3600, 86400, 604805, -660} {
		d := time.Duration(secs) * time.Second
		text := FormatDuration(d)
		got, err := ParseDuration(text)
		if err != nil {
			t.Fatalf("ParseDuration(%q) failed: %v", text, err)
		}
		if got != d {
			t.Errorf("%d seconds: %q parsed back to %v", secs, text, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "PT0S"},
		{1, "PT1S"},
		{60, "PT1M"},
		{3600, "PT1H"},
		{86400, "P1D"},
		{604800, "P1W"},
		{604805, "P1WT5S"},
		{604800 + 2*86400 + 3*3600 + 4*60 + 5, "P1W2DT3H4M5S"},
		{-660, "-PT11M"},
	}
	for _, tt := range tests {
		if got := FormatDuration(time.Duration(tt.secs) * time.Second); got != tt.want {
			t.Errorf("FormatDuration(%ds) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestParseDurationErrors(t *testing.T) {
	for _, s := range []string{"", "P", "PT", "P1DT", "1D", "P1H", "PT1D", "P-1D", "P1.5D"} {
		if _, err := ParseDuration(s); !errors.Is(err, ErrDurationSyntax) {
			t.Errorf("ParseDuration(%q): got %v, want ErrDurationSyntax", s, err)
		}
	}
	if d, err := ParseDuration("+PT15M"); err != nil || d != 15*time.Minute {
		t.Errorf("ParseDuration(+PT15M) = %v, %v", d, err)
	}
}

func TestTextEscaping(t *testing.T) {
	if got := EscapeText("\\ ; , \n"); got != `\\ \; \, \n` {
		t.Errorf("EscapeText = %q", got)
	}

	tests := []struct {
		raw  string
		want string
	}{
		{`plain`, "plain"},
		{`a\, b\; c`, "a, b; c"},
		{`line\nbreak\Nagain`, "line\nbreak\nagain"},
		{`back\\nslash`, `back\nslash`},
		{`colon\:`, "colon:"},
		{`trailing\`, `trailing\`},
	}
	for _, tt := range tests {
		if got := UnescapeText(tt.raw); got != tt.want {
			t.Errorf("UnescapeText(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(`one,two\,still two,three`)
	want := []string{"one", `two\,still two`, "three"}
	if len(got) != len(want) {
		t.Fatalf("SplitList = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEncode(t *testing.T) {
	dt := caltime.UTC(time.Date(2011, 11, 9, 17, 32, 16, 0, time.UTC))
	dt2 := caltime.UTC(time.Date(2011, 11, 10, 19, 32, 0, 0, time.UTC))

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"binary", Binary{0, 1, 2, 4, 5, 6}, "AAECBAUG"},
		{"date", Date{Instant: caltime.Date(2011, 11, 9)}, "20111109"},
		{"time", Time{Hour: 17, Minute: 32, Second: 16, UTC: true}, "173216Z"},
		{"date-time", DateTime{Instant: dt}, "20111109T173216Z"},
		{"zoned date-time", Zoned("America/New_York", caltime.Fields{Year: 2011, Month: 9, Day: 26, Hour: 15}, dt), "20110926T150000"},
		{"float", Float(1.333), "1.333"},
		{"negative float", Float(-3.14), "-3.14"},
		{"integer", Integer(1234567890), "1234567890"},
		{"boolean", Boolean(true), "TRUE"},
		{"period", Period{Start: dt, End: dt2}, "20111109T173216Z/20111110T193200Z"},
		{"period duration", Period{Start: dt, Duration: 5*24*time.Hour + 3*time.Hour}, "20111109T173216Z/P5DT3H"},
		{"recur", Recur{Rule: recur.MustParse("BYMONTH=11;BYDAY=1SU;FREQ=YEARLY")}, "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU"},
		{"west offset", UTCOffset(-800), "-0800"},
		{"east offset", UTCOffset(1230), "+1230"},
		{"text", Text("\\ ; , \n"), `\\ \; \, \n`},
		{"date list", List{Of: TypeDate, Items: []Value{
			Date{Instant: caltime.Date(2012, 1, 1)},
			Date{Instant: caltime.Date(2012, 2, 1)},
		}}, "20120101,20120201"},
		{"period list", List{Of: TypePeriod, Items: []Value{
			Period{Start: dt, End: dt2},
			Period{Start: dt2, End: dt},
		}}, "20111109T173216Z/20111110T193200Z,20111110T193200Z/20111109T173216Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.v); got != tt.want {
				t.Errorf("Encode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  string
		opts Options
		want Value
	}{
		{"binary", TypeBinary, "AAECBAUG", Options{}, nil},
		{"date", TypeDate, "20111109", Options{}, Date{Instant: caltime.Date(2011, 11, 9)}},
		{"floating", TypeDateTime, "20111109T173216", Options{}, DateTime{Instant: caltime.Floating(2011, 11, 9, 17, 32, 16)}},
		{"utc", TypeDateTime, "20110725T000000Z", Options{}, DateTime{Instant: caltime.UTC(time.Date(2011, 7, 25, 0, 0, 0, 0, time.UTC))}},
		{"bare date in date-time", TypeDateTime, "20110725", Options{}, Date{Instant: caltime.Date(2011, 7, 25)}},
		{"time", TypeTime, "173216", Options{}, Time{Hour: 17, Minute: 32, Second: 16}},
		{"duration", TypeDuration, "P1W2DT3H4M5S", Options{}, Duration(time.Duration(604800+2*86400+3*3600+4*60+5) * time.Second)},
		{"negative duration", TypeDuration, "-PT11M", Options{}, Duration(-11 * time.Minute)},
		{"boolean", TypeBoolean, "false", Options{}, Boolean(false)},
		{"integer", TypeInteger, "-42", Options{}, Integer(-42)},
		{"float", TypeFloat, "37.386013", Options{}, Float(37.386013)},
		{"offset", TypeUTCOffset, "-0500", Options{}, UTCOffset(-500)},
		{"offset with seconds", TypeUTCOffset, "+053000", Options{}, UTCOffset(530)},
		{"text", TypeText, `Meeting\, room 4\nbring notes`, Options{}, Text("Meeting, room 4\nbring notes")},
		{"uri", TypeURI, "http://example.com/a,b", Options{}, URI("http://example.com/a,b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.typ, tt.raw, tt.opts)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if tt.want == nil {
				if Encode(got) != tt.raw {
					t.Errorf("Encode(Decode(%q)) = %q", tt.raw, Encode(got))
				}
				return
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeList(t *testing.T) {
	v, err := Decode(TypeDateTime, "20110201,20110301", Options{List: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	list, ok := v.(List)
	if !ok {
		t.Fatalf("got %T, want List", v)
	}
	if list.Type() != TypeDate || len(list.Items) != 2 {
		t.Errorf("list = %+v", list)
	}

	v, err = Decode(TypeText, `work,home\, garden`, Options{List: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	items := v.(List).Items
	if len(items) != 2 || items[1] != Text("home, garden") {
		t.Errorf("text list items = %#v", items)
	}
}

func TestDecodeRecur(t *testing.T) {
	v, err := Decode(TypeRecur, "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU", Options{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	rule := v.(Recur).Rule
	if rule.Frequency() != recur.Yearly || rule.ByMonth[0] != 11 {
		t.Errorf("rule = %s", rule)
	}
}

func TestDecodeZoned(t *testing.T) {
	offsets := ZoneResolverFunc(func(tzid string, local caltime.Fields) (caltime.Instant, error) {
		if tzid != "Fixed/Minus4" {
			return caltime.Instant{}, ErrUnknownZone
		}
		return caltime.FromFields(local, caltime.KindUTC).Add(4 * time.Hour), nil
	})

	v, err := Decode(TypeDateTime, "20110926T150000", Options{TZID: "Fixed/Minus4", Zones: offsets})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	dt := v.(DateTime)
	if dt.Instant.String() != "20110926T190000Z" {
		t.Errorf("instant = %s", dt.Instant)
	}
	if Encode(dt) != "20110926T150000" {
		t.Errorf("Encode = %q, want the local wall clock", Encode(dt))
	}

	// A UTC value ignores the TZID.
	v, err = Decode(TypeDateTime, "20110926T150000Z", Options{TZID: "Nowhere", Zones: offsets})
	if err != nil || v.(DateTime).TZID != "" {
		t.Errorf("UTC value with TZID: %#v, %v", v, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  string
		opts Options
		want error
	}{
		{"unknown type", Type("X-WIDGET"), "1", Options{}, ErrUnknownType},
		{"bad duration", TypeDuration, "P1X", Options{}, ErrDurationSyntax},
		{"bad date", TypeDate, "2011-01-01", Options{}, caltime.ErrDateSyntax},
		{"unknown zone", TypeDateTime, "20110926T150000", Options{TZID: "Mars/Olympus"}, ErrUnknownZone},
		{"unresolved zone", TypeDateTime, "20110926T150000", Options{TZID: "Mars/Olympus", Zones: Chain()}, ErrUnknownZone},
		{"strict boolean", TypeBoolean, "yes", Options{}, nil},
		{"bad offset", TypeUTCOffset, "0500", Options{}, nil},
		{"bad period", TypePeriod, "20110926T150000Z", Options{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.typ, tt.raw, tt.opts)
			var ve *Error
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want *Error", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	_, err := Decode(TypeRecur, "FREQ=HOURLY", Options{})
	var unsupported *recur.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Errorf("RECUR error %v does not expose *recur.UnsupportedError", err)
	}
}

func TestLookupType(t *testing.T) {
	if typ, ok := LookupType("date"); !ok || typ != TypeDate {
		t.Errorf("LookupType(date) = %q, %v", typ, ok)
	}
	if _, ok := LookupType("X-NAME"); ok {
		t.Error("LookupType accepted an unknown type")
	}
}

func TestUTCOffsetDuration(t *testing.T) {
	if got := UTCOffset(-530).Duration(); got != -(5*time.Hour + 30*time.Minute) {
		t.Errorf("Duration() = %v", got)
	}
}
