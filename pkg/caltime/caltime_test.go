package caltime

import (
	"errors"
	"testing"
	"time"
)

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
		want  string
	}{
		{"20110926", KindDate, "20110926"},
		{"20110926T150000", KindFloating, "20110926T150000"},
		{"20110926T190000Z", KindUTC, "20110926T190000Z"},
		{"20161231T235960Z", KindUTC, "20170101T000000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDateTime(tt.input)
			if err != nil {
				t.Fatalf("ParseDateTime failed: %v", err)
			}
			if got.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", got.Kind(), tt.kind)
			}
			if got.String() != tt.want {
				t.Errorf("String() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestParseDateTimeErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"2011092", ErrDateSyntax},
		{"20111301", ErrDateSyntax},
		{"20110230", ErrDateSyntax},
		{"2011O926", ErrDateSyntax},
		{"20110926 150000", ErrDateTimeSyntax},
		{"20110926T250000", ErrDateTimeSyntax},
		{"20110926T150000X", ErrDateTimeSyntax},
		{"20110926T1500", ErrDateTimeSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseDateTime(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseFieldsKeepsRawValues(t *testing.T) {
	f, utc, err := ParseFields("20110313T023000")
	if err != nil {
		t.Fatalf("ParseFields failed: %v", err)
	}
	want := Fields{Year: 2011, Month: 3, Day: 13, Hour: 2, Minute: 30}
	if f != want || utc {
		t.Errorf("got %+v utc=%v, want %+v", f, utc, want)
	}
	if f.String() != "20110313T023000" {
		t.Errorf("String() = %q", f.String())
	}
}

func TestInstantIn(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}

	utc := UTC(time.Date(2011, 9, 26, 19, 0, 0, 0, time.UTC))
	if got := utc.In(ny); got.Hour() != 15 {
		t.Errorf("UTC instant in New York: %v", got)
	}

	floating := Floating(2011, 9, 26, 15, 0, 0)
	if got := floating.In(ny); got.Hour() != 15 || got.Location() != ny {
		t.Errorf("floating instant in New York: %v", got)
	}

	date := Date(2011, 9, 26)
	if got := date.In(ny); got.Hour() != 0 || got.Day() != 26 {
		t.Errorf("date in New York: %v", got)
	}
}

func TestInstantComparison(t *testing.T) {
	a := Floating(2024, 1, 1, 10, 0, 0)
	b := Floating(2024, 1, 1, 11, 0, 0)
	d := Date(2024, 1, 1)

	if !a.Before(b) || !b.After(a) || a.Compare(b) != -1 {
		t.Error("ordering of floating instants is wrong")
	}
	if !a.SameDate(d) || a.Equal(d) {
		t.Error("date comparison is wrong")
	}
	if got := d.Add(36 * time.Hour); got.Kind() != KindDate {
		t.Errorf("Add changed kind to %s", got.Kind())
	}
}

func TestFromWall(t *testing.T) {
	wall := time.Date(2024, 2, 29, 13, 45, 0, 0, time.UTC)

	if got := FromWall(wall, KindDate); got.String() != "20240229" {
		t.Errorf("date: %s", got)
	}
	if got := FromWall(wall, KindFloating); got.String() != "20240229T134500" {
		t.Errorf("floating: %s", got)
	}
	if got := FromWall(wall, KindUTC); got.String() != "20240229T134500Z" {
		t.Errorf("utc: %s", got)
	}
}

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2023, 2, 28},
		{1900, 2, 28},
		{2000, 2, 29},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tt := range tests {
		if got := DaysIn(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysIn(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}
