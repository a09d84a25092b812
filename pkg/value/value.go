// Package value converts between the RFC5545 property value types and
// typed Go values.
//
// Decode turns raw property text into a Value; Encode is its inverse. The
// codec never looks at parameters itself: the TZID in effect and the list
// flag arrive through Options, and timezone lookups go through a
// ZoneResolver supplied by the caller.
package value

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
)

// Type names an RFC5545 value type.
type Type string

const (
	TypeBinary     Type = "BINARY"
	TypeBoolean    Type = "BOOLEAN"
	TypeCalAddress Type = "CAL-ADDRESS"
	TypeDate       Type = "DATE"
	TypeDateTime   Type = "DATE-TIME"
	TypeDuration   Type = "DURATION"
	TypeFloat      Type = "FLOAT"
	TypeInteger    Type = "INTEGER"
	TypePeriod     Type = "PERIOD"
	TypeRecur      Type = "RECUR"
	TypeText       Type = "TEXT"
	TypeTime       Type = "TIME"
	TypeURI        Type = "URI"
	TypeUTCOffset  Type = "UTC-OFFSET"
)

var knownTypes = map[Type]bool{
	TypeBinary: true, TypeBoolean: true, TypeCalAddress: true, TypeDate: true,
	TypeDateTime: true, TypeDuration: true, TypeFloat: true, TypeInteger: true,
	TypePeriod: true, TypeRecur: true, TypeText: true, TypeTime: true,
	TypeURI: true, TypeUTCOffset: true,
}

// LookupType resolves a VALUE parameter, case-insensitively.
func LookupType(name string) (Type, bool) {
	t := Type(strings.ToUpper(name))
	return t, knownTypes[t]
}

// Value is a decoded property value.
type Value interface {
	Type() Type
}

type (
	Text       string
	Boolean    bool
	Integer    int64
	Float      float64
	Binary     []byte
	CalAddress string
	URI        string
)

func (Text) Type() Type       { return TypeText }
func (Boolean) Type() Type    { return TypeBoolean }
func (Integer) Type() Type    { return TypeInteger }
func (Float) Type() Type      { return TypeFloat }
func (Binary) Type() Type     { return TypeBinary }
func (CalAddress) Type() Type { return TypeCalAddress }
func (URI) Type() Type        { return TypeURI }

// Date is a DATE value.
type Date struct {
	Instant caltime.Instant
}

func (Date) Type() Type { return TypeDate }

// DateTime is a DATE-TIME value. Instant is floating or UTC; a value that
// carried a TZID has already been resolved to UTC, and TZID and Local keep
// the original zone reference and wall clock so it encodes back unchanged.
type DateTime struct {
	Instant caltime.Instant
	TZID    string
	Local   caltime.Fields
}

func (DateTime) Type() Type { return TypeDateTime }

// Zoned returns a DATE-TIME bound to tzid whose wall clock is local and
// whose absolute instant is utc.
func Zoned(tzid string, local caltime.Fields, utc caltime.Instant) DateTime {
	return DateTime{Instant: utc, TZID: tzid, Local: local}
}

// Time is a TIME value.
type Time struct {
	Hour, Minute, Second int
	UTC                  bool
}

func (Time) Type() Type { return TypeTime }

// Duration is a DURATION value with second precision.
type Duration time.Duration

func (Duration) Type() Type { return TypeDuration }

// Period is a PERIOD value. Exactly one of End and Duration is meaningful:
// a zero End means the period was written as start/duration.
type Period struct {
	Start    caltime.Instant
	End      caltime.Instant
	Duration time.Duration
}

func (Period) Type() Type { return TypePeriod }

// Stop returns the end of the period regardless of the form it was written in.
func (p Period) Stop() caltime.Instant {
	if !p.End.IsZero() {
		return p.End
	}
	return p.Start.Add(p.Duration)
}

// Recur is a RECUR value.
type Recur struct {
	Rule *recur.Rule
}

func (Recur) Type() Type { return TypeRecur }

// UTCOffset is a UTC-OFFSET value encoded as signed HHMM: -0800 is -800.
type UTCOffset int

func (UTCOffset) Type() Type { return TypeUTCOffset }

// Duration converts the HHMM form to a time.Duration.
func (o UTCOffset) Duration() time.Duration {
	n := int(o)
	return time.Duration(n/100)*time.Hour + time.Duration(n%100)*time.Minute
}

func (o UTCOffset) String() string {
	n := int(o)
	sign := '+'
	if n < 0 {
		sign, n = '-', -n
	}
	return fmt.Sprintf("%c%04d", sign, n)
}

// List is a multi-valued property value. Every item shares one type. Sep
// is the separator used on the wire; empty means a comma.
type List struct {
	Of    Type
	Items []Value
	Sep   string
}

func (l List) Type() Type { return l.Of }

func (l List) separator() string {
	if l.Sep == "" {
		return ","
	}
	return l.Sep
}

// Clone returns a copy of v sharing no mutable state with it.
func Clone(v Value) Value {
	switch v := v.(type) {
	case Binary:
		return slices.Clone(v)
	case Recur:
		if v.Rule == nil {
			return v
		}
		return Recur{Rule: v.Rule.Clone()}
	case List:
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = Clone(item)
		}
		return List{Of: v.Of, Items: items, Sep: v.Sep}
	}
	return v
}
