package value

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
)

// ErrUnknownZone is returned by a ZoneResolver that has no definition for
// the requested TZID.
var ErrUnknownZone = errors.New("unknown TZID")

// ErrUnknownType reports a type name outside the RFC5545 set.
var ErrUnknownType = errors.New("unknown value type")

// ZoneResolver converts a wall clock in a named zone to a UTC instant.
type ZoneResolver interface {
	FromLocalTime(tzid string, local caltime.Fields) (caltime.Instant, error)
}

// ZoneResolverFunc adapts a function to ZoneResolver.
type ZoneResolverFunc func(tzid string, local caltime.Fields) (caltime.Instant, error)

func (f ZoneResolverFunc) FromLocalTime(tzid string, local caltime.Fields) (caltime.Instant, error) {
	return f(tzid, local)
}

// Chain tries each resolver in order, moving on only when one reports
// ErrUnknownZone.
func Chain(resolvers ...ZoneResolver) ZoneResolver {
	return ZoneResolverFunc(func(tzid string, local caltime.Fields) (caltime.Instant, error) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			inst, err := r.FromLocalTime(tzid, local)
			if errors.Is(err, ErrUnknownZone) {
				continue
			}
			return inst, err
		}
		return caltime.Instant{}, fmt.Errorf("%w %q", ErrUnknownZone, tzid)
	})
}

// Error reports a raw value that cannot be decoded as its type.
type Error struct {
	Type Type
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("value: cannot decode %q as %s: %v", e.Raw, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options carries the context a decode needs beyond the raw text.
type Options struct {
	// TZID is the TZID parameter of the property, if any.
	TZID string
	// Zones resolves TZID references. Nil means none can be resolved.
	Zones ZoneResolver
	// List splits the raw value on unescaped separators first.
	List bool
	// Sep is the list separator. Zero means a comma.
	Sep byte
}

// Decode parses raw as type t.
func Decode(t Type, raw string, opts Options) (Value, error) {
	if !knownTypes[t] {
		return nil, &Error{Type: t, Raw: raw, Err: ErrUnknownType}
	}
	if opts.List {
		sep := opts.Sep
		if sep == 0 {
			sep = ','
		}
		parts := splitList(raw, sep)
		items := make([]Value, 0, len(parts))
		of := t
		for i, p := range parts {
			v, err := decodeOne(t, p, opts)
			if err != nil {
				return nil, err
			}
			// DATE-TIME lists written with bare dates hold DATE items.
			if i == 0 {
				of = v.Type()
			}
			items = append(items, v)
		}
		l := List{Of: of, Items: items}
		if sep != ',' {
			l.Sep = string(sep)
		}
		return l, nil
	}
	return decodeOne(t, raw, opts)
}

func decodeOne(t Type, raw string, opts Options) (Value, error) {
	v, err := decode(t, raw, opts)
	if err != nil {
		var ve *Error
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, &Error{Type: t, Raw: raw, Err: err}
	}
	return v, nil
}

func decode(t Type, raw string, opts Options) (Value, error) {
	switch t {
	case TypeText:
		return Text(UnescapeText(raw)), nil
	case TypeBoolean:
		switch strings.ToUpper(raw) {
		case "TRUE":
			return Boolean(true), nil
		case "FALSE":
			return Boolean(false), nil
		}
		return nil, errors.New("want TRUE or FALSE")
	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return Integer(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case TypeBinary:
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		return Binary(b), nil
	case TypeCalAddress:
		return CalAddress(raw), nil
	case TypeURI:
		return URI(raw), nil
	case TypeDate:
		d, err := caltime.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return Date{Instant: d}, nil
	case TypeDateTime:
		return decodeDateTime(raw, opts)
	case TypeTime:
		return decodeTime(raw)
	case TypeDuration:
		d, err := ParseDuration(raw)
		if err != nil {
			return nil, err
		}
		return Duration(d), nil
	case TypePeriod:
		return decodePeriod(raw, opts)
	case TypeRecur:
		r, err := recur.Parse(raw)
		if err != nil {
			return nil, err
		}
		return Recur{Rule: r}, nil
	case TypeUTCOffset:
		return decodeOffset(raw)
	}
	return nil, ErrUnknownType
}

// decodeDateTime returns a Date for an eight-character value, since
// properties declared DATE-TIME routinely carry bare dates.
func decodeDateTime(raw string, opts Options) (Value, error) {
	if len(raw) <= 8 {
		d, err := caltime.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return Date{Instant: d}, nil
	}
	f, utc, err := caltime.ParseFields(raw)
	if err != nil {
		return nil, err
	}
	if utc {
		return DateTime{Instant: caltime.FromFields(f, caltime.KindUTC)}, nil
	}
	if opts.TZID == "" {
		return DateTime{Instant: caltime.FromFields(f, caltime.KindFloating)}, nil
	}
	if opts.Zones == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownZone, opts.TZID)
	}
	inst, err := opts.Zones.FromLocalTime(opts.TZID, f)
	if err != nil {
		return nil, err
	}
	return Zoned(opts.TZID, f, inst), nil
}

func decodeTime(raw string) (Value, error) {
	utc := strings.HasSuffix(raw, "Z")
	s := strings.TrimSuffix(raw, "Z")
	if len(s) != 6 {
		return nil, errors.New("want HHMMSS")
	}
	var n [3]int
	for i := range n {
		v, err := strconv.Atoi(s[2*i : 2*i+2])
		if err != nil {
			return nil, errors.New("want HHMMSS")
		}
		n[i] = v
	}
	if n[0] > 23 || n[1] > 59 || n[2] > 60 {
		return nil, errors.New("time out of range")
	}
	return Time{Hour: n[0], Minute: n[1], Second: n[2], UTC: utc}, nil
}

func decodePeriod(raw string, opts Options) (Value, error) {
	startText, endText, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, errors.New("want start/end or start/duration")
	}
	start, err := periodInstant(startText, opts)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(endText, "P") || strings.HasPrefix(endText, "+P") || strings.HasPrefix(endText, "-P") {
		d, err := ParseDuration(endText)
		if err != nil {
			return nil, err
		}
		return Period{Start: start, Duration: d}, nil
	}
	end, err := periodInstant(endText, opts)
	if err != nil {
		return nil, err
	}
	return Period{Start: start, End: end}, nil
}

func periodInstant(raw string, opts Options) (caltime.Instant, error) {
	v, err := decodeDateTime(raw, opts)
	if err != nil {
		return caltime.Instant{}, err
	}
	dt, ok := v.(DateTime)
	if !ok {
		return caltime.Instant{}, errors.New("period bounds must be DATE-TIME")
	}
	return dt.Instant, nil
}

func decodeOffset(raw string) (Value, error) {
	if len(raw) != 5 && len(raw) != 7 {
		return nil, errors.New("want +HHMM or +HHMMSS")
	}
	var sign int
	switch raw[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return nil, errors.New("missing sign")
	}
	hh, err1 := strconv.Atoi(raw[1:3])
	mm, err2 := strconv.Atoi(raw[3:5])
	if err1 != nil || err2 != nil || hh > 23 || mm > 59 {
		return nil, errors.New("offset out of range")
	}
	if len(raw) == 7 {
		if _, err := strconv.Atoi(raw[5:7]); err != nil {
			return nil, errors.New("offset out of range")
		}
	}
	return UTCOffset(sign * (hh*100 + mm)), nil
}

// Encode renders v as property text.
func Encode(v Value) string {
	switch v := v.(type) {
	case Text:
		return EscapeText(string(v))
	case Boolean:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case Binary:
		return base64.StdEncoding.EncodeToString(v)
	case CalAddress:
		return string(v)
	case URI:
		return string(v)
	case Date:
		return v.Instant.String()
	case DateTime:
		if v.TZID != "" {
			return v.Local.String()
		}
		return v.Instant.String()
	case Time:
		s := fmt.Sprintf("%02d%02d%02d", v.Hour, v.Minute, v.Second)
		if v.UTC {
			s += "Z"
		}
		return s
	case Duration:
		return FormatDuration(time.Duration(v))
	case Period:
		if v.End.IsZero() {
			return v.Start.String() + "/" + FormatDuration(v.Duration)
		}
		return v.Start.String() + "/" + v.End.String()
	case Recur:
		if v.Rule == nil {
			return ""
		}
		return v.Rule.String()
	case UTCOffset:
		return v.String()
	case List:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = Encode(item)
		}
		return strings.Join(parts, v.separator())
	}
	return ""
}
