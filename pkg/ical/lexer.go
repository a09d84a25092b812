package ical

import "strings"

// Record is one tokenized content line.
type Record struct {
	Name   string
	Value  string
	Params Params
	Line   int
}

type lexState int

const (
	lexName lexState = iota
	lexParamOrValue
	lexParamName
	lexMaybeQuoted
	lexQuotedValue
	lexParamValue
	lexValue
)

var lexStateNames = [...]string{
	lexName:         "NAME",
	lexParamOrValue: "PARAM-OR-VALUE",
	lexParamName:    "PARAM-NAME",
	lexMaybeQuoted:  "MAYBE-QUOTED-PARAM",
	lexQuotedValue:  "QUOTED-PARAM-VALUE",
	lexParamValue:   "PARAM-VALUE",
	lexValue:        "VALUE",
}

func (s lexState) String() string { return lexStateNames[s] }

// Tokenize splits a logical line into name, parameters and raw value.
// Double quotes around a parameter value are removed; the value inside may
// contain ':', ';' and ','.
func Tokenize(line string) (Record, error) {
	var (
		rec   Record
		state = lexName
		name  strings.Builder
		pname strings.Builder
		pval  strings.Builder
	)
	fail := func(msg string) (Record, error) {
		return Record{}, &SyntaxError{Text: line, Msg: msg}
	}
	endParam := func() {
		rec.Params = append(rec.Params, Param{Name: strings.ToUpper(pname.String()), Value: pval.String()})
		pname.Reset()
		pval.Reset()
	}

	i := 0
scan:
	for ; i < len(line); i++ {
		c := line[i]
		switch state {
		case lexName:
			switch c {
			case ';':
				state = lexParamName
			case ':':
				state = lexValue
				i++
				break scan
			default:
				name.WriteByte(c)
			}

		case lexParamName:
			switch c {
			case '=':
				state = lexMaybeQuoted
			case ';', ':':
				return fail("parameter " + pname.String() + " has no value")
			default:
				pname.WriteByte(c)
			}

		case lexMaybeQuoted:
			if c == '"' {
				state = lexQuotedValue
				continue
			}
			state = lexParamValue
			i--

		case lexQuotedValue:
			if c == '"' {
				state = lexParamOrValue
				continue
			}
			pval.WriteByte(c)

		case lexParamOrValue:
			switch c {
			case ';':
				endParam()
				state = lexParamName
			case ':':
				endParam()
				state = lexValue
				i++
				break scan
			case ',':
				pval.WriteByte(c)
				state = lexMaybeQuoted
			default:
				return fail("unexpected character after quoted parameter value")
			}

		case lexParamValue:
			switch c {
			case ';':
				endParam()
				state = lexParamName
			case ':':
				endParam()
				state = lexValue
				i++
				break scan
			default:
				pval.WriteByte(c)
			}
		}
	}

	switch {
	case state == lexQuotedValue:
		return fail("unterminated quoted parameter value")
	case state == lexParamName && pname.Len() > 0:
		return fail("parameter " + pname.String() + " has no value")
	case state != lexValue:
		return fail("no ':' separating name and value")
	}
	rec.Name = strings.ToUpper(strings.TrimSpace(name.String()))
	if rec.Name == "" {
		return fail("empty property name")
	}
	rec.Value = line[i:]
	return rec, nil
}
