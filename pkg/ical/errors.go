package ical

import "fmt"

// SyntaxError reports a content line that cannot be tokenized.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ical: line %d: syntax error: %s", e.Line, e.Msg)
	}
	return "ical: syntax error: " + e.Msg
}

// ParseError reports a structural problem: a bad first record, unbalanced
// BEGIN/END, a missing END:VCALENDAR or data after it.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ical: line %d: %s", e.Line, e.Msg)
	}
	return "ical: " + e.Msg
}

// PropertyError wraps a value decoding failure with its location. The
// underlying *value.Error or *recur.UnsupportedError stays reachable
// through errors.As.
type PropertyError struct {
	Line     int
	Property string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("ical: line %d: %s: %v", e.Line, e.Property, e.Err)
}

func (e *PropertyError) Unwrap() error { return e.Err }

// ValidationError reports a component that breaks a cardinality or
// consistency rule.
type ValidationError struct {
	Component string
	Property  string
	Msg       string
}

func (e *ValidationError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("ical: %s: %s", e.Component, e.Msg)
	}
	return fmt.Sprintf("ical: %s: %s %s", e.Component, e.Property, e.Msg)
}
