package recur

import "fmt"

// UnsupportedError reports a rule part, or part value, outside the set the
// engine evaluates.
type UnsupportedError struct {
	Part  string
	Value string
}

func (e *UnsupportedError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("recur: %s is not supported", e.Part)
	}
	return fmt.Sprintf("recur: %s=%s is not supported", e.Part, e.Value)
}

// SyntaxError reports a malformed rule part.
type SyntaxError struct {
	Part string
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recur: %s: %s: %v", e.Part, e.Msg, e.Err)
	}
	return fmt.Sprintf("recur: %s: %s", e.Part, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }
