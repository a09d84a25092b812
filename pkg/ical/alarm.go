package ical

import (
	"strings"
	"time"

	"icalkit/pkg/value"
)

// Alarm actions.
const (
	ActionAudio   = "AUDIO"
	ActionDisplay = "DISPLAY"
	ActionEmail   = "EMAIL"
)

// Alarm is a VALARM with typed setters.
type Alarm struct {
	*Component
}

// NewAlarm returns an unattached VALARM. An empty action or a nil trigger
// leaves that property unset.
func NewAlarm(action string, trigger value.Value) *Alarm {
	a := &Alarm{Component: NewComponent("VALARM")}
	if action != "" {
		a.SetAction(action)
	}
	if trigger != nil {
		a.Set("TRIGGER", trigger)
	}
	return a
}

func (a *Alarm) SetAction(action string)         { a.Set("ACTION", value.Text(action)) }
func (a *Alarm) SetTrigger(before time.Duration) { a.Set("TRIGGER", value.Duration(before)) }
func (a *Alarm) SetAttach(uri string)            { a.Set("ATTACH", value.URI(uri)) }
func (a *Alarm) SetSummary(s string)             { a.Set("SUMMARY", value.Text(s)) }
func (a *Alarm) SetDescription(s string)         { a.Set("DESCRIPTION", value.Text(s)) }
func (a *Alarm) SetRepeat(n int)                 { a.Set("REPEAT", value.Integer(n)) }
func (a *Alarm) SetDuration(d time.Duration)     { a.Set("DURATION", value.Duration(d)) }
func (a *Alarm) AddAttendee(address string) *Property {
	return a.Add("ATTENDEE", value.CalAddress(address))
}

// Validate applies the VALARM cardinality rules of RFC5545 section 3.6.6.
func (a *Alarm) Validate() error {
	if err := a.exactlyOne("ACTION"); err != nil {
		return err
	}
	if err := a.exactlyOne("TRIGGER"); err != nil {
		return err
	}
	if err := a.atMostOne("DURATION"); err != nil {
		return err
	}
	if err := a.atMostOne("REPEAT"); err != nil {
		return err
	}
	if (a.Property("DURATION") == nil) != (a.Property("REPEAT") == nil) {
		return &ValidationError{Component: a.Name, Msg: "DURATION and REPEAT must appear together"}
	}

	switch action := strings.ToUpper(a.Text("ACTION")); action {
	case ActionAudio:
		return a.atMostOne("ATTACH")
	case ActionDisplay:
		return a.exactlyOne("DESCRIPTION")
	case ActionEmail:
		if err := a.exactlyOne("DESCRIPTION"); err != nil {
			return err
		}
		if err := a.exactlyOne("SUMMARY"); err != nil {
			return err
		}
		if len(a.Properties("ATTENDEE")) == 0 {
			return &ValidationError{Component: a.Name, Property: "ATTENDEE", Msg: "is required"}
		}
		return nil
	default:
		return &ValidationError{Component: a.Name, Property: "ACTION", Msg: "has invalid value " + action}
	}
}

func (a *Alarm) exactlyOne(name string) error {
	if len(a.Properties(name)) != 1 {
		return &ValidationError{Component: a.Name, Property: name, Msg: "is required and must not occur more than once"}
	}
	return nil
}

func (a *Alarm) atMostOne(name string) error {
	if len(a.Properties(name)) > 1 {
		return &ValidationError{Component: a.Name, Property: name, Msg: "must not occur more than once"}
	}
	return nil
}
