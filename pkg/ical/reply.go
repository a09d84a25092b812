package ical

import (
	"time"

	"icalkit/pkg/value"
)

// PartStat is an attendee participation status.
type PartStat string

const (
	Accepted    PartStat = "ACCEPTED"
	Declined    PartStat = "DECLINED"
	Tentative   PartStat = "TENTATIVE"
	NeedsAction PartStat = "NEEDS-ACTION"
	Delegated   PartStat = "DELEGATED"
)

// ReplyOptions tunes Reply.
type ReplyOptions struct {
	// CN is the attendee's display name. Defaults to the address.
	CN string
	// Calendar configures the METHOD:REPLY envelope.
	Calendar []CalendarOption
	// Now stamps DTSTAMP and LAST-MODIFIED. Zero means time.Now.
	Now time.Time
}

// Reply answers an invitation on behalf of attendee. It returns a new
// METHOD:REPLY calendar holding a copy of the event and copies of the
// source calendar's VTIMEZONEs; e is not modified. An empty status means
// Accepted.
func (e *Event) Reply(attendee string, status PartStat, opts ReplyOptions) *Component {
	if status == "" {
		status = Accepted
	}
	cn := opts.CN
	if cn == "" {
		cn = attendee
	}

	resp := e.Component.Clone()
	resp.Set("ATTENDEE", value.CalAddress(attendee),
		Param{Name: "PARTSTAT", Value: string(status)},
		Param{Name: "CN", Value: cn})
	ts := stamp(opts.Now)
	resp.Set("DTSTAMP", ts)
	resp.Set("LAST-MODIFIED", ts)

	cal := NewCalendar(opts.Calendar...)
	cal.Add("METHOD", value.Text("REPLY"))
	if root := e.Root(); root != e.Component {
		for _, tz := range root.Components("VTIMEZONE") {
			cal.AddComponent(tz)
		}
	}
	cal.AddComponent(resp)
	return cal
}
