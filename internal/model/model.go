package model

import "time"

// Event is a VEVENT flattened for the app layer, before recurrence
// expansion.
type Event struct {
	SourceID string // calendar source ID (e.g., config source ID)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Overridden is set when a RECURRENCE-ID instance replaced the
	// generated occurrence.
	Overridden bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Duration is End minus Start.
func (o Occurrence) Duration() time.Duration { return o.End.Sub(o.Start) }

// Overlaps reports whether o intersects [start, end).
func (o Occurrence) Overlaps(start, end time.Time) bool {
	if o.End.Equal(o.Start) {
		return !o.Start.Before(start) && o.Start.Before(end)
	}
	return o.Start.Before(end) && o.End.After(start)
}
