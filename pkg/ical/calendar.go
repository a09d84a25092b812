package ical

import (
	"fmt"

	"icalkit/pkg/caltime"
	"icalkit/pkg/value"
)

const (
	defaultVendor  = "icalkit"
	defaultProduct = "icalkit"
)

// ProdID formats a PRODID value.
func ProdID(vendor, product string) string {
	return fmt.Sprintf("-//%s//%s//EN", vendor, product)
}

type calendarConfig struct {
	prodID string
	reg    *Registry
}

// CalendarOption configures NewCalendar.
type CalendarOption func(*calendarConfig)

// WithProdID overrides the default PRODID.
func WithProdID(vendor, product string) CalendarOption {
	return func(c *calendarConfig) { c.prodID = ProdID(vendor, product) }
}

// WithCalendarRegistry builds the calendar against reg.
func WithCalendarRegistry(reg *Registry) CalendarOption {
	return func(c *calendarConfig) { c.reg = reg }
}

// NewCalendar returns an empty VCALENDAR carrying VERSION and PRODID.
func NewCalendar(opts ...CalendarOption) *Component {
	cfg := calendarConfig{prodID: ProdID(defaultVendor, defaultProduct), reg: DefaultRegistry()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cal := cfg.reg.NewComponent("VCALENDAR")
	cal.Add("VERSION", value.Text("2.0"))
	cal.Add("PRODID", value.Text(cfg.prodID))
	return cal
}

// Events returns the VEVENT children of a calendar.
func (c *Component) Events() []*Event {
	children := c.Components("VEVENT")
	out := make([]*Event, len(children))
	for i, child := range children {
		out[i] = &Event{Component: child}
	}
	return out
}

// Timezones returns the VTIMEZONE children of a calendar.
func (c *Component) Timezones() []*Timezone {
	children := c.Components("VTIMEZONE")
	out := make([]*Timezone, len(children))
	for i, child := range children {
		out[i] = &Timezone{Component: child}
	}
	return out
}

// Timezone returns the VTIMEZONE with the given TZID, or nil.
func (c *Component) Timezone(tzid string) *Timezone {
	for _, tz := range c.Timezones() {
		if tz.ID() == tzid {
			return tz
		}
	}
	return nil
}

// Zones resolves TZIDs against the VTIMEZONE children of c. The lookup
// happens per call, so timezones attached later are seen.
func (c *Component) Zones() value.ZoneResolver {
	return value.ZoneResolverFunc(func(tzid string, local caltime.Fields) (caltime.Instant, error) {
		tz := c.Timezone(tzid)
		if tz == nil {
			return caltime.Instant{}, fmt.Errorf("%w %q", value.ErrUnknownZone, tzid)
		}
		return tz.FromLocalTime(local)
	})
}
