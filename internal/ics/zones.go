package ics

import (
	"fmt"
	"os"
	"sync"
	"time"

	"icalkit/pkg/caltime"
	"icalkit/pkg/ical"
	"icalkit/pkg/value"
)

var locations sync.Map // tzid -> *time.Location or error

func loadLocation(tzid string) (*time.Location, error) {
	if v, ok := locations.Load(tzid); ok {
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		err = fmt.Errorf("%w %q", value.ErrUnknownZone, tzid)
		locations.Store(tzid, err)
		return nil, err
	}
	locations.Store(tzid, loc)
	return loc, nil
}

// IANAZones resolves TZIDs that name an IANA zone through the Go time
// database. Feeds often reference such zones without embedding a
// VTIMEZONE.
var IANAZones value.ZoneResolver = value.ZoneResolverFunc(func(tzid string, local caltime.Fields) (caltime.Instant, error) {
	loc, err := loadLocation(tzid)
	if err != nil {
		return caltime.Instant{}, err
	}
	t := time.Date(local.Year, time.Month(local.Month), local.Day, local.Hour, local.Minute, local.Second, 0, loc)
	return caltime.UTC(t), nil
})

// LoadTimezones reads an .ics file used only for its VTIMEZONE
// definitions.
func LoadTimezones(path string) (*ical.Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cal, err := ical.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("timezone file %s: %w", path, err)
	}
	return cal, nil
}
