package ical

import (
	"maps"
	"strings"
	"sync"

	"icalkit/pkg/value"
)

// ComponentDef describes a known component.
type ComponentDef struct {
	Kind Kind
	// Required lists properties that must be present at least once.
	Required []string
	// Children lists the component names allowed below this one. Empty
	// means any. Experimental X- components are always allowed.
	Children []string
}

// PropertyDef describes a known property. Undeclared properties are TEXT.
type PropertyDef struct {
	Type value.Type
	List bool
	// Sep overrides the list separator. Zero means a comma.
	Sep byte
}

// Registry maps element and property names to their definitions. It is
// never mutated after construction; the With methods return extended
// copies.
type Registry struct {
	components map[string]ComponentDef
	properties map[string]PropertyDef
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return &Registry{
		components: map[string]ComponentDef{
			"VCALENDAR": {Kind: KindCalendar, Required: []string{"PRODID", "VERSION"},
				Children: []string{"VEVENT", "VTODO", "VJOURNAL", "VFREEBUSY", "VTIMEZONE"}},
			"VEVENT":    {Kind: KindEvent, Required: []string{"DTSTAMP", "UID"}, Children: []string{"VALARM"}},
			"VTODO":     {Kind: KindTodo, Required: []string{"DTSTAMP", "UID"}, Children: []string{"VALARM"}},
			"VJOURNAL":  {Kind: KindJournal, Required: []string{"DTSTAMP", "UID"}},
			"VFREEBUSY": {Kind: KindFreeBusy, Required: []string{"DTSTAMP", "UID"}},
			"VTIMEZONE": {Kind: KindTimezone, Required: []string{"TZID"}, Children: []string{"STANDARD", "DAYLIGHT"}},
			"STANDARD":  {Kind: KindStandard, Required: []string{"DTSTART", "TZOFFSETFROM", "TZOFFSETTO"}},
			"DAYLIGHT":  {Kind: KindDaylight, Required: []string{"DTSTART", "TZOFFSETFROM", "TZOFFSETTO"}},
			"VALARM":    {Kind: KindAlarm, Required: []string{"ACTION", "TRIGGER"}},
		},
		properties: map[string]PropertyDef{
			// Calendar
			"CALSCALE": {Type: value.TypeText},
			"METHOD":   {Type: value.TypeText},
			"PRODID":   {Type: value.TypeText},
			"VERSION":  {Type: value.TypeText},

			// Descriptive
			"ATTACH":           {Type: value.TypeURI},
			"CATEGORIES":       {Type: value.TypeText, List: true},
			"CLASS":            {Type: value.TypeText},
			"COMMENT":          {Type: value.TypeText},
			"DESCRIPTION":      {Type: value.TypeText},
			"GEO":              {Type: value.TypeFloat, List: true, Sep: ';'},
			"LOCATION":         {Type: value.TypeText},
			"PERCENT-COMPLETE": {Type: value.TypeInteger},
			"PRIORITY":         {Type: value.TypeInteger},
			"RESOURCES":        {Type: value.TypeText, List: true},
			"STATUS":           {Type: value.TypeText},
			"SUMMARY":          {Type: value.TypeText},

			// Date and time
			"COMPLETED": {Type: value.TypeDateTime},
			"DTEND":     {Type: value.TypeDateTime},
			"DUE":       {Type: value.TypeDateTime},
			"DTSTART":   {Type: value.TypeDateTime},
			"DURATION":  {Type: value.TypeDuration},
			"FREEBUSY":  {Type: value.TypePeriod, List: true},
			"TRANSP":    {Type: value.TypeText},

			// Time zone
			"TZID":         {Type: value.TypeText},
			"TZNAME":       {Type: value.TypeText},
			"TZOFFSETFROM": {Type: value.TypeUTCOffset},
			"TZOFFSETTO":   {Type: value.TypeUTCOffset},
			"TZURL":        {Type: value.TypeURI},

			// Relationship
			"ATTENDEE":      {Type: value.TypeCalAddress},
			"CONTACT":       {Type: value.TypeText},
			"ORGANIZER":     {Type: value.TypeCalAddress},
			"RECURRENCE-ID": {Type: value.TypeDateTime},
			"RELATED-TO":    {Type: value.TypeText},
			"URL":           {Type: value.TypeURI},
			"UID":           {Type: value.TypeText},

			// Recurrence
			"EXDATE": {Type: value.TypeDateTime, List: true},
			"RDATE":  {Type: value.TypeDateTime, List: true},
			"RRULE":  {Type: value.TypeRecur},

			// Alarm
			"ACTION":  {Type: value.TypeText},
			"REPEAT":  {Type: value.TypeInteger},
			"TRIGGER": {Type: value.TypeDuration},

			// Change management
			"CREATED":       {Type: value.TypeDateTime},
			"DTSTAMP":       {Type: value.TypeDateTime},
			"LAST-MODIFIED": {Type: value.TypeDateTime},
			"SEQUENCE":      {Type: value.TypeInteger},

			"REQUEST-STATUS": {Type: value.TypeText},
		},
	}
})

// DefaultRegistry returns the shared RFC5545 registry.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Component looks up a component definition.
func (r *Registry) Component(name string) (ComponentDef, bool) {
	def, ok := r.components[strings.ToUpper(name)]
	return def, ok
}

// Property looks up a property definition, defaulting to TEXT.
func (r *Registry) Property(name string) PropertyDef {
	if def, ok := r.properties[strings.ToUpper(name)]; ok {
		return def
	}
	return PropertyDef{Type: value.TypeText}
}

// WithComponent returns a copy of r that also knows name.
func (r *Registry) WithComponent(name string, def ComponentDef) *Registry {
	cp := &Registry{components: maps.Clone(r.components), properties: r.properties}
	cp.components[strings.ToUpper(name)] = def
	return cp
}

// WithProperty returns a copy of r that also knows name.
func (r *Registry) WithProperty(name string, def PropertyDef) *Registry {
	cp := &Registry{components: r.components, properties: maps.Clone(r.properties)}
	cp.properties[strings.ToUpper(name)] = def
	return cp
}

// NewComponent returns an unattached component for name. Unknown names get
// KindOther.
func (r *Registry) NewComponent(name string) *Component {
	name = strings.ToUpper(name)
	def, _ := r.Component(name)
	return &Component{Name: name, Kind: def.Kind, reg: r}
}
