package ical

import (
	"io"
	"strings"

	"icalkit/pkg/value"
)

type parseConfig struct {
	reg      *Registry
	tzText   string
	tzCal    *Component
	fallback value.ZoneResolver
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithRegistry parses with reg instead of the default registry.
func WithRegistry(reg *Registry) ParseOption {
	return func(c *parseConfig) { c.reg = reg }
}

// WithTimezoneText pre-loads the VTIMEZONE definitions of another document
// so TZID references in the body can resolve against them.
func WithTimezoneText(text string) ParseOption {
	return func(c *parseConfig) { c.tzText = text }
}

// WithTimezoneCalendar is WithTimezoneText for an already parsed calendar.
func WithTimezoneCalendar(cal *Component) ParseOption {
	return func(c *parseConfig) { c.tzCal = cal }
}

// WithZoneFallback consults z for TZIDs that no VTIMEZONE in scope defines.
func WithZoneFallback(z value.ZoneResolver) ParseOption {
	return func(c *parseConfig) { c.fallback = z }
}

// Parse reads a complete VCALENDAR document. It fails on the first error;
// no partial tree is ever returned.
func Parse(text string, opts ...ParseOption) (*Component, error) {
	cfg := parseConfig{reg: DefaultRegistry()}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := newParser(cfg.reg)
	if cfg.tzText != "" {
		tzCal, err := Parse(cfg.tzText, WithRegistry(cfg.reg))
		if err != nil {
			return nil, err
		}
		p.mergeTimezones(tzCal)
	}
	if cfg.tzCal != nil {
		p.mergeTimezones(cfg.tzCal)
	}
	if cfg.fallback != nil {
		p.zones = value.Chain(p.root.Zones(), cfg.fallback)
	}

	for _, line := range unfold(text) {
		rec, err := Tokenize(line.text)
		if err != nil {
			if se, ok := err.(*SyntaxError); ok {
				se.Line = line.num
			}
			return nil, err
		}
		rec.Line = line.num
		if err := p.feed(rec); err != nil {
			return nil, err
		}
	}
	return p.finish()
}

// ParseReader is Parse over the contents of r.
func ParseReader(r io.Reader, opts ...ParseOption) (*Component, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(b), opts...)
}

type parseState int

const (
	stateStart parseState = iota
	stateBody
	stateDone
)

// parser is the structural stack machine. It consumes one record at a time
// through feed.
type parser struct {
	reg   *Registry
	state parseState
	root  *Component
	stack []*Component
	zones value.ZoneResolver
}

func newParser(reg *Registry) *parser {
	root := reg.NewComponent("VCALENDAR")
	return &parser{reg: reg, root: root, zones: root.Zones()}
}

func (p *parser) mergeTimezones(cal *Component) {
	for _, tz := range cal.Components("VTIMEZONE") {
		p.root.AddComponent(tz)
	}
}

func (p *parser) feed(rec Record) error {
	switch p.state {
	case stateStart:
		if rec.Name != "BEGIN" || !strings.EqualFold(rec.Value, "VCALENDAR") {
			return &ParseError{Line: rec.Line, Msg: "expected BEGIN:VCALENDAR, got " + rec.Name + ":" + rec.Value}
		}
		p.stack = append(p.stack, p.root)
		p.state = stateBody
		return nil

	case stateDone:
		return &ParseError{Line: rec.Line, Msg: "unexpected " + rec.Name + " after END:VCALENDAR"}
	}

	top := p.stack[len(p.stack)-1]
	switch rec.Name {
	case "BEGIN":
		p.stack = append(p.stack, p.reg.NewComponent(rec.Value))

	case "END":
		if !strings.EqualFold(top.Name, rec.Value) {
			return &ParseError{Line: rec.Line, Msg: "Mismatched BEGIN/END tags: BEGIN:" + top.Name + " closed by END:" + rec.Value}
		}
		p.stack = p.stack[:len(p.stack)-1]
		if len(p.stack) == 0 {
			p.state = stateDone
			return nil
		}
		p.stack[len(p.stack)-1].AddComponent(top)

	default:
		prop, err := p.decode(rec)
		if err != nil {
			return &PropertyError{Line: rec.Line, Property: rec.Name, Err: err}
		}
		top.AddProperty(prop)
	}
	return nil
}

func (p *parser) decode(rec Record) (*Property, error) {
	def := p.reg.Property(rec.Name)
	typ := def.Type
	if name, ok := rec.Params.Get("VALUE"); ok {
		t, known := value.LookupType(name)
		if !known {
			return nil, &value.Error{Type: value.Type(name), Raw: rec.Value, Err: value.ErrUnknownType}
		}
		typ = t
	}
	v, err := value.Decode(typ, rec.Value, value.Options{
		TZID:  rec.Params.Value("TZID"),
		Zones: p.zones,
		List:  def.List,
		Sep:   def.Sep,
	})
	if err != nil {
		return nil, err
	}
	return &Property{Name: rec.Name, Value: v, Params: rec.Params}, nil
}

func (p *parser) finish() (*Component, error) {
	if p.state != stateDone {
		return nil, &ParseError{Msg: "END:VCALENDAR not found"}
	}
	return p.root, nil
}
