// Package ical reads and writes RFC5545 iCalendar documents.
//
// Parse runs the tokenizer and the structural parser over a document and
// returns its VCALENDAR root as a *Component tree, decoding every property
// value on the way. Format and String serialize a tree back to folded
// content lines.
//
// A tree has one owner: the calendar root it was built or attached under.
// Attaching a component owned by another calendar attaches a deep copy, so
// the two calendars never share nodes.
package ical

import (
	"slices"

	"icalkit/pkg/value"
)

// Kind classifies a component by its element name.
type Kind int

const (
	KindOther Kind = iota
	KindCalendar
	KindEvent
	KindTodo
	KindJournal
	KindFreeBusy
	KindTimezone
	KindStandard
	KindDaylight
	KindAlarm
)

var kindNames = [...]string{
	KindOther:    "OTHER",
	KindCalendar: "VCALENDAR",
	KindEvent:    "VEVENT",
	KindTodo:     "VTODO",
	KindJournal:  "VJOURNAL",
	KindFreeBusy: "VFREEBUSY",
	KindTimezone: "VTIMEZONE",
	KindStandard: "STANDARD",
	KindDaylight: "DAYLIGHT",
	KindAlarm:    "VALARM",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindOther]
	}
	return kindNames[k]
}

// Property is one decoded content line.
type Property struct {
	Name   string
	Value  value.Value
	Params Params
}

// Clone returns a deep copy of the property.
func (p *Property) Clone() *Property {
	return &Property{Name: p.Name, Value: value.Clone(p.Value), Params: p.Params.Clone()}
}

// Text returns the value as a string for text-like types, or its encoded
// form otherwise.
func (p *Property) Text() string {
	if p == nil || p.Value == nil {
		return ""
	}
	switch v := p.Value.(type) {
	case value.Text:
		return string(v)
	case value.CalAddress:
		return string(v)
	case value.URI:
		return string(v)
	}
	return value.Encode(p.Value)
}

// Component is a node of the document tree: an element name, its
// properties and its child components, both kept in insertion order.
type Component struct {
	Name string
	Kind Kind

	props     map[string][]*Property
	propOrder []string

	children   map[string][]*Component
	childOrder []string

	// root is the calendar owning this subtree. Nil for an unattached top.
	root *Component
	reg  *Registry
}

// NewComponent returns an unattached component classified by the default
// registry.
func NewComponent(name string) *Component {
	return DefaultRegistry().NewComponent(name)
}

func (c *Component) registry() *Registry {
	if c.reg == nil {
		return DefaultRegistry()
	}
	return c.reg
}

func (c *Component) owner() *Component {
	if c.root != nil {
		return c.root
	}
	return c
}

// Root returns the calendar that owns c, or c itself when unattached.
func (c *Component) Root() *Component { return c.owner() }

// Add appends a property.
func (c *Component) Add(name string, v value.Value, params ...Param) *Property {
	return c.AddProperty(&Property{Name: name, Value: v, Params: Params(params)})
}

// AddProperty appends p as is.
func (c *Component) AddProperty(p *Property) *Property {
	if c.props == nil {
		c.props = make(map[string][]*Property)
	}
	if _, ok := c.props[p.Name]; !ok {
		c.propOrder = append(c.propOrder, p.Name)
	}
	c.props[p.Name] = append(c.props[p.Name], p)
	return p
}

// Set replaces every property called name with a single new one, keeping
// the position of the first.
func (c *Component) Set(name string, v value.Value, params ...Param) *Property {
	p := &Property{Name: name, Value: v, Params: Params(params)}
	if _, ok := c.props[name]; ok {
		c.props[name] = []*Property{p}
		return p
	}
	return c.AddProperty(p)
}

// Remove drops every property called name.
func (c *Component) Remove(name string) {
	if _, ok := c.props[name]; !ok {
		return
	}
	delete(c.props, name)
	c.propOrder = slices.DeleteFunc(c.propOrder, func(n string) bool { return n == name })
}

// Property returns the first property called name, or nil.
func (c *Component) Property(name string) *Property {
	if ps := c.props[name]; len(ps) > 0 {
		return ps[0]
	}
	return nil
}

// Properties returns every property called name.
func (c *Component) Properties(name string) []*Property {
	return c.props[name]
}

// AllProperties returns every property, grouped by name in first-insertion
// order.
func (c *Component) AllProperties() []*Property {
	var out []*Property
	for _, name := range c.propOrder {
		out = append(out, c.props[name]...)
	}
	return out
}

// Value returns the value of the first property called name, or nil.
func (c *Component) Value(name string) value.Value {
	if p := c.Property(name); p != nil {
		return p.Value
	}
	return nil
}

// Text is the Text of the first property called name.
func (c *Component) Text(name string) string {
	return c.Property(name).Text()
}

// AddComponent attaches child under c and returns the attached node. A
// child owned by a different calendar is deep-copied first.
func (c *Component) AddComponent(child *Component) *Component {
	if child.root != nil && child.root != c.owner() {
		child = child.Clone()
	}
	child.setRoot(c.owner())
	c.addChildNode(child)
	return child
}

// RemoveComponents detaches every child called name.
func (c *Component) RemoveComponents(name string) {
	for _, child := range c.children[name] {
		child.setRoot(nil)
	}
	delete(c.children, name)
	c.childOrder = slices.DeleteFunc(c.childOrder, func(n string) bool { return n == name })
}

func (c *Component) setRoot(root *Component) {
	c.root = root
	for _, name := range c.childOrder {
		for _, child := range c.children[name] {
			if root == nil {
				child.setRoot(c)
			} else {
				child.setRoot(root)
			}
		}
	}
}

// Components returns the children called name.
func (c *Component) Components(name string) []*Component {
	return c.children[name]
}

// Children returns every child, grouped by name in first-insertion order.
func (c *Component) Children() []*Component {
	var out []*Component
	for _, name := range c.childOrder {
		out = append(out, c.children[name]...)
	}
	return out
}

// Clone returns an unattached deep copy of c.
func (c *Component) Clone() *Component {
	cp := &Component{Name: c.Name, Kind: c.Kind, reg: c.reg}
	for _, p := range c.AllProperties() {
		cp.AddProperty(p.Clone())
	}
	for _, child := range c.Children() {
		cp.AddComponent(child.Clone())
	}
	return cp
}
