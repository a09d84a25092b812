package ical

import (
	"strings"

	"icalkit/pkg/value"
)

// Format serializes c and its subtree as folded physical lines, without
// terminators.
func (c *Component) Format() []string {
	var out []string
	c.format(&out)
	return out
}

func (c *Component) format(out *[]string) {
	*out = append(*out, "BEGIN:"+c.Name)
	reg := c.registry()
	for _, p := range c.AllProperties() {
		*out = append(*out, Fold(p.line(reg), MaxLineOctets)...)
	}
	for _, child := range c.Children() {
		child.format(out)
	}
	*out = append(*out, "END:"+c.Name)
}

// line renders the unfolded NAME;PARAMS:VALUE form. A VALUE parameter is
// added when the value's type is not the one the registry declares.
func (p *Property) line(reg *Registry) string {
	var b strings.Builder
	b.WriteString(p.Name)

	params := p.Params
	if p.Value != nil {
		if _, ok := params.Get("VALUE"); !ok {
			if t := p.Value.Type(); t != reg.Property(p.Name).Type {
				params = append(params.Clone(), Param{Name: "VALUE", Value: string(t)})
			}
		}
	}
	for _, param := range params {
		b.WriteByte(';')
		b.WriteString(param.Name)
		b.WriteByte('=')
		b.WriteString(quoteParam(param.Value))
	}

	b.WriteByte(':')
	if p.Value != nil {
		b.WriteString(value.Encode(p.Value))
	}
	return b.String()
}

// String returns the CRLF-terminated document text. Anything other than a
// calendar is wrapped in a fresh VCALENDAR first; c itself is not attached
// to it.
func (c *Component) String() string {
	lines := c.envelope().Format()
	return strings.Join(lines, "\r\n") + "\r\n"
}

func (c *Component) envelope() *Component {
	if c.Kind == KindCalendar {
		return c
	}
	cal := NewCalendar()
	cal.reg = c.reg
	cal.addChildNode(c)
	return cal
}

// addChildNode links child for formatting only, leaving its owner alone.
func (c *Component) addChildNode(child *Component) {
	if c.children == nil {
		c.children = make(map[string][]*Component)
	}
	if _, ok := c.children[child.Name]; !ok {
		c.childOrder = append(c.childOrder, child.Name)
	}
	c.children[child.Name] = append(c.children[child.Name], child)
}
